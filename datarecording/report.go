package datarecording

import (
	"context"
	"sort"
	"time"
)

// GeneratorReport sums up the waiting times drawn from one generator.
type GeneratorReport struct {
	Generator string
	Draws     int
	Actors    int
	MeanWait  float64
	MaxWait   int
}

// A Report sums up a recording.
type Report struct {
	Ticks      int
	FirstTick  time.Time
	LastTick   time.Time
	Generators []GeneratorReport
}

// Summarize reads the tick and sample tables back and sums them up per
// generator, sorted by generator name.
func Summarize(ctx context.Context, r DataReader) (Report, error) {
	var report Report

	ticks, total, err := r.Query(ctx, TickTable, QueryParams{OrderBy: "Unix"})
	if err != nil {
		return report, err
	}

	report.Ticks = total
	if len(ticks) > 0 {
		report.FirstTick = time.Unix(ticks[0].(*TickEntry).Unix, 0).UTC()
		report.LastTick = time.Unix(ticks[len(ticks)-1].(*TickEntry).Unix, 0).UTC()
	}

	samples, _, err := r.Query(ctx, SampleTable, QueryParams{})
	if err != nil {
		return report, err
	}

	byName := make(map[string]*GeneratorReport)
	actors := make(map[string]map[int]bool)

	for _, row := range samples {
		s := row.(*SampleEntry)

		g, ok := byName[s.Generator]
		if !ok {
			g = &GeneratorReport{Generator: s.Generator}
			byName[s.Generator] = g
			actors[s.Generator] = make(map[int]bool)
		}

		g.Draws++
		g.MeanWait += float64(s.WaitTicks)
		g.MaxWait = max(g.MaxWait, s.WaitTicks)
		actors[s.Generator][s.Actor] = true
	}

	for name, g := range byName {
		g.MeanWait /= float64(g.Draws)
		g.Actors = len(actors[name])
		report.Generators = append(report.Generators, *g)
	}

	sort.Slice(report.Generators, func(i, j int) bool {
		return report.Generators[i].Generator < report.Generators[j].Generator
	})

	return report, nil
}
