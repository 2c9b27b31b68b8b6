package datarecording

import (
	"slices"
	"time"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/hooking"
	"github.com/sarchlab/circus/sim/id"
	"github.com/sarchlab/circus/sim/timing"
)

// Table names used by the recorders.
const (
	TickTable   = "clock_ticks"
	SampleTable = "wait_samples"
)

// TickEntry is one clock advance.
type TickEntry struct {
	ID    string
	Clock string
	Time  string
	Unix  int64
}

// SampleEntry is the waiting time drawn for one actor.
type SampleEntry struct {
	ID          string
	Generator   string
	Time        string
	Actor       int
	Observation float64
	Draw        float64
	WaitTicks   int
}

type namedDomain interface {
	Name() string
}

func domainName(d hooking.Hookable) string {
	if n, ok := d.(namedDomain); ok {
		return n.Name()
	}

	return ""
}

func ensureTable(r DataRecorder, name string, sample any) {
	if slices.Contains(r.ListTables(), name) {
		return
	}

	r.CreateTable(name, sample)
}

// TickRecorder is a clock hook that records every advance.
type TickRecorder struct {
	recorder DataRecorder
}

// NewTickRecorder creates a TickRecorder that writes into r.
func NewTickRecorder(r DataRecorder) *TickRecorder {
	ensureTable(r, TickTable, TickEntry{})

	return &TickRecorder{
		recorder: r,
	}
}

// Func records the clock time after an increment.
func (h *TickRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosAfterIncrement {
		return
	}

	now, ok := ctx.Item.(time.Time)
	if !ok {
		return
	}

	h.recorder.InsertData(TickTable, TickEntry{
		ID:    id.Generate(),
		Clock: domainName(ctx.Domain),
		Time:  now.Format(time.RFC3339Nano),
		Unix:  now.Unix(),
	})
}

// SampleRecorder is a generator hook that records every drawn waiting time.
type SampleRecorder struct {
	recorder DataRecorder
}

// NewSampleRecorder creates a SampleRecorder that writes into r. Several
// generators can share one SampleRecorder.
func NewSampleRecorder(r DataRecorder) *SampleRecorder {
	ensureTable(r, SampleTable, SampleEntry{})

	return &SampleRecorder{
		recorder: r,
	}
}

// Func records one entry per actor of the sample.
func (h *SampleRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != activity.HookPosAfterGenerate {
		return
	}

	sample, ok := ctx.Item.(activity.Sample)
	if !ok {
		return
	}

	name := domainName(ctx.Domain)
	ts := sample.Time.Format(time.RFC3339Nano)

	for i, wait := range sample.WaitTicks {
		h.recorder.InsertData(SampleTable, SampleEntry{
			ID:          id.Generate(),
			Generator:   name,
			Time:        ts,
			Actor:       sample.Actors[i],
			Observation: sample.Observations[i],
			Draw:        sample.Draws[i],
			WaitTicks:   wait,
		})
	}
}
