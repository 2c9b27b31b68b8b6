package simulation

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/timing"
)

var _ = Describe("Population", func() {
	var (
		start time.Time
		s     *Simulation
		gen   *activity.Generator
	)

	BeforeEach(func() {
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		clock, err := timing.MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		weights := make([]float64, 24)
		weights[3] = 1
		profile, err := activity.NewProfile(weights, "1h", start)
		Expect(err).NotTo(HaveOccurred())

		s = NewSimulation(clock)
		gen, err = s.AddGenerator("Burst", profile, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject a missing generator", func() {
		_, err := NewPopulation(nil, []float64{1})
		Expect(err).To(HaveOccurred())
	})

	It("should reject invalid activity levels", func() {
		_, err := NewPopulation(gen, []float64{1, 0})
		Expect(err).To(MatchError(activity.ErrInvalidObservation))
	})

	It("should draw a first wait for every actor", func() {
		p, err := NewPopulation(gen, []float64{1, 1, 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Size()).To(Equal(3))
		Expect(p.Generator()).To(BeIdenticalTo(gen))
		Expect(p.Timers()).To(Equal([]int{3, 3, 3}))
	})

	It("should let actors act once per burst", func() {
		p, err := NewPopulation(gen, []float64{1, 1, 1})
		Expect(err).NotTo(HaveOccurred())

		acted := map[int][]int{}
		err = s.Run(48, func(now time.Time) error {
			due, err := p.Due()
			if err != nil {
				return err
			}

			for _, a := range due {
				acted[a] = append(acted[a], now.Hour())
			}

			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		for a := 0; a < 3; a++ {
			Expect(acted[a]).To(Equal([]int{3, 3}))
		}
	})

	It("should restore the countdowns of its actors", func() {
		p, err := s.AddPopulation("Burst", []float64{1, 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("Burst.Actors"))
		Expect(s.Populations()).To(Equal([]*Population{p}))

		state := p.State()
		s.Step(1)
		_, err = p.Due()
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Timers()).To(Equal([]int{2, 2}))

		Expect(p.SetState(state)).To(Succeed())
		Expect(p.Timers()).To(Equal([]int{3, 3}))
	})

	It("should reject states of another size", func() {
		p, err := s.AddPopulation("Burst", []float64{1, 2})
		Expect(err).NotTo(HaveOccurred())

		other, err := NewPopulation(gen, []float64{1})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.SetState(other.State())).NotTo(Succeed())
		Expect(p.SetState("nonsense")).NotTo(Succeed())
	})

	It("should not add populations to unknown generators", func() {
		_, err := s.AddPopulation("Nobody", []float64{1})
		Expect(err).To(HaveOccurred())

		_, err = s.AddPopulation("Burst", []float64{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(func() { _, _ = s.AddPopulation("Burst", []float64{1}) }).
			To(Panic())
	})
})

type action struct {
	Time  time.Time
	Actor int
}

var _ = Describe("Resuming a population", func() {
	var start time.Time

	build := func() (*Simulation, *Population) {
		clock, err := timing.MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			WithSeed(11).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		profile, err := activity.NewProfile(
			[]float64{1, 1, 1, 1, 1, 1, 5, 5, 5, 5, 5, 5,
				5, 5, 5, 5, 5, 5, 2, 2, 2, 2, 1, 1},
			"1h", start)
		Expect(err).NotTo(HaveOccurred())

		s := NewSimulation(clock)
		_, err = s.AddGenerator("Visitors", profile, 3)
		Expect(err).NotTo(HaveOccurred())

		p, err := s.AddPopulation("Visitors",
			[]float64{0.5, 1, 1, 2, 4, 8, 0.2, 3})
		Expect(err).NotTo(HaveOccurred())

		return s, p
	}

	run := func(s *Simulation, p *Population, ticks int) []action {
		var actions []action

		err := s.Run(ticks, func(now time.Time) error {
			due, err := p.Due()
			for _, a := range due {
				actions = append(actions, action{Time: now, Actor: a})
			}

			return err
		})
		Expect(err).NotTo(HaveOccurred())

		return actions
	}

	BeforeEach(func() {
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("should act as if it was never interrupted", func() {
		s, p := build()
		want := run(s, p, 60)
		Expect(want).NotTo(BeEmpty())

		first, firstPop := build()
		got := run(first, firstPop, 25)

		path := filepath.Join(GinkgoT().TempDir(), "checkpoint.json")
		Expect(first.Save(path)).To(Succeed())

		resumed, resumedPop := build()
		Expect(resumed.Load(path)).To(Succeed())
		got = append(got, run(resumed, resumedPop, 35)...)

		Expect(got).To(HaveLen(len(want)))
		for i := range want {
			Expect(got[i].Time.Equal(want[i].Time)).To(BeTrue())
			Expect(got[i].Actor).To(Equal(want[i].Actor))
		}
	})
})
