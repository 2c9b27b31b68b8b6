package simulation

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/circus/datarecording"
	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/timing"
)

var _ = Describe("Simulation", func() {
	var (
		start   time.Time
		clock   *timing.Clock
		profile activity.Profile
		s       *Simulation
	)

	BeforeEach(func() {
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		var err error
		clock, err = timing.MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			WithSeed(5).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		profile, err = activity.NewProfile(
			[]float64{1, 1, 1, 1, 1, 1, 5, 5, 5, 5, 5, 5,
				5, 5, 5, 5, 5, 5, 2, 2, 2, 2, 1, 1},
			"1h", start)
		Expect(err).NotTo(HaveOccurred())

		s = NewSimulation(clock)
	})

	It("should keep generators in the order they were added", func() {
		_, err := s.AddGenerator("b", profile, 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.AddGenerator("a", profile, 2)
		Expect(err).NotTo(HaveOccurred())

		gens := s.Generators()
		Expect(gens).To(HaveLen(2))
		Expect(gens[0].Name()).To(Equal("b"))
		Expect(gens[1].Name()).To(Equal("a"))
		Expect(s.Generator("a")).To(BeIdenticalTo(gens[1]))
		Expect(s.Generator("c")).To(BeNil())
	})

	It("should panic on duplicated generator names", func() {
		_, err := s.AddGenerator("a", profile, 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(func() { _, _ = s.AddGenerator("a", profile, 1) }).To(Panic())
		Expect(func() { _, _ = s.AddGenerator("Clock", profile, 1) }).To(Panic())
	})

	It("should report invalid profiles", func() {
		zero, err := activity.NewProfile([]float64{0, 0}, "12h", start)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.AddGenerator("z", zero, 1)
		Expect(err).To(MatchError(activity.ErrZeroWeights))
		Expect(s.Generators()).To(BeEmpty())
	})

	It("should step the clock and the generators together", func() {
		g, err := s.AddGenerator("a", profile, 1)
		Expect(err).NotTo(HaveOccurred())

		s.Step(5)

		Expect(clock.Now()).To(Equal(start.Add(5 * time.Hour)))
		Expect(g.Origin()).To(Equal(clock.Now()))
	})

	It("should sample a named generator", func() {
		_, err := s.AddGenerator("a", profile, 1)
		Expect(err).NotTo(HaveOccurred())

		waits, err := s.Sample("a", []float64{1, 1, 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(waits).To(HaveLen(3))

		_, err = s.Sample("missing", []float64{1})
		Expect(err).To(HaveOccurred())
	})

	It("should run the body before every tick", func() {
		var seen []time.Time
		err := s.Run(3, func(now time.Time) error {
			seen = append(seen, now)
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]time.Time{
			start,
			start.Add(time.Hour),
			start.Add(2 * time.Hour),
		}))
		Expect(clock.Now()).To(Equal(start.Add(3 * time.Hour)))
	})

	It("should stop running at the first error", func() {
		boom := errors.New("boom")
		calls := 0

		err := s.Run(10, func(time.Time) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		})

		Expect(err).To(MatchError(boom))
		Expect(clock.Now()).To(Equal(start.Add(time.Hour)))
	})

	It("should hold steps while paused", func() {
		s.Pause()
		Expect(s.IsPaused()).To(BeTrue())

		done := make(chan struct{})
		go func() {
			s.Step(1)
			close(done)
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(clock.Now()).To(Equal(start))

		s.Continue()
		Eventually(done).Should(BeClosed())
		Expect(clock.Now()).To(Equal(start.Add(time.Hour)))
	})

	It("should resume from a checkpoint", func() {
		g, err := s.AddGenerator("a", profile, 9)
		Expect(err).NotTo(HaveOccurred())
		s.Step(30)

		path := filepath.Join(GinkgoT().TempDir(), "checkpoint.json")
		Expect(s.Save(path)).To(Succeed())

		obs := []float64{0.2, 1, 4}
		wantWaits, err := g.Generate(obs)
		Expect(err).NotTo(HaveOccurred())
		wantStamps := clock.Timestamp(4)

		s.Step(7)
		Expect(s.Load(path)).To(Succeed())

		Expect(clock.Now().Equal(start.Add(30 * time.Hour))).To(BeTrue())
		waits, err := g.Generate(obs)
		Expect(err).NotTo(HaveOccurred())
		Expect(waits).To(Equal(wantWaits))

		stamps := clock.Timestamp(4)
		for i := range stamps {
			Expect(stamps[i].Equal(wantStamps[i])).To(BeTrue())
		}
	})

	It("should record ticks and samples", func() {
		_, err := s.AddGenerator("a", profile, 1)
		Expect(err).NotTo(HaveOccurred())

		recorder := datarecording.New(
			filepath.Join(GinkgoT().TempDir(), "rec"))
		DeferCleanup(recorder.Close)

		s.AttachRecorder(recorder)
		_, err = s.AddGenerator("b", profile, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Recorder()).To(BeIdenticalTo(recorder))
		Expect(recorder.ListTables()).To(Equal([]string{
			datarecording.TickTable,
			datarecording.SampleTable,
		}))
		Expect(func() { s.AttachRecorder(recorder) }).To(Panic())

		s.Step(2)
		_, err = s.Sample("a", []float64{1})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Sample("b", []float64{1})
		Expect(err).NotTo(HaveOccurred())

		recorder.Flush()
	})
})
