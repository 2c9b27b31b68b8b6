package timing

import (
	"bytes"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/circus/sim/hooking"
)

type nowRecorder struct {
	clock *Clock
	seen  []time.Time
}

func (r *nowRecorder) Increment() {
	r.seen = append(r.seen, r.clock.Now())
}

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		start    time.Time
		clock    *Clock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		var err error
		clock, err = MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			WithSeed(42).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject steps that are not whole seconds", func() {
		_, err := MakeBuilder().WithStep(1500 * time.Millisecond).Build("C")
		Expect(err).To(MatchError(ErrInvalidStep))

		_, err = MakeBuilder().WithStep(0).Build("C")
		Expect(err).To(MatchError(ErrInvalidStep))
	})

	It("should advance by exactly n steps after n increments", func() {
		Expect(clock.Now()).To(Equal(start))

		for n := 1; n <= 100; n++ {
			clock.Increment()
			Expect(clock.Now()).
				To(Equal(start.Add(time.Duration(n) * time.Hour)))
		}
	})

	It("should increment dependents in registration order", func() {
		first := NewMockIncrementer(mockCtrl)
		second := NewMockIncrementer(mockCtrl)

		clock.Register(first)
		clock.Register(second)

		gomock.InOrder(
			first.EXPECT().Increment(),
			second.EXPECT().Increment(),
			first.EXPECT().Increment(),
			second.EXPECT().Increment(),
		)

		clock.Increment()
		clock.Increment()
	})

	It("should not deduplicate dependents", func() {
		dep := NewMockIncrementer(mockCtrl)
		clock.Register(dep)
		clock.Register(dep)

		dep.EXPECT().Increment().Times(2)

		clock.Increment()
		Expect(clock.Dependents()).To(HaveLen(2))
	})

	It("should panic when registering nil", func() {
		Expect(func() { clock.Register(nil) }).To(Panic())
	})

	It("should move time before notifying dependents", func() {
		r := &nowRecorder{clock: clock}
		clock.Register(r)

		clock.Increment()

		Expect(r.seen).To(Equal([]time.Time{start.Add(time.Hour)}))
	})

	It("should invoke hooks around the increment", func() {
		var positions []string
		var items []any
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
			items = append(items, ctx.Item)
		}))

		clock.Increment()

		Expect(positions).To(Equal([]string{"BeforeIncrement", "AfterIncrement"}))
		Expect(items).To(Equal([]any{start, start.Add(time.Hour)}))
	})

	It("should draw timestamps within the current tick", func() {
		clock.Increment()
		now := clock.Now()

		stamps := clock.Timestamp(1000)

		Expect(stamps).To(HaveLen(1000))
		for _, s := range stamps {
			Expect(s.Before(now)).To(BeFalse())
			Expect(s.Before(now.Add(time.Hour))).To(BeTrue())
			Expect(s.Sub(now) % time.Second).To(BeZero())
		}
		Expect(clock.Now()).To(Equal(now))
	})

	It("should draw the same timestamps from the same seed", func() {
		other, err := MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			WithSeed(42).
			Build("Other")
		Expect(err).NotTo(HaveOccurred())

		Expect(clock.Timestamp(20)).To(Equal(other.Timestamp(20)))
	})

	It("should return no timestamps for a non-positive count", func() {
		Expect(clock.Timestamp(0)).To(BeEmpty())
	})

	It("should count ticks per day and per week", func() {
		Expect(clock.TicksPerDay()).To(Equal(24.0))
		Expect(clock.TicksPerWeek()).To(Equal(168.0))
	})
})

var _ = Describe("ClockLogger", func() {
	It("should log the time after each increment", func() {
		buf := new(bytes.Buffer)
		logger := log.New(buf, "", 0)

		start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		clock, err := MakeBuilder().
			WithStart(start).
			WithStep(30 * time.Minute).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		clock.AcceptHook(NewClockLogger(logger).WithLayout(time.DateTime))

		clock.Increment()
		clock.Increment()

		Expect(buf.String()).To(Equal(
			"Clock, 2020-01-01 00:30:00\nClock, 2020-01-01 01:00:00\n"))
	})
})

var _ = Describe("TimestampColumn", func() {
	It("should produce one formatted timestamp per row", func() {
		start := time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC)
		clock, err := MakeBuilder().
			WithStart(start).
			WithStep(time.Minute).
			WithSeed(7).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		column := NewTimestampColumn(clock, "ts", "")
		col := column.Build([]int{4, 8, 15})

		Expect(col.Name).To(Equal("ts"))
		Expect(col.Rows).To(Equal([]int{4, 8, 15}))
		Expect(col.Values).To(HaveLen(3))

		for _, v := range col.Values {
			t, err := time.Parse(DefaultTimestampLayout, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Before(start)).To(BeFalse())
			Expect(t.Before(start.Add(time.Minute))).To(BeTrue())
		}
	})
})
