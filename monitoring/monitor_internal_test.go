package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/simulation"
	"github.com/sarchlab/circus/sim/timing"
)

var _ = Describe("Monitor", func() {
	var (
		start time.Time
		s     *simulation.Simulation
		m     *Monitor
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		clock, err := timing.MakeBuilder().
			WithStart(start).
			WithStep(time.Hour).
			Build("Clock")
		Expect(err).NotTo(HaveOccurred())

		profile, err := activity.NewProfile(
			[]float64{1, 2, 3, 4}, "6h", start)
		Expect(err).NotTo(HaveOccurred())

		s = simulation.NewSimulation(clock)
		_, err = s.AddGenerator("Visitors", profile, 1)
		Expect(err).NotTo(HaveOccurred())

		m = NewMonitor()
		m.RegisterSimulation(s)
	})

	It("should fall back to a random port for reserved ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(32776)
		Expect(m.portNumber).To(Equal(32776))
	})

	It("should report the current time", func() {
		rec := get("/api/now")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp nowRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now.Equal(start)).To(BeTrue())
		Expect(rsp.StepSeconds).To(Equal(int64(3600)))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should step the simulation", func() {
		rec := get("/api/step/3")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(s.Clock().Now()).To(Equal(start.Add(3 * time.Hour)))
	})

	It("should refuse to step a paused simulation", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeTrue())

		Expect(get("/api/step/1").Code).To(Equal(http.StatusConflict))

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeFalse())
		Expect(s.Clock().Now()).To(Equal(start))
	})

	It("should list generators", func() {
		rec := get("/api/generators")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"Visitors"}))
	})

	It("should dump the table of a generator", func() {
		rec := get("/api/generator/Visitors/table")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp tableRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Name).To(Equal("Visitors"))
		Expect(rsp.CycleLength).To(Equal(6))
		Expect(rsp.Rows).To(HaveLen(6))
		Expect(rsp.Rows[5].Cumulative).To(Equal(1.0))
	})

	It("should serialize a generator", func() {
		rec := get("/api/generator/Visitors")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should answer 404 for unknown generators", func() {
		Expect(get("/api/generator/Nobody").Code).
			To(Equal(http.StatusNotFound))
		Expect(get("/api/generator/Nobody/table").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("run", 4)
		bar.IncrementFinished(1)
		Expect(bar.Fraction()).To(Equal(0.25))

		rec := get("/api/progress")
		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("run"))

		bar.IncrementFinished(10)
		Expect(bar.Fraction()).To(Equal(1.0))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})
})
