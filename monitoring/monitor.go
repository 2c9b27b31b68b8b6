// Package monitoring turns a running circus into a small HTTP server so that
// its clock and activity tables can be inspected and driven from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/id"
	"github.com/sarchlab/circus/sim/simulation"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	simulation  *simulation.Simulation
	portNumber  int
	openBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterSimulation registers the simulation to monitor.
func (m *Monitor) RegisterSimulation(s *simulation.Simulation) {
	m.simulation = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the monitor.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueSimulation)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/step/{n:[0-9]+}", m.step)
	r.HandleFunc("/api/generators", m.listGenerators)
	r.HandleFunc("/api/generator/{name}", m.generatorDetails)
	r.HandleFunc("/api/generator/{name}/table", m.generatorTable)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	r := m.router()
	go func() {
		err := http.Serve(listener, r)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/now")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return url
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.simulation.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulation(w http.ResponseWriter, _ *http.Request) {
	m.simulation.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now         time.Time `json:"now"`
	StepSeconds int64     `json:"step_seconds"`
	Paused      bool      `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	clock := m.simulation.Clock()

	writeJSON(w, nowRsp{
		Now:         clock.Now(),
		StepSeconds: int64(clock.StepDuration() / time.Second),
		Paused:      m.simulation.IsPaused(),
	})
}

func (m *Monitor) step(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if m.simulation.IsPaused() {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, "Simulation is paused")

		return
	}

	m.simulation.Step(n)
	m.now(w, r)
}

func (m *Monitor) listGenerators(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	for _, g := range m.simulation.Generators() {
		names = append(names, g.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) findGeneratorOr404(
	w http.ResponseWriter,
	name string,
) *activity.Generator {
	g := m.simulation.Generator(name)

	if g == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Generator not found"))
		dieOnErr(err)
	}

	return g
}

func (m *Monitor) generatorDetails(w http.ResponseWriter, r *http.Request) {
	g := m.findGeneratorOr404(w, mux.Vars(r)["name"])
	if g == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(g)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type tableRsp struct {
	Name        string         `json:"name"`
	Origin      time.Time      `json:"origin"`
	CycleLength int            `json:"cycle_length"`
	Rows        []activity.Row `json:"rows"`
}

func (m *Monitor) generatorTable(w http.ResponseWriter, r *http.Request) {
	g := m.findGeneratorOr404(w, mux.Vars(r)["name"])
	if g == nil {
		return
	}

	writeJSON(w, tableRsp{
		Name:        g.Name(),
		Origin:      g.Origin(),
		CycleLength: g.CycleLength(),
		Rows:        g.Table(),
	})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
