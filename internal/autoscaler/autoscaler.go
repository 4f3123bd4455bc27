// Package autoscaler implements the periodic load-based controller from
// spec §4.10: a PRESSURE/COOLDOWN/NORMAL state machine over the CPU-bound
// worker set's load and CPU-usage signals.
package autoscaler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/task"
)

// State is one of the three autoscaler states from spec §4.10.
type State int

const (
	Normal State = iota
	Pressure
	Cooldown
)

func (s State) String() string {
	switch s {
	case Pressure:
		return "PRESSURE"
	case Cooldown:
		return "COOLDOWN"
	default:
		return "NORMAL"
	}
}

// Defaults from spec §4.10.
const (
	ForceLoadThreshold  = 10
	PressureHoldSeconds = 30
	ScaleCooldownSeconds = 20
	ScaleOutLoadThreshold = 5.0
	ScaleInLoadThreshold  = 1.5
	TickInterval          = 5 * time.Second
)

// PoolView is the subset of Process Pool behavior the autoscaler needs,
// satisfied by *pool.Pool without this package importing it directly.
type PoolView interface {
	CPUWorkerLoads() (loads []int64, cpuUsages []float64)
	Count(t task.Type) int
	AddWorker(t task.Type)
	RemoveWorker(t task.Type) bool
}

// Autoscaler periodically inspects the CPU-bound worker set and grows or
// shrinks it.
type Autoscaler struct {
	pool          PoolView
	minWorkers    int
	log           logger.Logger
	onState       func(State)

	mu             sync.Mutex
	state          State
	lastScaleTime  time.Time
	pressureUntil  time.Time

	cancel func()
	done   chan struct{}
}

// New creates an Autoscaler bounded below by minWorkers (the configured
// cpu_bound_count, spec §8 boundary (iii)).
func New(pool PoolView, minWorkers int, log logger.Logger, onState func(State)) *Autoscaler {
	return &Autoscaler{pool: pool, minWorkers: minWorkers, log: log, onState: onState, state: Normal}
}

// Start runs the tick loop until Stop is called.
func (a *Autoscaler) Start() {
	stop := make(chan struct{})
	a.cancel = sync.OnceFunc(func() { close(stop) })
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.tick()
			}
		}
	}()
}

// Stop ends the tick loop and waits for it to exit.
func (a *Autoscaler) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

func (a *Autoscaler) tick() {
	loads, cpuUsages := a.pool.CPUWorkerLoads()
	if len(loads) == 0 {
		return
	}

	avgLoad, maxLoad, p75Load := loadStats(loads)
	avgCPU := avgOf(cpuUsages)
	workers := a.pool.Count(task.CPUBound)
	hostCores := runtime.NumCPU()

	a.mu.Lock()
	now := time.Now()

	switch {
	case maxLoad >= ForceLoadThreshold:
		if a.state != Pressure {
			a.setState(Pressure)
		}
		a.pressureUntil = now.Add(PressureHoldSeconds * time.Second)
	case a.state == Pressure && now.After(a.pressureUntil):
		a.setState(Cooldown)
		a.lastScaleTime = now
	case a.state == Cooldown && now.Sub(a.lastScaleTime) >= ScaleCooldownSeconds*time.Second:
		a.setState(Normal)
	}

	canAct := now.Sub(a.lastScaleTime) >= ScaleCooldownSeconds*time.Second
	state := a.state
	a.mu.Unlock()

	if !canAct {
		return
	}

	switch state {
	case Pressure:
		if workers < 2*hostCores {
			a.pool.AddWorker(task.CPUBound)
			a.stampScale()
			if a.log != nil {
				a.log.Info("autoscaler scale-out under pressure", "workers", workers+1, "max_load", maxLoad)
			}
		}
	case Normal:
		switch {
		case p75Load > ScaleOutLoadThreshold && avgCPU > 0.70 && workers < 2*hostCores:
			a.pool.AddWorker(task.CPUBound)
			a.stampScale()
			if a.log != nil {
				a.log.Info("autoscaler scale-out", "workers", workers+1, "p75_load", p75Load, "avg_cpu", avgCPU)
			}
		case avgLoad < ScaleInLoadThreshold && avgCPU < 0.40 && workers > a.minWorkers:
			if a.pool.RemoveWorker(task.CPUBound) {
				a.stampScale()
				if a.log != nil {
					a.log.Info("autoscaler scale-in", "workers", workers-1, "avg_load", avgLoad, "avg_cpu", avgCPU)
				}
			}
		}
	case Cooldown:
		// no action
	}
}

func (a *Autoscaler) setState(s State) {
	a.state = s
	if a.onState != nil {
		a.onState(s)
	}
}

func (a *Autoscaler) stampScale() {
	a.mu.Lock()
	a.lastScaleTime = time.Now()
	a.mu.Unlock()
}

// State returns the current autoscaler state.
func (a *Autoscaler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func loadStats(loads []int64) (avg, max float64, p75 float64) {
	total := int64(0)
	m := loads[0]
	sorted := append([]int64(nil), loads...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, l := range loads {
		total += l
		if l > m {
			m = l
		}
	}
	avg = float64(total) / float64(len(loads))
	idx := (len(sorted) * 75) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	p75 = float64(sorted[idx])
	return avg, float64(m), p75
}

func avgOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals))
}
