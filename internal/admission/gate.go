// Package admission implements the Backpressure Controller (spec §4.1):
// it samples host CPU% and memory% at most once a second and classifies
// the host as HEALTHY, WARNING, or CRITICAL.
package admission

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/linkflow-ai/taskengine/internal/platform/logger"
)

// Health is the classification of host resource pressure.
type Health string

const (
	Healthy  Health = "HEALTHY"
	Warning  Health = "WARNING"
	Critical Health = "CRITICAL"
)

const sampleInterval = time.Second

// Gate is the Admission Gate / Backpressure Controller.
type Gate struct {
	cpuThreshold float64
	memThreshold float64
	log          logger.Logger

	cpuSampler func() float64
	memSampler func() float64

	mu         sync.Mutex
	lastCheck  time.Time
	lastHealth Health
}

// New builds a Gate with the given percentage thresholds (0-100). Defaults
// of 100 make the gate permissive but present, matching spec §4.1.
func New(cpuThreshold, memThreshold float64, log logger.Logger) *Gate {
	return &Gate{
		cpuThreshold: cpuThreshold,
		memThreshold: memThreshold,
		log:          log,
		cpuSampler:   sampleCPUPercent,
		memSampler:   sampleMemPercent,
		lastHealth:   Healthy,
	}
}

// NewWithSamplers builds a Gate whose CPU/mem sampling functions are
// supplied by the caller instead of gopsutil, so tests can drive a
// deterministic HEALTHY/WARNING/CRITICAL transition without depending on
// the ambient load of the host running the suite.
func NewWithSamplers(cpuThreshold, memThreshold float64, log logger.Logger, cpuSampler, memSampler func() float64) *Gate {
	g := New(cpuThreshold, memThreshold, log)
	g.cpuSampler = cpuSampler
	g.memSampler = memSampler
	return g
}

// CheckHealth returns the cached verdict if sampled within the last second,
// otherwise samples host CPU% and memory% and reclassifies.
func (g *Gate) CheckHealth() Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Sub(g.lastCheck) < sampleInterval {
		return g.lastHealth
	}
	g.lastCheck = now

	cpuPercent := g.cpuSampler()
	memPercent := g.memSampler()

	switch {
	case cpuPercent >= g.cpuThreshold || memPercent >= g.memThreshold:
		g.lastHealth = Critical
	case cpuPercent >= g.cpuThreshold*0.8:
		g.lastHealth = Warning
	default:
		g.lastHealth = Healthy
	}

	if g.log != nil && g.lastHealth != Healthy {
		g.log.Warn("admission gate health sample",
			"health", string(g.lastHealth), "cpu_percent", cpuPercent, "mem_percent", memPercent)
	}

	return g.lastHealth
}

// ShouldAccept is true for HEALTHY and WARNING, false for CRITICAL.
func (g *Gate) ShouldAccept() bool {
	return g.CheckHealth() != Critical
}

func sampleCPUPercent() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

func sampleMemPercent() float64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.UsedPercent
}
