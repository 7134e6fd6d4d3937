package sysinfo

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"facewatch-go/internal/util/timezone"

	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
)

var (
	cpuMu         sync.Mutex
	lastCPUSample time.Time
	lastCPUUsage  float64

	startedAt = time.Now()
)

const cpuSampleRate = 500 * time.Millisecond

// Stats is a snapshot of process and host load, reported by the
// status endpoint and the dashboard.
type Stats struct {
	NumCPU      int       `json:"num_cpu"`
	Goroutines  int       `json:"go_routines"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryAlloc uint64    `json:"memory_alloc"`
	MemorySys   uint64    `json:"memory_sys"`
	Uptime      string    `json:"uptime"`
	Timestamp   time.Time `json:"timestamp"`
}

// CPUUsage measures total CPU utilisation. Samples at most every
// 500ms and returns the cached value in between, so frequent status
// polls stay cheap.
func CPUUsage() float64 {
	cpuMu.Lock()
	defer cpuMu.Unlock()

	if time.Since(lastCPUSample) < cpuSampleRate && !lastCPUSample.IsZero() {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		log.Warnf("CPU usage measurement failed: %v", err)
		return 0.0
	}

	var usage float64
	if len(percentages) > 0 {
		usage = percentages[0]
	}

	lastCPUSample = time.Now()
	lastCPUUsage = usage

	return usage
}

// Collect gathers the current stats snapshot.
func Collect() *Stats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &Stats{
		NumCPU:      runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		CPUUsage:    CPUUsage(),
		MemoryAlloc: memStats.Alloc,
		MemorySys:   memStats.Sys,
		Uptime:      time.Since(startedAt).Round(time.Second).String(),
		Timestamp:   timezone.Now(),
	}
}

// FormatBytes renders a byte count in human readable units.
func FormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d Bytes", bytes)
	}
}
