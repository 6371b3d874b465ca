package profiler

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/kvant-go/engine/renderer"
	"github.com/gocarina/gocsv"
)

// Sample is one reporting interval of frame and memory statistics.
type Sample struct {
	At          float64 `csv:"time_s"`
	Frames      int     `csv:"frames"`
	FPS         float64 `csv:"fps"`
	Draws       int     `csv:"draws"`
	Culled      int     `csv:"culled"`
	Dispatches  int     `csv:"dispatches"`
	HeapMB      float64 `csv:"heap_mb"`
	AllocRateMB float64 `csv:"alloc_rate_mb_s"`
	GCCount     uint32  `csv:"gc_count"`
	MaxPauseUs  uint64  `csv:"gc_max_pause_us"`
}

// Profiler tracks frame rate, per-frame renderer work and memory statistics. Every interval it logs
// a Sample and keeps it for WriteCSV.
type Profiler struct {
	mu     *sync.Mutex
	logger *slog.Logger
	now    func() time.Time

	updateInterval time.Duration
	maxSamples     int

	start          time.Time
	lastTime       time.Time
	frameCount     int
	work           renderer.FrameStats
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	samples        []Sample
}

// NewProfiler creates a Profiler reporting once per second and keeping the last 3600 samples.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         slog.Default(),
		now:            time.Now,
		updateInterval: time.Second,
		maxSamples:     3600,
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	p.lastTime = p.start
	return p
}

// Tick should be called once per frame with the renderer's counters for that frame.
//
// Parameters:
//   - stats: the frame's draws, culled draws and kernel dispatches
//
// Returns:
//   - bool: true if a sample was recorded this tick
func (p *Profiler) Tick(stats renderer.FrameStats) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	p.work.Draws += stats.Draws
	p.work.Culled += stats.Culled
	p.work.Dispatches += stats.Dispatches

	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := p.sample(now, elapsed)
	p.samples = append(p.samples, s)
	if len(p.samples) > p.maxSamples {
		p.samples = p.samples[len(p.samples)-p.maxSamples:]
	}

	p.logger.Info("frame stats",
		"fps", fmt.Sprintf("%.2f", s.FPS),
		"draws", s.Draws,
		"culled", s.Culled,
		"dispatches", s.Dispatches,
		"heap_mb", fmt.Sprintf("%.2f", s.HeapMB),
		"alloc_rate_mb_s", fmt.Sprintf("%.2f", s.AllocRateMB),
		"gc", s.GCCount,
		"gc_max_pause_us", s.MaxPauseUs,
	)

	p.frameCount = 0
	p.work = renderer.FrameStats{}
	p.lastTime = now
	return true
}

// sample averages the interval's counters per frame. Caller must hold the mutex.
func (p *Profiler) sample(now time.Time, elapsed time.Duration) Sample {
	runtime.ReadMemStats(&p.memStats)

	gcCount := p.memStats.NumGC
	var maxPauseUs uint64
	// PauseNs is a circular buffer of the last 256 pauses.
	startIdx := p.lastGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	frames := p.frameCount
	s := Sample{
		At:          now.Sub(p.start).Seconds(),
		Frames:      frames,
		FPS:         float64(frames) / elapsed.Seconds(),
		Draws:       p.work.Draws / frames,
		Culled:      p.work.Culled / frames,
		Dispatches:  p.work.Dispatches / frames,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     gcCount,
		MaxPauseUs:  maxPauseUs,
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s
}

// Samples returns a copy of the recorded samples, oldest first.
func (p *Profiler) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

// WriteCSV writes every recorded sample as CSV with a header row.
//
// Parameters:
//   - w: the destination
//
// Returns:
//   - error: error if encoding or writing fails
func (p *Profiler) WriteCSV(w io.Writer) error {
	samples := p.Samples()
	if err := gocsv.Marshal(&samples, w); err != nil {
		return fmt.Errorf("failed to write profiler samples: %w", err)
	}
	return nil
}
