package pipeline

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultProgressInterval is how often a Progress reports while running.
const DefaultProgressInterval = 200 * time.Millisecond

// Progress counts consumed blocks across one or more passes and reports the
// completed fraction to a callback.
//
// The callback runs only on the reporter goroutine, so it never needs to be
// safe for concurrent use. Reported values never decrease, stay below 1
// while work is in flight, and Finish delivers exactly 1.
type Progress struct {
	fn       func(float64)
	total    int64
	interval time.Duration

	done atomic.Int64

	mu      sync.Mutex
	last    float64
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgress creates a reporter for total blocks. A nil fn yields a
// Progress that only counts.
func NewProgress(fn func(float64), total int, interval time.Duration) *Progress {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Progress{fn: fn, total: int64(total), interval: interval, last: -1}
}

// Add records n consumed blocks.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.done.Add(int64(n))
}

// Done returns the number of blocks recorded so far.
func (p *Progress) Done() int64 {
	if p == nil {
		return 0
	}
	return p.done.Load()
}

// Start launches the reporter goroutine. It is a no-op without a callback
// or when already started.
func (p *Progress) Start() {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.run(p.stop, p.stopped)
}

func (p *Progress) run(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.report(p.fraction())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.report(p.fraction())
		}
	}
}

// fraction is the completed share, held just below 1 until Finish.
func (p *Progress) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	f := float64(p.done.Load()) / float64(p.total)
	return math.Min(f, math.Nextafter(1, 0))
}

func (p *Progress) report(f float64) {
	if f <= p.last {
		return
	}
	p.last = f
	p.fn(f)
}

// Stop halts the reporter without a final report.
func (p *Progress) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	stop, stopped := p.stop, p.stopped
	p.stop = nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// Finish halts the reporter and reports completion.
func (p *Progress) Finish() {
	if p == nil || p.fn == nil {
		return
	}
	p.Stop()
	p.last = 1
	p.fn(1)
}
