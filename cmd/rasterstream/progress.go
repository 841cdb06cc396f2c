package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 40

// progressBar draws a single-line bar. Update and Close may be called from
// different goroutines.
type progressBar struct {
	mu     sync.Mutex
	w      io.Writer
	last   int
	drawn  bool
	closed bool
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w, last: -1}
}

// Update redraws the bar when the whole percentage changes.
func (p *progressBar) Update(frac float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	frac = min(max(frac, 0), 1)
	pct := int(frac * 100)
	if pct == p.last {
		return
	}
	p.last = pct
	p.drawn = true
	fill := int(frac * barWidth)
	fmt.Fprintf(p.w, "\r[%s%s] %3d%%", strings.Repeat("=", fill), strings.Repeat(" ", barWidth-fill), pct)
}

// Close ends the bar line. It is safe to call more than once.
func (p *progressBar) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
