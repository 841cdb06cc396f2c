// Package pipeline runs block-streaming passes over a raster.
//
// A pass reads every rectangle of a plan exactly once. Producer goroutines
// each open their own dataset handle, fill pooled blocks for a contiguous
// slice of the plan and push them onto a bounded queue. Consumer goroutines
// pop a fixed number of blocks each and hand them to a per-worker Consumer.
// RunTransform adds a second bounded queue between consumers and a pool of
// writers, each owning an output handle.
//
// The first worker error cancels the pass: both queues are aborted, every
// blocked goroutine wakes, and the pass returns that first error once all
// goroutines have exited.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-rasterstream/internal/alloc"
	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/queue"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// ErrConfig reports an unusable pass configuration.
var ErrConfig = errors.New("invalid pipeline configuration")

// Consumer processes blocks popped by one consumer goroutine. A Consumer is
// owned by a single goroutine and must not retain b after Consume returns.
type Consumer interface {
	Consume(b *block.Block) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(b *block.Block) error

// Consume calls f(b).
func (f ConsumerFunc) Consume(b *block.Block) error { return f(b) }

// Transformer turns an input block into an output block covering the same
// rectangle. out has already been reset to in's rectangle and is laid out
// band-sequentially with one plane per output band.
type Transformer interface {
	Transform(in, out *block.Block) error
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(in, out *block.Block) error

// Transform calls f(in, out).
func (f TransformerFunc) Transform(in, out *block.Block) error { return f(in, out) }

// Opener opens a fresh dataset handle. It is called once per worker.
type Opener func() (rasterio.Dataset, error)

// Config describes one pass.
type Config struct {
	// Name labels logs, metrics and spans.
	Name string

	Source     Opener
	Plan       []rasterio.Rect
	Bands      []int
	Interleave rasterio.Interleave

	Producers int
	Consumers int
	Capacity  int

	// Allocator accounts for block memory; nil means unlimited.
	Allocator *alloc.Allocator
	Logger    logrus.FieldLogger
	Progress  *Progress
}

// Output describes the write stage of RunTransform.
type Output struct {
	Sink Opener
	// Bands are the 1-based output bands receiving each plane of an
	// output block.
	Bands    []int
	Writers  int
	Capacity int
}

// Stats summarises a finished pass.
type Stats struct {
	Blocks    int
	Read      queue.Stats
	Write     queue.Stats
	Pool      block.PoolStats
	OutPool   block.PoolStats
	Writers   int
	PoolBytes uint64
	Duration  time.Duration
}

func (c *Config) validate() error {
	switch {
	case c.Source == nil:
		return fmt.Errorf("%w: no source", ErrConfig)
	case len(c.Bands) == 0:
		return fmt.Errorf("%w: no bands selected", ErrConfig)
	case c.Producers < 1:
		return fmt.Errorf("%w: %d producers", ErrConfig, c.Producers)
	case c.Consumers < 1:
		return fmt.Errorf("%w: %d consumers", ErrConfig, c.Consumers)
	case c.Capacity < queue.MinCapacity:
		return fmt.Errorf("%w: queue capacity %d below %d", ErrConfig, c.Capacity, queue.MinCapacity)
	}
	if c.Name == "" {
		c.Name = "pass"
	}
	if c.Allocator == nil {
		c.Allocator = alloc.New(0)
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
	return nil
}

func (o *Output) validate() error {
	switch {
	case o.Sink == nil:
		return fmt.Errorf("%w: no sink", ErrConfig)
	case len(o.Bands) == 0:
		return fmt.Errorf("%w: no output bands", ErrConfig)
	case o.Writers < 1:
		return fmt.Errorf("%w: %d writers", ErrConfig, o.Writers)
	case o.Capacity < queue.MinCapacity:
		return fmt.Errorf("%w: write queue capacity %d below %d", ErrConfig, o.Capacity, queue.MinCapacity)
	}
	return nil
}

// maxArea returns the largest rectangle area in plan.
func maxArea(plan []rasterio.Rect) int {
	area := 0
	for _, r := range plan {
		area = max(area, r.Area())
	}
	return area
}

// pass is the state of one run. Nothing in it outlives the run.
type pass struct {
	cfg   *Config
	log   logrus.FieldLogger
	queue *queue.Queue[*block.Block]
	pool  *block.Pool
	ws    *writeStage
}

func newPass(cfg *Config) (*pass, error) {
	q, err := queue.New[*block.Block](cfg.Capacity, len(cfg.Plan))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &pass{
		cfg:   cfg,
		log:   cfg.Logger.WithField("pass", cfg.Name),
		queue: q,
		pool: block.NewPool(cfg.Allocator, cfg.Capacity+cfg.Producers+cfg.Consumers,
			maxArea(cfg.Plan), cfg.Bands, cfg.Interleave),
	}, nil
}

// Run streams every block of cfg.Plan through one Consumer per consumer
// goroutine. newConsumer is called for workers 0..Consumers-1 before any
// goroutine starts.
func Run(ctx context.Context, cfg Config, newConsumer func(worker int) (Consumer, error)) (Stats, error) {
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	consumers := make([]Consumer, cfg.Consumers)
	for w := range consumers {
		c, err := newConsumer(w)
		if err != nil {
			return Stats{}, fmt.Errorf("creating consumer %d: %w", w, err)
		}
		consumers[w] = c
	}

	p, err := newPass(&cfg)
	if err != nil {
		return Stats{}, err
	}
	return p.execute(ctx, func(worker int, b *block.Block) error {
		return consumers[worker].Consume(b)
	})
}

// RunTransform streams every block of cfg.Plan through one Transformer per
// consumer goroutine and writes the results through out.
func RunTransform(ctx context.Context, cfg Config, out Output, newTransformer func(worker int) (Transformer, error)) (Stats, error) {
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	if err := out.validate(); err != nil {
		return Stats{}, err
	}
	transformers := make([]Transformer, cfg.Consumers)
	for w := range transformers {
		t, err := newTransformer(w)
		if err != nil {
			return Stats{}, fmt.Errorf("creating transformer %d: %w", w, err)
		}
		transformers[w] = t
	}

	p, err := newPass(&cfg)
	if err != nil {
		return Stats{}, err
	}
	ws, err := newWriteStage(p, out)
	if err != nil {
		return Stats{}, err
	}
	p.ws = ws

	return p.execute(ctx, func(worker int, in *block.Block) error {
		ob, err := ws.pool.Get()
		if err != nil {
			return err
		}
		if err := ob.Reset(in.Seq, in.Rect); err != nil {
			ws.pool.Put(ob)
			return err
		}
		if err := transformers[worker].Transform(in, ob); err != nil {
			ws.pool.Put(ob)
			return fmt.Errorf("transforming block %d %v: %w", in.Seq, in.Rect, err)
		}
		if err := ws.queue.Push(ob); err != nil {
			ws.pool.Put(ob)
			return err
		}
		return nil
	})
}

// execute starts all workers, waits for them and recycles every block.
func (p *pass) execute(ctx context.Context, consume func(worker int, b *block.Block) error) (st Stats, err error) {
	cfg := p.cfg
	start := time.Now()

	ctx, span := startPassSpan(ctx, cfg, len(cfg.Plan))
	defer func() { endPassSpan(span, st, err) }()

	p.log.WithFields(logrus.Fields{
		"blocks":    len(cfg.Plan),
		"producers": cfg.Producers,
		"consumers": cfg.Consumers,
		"capacity":  cfg.Capacity,
	}).Debug("pass starting")

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() {
		cause := context.Cause(gctx)
		p.queue.Abort(cause)
		if p.ws != nil {
			p.ws.queue.Abort(cause)
		}
	})
	defer stop()

	for w, r := range Split(len(cfg.Plan), cfg.Producers) {
		g.Go(func() error { return p.produce(w, r) })
	}
	for w, r := range Split(len(cfg.Plan), cfg.Consumers) {
		g.Go(func() error { return p.consume(w, r.Len(), consume) })
	}
	if p.ws != nil {
		for w, r := range Split(len(cfg.Plan), p.ws.out.Writers) {
			g.Go(func() error { return p.ws.write(w, r.Len()) })
		}
	}

	err = g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, queue.ErrAborted)) {
		err = fmt.Errorf("%s pass: %w", cfg.Name, context.Cause(ctx))
	}

	st = p.finish(start)
	if err == nil {
		err = p.validate()
	}
	p.release()

	if err != nil {
		p.log.WithError(err).Debug("pass failed")
		return st, err
	}
	p.log.WithFields(logrus.Fields{
		"duration":   st.Duration,
		"high_water": st.Read.HighWater,
		"pool":       humanize.IBytes(st.PoolBytes),
	}).Debug("pass finished")
	return st, nil
}

// produce reads the blocks of r in plan order and queues them.
func (p *pass) produce(worker int, r Range) (err error) {
	if r.Len() == 0 {
		return nil
	}
	log := p.log.WithFields(logrus.Fields{"producer": worker, "range": r.String()})

	ds, err := p.cfg.Source()
	if err != nil {
		return fmt.Errorf("producer %d: %w", worker, err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing source handle")
		}
	}()

	for i := r.Start; i < r.End; i++ {
		b, err := p.pool.Get()
		if err != nil {
			return err
		}
		if err := p.fill(ds, b, i); err != nil {
			p.pool.Put(b)
			prometheusBlockErrors.WithLabelValues(p.cfg.Name, "read").Inc()
			return err
		}
		if err := p.queue.Push(b); err != nil {
			p.pool.Put(b)
			return err
		}
		prometheusBlocksRead.WithLabelValues(p.cfg.Name).Inc()
	}
	log.Debug("producer done")
	return nil
}

func (p *pass) fill(ds rasterio.Dataset, b *block.Block, seq int) error {
	rect := p.cfg.Plan[seq]
	if err := b.Reset(seq, rect); err != nil {
		return err
	}
	if err := ds.ReadBlock(rect, b.Bands, b.Interleave, b.Data); err != nil {
		return fmt.Errorf("%w: block %d %v: %w", rasterio.ErrBlockRead, seq, rect, err)
	}
	return nil
}

// consume pops exactly n blocks.
func (p *pass) consume(worker, n int, fn func(worker int, b *block.Block) error) error {
	for range n {
		b, err := p.queue.Pop()
		if err != nil {
			return err
		}
		err = fn(worker, b)
		p.pool.Put(b)
		if err != nil {
			return err
		}
		if p.ws == nil {
			p.cfg.Progress.Add(1)
		}
	}
	p.log.WithField("consumer", worker).Debug("consumer done")
	return nil
}

func (p *pass) finish(start time.Time) Stats {
	st := Stats{
		Blocks:    len(p.cfg.Plan),
		Read:      p.queue.Stats(),
		Pool:      p.pool.Stats(),
		PoolBytes: uint64(p.pool.Stats().Created) * p.pool.BlockBytes(),
		Duration:  time.Since(start),
	}
	prometheusQueueHighWater.WithLabelValues(p.cfg.Name, "read").Set(float64(st.Read.HighWater))
	if p.ws != nil {
		st.Write = p.ws.queue.Stats()
		st.OutPool = p.ws.pool.Stats()
		st.Writers = p.ws.out.Writers
		st.PoolBytes += uint64(st.OutPool.Created) * p.ws.pool.BlockBytes()
		prometheusQueueHighWater.WithLabelValues(p.cfg.Name, "write").Set(float64(st.Write.HighWater))
	}
	prometheusPassDuration.WithLabelValues(p.cfg.Name).Observe(st.Duration.Seconds())
	return st
}

// validate reports blocks that a worker kept or never consumed after a
// successful pass.
func (p *pass) validate() error {
	if !p.queue.Drained() {
		return fmt.Errorf("%s pass: read queue not drained", p.cfg.Name)
	}
	if err := p.pool.Validate(); err != nil {
		return fmt.Errorf("%s pass: %w", p.cfg.Name, err)
	}
	if p.ws != nil {
		if !p.ws.queue.Drained() {
			return fmt.Errorf("%s pass: write queue not drained", p.cfg.Name)
		}
		if err := p.ws.pool.Validate(); err != nil {
			return fmt.Errorf("%s pass: output %w", p.cfg.Name, err)
		}
	}
	return nil
}

// release returns queued blocks to their pools and frees all pooled memory.
func (p *pass) release() {
	for _, b := range p.queue.Drain() {
		p.pool.Put(b)
	}
	p.pool.Release()
	if p.ws != nil {
		for _, b := range p.ws.queue.Drain() {
			p.ws.pool.Put(b)
		}
		p.ws.pool.Release()
	}
}
