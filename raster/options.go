package raster

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/linalg"
	"github.com/robert-malhotra/go-rasterstream/internal/queue"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// BlockShape selects how an image is tiled into blocks.
type BlockShape = block.Shape

const (
	// SquareBlocks tiles the image with size x size blocks.
	SquareBlocks = block.Square
	// StripBlocks tiles the image with full-width strips of size rows.
	StripBlocks = block.Strip
)

// ParseBlockShape parses "square" or "strip".
func ParseBlockShape(s string) (BlockShape, error) {
	shape, err := block.ParseShape(s)
	if err != nil {
		return shape, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	return shape, nil
}

// Defaults.
const (
	DefaultBlockSize    = 256
	DefaultProducers    = 2
	DefaultWriters      = 1
	DefaultFormat       = "ENVI"
	DefaultStripeWindow = 41
	DefaultStripeDegree = 5
)

// Option configures a pass.
type Option func(*options)

type options struct {
	shape       BlockShape
	blockSize   int
	producers   int
	consumers   int
	capacity    int
	writers     int
	bands       []int
	interleave  rasterio.Interleave
	format      string
	memoryLimit uint64
	progress    func(float64)
	logger      logrus.FieldLogger

	kind           RXKind
	stats          *Statistics
	pinv           bool
	conditionLimit float64

	stripeMethod StripeMethod
	stripeWindow int

	errs []error
}

func defaultOptions() *options {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &options{
		shape:          SquareBlocks,
		blockSize:      DefaultBlockSize,
		producers:      DefaultProducers,
		consumers:      runtime.NumCPU(),
		writers:        DefaultWriters,
		interleave:     rasterio.BSQ,
		format:         DefaultFormat,
		logger:         l,
		kind:           RXD,
		conditionLimit: linalg.DefaultConditionLimit,
		stripeMethod:   MovingWindow,
	}
}

func newOptions(opts []Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.capacity == 0 {
		o.capacity = max(2*o.consumers, queue.MinCapacity)
	}
	if o.stripeWindow == 0 {
		o.stripeWindow = DefaultStripeWindow
		if o.stripeMethod == PolyFit {
			o.stripeWindow = DefaultStripeDegree
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *options) invalid(format string, args ...any) {
	o.errs = append(o.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidOption}, args...)...))
}

func (o *options) validate() error {
	if o.blockSize < 1 {
		o.invalid("block size %d", o.blockSize)
	}
	if o.producers < 1 {
		o.invalid("%d producers", o.producers)
	}
	if o.consumers < 1 {
		o.invalid("%d consumers", o.consumers)
	}
	if o.capacity < queue.MinCapacity {
		o.invalid("queue capacity %d below %d", o.capacity, queue.MinCapacity)
	}
	if o.writers < 1 {
		o.invalid("%d writers", o.writers)
	}
	switch o.interleave {
	case rasterio.BSQ, rasterio.BIL, rasterio.BIP:
	default:
		o.invalid("interleave %v", o.interleave)
	}
	if strings.TrimSpace(o.format) == "" {
		o.invalid("empty output format")
	}
	if !(o.conditionLimit > 1) {
		o.invalid("condition limit %g", o.conditionLimit)
	}
	if o.stripeWindow < 0 {
		o.invalid("stripe window %d", o.stripeWindow)
	}
	return errors.Join(o.errs...)
}

// WithBlockSize sets the block side (square) or strip height in pixels.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithBlockShape selects square blocks or full-width strips.
func WithBlockShape(s BlockShape) Option {
	return func(o *options) {
		if s != SquareBlocks && s != StripBlocks {
			o.invalid("block shape %v", s)
			return
		}
		o.shape = s
	}
}

// WithProducers sets the number of reading goroutines.
func WithProducers(n int) Option {
	return func(o *options) {
		o.producers = n
	}
}

// WithConsumers sets the number of computing goroutines.
func WithConsumers(n int) Option {
	return func(o *options) {
		o.consumers = n
	}
}

// WithQueueCapacity sets the capacity of each bounded block queue.
// The default is twice the consumer count.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n == 0 {
			o.invalid("queue capacity 0")
			return
		}
		o.capacity = n
	}
}

// WithWriters sets the number of writing goroutines of output passes. Each
// writer opens its own output handle.
func WithWriters(n int) Option {
	return func(o *options) {
		o.writers = n
	}
}

// WithBands restricts processing to the given 1-based bands, in order.
func WithBands(bands ...int) Option {
	return func(o *options) {
		if len(bands) == 0 {
			o.bands = nil
			return
		}
		o.bands = append([]int(nil), bands...)
	}
}

// WithInterleave sets the in-memory layout of blocks.
func WithInterleave(il rasterio.Interleave) Option {
	return func(o *options) {
		o.interleave = il
	}
}

// WithFormat sets the driver name used to create outputs.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithMemoryLimit caps the bytes of block buffers a pass may hold. Zero
// means no limit.
func WithMemoryLimit(bytes uint64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithProgress registers a callback receiving the completed fraction. It is
// called from a single goroutine with non-decreasing values, and with
// exactly 1 when the operation succeeds.
func WithProgress(fn func(float64)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRXKind selects the anomaly score.
func WithRXKind(k RXKind) Option {
	return func(o *options) {
		if _, err := ParseRXKind(k.String()); err != nil {
			o.invalid("RX kind %v", k)
			return
		}
		o.kind = k
	}
}

// WithStatistics supplies precomputed statistics, skipping the statistics
// pass of DetectAnomalies.
func WithStatistics(s *Statistics) Option {
	return func(o *options) {
		o.stats = s
	}
}

// WithPseudoInverse scores with the Moore-Penrose pseudo-inverse instead of
// failing on a singular covariance.
func WithPseudoInverse(enabled bool) Option {
	return func(o *options) {
		o.pinv = enabled
	}
}

// WithConditionLimit sets the largest covariance condition number treated
// as invertible.
func WithConditionLimit(limit float64) Option {
	return func(o *options) {
		o.conditionLimit = limit
	}
}

// WithStripeMethod selects how target column statistics are estimated.
func WithStripeMethod(m StripeMethod) Option {
	return func(o *options) {
		if m != MovingWindow && m != PolyFit {
			o.invalid("stripe method %v", m)
			return
		}
		o.stripeMethod = m
	}
}

// WithStripeWindow sets the moving window length (forced odd) or the
// polynomial degree, depending on the stripe method.
func WithStripeWindow(n int) Option {
	return func(o *options) {
		if n < 1 {
			o.invalid("stripe window %d", n)
			return
		}
		o.stripeWindow = n
	}
}
