package raster

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-rasterstream/internal/alloc"
	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/pipeline"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// run is the context of one public operation: the validated options, the
// inspected input, the block plan and the progress shared by its passes.
type run struct {
	id    string
	opts  *options
	log   logrus.FieldLogger
	input string
	geom  rasterio.Geometry
	bands []int
	plan  []rasterio.Rect

	alloc    *alloc.Allocator
	progress *pipeline.Progress
}

// newRun validates opts and inspects input before any worker starts, so open
// and pixel type failures surface here.
func newRun(input string, passes int, opts []Option) (*run, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	ds, err := rasterio.Open(input, rasterio.ReadOnly)
	if err != nil {
		return nil, err
	}
	g := ds.Geometry()
	if err := ds.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing input handle: %w", ErrBackendOpen, err)
	}
	if !g.PixelType.Valid() {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedPixelType, input, g.PixelType)
	}

	bands := o.bands
	if len(bands) == 0 {
		bands = rasterio.AllBands(g.Bands)
	}
	for _, b := range bands {
		if b < 1 || b > g.Bands {
			return nil, fmt.Errorf("%w: band %d of %d-band input", ErrInvalidOption, b, g.Bands)
		}
	}

	plan, err := block.Plan(g.Width, g.Height, block.Policy{Shape: o.shape, Size: o.blockSize})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}

	r := &run{
		id:    uuid.NewString(),
		opts:  o,
		input: input,
		geom:  g,
		bands: bands,
		plan:  plan,
		alloc: alloc.New(o.memoryLimit),
	}
	r.log = o.logger.WithField("run", r.id)
	r.progress = pipeline.NewProgress(o.progress, passes*len(plan), 0)

	r.log.WithFields(logrus.Fields{
		"input":  input,
		"width":  g.Width,
		"height": g.Height,
		"bands":  len(bands),
		"type":   g.PixelType,
		"size":   humanize.IBytes(uint64(g.Bytes())),
		"blocks": len(plan),
	}).Info("input opened")
	return r, nil
}

// config returns the pipeline configuration of a pass over the input.
func (r *run) config(pass string) pipeline.Config {
	o := r.opts
	return pipeline.Config{
		Name: pass,
		Source: func() (rasterio.Dataset, error) {
			return rasterio.Open(r.input, rasterio.ReadOnly)
		},
		Plan:       r.plan,
		Bands:      r.bands,
		Interleave: o.interleave,
		Producers:  o.producers,
		Consumers:  o.consumers,
		Capacity:   o.capacity,
		Allocator:  r.alloc,
		Logger:     r.log,
		Progress:   r.progress,
	}
}

// output returns the write stage of a pass writing bands 1..n of path.
func (r *run) output(path string, n int) pipeline.Output {
	format := r.opts.format
	writers := r.opts.writers
	if writers > 1 && rasterio.SerialWrites(format) {
		r.log.WithField("format", format).Warn("format allows a single writer, ignoring writer count")
		writers = 1
	}
	return pipeline.Output{
		Sink: func() (rasterio.Dataset, error) {
			return rasterio.OpenFormat(format, path, rasterio.Update)
		},
		Bands:    rasterio.AllBands(n),
		Writers:  writers,
		Capacity: r.opts.capacity,
	}
}

// createOutput creates path with the input's extent and georeference.
func (r *run) createOutput(path string, bands int, pt rasterio.PixelType) error {
	g := rasterio.Geometry{Width: r.geom.Width, Height: r.geom.Height, Bands: bands, PixelType: pt}
	dst, err := rasterio.Create(r.opts.format, path, g)
	if err != nil {
		return err
	}
	src, err := rasterio.Open(r.input, rasterio.ReadOnly)
	if err != nil {
		dst.Close()
		r.removeOutput(path)
		return err
	}
	err = rasterio.CopyGeoReference(src, dst)
	src.Close()
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		r.removeOutput(path)
		return fmt.Errorf("%w: %s: %w", ErrBackendCreate, path, err)
	}

	r.log.WithFields(logrus.Fields{
		"output": path,
		"format": r.opts.format,
		"bands":  bands,
		"type":   pt,
		"size":   humanize.IBytes(uint64(g.Bytes())),
	}).Info("output created")
	return nil
}

// removeOutput discards a failed output.
func (r *run) removeOutput(path string) {
	d, err := rasterio.Lookup(r.opts.format)
	if err == nil {
		err = d.Remove(path)
	}
	if err != nil {
		r.log.WithError(err).WithField("output", path).Warn("removing incomplete output")
		return
	}
	r.log.WithField("output", path).Info("incomplete output removed")
}

// done finishes progress reporting and logs the outcome of the operation.
// A successful operation fails here if block memory is still reserved.
func (r *run) done(op string, err error) error {
	if err == nil {
		if verr := r.alloc.Validate(); verr != nil {
			err = fmt.Errorf("%s: block memory leaked: %w", op, verr)
		}
	}
	if err != nil {
		r.progress.Stop()
		if !errors.Is(err, ErrInvalidOption) {
			r.log.WithError(err).Error(op + " failed")
		}
		return err
	}
	r.progress.Finish()
	st := r.alloc.Stats()
	fields := logrus.Fields{"peak_memory": humanize.IBytes(st.Peak)}
	if limit := r.alloc.Limit(); limit > 0 {
		fields["memory_limit"] = humanize.IBytes(limit)
	}
	r.log.WithFields(fields).Info(op + " finished")
	return nil
}
