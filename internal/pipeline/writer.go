package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/queue"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// writeStage is the second queue of a transform pass and the writers that
// drain it.
type writeStage struct {
	p     *pass
	out   Output
	queue *queue.Queue[*block.Block]
	pool  *block.Pool
}

func newWriteStage(p *pass, out Output) (*writeStage, error) {
	q, err := queue.New[*block.Block](out.Capacity, len(p.cfg.Plan))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	// Output blocks carry plane positions, not source bands.
	planes := rasterio.AllBands(len(out.Bands))
	return &writeStage{
		p:     p,
		out:   out,
		queue: q,
		pool: block.NewPool(p.cfg.Allocator, out.Capacity+p.cfg.Consumers+out.Writers,
			maxArea(p.cfg.Plan), planes, rasterio.BSQ),
	}, nil
}

// write pops exactly n blocks and stores every plane through its own handle.
func (ws *writeStage) write(worker, n int) (err error) {
	if n == 0 {
		return nil
	}
	log := ws.p.log.WithField("writer", worker)

	ds, err := ws.out.Sink()
	if err != nil {
		return fmt.Errorf("writer %d: %w", worker, err)
	}
	defer func() {
		cerr := ds.Close()
		if cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing output: %w", rasterio.ErrBlockWrite, cerr)
		}
	}()

	for range n {
		b, err := ws.queue.Pop()
		if err != nil {
			return err
		}
		err = ws.store(ds, b)
		ws.pool.Put(b)
		if err != nil {
			prometheusBlockErrors.WithLabelValues(ws.p.cfg.Name, "write").Inc()
			return err
		}
		prometheusBlocksWritten.WithLabelValues(ws.p.cfg.Name).Inc()
		ws.p.cfg.Progress.Add(1)
	}
	log.WithFields(logrus.Fields{"blocks": n}).Debug("writer done")
	return nil
}

func (ws *writeStage) store(ds rasterio.Dataset, b *block.Block) error {
	area := b.Rect.Area()
	for k, band := range ws.out.Bands {
		plane := b.Data[k*area : (k+1)*area]
		if err := ds.WriteBlock(b.Rect, band, plane); err != nil {
			return fmt.Errorf("%w: block %d %v band %d: %w", rasterio.ErrBlockWrite, b.Seq, b.Rect, band, err)
		}
	}
	return nil
}
