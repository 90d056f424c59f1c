package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// Scheduler materializes node graphs. Force is the only place numeric work
// happens.
type Scheduler struct {
	pool      *Pool
	chunkRows int
	progress  Progress
	logger    *slog.Logger
}

// NewScheduler creates a scheduler fanning chunks of chunkRows latitude rows
// out over workers goroutines. A nil progress disables reporting and a nil
// logger falls back to slog.Default.
func NewScheduler(workers, chunkRows int, progress Progress, logger *slog.Logger) *Scheduler {
	if chunkRows < 1 {
		chunkRows = 1
	}
	if progress == nil {
		progress = NopProgress{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pool:      NewPool(workers),
		chunkRows: chunkRows,
		progress:  progress,
		logger:    logger,
	}
}

// Force evaluates the graph rooted at n.
func (s *Scheduler) Force(ctx context.Context, n *Node) (*domain.Field, error) {
	out, err := s.ForceAll(ctx, n)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ForceAll evaluates several roots in one pass. Nodes shared between the
// roots are evaluated once.
func (s *Scheduler) ForceAll(ctx context.Context, roots ...*Node) ([]*domain.Field, error) {
	start := time.Now()
	r := &run{s: s, memo: make(map[*Node]*domain.Field)}
	out := make([]*domain.Field, len(roots))
	for i, n := range roots {
		f, err := r.eval(ctx, n)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	elapsed := time.Since(start)
	s.progress.ForceDone(len(r.memo), elapsed)
	s.logger.Debug("graph forced", "roots", len(roots), "nodes", len(r.memo), "duration", elapsed)
	return out, nil
}

// run is the state of one Force: the memo of evaluated nodes.
type run struct {
	s    *Scheduler
	memo map[*Node]*domain.Field
}

func (r *run) eval(ctx context.Context, n *Node) (*domain.Field, error) {
	if f, ok := r.memo[n]; ok {
		return f, nil
	}
	in := make([]*domain.Field, len(n.inputs))
	for i, child := range n.inputs {
		f, err := r.eval(ctx, child)
		if err != nil {
			return nil, err
		}
		in[i] = f
	}
	f, err := n.kernel(ctx, r, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.op, err)
	}
	r.memo[n] = f
	return f, nil
}

// bands splits rows into consecutive [lo, hi) ranges of at most chunkRows.
func (r *run) bands(rows int) [][2]int {
	var out [][2]int
	for lo := 0; lo < rows; lo += r.s.chunkRows {
		out = append(out, [2]int{lo, min(lo+r.s.chunkRows, rows)})
	}
	return out
}

// latRows returns the shared latitude axis length of the inputs that carry
// one, or false when they disagree or none has one.
func latRows(in []*domain.Field) (int, bool) {
	var ref domain.Axis
	found := false
	for _, f := range in {
		lat, ok := f.Axis(domain.AxisLat)
		if !ok {
			continue
		}
		if found && !lat.Equal(ref) {
			return 0, false
		}
		ref, found = lat, true
	}
	return ref.Len(), found
}

// perBand runs fn on latitude bands of the inputs and joins the results along
// lat in band order.
func (r *run) perBand(ctx context.Context, op string, in []*domain.Field, fn func([]*domain.Field) (*domain.Field, error)) (*domain.Field, error) {
	rows, ok := latRows(in)
	if !ok || rows <= r.s.chunkRows {
		f, err := fn(in)
		if err == nil {
			r.s.progress.ChunkDone(op, 1, 1)
		}
		return f, err
	}
	bands := r.bands(rows)
	outs := make([]*domain.Field, len(bands))
	err := r.s.pool.Run(ctx, len(bands), func(_ context.Context, i int) error {
		part := make([]*domain.Field, len(in))
		for j, f := range in {
			if !f.HasAxis(domain.AxisLat) {
				part[j] = f
				continue
			}
			sl, err := f.SliceAxis(domain.AxisLat, bands[i][0], bands[i][1])
			if err != nil {
				return err
			}
			part[j] = sl
		}
		out, err := fn(part)
		if err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
		outs[i] = out
		r.s.progress.ChunkDone(op, i+1, len(bands))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return domain.Concat(domain.AxisLat, outs...)
}

// spatialMean computes latitude-band partial sums concurrently and merges
// them in band order.
func (r *run) spatialMean(ctx context.Context, f, w *domain.Field) (*domain.Field, error) {
	lat, ok := f.Axis(domain.AxisLat)
	if !ok || lat.Len() == 0 {
		return domain.SpatialMean(f, w)
	}
	bands := r.bands(lat.Len())
	parts := make([]domain.Partial, len(bands))
	err := r.s.pool.Run(ctx, len(bands), func(_ context.Context, i int) error {
		p, err := domain.SpatialPartials(f, w, bands[i][0], bands[i][1])
		if err != nil {
			return err
		}
		parts[i] = p
		r.s.progress.ChunkDone("spatial_mean", i+1, len(bands))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return domain.FinishSpatialMean(f, domain.MergePartials(parts...))
}
