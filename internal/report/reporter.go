// Package report collects per-record rejections during a load and writes
// them out as newline-delimited JSON, one file per entity. Reporting is
// best-effort: a failure to write rejections never fails the load itself.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-etl/internal/model"
)

// Reporter accumulates rejections in memory and appends them to
// <dir>/<entity>_errors.ndjson on Flush. Safe for concurrent Record calls.
type Reporter struct {
	dir string
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	pending map[model.EntityType][]model.Rejection
	counts  map[model.EntityType]int
}

// New creates a Reporter writing under dir. The directory is created on the
// first flush that has anything to write.
func New(dir string) *Reporter {
	return &Reporter{
		dir:     dir,
		log:     zap.L().With(zap.String("component", "report")),
		now:     time.Now,
		pending: make(map[model.EntityType][]model.Rejection),
		counts:  make(map[model.EntityType]int),
	}
}

// Record buffers one rejection. The failure slice is copied so callers may
// reuse their scratch buffer between records.
func (r *Reporter) Record(entity model.EntityType, recordID string, failures []model.Failure) {
	rej := model.Rejection{
		Entity:    entity,
		RecordID:  recordID,
		Reasons:   append([]model.Failure(nil), failures...),
		Timestamp: r.now().UTC(),
	}

	r.mu.Lock()
	r.pending[entity] = append(r.pending[entity], rej)
	r.counts[entity]++
	r.mu.Unlock()

	reasons := make([]string, len(failures))
	for i, f := range failures {
		reasons[i] = f.String()
	}
	r.log.Debug("record rejected",
		zap.String("entity", string(entity)),
		zap.String("record_id", recordID),
		zap.Strings("reasons", reasons))
}

// Count returns how many rejections have been recorded for an entity,
// including ones already flushed.
func (r *Reporter) Count(entity model.EntityType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[entity]
}

// Flush appends all buffered rejections to their per-entity files, one
// entity per goroutine. Write failures are logged and swallowed; the
// returned error is reserved for context cancellation.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[model.EntityType][]model.Rejection)
	r.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.log.Warn("cannot create error report dir", zap.String("dir", r.dir), zap.Error(err))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for entity, rejections := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.appendNDJSON(entity, rejections); err != nil {
				r.log.Warn("error report write failed",
					zap.String("entity", string(entity)),
					zap.Int("dropped", len(rejections)),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Reporter) appendNDJSON(entity model.EntityType, rejections []model.Rejection) error {
	path := filepath.Join(r.dir, fmt.Sprintf("%s_errors.ndjson", entity))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "report: open %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rej := range rejections {
		if err := enc.Encode(rej); err != nil {
			return eris.Wrapf(err, "report: encode rejection %s", rej.RecordID)
		}
	}
	return f.Sync()
}
