// Package csvlog implements the three append-only CSV recorders an
// Exchange writes to its output directory: per-pair rate history, the
// global transaction log, and the global profit log.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/alejandrodnm/polybot/internal/currency"
)

// RateRecorder writes pair-<initial>-<final>.csv files, one row per rate
// change: (timestamp_ms, rate). A pair that never changes rate never gets
// a second row.
type RateRecorder struct {
	mu   sync.Mutex
	dir  string
	last map[string]float64
	w    map[string]*csv.Writer
	f    map[string]*os.File
}

// NewRateRecorder creates a recorder writing into dir, which must already
// exist.
func NewRateRecorder(dir string) *RateRecorder {
	return &RateRecorder{
		dir:  dir,
		last: make(map[string]float64),
		w:    make(map[string]*csv.Writer),
		f:    make(map[string]*os.File),
	}
}

// Record appends (timestampMs, rate) for (initial, final) if rate differs
// from the last recorded value for that pair. Errors are returned so the
// caller can log them; a write failure never panics.
func (r *RateRecorder) Record(initial, final *currency.Currency, timestampMs int64, rate float64) error {
	key := initial.Id() + "-" + final.Id()

	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.last[key]; ok && last == rate {
		return nil
	}
	r.last[key] = rate

	w, err := r.writerLocked(key)
	if err != nil {
		return err
	}
	if err := w.Write([]string{strconv.FormatInt(timestampMs, 10), strconv.FormatFloat(rate, 'f', -1, 64)}); err != nil {
		return fmt.Errorf("csvlog: rate write %s: %w", key, err)
	}
	w.Flush()
	return w.Error()
}

func (r *RateRecorder) writerLocked(key string) (*csv.Writer, error) {
	if w, ok := r.w[key]; ok {
		return w, nil
	}

	path := filepath.Join(r.dir, fmt.Sprintf("pair-%s.csv", key))
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if needsHeader {
		_ = w.Write([]string{"timestamp_ms", "rate"})
		w.Flush()
	}
	r.f[key] = f
	r.w[key] = w
	return w, nil
}

// Close flushes and closes every file this recorder opened.
func (r *RateRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, w := range r.w {
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := r.f[key].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
