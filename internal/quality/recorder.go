package quality

import (
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// DefaultMaxHistory caps the metrics log when no limit is configured.
const DefaultMaxHistory = 100

// Recorder is an append-only, size-capped log of quality snapshots in
// insertion order.
type Recorder struct {
	max       int
	snapshots []domain.QualityMetrics
}

// NewRecorder creates a Recorder keeping at most max snapshots.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &Recorder{max: max}
}

// Append adds m, dropping the oldest snapshots beyond the cap.
func (r *Recorder) Append(m domain.QualityMetrics) {
	r.snapshots = append(r.snapshots, m)
	if over := len(r.snapshots) - r.max; over > 0 {
		r.snapshots = append([]domain.QualityMetrics(nil), r.snapshots[over:]...)
	}
}

// Snapshots returns a copy of the log.
func (r *Recorder) Snapshots() []domain.QualityMetrics {
	return append([]domain.QualityMetrics(nil), r.snapshots...)
}

// Len returns the number of stored snapshots.
func (r *Recorder) Len() int { return len(r.snapshots) }

// PruneBefore removes snapshots strictly older than ts and reports how many
// were dropped.
func (r *Recorder) PruneBefore(ts time.Time) int {
	kept := r.snapshots[:0:0]
	for _, m := range r.snapshots {
		if !m.Timestamp.Before(ts) {
			kept = append(kept, m)
		}
	}
	dropped := len(r.snapshots) - len(kept)
	r.snapshots = kept
	return dropped
}

// Reset empties the log.
func (r *Recorder) Reset() {
	r.snapshots = nil
}
