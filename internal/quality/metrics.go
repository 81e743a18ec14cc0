// Package quality monitors a rolling history of per-chapter quality scores
// and derives typed alerts when scores or trends cross configured thresholds.
package quality

import (
	"context"
	"math"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// Scorer turns chapter prose into raw quality scores. Implementations are
// trusted: out-of-range values are recorded as-is.
type Scorer interface {
	Score(ctx context.Context, content string) (domain.RawQualityScores, error)
}

// CreateQualityMetrics maps display-oriented score names onto a snapshot
// taken at now. Infinite scores become NaN, which every detector skips.
func CreateQualityMetrics(chapter int, raw domain.RawQualityScores, now time.Time) domain.QualityMetrics {
	return domain.QualityMetrics{
		ChapterNumber:    chapter,
		Timestamp:        now.UTC(),
		OverallScore:     finiteOrNaN(raw.Overall),
		AIFlavorScore:    finiteOrNaN(raw.AIFlavor),
		CoolPointDensity: finiteOrNaN(raw.CoolPointDensity),
		PacingScore:      finiteOrNaN(raw.Pacing),
		ConsistencyScore: finiteOrNaN(raw.Consistency),
		RepetitionScore:  finiteOrNaN(raw.Repetition),
	}
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
