package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
	"github.com/alexanderramin/inkwell/internal/quality"
	"github.com/alexanderramin/inkwell/internal/repository"
)

// QualityOption configures NewQualityService.
type QualityOption func(*qualityService)

// WithQualityClock overrides the timestamp source for new snapshots.
func WithQualityClock(now func() time.Time) QualityOption {
	return func(s *qualityService) { s.now = now }
}

// WithHistoryLimit caps how many snapshots the engine keeps and replays.
func WithHistoryLimit(n int) QualityOption {
	return func(s *qualityService) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithAlertLimit caps the in-memory alert log.
func WithAlertLimit(n int) QualityOption {
	return func(s *qualityService) {
		if n > 0 {
			s.maxAlerts = n
		}
	}
}

// WithDefaultThresholds sets the thresholds used until some are saved.
func WithDefaultThresholds(th domain.Thresholds) QualityOption {
	return func(s *qualityService) { s.defaults = th }
}

// WithQualityObserver reports use cases to obs.
func WithQualityObserver(obs UseCaseObserver) QualityOption {
	return func(s *qualityService) {
		if obs != nil {
			s.observer = obs
		}
	}
}

type qualityService struct {
	metrics    repository.MetricsRepo
	thresholds repository.ThresholdsRepo
	scorer     quality.Scorer

	now        func() time.Time
	maxHistory int
	maxAlerts  int
	defaults   domain.Thresholds
	observer   UseCaseObserver

	mu     sync.Mutex
	engine *quality.Engine
	loaded storeRevision
}

// storeRevision is what the engine was built from. Another process that
// records, clears or retunes changes it.
type storeRevision struct {
	metrics    repository.MetricsRevision
	thresholds string
}

// NewQualityService builds the alert engine lazily from stored metrics and
// rebuilds it whenever the stored metrics or thresholds change underneath.
// scorer may be nil; Score then returns ErrScorerUnavailable.
func NewQualityService(metrics repository.MetricsRepo, thresholds repository.ThresholdsRepo, scorer quality.Scorer, opts ...QualityOption) QualityService {
	s := &qualityService{
		metrics:    metrics,
		thresholds: thresholds,
		scorer:     scorer,
		now:        func() time.Time { return time.Now().UTC() },
		maxHistory: quality.DefaultMaxHistory,
		maxAlerts:  quality.DefaultMaxAlerts,
		defaults:   domain.DefaultThresholds(),
		observer:   NoopUseCaseObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *qualityService) revision(ctx context.Context) (storeRevision, error) {
	var rev storeRevision
	var err error
	if rev.metrics, err = s.metrics.Revision(ctx); err != nil {
		return rev, err
	}
	if rev.thresholds, err = s.thresholds.Revision(ctx); err != nil {
		return rev, err
	}
	return rev, nil
}

// loadEngine must be called with mu held. The cached engine is reused only
// while the store is at the revision it was replayed from.
func (s *qualityService) loadEngine(ctx context.Context) (*quality.Engine, error) {
	rev, err := s.revision(ctx)
	if err != nil {
		return nil, err
	}
	if s.engine != nil && rev == s.loaded {
		return s.engine, nil
	}

	th, err := s.thresholds.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		th, err = s.defaults, nil
	}
	if err != nil {
		return nil, err
	}
	history, err := s.metrics.List(ctx, repository.MetricsFilter{Limit: s.maxHistory})
	if err != nil {
		return nil, fmt.Errorf("loading quality history: %w", err)
	}
	e := quality.NewEngine(
		quality.WithThresholds(th),
		quality.WithMaxHistory(s.maxHistory),
		quality.WithMaxAlerts(s.maxAlerts),
	)
	e.Replay(history)
	s.engine, s.loaded = e, rev
	return e, nil
}

func (s *qualityService) withEngine(ctx context.Context, fn func(e *quality.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.loadEngine(ctx)
	if err != nil {
		return err
	}
	return fn(e)
}

func (s *qualityService) Record(ctx context.Context, chapter int, raw domain.RawQualityScores) (alerts []domain.QualityAlert, err error) {
	fields := map[string]any{"chapter": chapter}
	done := track(ctx, s.observer, "record-quality", fields)
	defer func() { done(err) }()

	if chapter < 1 {
		return nil, fmt.Errorf("chapter number must be positive, got %d", chapter)
	}
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		m := quality.CreateQualityMetrics(chapter, raw, s.now())
		if err := s.metrics.Append(ctx, m); err != nil {
			return fmt.Errorf("saving quality metrics: %w", err)
		}
		alerts = e.AddMetrics(m)
		return nil
	})
	fields["alerts"] = len(alerts)
	return alerts, err
}

func (s *qualityService) Score(ctx context.Context, chapter int, content string) (domain.RawQualityScores, []domain.QualityAlert, error) {
	if s.scorer == nil {
		return domain.RawQualityScores{}, nil, ErrScorerUnavailable
	}
	raw, err := s.scorer.Score(ctx, content)
	if err != nil {
		return domain.RawQualityScores{}, nil, fmt.Errorf("scoring chapter %d: %w", chapter, err)
	}
	alerts, err := s.Record(ctx, chapter, raw)
	return raw, alerts, err
}

func (s *qualityService) Alerts(ctx context.Context, filter quality.AlertFilter) (out []domain.QualityAlert, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.GetAlerts(filter)
		return nil
	})
	return out, err
}

func (s *qualityService) Active(ctx context.Context) (out []domain.QualityAlert, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.GetActiveAlerts()
		return nil
	})
	return out, err
}

func (s *qualityService) Stats(ctx context.Context) (out quality.AlertStats, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.GetAlertStats()
		return nil
	})
	return out, err
}

func (s *qualityService) Report(ctx context.Context) (out string, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.GenerateAlertReport()
		return nil
	})
	return out, err
}

func (s *qualityService) History(ctx context.Context) (out []domain.QualityMetrics, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.History()
		return nil
	})
	return out, err
}

func (s *qualityService) Thresholds(ctx context.Context) (out domain.Thresholds, err error) {
	err = s.withEngine(ctx, func(e *quality.Engine) error {
		out = e.Thresholds()
		return nil
	})
	return out, err
}

func (s *qualityService) UpdateThresholds(ctx context.Context, patch domain.ThresholdsPatch) (out domain.Thresholds, err error) {
	done := track(ctx, s.observer, "update-thresholds", nil)
	defer func() { done(err) }()

	err = s.withEngine(ctx, func(e *quality.Engine) error {
		next := e.Thresholds().Merge(patch)
		if err := validateThresholds(next); err != nil {
			return err
		}
		if err := s.thresholds.Save(ctx, next); err != nil {
			return fmt.Errorf("saving thresholds: %w", err)
		}
		out = e.UpdateThresholds(patch)
		return nil
	})
	return out, err
}

func (s *qualityService) Clear(ctx context.Context, since *time.Time) (err error) {
	fields := map[string]any{"all": since == nil}
	done := track(ctx, s.observer, "clear-quality", fields)
	defer func() { done(err) }()

	return s.withEngine(ctx, func(e *quality.Engine) error {
		if since == nil {
			if err := s.metrics.DeleteAll(ctx); err != nil {
				return fmt.Errorf("clearing quality history: %w", err)
			}
		} else {
			n, err := s.metrics.DeleteBefore(ctx, *since)
			if err != nil {
				return fmt.Errorf("pruning quality history: %w", err)
			}
			fields["deleted"] = n
		}
		e.ClearHistory(since)
		return nil
	})
}

// ErrInvalidThresholds is returned when an update would leave a detector
// with a window or run length below one.
var ErrInvalidThresholds = errors.New("invalid alert thresholds")

func validateThresholds(th domain.Thresholds) error {
	if th.LowScoreMinRun < 1 {
		return fmt.Errorf("%w: lowScoreMinRun must be at least 1", ErrInvalidThresholds)
	}
	if th.CoolPointWindow < 1 {
		return fmt.Errorf("%w: coolPointWindow must be at least 1", ErrInvalidThresholds)
	}
	return nil
}
