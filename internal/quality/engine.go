package quality

import (
	"sort"
	"time"

	"github.com/alexanderramin/inkwell/internal/domain"
)

// DefaultMaxAlerts caps the alert log when no limit is configured.
const DefaultMaxAlerts = 200

// AlertFilter narrows GetAlerts. Zero-valued fields match everything.
type AlertFilter struct {
	Type        domain.AlertType
	Severity    domain.Severity
	MinPriority int
}

func (f AlertFilter) Match(a domain.QualityAlert) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	return a.Priority >= f.MinPriority
}

// AlertStats summarises the alert log.
type AlertStats struct {
	Total       int
	ByType      map[domain.AlertType]int
	BySeverity  map[domain.Severity]int
	ActiveCount int
}

// Engine owns a metrics history and the log of every alert ever derived
// from it. It is not safe for concurrent use.
type Engine struct {
	thresholds domain.Thresholds
	recorder   *Recorder
	maxAlerts  int
	alerts     []domain.QualityAlert
	index      map[string]int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithThresholds replaces the default thresholds.
func WithThresholds(th domain.Thresholds) EngineOption {
	return func(e *Engine) { e.thresholds = th.Merge(domain.ThresholdsPatch{}) }
}

// WithMaxHistory caps the metrics history.
func WithMaxHistory(n int) EngineOption {
	return func(e *Engine) { e.recorder = NewRecorder(n) }
}

// WithMaxAlerts caps the alert log.
func WithMaxAlerts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAlerts = n
		}
	}
}

// NewEngine creates an empty engine with default thresholds.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		thresholds: domain.DefaultThresholds(),
		recorder:   NewRecorder(DefaultMaxHistory),
		maxAlerts:  DefaultMaxAlerts,
		index:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddMetrics records m, evaluates the updated history and merges the result
// into the alert log. Re-derived conditions share an ID and supersede their
// earlier entry in place.
func (e *Engine) AddMetrics(m domain.QualityMetrics) []domain.QualityAlert {
	e.recorder.Append(m)
	current := evaluate(e.recorder.Snapshots(), e.thresholds)
	for _, a := range current {
		e.merge(a)
	}
	return cloneAlerts(current)
}

// Replay feeds a persisted history through AddMetrics in order.
func (e *Engine) Replay(history []domain.QualityMetrics) {
	for _, m := range history {
		e.AddMetrics(m)
	}
}

func (e *Engine) merge(a domain.QualityAlert) {
	if i, ok := e.index[a.ID]; ok {
		e.alerts[i] = a
		return
	}
	e.alerts = append(e.alerts, a)
	e.index[a.ID] = len(e.alerts) - 1
	if over := len(e.alerts) - e.maxAlerts; over > 0 {
		e.alerts = append([]domain.QualityAlert(nil), e.alerts[over:]...)
		e.reindex()
	}
}

func (e *Engine) reindex() {
	e.index = make(map[string]int, len(e.alerts))
	for i, a := range e.alerts {
		e.index[a.ID] = i
	}
}

// GetAlerts returns logged alerts matching f, highest priority first. Ties
// keep detection order.
func (e *Engine) GetAlerts(f AlertFilter) []domain.QualityAlert {
	var out []domain.QualityAlert
	for _, a := range e.alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	sortByPriority(out)
	return cloneAlerts(out)
}

// GetActiveAlerts re-derives alerts from the current history.
func (e *Engine) GetActiveAlerts() []domain.QualityAlert {
	active := evaluate(e.recorder.Snapshots(), e.thresholds)
	sortByPriority(active)
	return cloneAlerts(active)
}

// GetAlertStats counts the alert log by type and severity.
func (e *Engine) GetAlertStats() AlertStats {
	stats := AlertStats{
		Total:      len(e.alerts),
		ByType:     make(map[domain.AlertType]int),
		BySeverity: make(map[domain.Severity]int),
	}
	for _, a := range e.alerts {
		stats.ByType[a.Type]++
		stats.BySeverity[a.Severity]++
	}
	stats.ActiveCount = len(evaluate(e.recorder.Snapshots(), e.thresholds))
	return stats
}

// Thresholds returns a copy of the current thresholds.
func (e *Engine) Thresholds() domain.Thresholds {
	return e.thresholds.Merge(domain.ThresholdsPatch{})
}

// UpdateThresholds applies patch. Logged alerts are left as they were.
func (e *Engine) UpdateThresholds(patch domain.ThresholdsPatch) domain.Thresholds {
	e.thresholds = e.thresholds.Merge(patch)
	return e.Thresholds()
}

// History returns the recorded snapshots, oldest first.
func (e *Engine) History() []domain.QualityMetrics {
	return e.recorder.Snapshots()
}

// ClearHistory empties both logs when since is nil. Otherwise it drops
// snapshots strictly older than since and rebuilds the alert log from the
// remainder.
func (e *Engine) ClearHistory(since *time.Time) {
	if since == nil {
		e.recorder.Reset()
		e.resetAlerts()
		return
	}
	e.recorder.PruneBefore(*since)
	remaining := e.recorder.Snapshots()
	e.recorder.Reset()
	e.resetAlerts()
	e.Replay(remaining)
}

func (e *Engine) resetAlerts() {
	e.alerts = nil
	e.index = make(map[string]int)
}

func sortByPriority(alerts []domain.QualityAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority > alerts[j].Priority
	})
}

func cloneAlerts(in []domain.QualityAlert) []domain.QualityAlert {
	if in == nil {
		return nil
	}
	out := make([]domain.QualityAlert, len(in))
	for i, a := range in {
		a.AffectedChapters = append([]int(nil), a.AffectedChapters...)
		a.Suggestions = append([]string(nil), a.Suggestions...)
		out[i] = a
	}
	return out
}
