package domain

import "time"

// QualityAlert is a derived signal that a metric or trend crossed a threshold.
// ID is "<type>:<anchor chapter>" so re-derivations of the same condition merge.
type QualityAlert struct {
	ID               string
	Type             AlertType
	Severity         Severity
	Priority         int
	Title            string
	Message          string
	Value            float64
	Threshold        float64
	AffectedChapters []int
	Suggestions      []string
	DetectedAt       time.Time
}

// Thresholds configures every alert detector.
type Thresholds struct {
	LowScoreThreshold    float64 `yaml:"lowScoreThreshold" json:"lowScoreThreshold"`
	AIFlavorThreshold    float64 `yaml:"aiFlavorThreshold" json:"aiFlavorThreshold"`
	CoolPointMinDensity  float64 `yaml:"coolPointMinDensity" json:"coolPointMinDensity"`
	PacingThreshold      float64 `yaml:"pacingThreshold" json:"pacingThreshold"`
	ConsistencyThreshold float64 `yaml:"consistencyThreshold" json:"consistencyThreshold"`
	RepetitionThreshold  float64 `yaml:"repetitionThreshold" json:"repetitionThreshold"`

	// LowScoreMinRun is the shortest consecutive low run that raises an alert.
	LowScoreMinRun int `yaml:"lowScoreMinRun" json:"lowScoreMinRun"`
	// CoolPointWindow is the number of trailing chapters averaged for density.
	CoolPointWindow int `yaml:"coolPointWindow" json:"coolPointWindow"`

	Disabled map[AlertType]bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// DefaultThresholds returns the documented detector defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowScoreThreshold:    60,
		AIFlavorThreshold:    40,
		CoolPointMinDensity:  0.3,
		PacingThreshold:      50,
		ConsistencyThreshold: 60,
		RepetitionThreshold:  30,
		LowScoreMinRun:       3,
		CoolPointWindow:      5,
	}
}

// Enabled reports whether the detector for t is switched on.
func (th Thresholds) Enabled(t AlertType) bool {
	return !th.Disabled[t]
}

// ThresholdsPatch is a partial update. Nil fields leave the current value.
type ThresholdsPatch struct {
	LowScoreThreshold    *float64
	AIFlavorThreshold    *float64
	CoolPointMinDensity  *float64
	PacingThreshold      *float64
	ConsistencyThreshold *float64
	RepetitionThreshold  *float64
	LowScoreMinRun       *int
	CoolPointWindow      *int

	// Enable switches individual detectors on (true) or off (false).
	Enable map[AlertType]bool
}

// Merge returns a copy of th with every non-nil field of patch applied.
func (th Thresholds) Merge(patch ThresholdsPatch) Thresholds {
	out := th
	out.LowScoreThreshold = patched(th.LowScoreThreshold, patch.LowScoreThreshold)
	out.AIFlavorThreshold = patched(th.AIFlavorThreshold, patch.AIFlavorThreshold)
	out.CoolPointMinDensity = patched(th.CoolPointMinDensity, patch.CoolPointMinDensity)
	out.PacingThreshold = patched(th.PacingThreshold, patch.PacingThreshold)
	out.ConsistencyThreshold = patched(th.ConsistencyThreshold, patch.ConsistencyThreshold)
	out.RepetitionThreshold = patched(th.RepetitionThreshold, patch.RepetitionThreshold)
	out.LowScoreMinRun = patched(th.LowScoreMinRun, patch.LowScoreMinRun)
	out.CoolPointWindow = patched(th.CoolPointWindow, patch.CoolPointWindow)

	out.Disabled = make(map[AlertType]bool, len(th.Disabled))
	for k, v := range th.Disabled {
		if v {
			out.Disabled[k] = true
		}
	}
	for k, on := range patch.Enable {
		if on {
			delete(out.Disabled, k)
		} else {
			out.Disabled[k] = true
		}
	}
	return out
}

func patched[T any](cur T, p *T) T {
	if p != nil {
		return *p
	}
	return cur
}
