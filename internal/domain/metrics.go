package domain

import "time"

// RawQualityScores is the display-oriented score record produced by a
// scoring collaborator.
type RawQualityScores struct {
	Overall          float64 `json:"overall" yaml:"overall"`
	AIFlavor         float64 `json:"aiFlavor" yaml:"aiFlavor"`
	CoolPointDensity float64 `json:"coolPointDensity" yaml:"coolPointDensity"`
	Pacing           float64 `json:"pacing" yaml:"pacing"`
	Consistency      float64 `json:"consistency" yaml:"consistency"`
	Repetition       float64 `json:"repetition" yaml:"repetition"`
}

// QualityMetrics is an immutable, timestamped score snapshot for one chapter.
// Scores are on a 0-100 scale except CoolPointDensity, which is a ratio.
type QualityMetrics struct {
	ChapterNumber    int
	Timestamp        time.Time
	OverallScore     float64
	AIFlavorScore    float64
	CoolPointDensity float64
	PacingScore      float64
	ConsistencyScore float64
	RepetitionScore  float64
}
