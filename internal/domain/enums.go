package domain

import "fmt"

// RefinementStage identifies one rewrite pass. Order matters: each stage
// operates on the output of the one before it.
type RefinementStage string

const (
	StageRemoveAIFlavor   RefinementStage = "remove-ai-flavor"
	StageEnhanceTension   RefinementStage = "enhance-tension"
	StageImproveCharacter RefinementStage = "improve-character"
	StageAddTechniques    RefinementStage = "add-techniques"
)

// DefaultStages returns the full stage sequence in pipeline order.
func DefaultStages() []RefinementStage {
	return []RefinementStage{
		StageRemoveAIFlavor,
		StageEnhanceTension,
		StageImproveCharacter,
		StageAddTechniques,
	}
}

// ValidStages is the canonical set of accepted stage identifiers.
var ValidStages = map[RefinementStage]bool{
	StageRemoveAIFlavor:   true,
	StageEnhanceTension:   true,
	StageImproveCharacter: true,
	StageAddTechniques:    true,
}

// ParseStage converts a raw identifier into a RefinementStage.
func ParseStage(s string) (RefinementStage, error) {
	st := RefinementStage(s)
	if !ValidStages[st] {
		return "", fmt.Errorf("unknown refinement stage %q", s)
	}
	return st, nil
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskPaused     TaskStatus = "paused"
)

// AllTaskStatuses lists task statuses in report order.
var AllTaskStatuses = []TaskStatus{TaskPending, TaskProcessing, TaskCompleted, TaskFailed, TaskPaused}

// taskTransitions lists where each status may go. Staying put is always
// allowed. Completed is terminal; paused and failed tasks re-enter work
// only through pending.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskProcessing, TaskPaused},
	TaskProcessing: {TaskPending, TaskCompleted, TaskFailed, TaskPaused},
	TaskPaused:     {TaskPending},
	TaskFailed:     {TaskPending},
	TaskCompleted:  nil,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// CanTransition reports whether a task in status s may move to next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PipelineStatus string

const (
	PipelineIdle      PipelineStatus = "idle"
	PipelineRunning   PipelineStatus = "running"
	PipelinePaused    PipelineStatus = "paused"
	PipelineCompleted PipelineStatus = "completed"
	PipelineFailed    PipelineStatus = "failed"
)

// ValidPipelineStatuses is the canonical set of accepted pipeline status strings.
var ValidPipelineStatuses = map[string]bool{
	"idle": true, "running": true, "paused": true, "completed": true, "failed": true,
}

type AlertType string

const (
	AlertLowScore    AlertType = "low-score"
	AlertAIFlavor    AlertType = "ai-flavor"
	AlertCoolPoint   AlertType = "cool-point"
	AlertPacing      AlertType = "pacing"
	AlertConsistency AlertType = "consistency"
	AlertRepetition  AlertType = "repetition"
)

// AllAlertTypes lists alert types in detection order.
var AllAlertTypes = []AlertType{
	AlertLowScore, AlertAIFlavor, AlertCoolPoint, AlertPacing, AlertConsistency, AlertRepetition,
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities lists severities from most to least urgent.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Priority maps a severity onto the integer urgency scale used for sorting.
func (s Severity) Priority() int {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 7
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	default:
		return 0
	}
}
