package domain

import "time"

// RefinementTask tracks one chapter through the stage sequence of its pipeline.
type RefinementTask struct {
	ID           string
	ChapterID    string
	ChapterTitle string

	OriginalContent string
	CurrentContent  string

	// CurrentStage is the stage about to run, or the last stage once the
	// task is completed.
	CurrentStage    RefinementStage
	CompletedStages []RefinementStage

	Status TaskStatus
	Error  string

	StartTime *time.Time
	EndTime   *time.Time
}

// DisplayTitle is the chapter title, falling back to its id for untitled
// chapters.
func (t *RefinementTask) DisplayTitle() string {
	if t.ChapterTitle != "" {
		return t.ChapterTitle
	}
	return t.ChapterID
}

// IsTerminal reports whether the task has finished every stage.
func (t *RefinementTask) IsTerminal() bool {
	return t.Status == TaskCompleted
}

// IsRunnable reports whether the task can be picked up by a driver.
func (t *RefinementTask) IsRunnable() bool {
	return t.Status == TaskPending || t.Status == TaskPaused
}

// SetStatus moves the task to status. The first entry into processing stamps
// StartTime; completed and failed stamp EndTime. Error is kept only for failed.
func (t *RefinementTask) SetStatus(status TaskStatus, errMsg string, now time.Time) {
	t.Status = status
	switch status {
	case TaskProcessing:
		if t.StartTime == nil {
			ts := now
			t.StartTime = &ts
		}
		t.Error = ""
	case TaskCompleted:
		ts := now
		t.EndTime = &ts
		t.Error = ""
	case TaskFailed:
		ts := now
		t.EndTime = &ts
		t.Error = errMsg
	default:
		t.Error = ""
	}
}

// MarkProcessing is shorthand for SetStatus(TaskProcessing, "", now).
func (t *RefinementTask) MarkProcessing(now time.Time) {
	t.SetStatus(TaskProcessing, "", now)
}

// HasCompleted reports whether stage is already in CompletedStages.
func (t *RefinementTask) HasCompleted(stage RefinementStage) bool {
	for _, s := range t.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// Duration returns EndTime - StartTime, or false when either is unset.
func (t *RefinementTask) Duration() (time.Duration, bool) {
	if t.StartTime == nil || t.EndTime == nil {
		return 0, false
	}
	return t.EndTime.Sub(*t.StartTime), true
}

// Clone returns a deep copy so callers can hand tasks out without sharing
// the stage slice or timestamps.
func (t *RefinementTask) Clone() *RefinementTask {
	c := *t
	c.CompletedStages = append([]RefinementStage(nil), t.CompletedStages...)
	if t.StartTime != nil {
		ts := *t.StartTime
		c.StartTime = &ts
	}
	if t.EndTime != nil {
		ts := *t.EndTime
		c.EndTime = &ts
	}
	return &c
}
