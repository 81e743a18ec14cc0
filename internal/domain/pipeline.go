package domain

import (
	"math"
	"time"
)

// Progress is derived from task state by ComputeProgress and never edited
// directly.
type Progress struct {
	Total      int
	Completed  int
	Failed     int
	Percentage int
}

// RefinementPipeline is an ordered batch of tasks sharing one stage sequence.
type RefinementPipeline struct {
	ID               string
	Source           string // where the chapters were imported from, if known
	Tasks            []*RefinementTask
	Stages           []RefinementStage
	CurrentTaskIndex int
	Status           PipelineStatus
	Progress         Progress

	CreatedAt time.Time
	UpdatedAt time.Time
	StartTime *time.Time
	EndTime   *time.Time
}

// ComputeProgress recomputes aggregate progress from tasks. Percentage is 0
// for an empty pipeline.
func ComputeProgress(tasks []*RefinementTask, stages []RefinementStage) Progress {
	p := Progress{Total: len(tasks) * len(stages)}
	for _, t := range tasks {
		p.Completed += len(t.CompletedStages)
		if t.Status == TaskFailed {
			p.Failed++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

// RefreshProgress overwrites Progress with a fresh computation.
func (p *RefinementPipeline) RefreshProgress() {
	p.Progress = ComputeProgress(p.Tasks, p.Stages)
}

// StageIndex returns the position of stage in the pipeline, or -1.
func (p *RefinementPipeline) StageIndex(stage RefinementStage) int {
	for i, s := range p.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// NextStage returns the stage following stage, if any.
func (p *RefinementPipeline) NextStage(stage RefinementStage) (RefinementStage, bool) {
	i := p.StageIndex(stage)
	if i < 0 || i+1 >= len(p.Stages) {
		return "", false
	}
	return p.Stages[i+1], true
}

// TaskByID returns the task with the given id and its index.
func (p *RefinementPipeline) TaskByID(id string) (*RefinementTask, int) {
	for i, t := range p.Tasks {
		if t.ID == id {
			return t, i
		}
	}
	return nil, -1
}

// CountByStatus tallies tasks per status.
func (p *RefinementPipeline) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, len(AllTaskStatuses))
	for _, t := range p.Tasks {
		counts[t.Status]++
	}
	return counts
}
