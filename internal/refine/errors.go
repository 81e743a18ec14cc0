package refine

import "errors"

var (
	// ErrUnknownStage indicates a stage identifier with no catalog entry.
	ErrUnknownStage = errors.New("unknown refinement stage")

	// ErrTaskNotFound indicates a task id that is not part of the pipeline.
	ErrTaskNotFound = errors.New("task not found in pipeline")

	// ErrStageMismatch indicates a completion for a stage that is not the
	// task's outstanding stage.
	ErrStageMismatch = errors.New("completed stage does not match task's current stage")

	// ErrPipelineStopped indicates an operation on a pipeline that was stopped.
	ErrPipelineStopped = errors.New("pipeline has been stopped")

	// ErrPipelineFinished indicates an operation on a pipeline whose tasks
	// all completed.
	ErrPipelineFinished = errors.New("pipeline already completed")

	// ErrInvalidTransition indicates a task status change the task state
	// machine does not allow, or an unknown status.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidStages indicates an empty or duplicated stage sequence.
	ErrInvalidStages = errors.New("invalid stage sequence")
)
