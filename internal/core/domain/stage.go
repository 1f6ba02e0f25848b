package domain

import "fmt"

// Stage identifies a step of the query pipeline. A request moves through
// the stages in order; any failure short-circuits to StageFailed.
type Stage string

const (
	StageEmbeddingQuery Stage = "embedding_query"
	StageRetrieving     Stage = "retrieving"
	StageBuildingPrompt Stage = "building_prompt"
	StageGenerating     Stage = "generating"
	StageIngesting      Stage = "ingesting"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// StageError tags a pipeline failure with the stage it occurred in, so the
// boundary layer can map it to a response without re-deriving the cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func FailAtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
