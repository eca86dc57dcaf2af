package domain

import "fmt"

type Stage string

const (
	Ingest    Stage = "ingest"
	Validate  Stage = "validate"
	Transform Stage = "transform"
	Train     Stage = "train"
)

func (s Stage) String() string {
	return string(s)
}

// Stages in the order of execution.
func Stages() []Stage {
	return []Stage{Ingest, Validate, Transform, Train}
}

func AsStage(s string) (Stage, error) {
	switch s {
	case string(Ingest):
		return Ingest, nil
	case string(Validate):
		return Validate, nil
	case string(Transform):
		return Transform, nil
	case string(Train):
		return Train, nil
	}
	return "", fmt.Errorf("unknown stage: %s", s)
}

// StageError is a failure of a pipeline stage.
//
// Err keeps its kind, so errors.Is(err, errors.KindSchema) and so on work through StageError.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
