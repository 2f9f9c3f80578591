package analyst

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when the model produced no thesis text.
var ErrEmptyDocument = errors.New("model returned an empty document")

// ErrNoPriceData is returned when the market-data provider knows the
// symbol but has no bars for the requested period.
var ErrNoPriceData = errors.New("no price data in range")

// ResolutionError reports that the model failed to extract usable entities
// from the request.
type ResolutionError struct {
	Request string
	Reason  string
	Err     error
}

func (e *ResolutionError) Error() string {
	msg := "resolve entities: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// GenerationError reports that the thesis could not be generated.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("generate thesis (%s): %v", e.Model, e.Err)
	}
	return fmt.Sprintf("generate thesis: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StageError is the terminal Failed(stage, cause) state of a run.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// FailedStage returns the stage a pipeline error occurred in, or "" when
// err did not come from a pipeline run.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
