package errors

import "errors"

var (
	ErrPipelineNotFound    = errors.New("pipeline file not found")
	ErrPipelineParseFailed = errors.New("pipeline parsing failed")
	ErrStageFailed         = errors.New("stage execution failed")
	ErrGateDeclined        = errors.New("operator declined approval gate")
	ErrCheckoutFailed      = errors.New("source checkout failed")
	ErrNotifyFailed        = errors.New("status notification failed")
	ErrRuntimeFailed       = errors.New("runtime operation failed")
	ErrConfigInvalid       = errors.New("configuration invalid")
	ErrFileSystemFailed    = errors.New("filesystem operation failed")
)

type GantryError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *GantryError) Error() string {
	return e.OriginalErr.Error()
}

func (e *GantryError) Unwrap() error {
	return e.OriginalErr
}

func NewGantryError(errorType error, context, cause, suggestion string, originalErr error) *GantryError {
	return &GantryError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewPipelineError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrPipelineNotFound, context, cause, suggestion, originalErr)
}

func NewParseError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrPipelineParseFailed, context, cause, suggestion, originalErr)
}

func NewStageError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrStageFailed, context, cause, suggestion, originalErr)
}

func NewGateDeclinedError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrGateDeclined, context, cause, suggestion, originalErr)
}

func NewCheckoutError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrCheckoutFailed, context, cause, suggestion, originalErr)
}

func NewNotifyError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrNotifyFailed, context, cause, suggestion, originalErr)
}

func NewRuntimeError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrRuntimeFailed, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewFileSystemError(context, cause, suggestion string, originalErr error) *GantryError {
	return NewGantryError(ErrFileSystemFailed, context, cause, suggestion, originalErr)
}
