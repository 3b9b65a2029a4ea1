package jobstore

import "errors"

// ErrorCode discriminates the scheduler error kinds.
type ErrorCode string

const (
	ErrorCodeConflict   ErrorCode = "CONFLICT"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrorCodeWorkerExit ErrorCode = "WORKER_EXIT"
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
)

// JobStoreError is the typed error surfaced by the job store and scheduler.
type JobStoreError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *JobStoreError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *JobStoreError) Unwrap() error { return e.Err }

func NewConflictError(msg string) error {
	return &JobStoreError{Code: ErrorCodeConflict, Msg: msg}
}

func NewNotFoundError(msg string) error {
	return &JobStoreError{Code: ErrorCodeNotFound, Msg: msg}
}

func NewWorkerExitError(exitCode int) error {
	return &JobStoreError{Code: ErrorCodeWorkerExit, Msg: "worker exited non-zero"}
}

func NewBadRequestError(msg string) error {
	return &JobStoreError{Code: ErrorCodeBadRequest, Msg: msg}
}

func IsConflict(err error) bool {
	var je *JobStoreError
	return errors.As(err, &je) && je.Code == ErrorCodeConflict
}

func IsNotFound(err error) bool {
	var je *JobStoreError
	return errors.As(err, &je) && je.Code == ErrorCodeNotFound
}

func IsBadRequest(err error) bool {
	var je *JobStoreError
	return errors.As(err, &je) && je.Code == ErrorCodeBadRequest
}
