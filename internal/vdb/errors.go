package vdb

import "errors"

// ErrorCode discriminates the VdbError variants.
type ErrorCode string

const (
	ErrorCodeStorage       ErrorCode = "STORAGE"
	ErrorCodeSerialization ErrorCode = "SERIALIZATION"
	ErrorCodeInvalidProof  ErrorCode = "INVALID_PROOF"
)

// VdbError is the typed error surfaced by the engine. Callers branch on
// Code via errors.As rather than string matching.
type VdbError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *VdbError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *VdbError) Unwrap() error { return e.Err }

func NewStorageError(msg string, cause error) error {
	return &VdbError{Code: ErrorCodeStorage, Msg: msg, Err: cause}
}

func NewSerializationError(msg string, cause error) error {
	return &VdbError{Code: ErrorCodeSerialization, Msg: msg, Err: cause}
}

var ErrInvalidProof = &VdbError{Code: ErrorCodeInvalidProof, Msg: "invalid proof"}

func IsStorageError(err error) bool {
	var ve *VdbError
	return errors.As(err, &ve) && ve.Code == ErrorCodeStorage
}

func IsSerializationError(err error) bool {
	var ve *VdbError
	return errors.As(err, &ve) && ve.Code == ErrorCodeSerialization
}

func IsInvalidProof(err error) bool {
	var ve *VdbError
	return errors.As(err, &ve) && ve.Code == ErrorCodeInvalidProof
}
