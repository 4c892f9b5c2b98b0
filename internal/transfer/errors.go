package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFrame  = errors.New("invalid transfer frame")
	ErrFileTooLarge  = errors.New("file exceeds maximum size")
	ErrShortRead     = errors.New("file shorter than declared size")
	ErrSizeMismatch  = errors.New("reassembled size differs from declared size")
	ErrChannelClosed = errors.New("channel closed")
)

type TransferError struct {
	Op   string
	File string
	Err  error
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}
