package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFile is returned for inputs that are neither a workbook nor CSV.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNoSheets is returned for a workbook without any worksheet.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrRemoteDisabled is returned by remote-only operations in local-only mode.
	ErrRemoteDisabled = errors.New("remote sync disabled")

	// ErrInvalidPatch is returned for a record patch with an unknown status or
	// issue label.
	ErrInvalidPatch = errors.New("invalid patch")

	// ErrRecordNotFound is returned by lookups that require an existing record.
	ErrRecordNotFound = errors.New("record not found")
)

// FileParseError reports that an uploaded file could not be read. No state
// is changed when it is returned.
type FileParseError struct {
	Filename string
	Err      error
}

func (e *FileParseError) Error() string {
	return fmt.Sprintf("file parse error: %s: %v", e.Filename, e.Err)
}

func (e *FileParseError) Unwrap() error {
	return e.Err
}

// NewFileParseError wraps err for filename.
func NewFileParseError(filename string, err error) *FileParseError {
	return &FileParseError{Filename: filename, Err: err}
}

// IsFileParseError reports whether err is or wraps a *FileParseError.
func IsFileParseError(err error) bool {
	var pe *FileParseError
	return errors.As(err, &pe)
}

// CacheError reports a failed write to the local cache. The in-memory state
// already reflects the change when it is returned.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("local cache %s failed: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
