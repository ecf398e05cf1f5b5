package core

// Error codes reference.
//
// User-facing messages carry a code that users can quote to support staff.
// Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "file too large"
//	FILE002 - File could not be read as a workbook or CSV export
//	          Patterns: "file parse error"
//	FILE003 - Unsupported file type
//	          Patterns: "unsupported file type"
//	FILE004 - Workbook has no sheets
//	          Patterns: "workbook has no sheets"
//	FILE005 - No file in request
//	          Patterns: "no file uploaded"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Server busy with other uploads
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
// # Remote Errors (REM001-REM099)
//
//	REM001 - Remote sync disabled
//	REM002 - Remote store unreachable
//	REM003 - Unsupported snapshot version
//
// # Cache Errors (CCH001-CCH099)
//
//	CCH001 - Local cache write failed
//	CCH002 - Duplicate id
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Record not found
//	REC002 - Invalid record patch
//
// ERR000 is the fallback for anything unmatched. Support staff should check
// application logs for the original technical error.

import (
	"fmt"
	"strings"
)

// UserMessage is a user-facing explanation of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is searched in order; the first case-insensitive substring
// match wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the workbook or remove unused sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload an .xlsx workbook or a .csv export",
			Code:    "FILE003",
		},
	},
	{
		pattern: "workbook has no sheets",
		msg: UserMessage{
			Message: "The workbook has no sheets",
			Action:  "Check that the export completed and try again",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file parse error",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Re-export the QA report and upload it again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file uploaded",
		msg: UserMessage{
			Message: "No file was uploaded",
			Action:  "Attach a workbook in the 'file' field",
			Code:    "FILE005",
		},
	},

	// Upload errors
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "The server is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// Remote errors
	{
		pattern: "remote sync disabled",
		msg: UserMessage{
			Message: "Remote sync is not configured",
			Action:  "Set the remote endpoint and key to enable it",
			Code:    "REM001",
		},
	},
	{
		pattern: "unsupported snapshot schema",
		msg: UserMessage{
			Message: "Stored data was written by a newer version",
			Action:  "Upgrade the service before loading this data",
			Code:    "REM003",
		},
	},
	{
		pattern: "remote store",
		msg: UserMessage{
			Message: "Remote storage is unreachable",
			Action:  "Changes are kept locally and will sync later",
			Code:    "REM002",
		},
	},

	// Cache errors
	{
		pattern: "local cache",
		msg: UserMessage{
			Message: "Changes could not be saved locally",
			Action:  "Check disk space and cache configuration",
			Code:    "CCH001",
		},
	},
	{
		pattern: "duplicate id",
		msg: UserMessage{
			Message: "A report with this ID already exists",
			Action:  "Upload the file again to assign new IDs",
			Code:    "CCH002",
		},
	},

	// Record errors
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "Refresh the list; it may have been removed",
			Code:    "REC001",
		},
	},
	{
		pattern: "invalid patch",
		msg: UserMessage{
			Message: "The update contains invalid values",
			Action:  "Use a known status and issue labels",
			Code:    "REC002",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches the known patterns (case-insensitive) and returns the first
// match, or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(NewFileParseError("q3.xlsx", io.ErrUnexpectedEOF))
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
