package relationaldb

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for different categories of database errors
var (
	// Configuration errors
	ErrMissingHost            = errors.New("database host is required")
	ErrMissingDatabase        = errors.New("database name is required")
	ErrMissingUsername        = errors.New("database username is required")
	ErrInvalidPort            = errors.New("invalid database port")
	ErrInvalidDriver          = errors.New("invalid database driver")
	ErrInvalidMaxOpenConns    = errors.New("max open connections must be >= 0")
	ErrInvalidMaxIdleConns    = errors.New("max idle connections must be >= 0")
	ErrMaxIdleExceedsMaxOpen  = errors.New("max idle connections cannot exceed max open connections")
	ErrInvalidTimeout         = errors.New("timeout must be positive")
	ErrInvalidConnMaxLifetime = errors.New("connection max lifetime must be >= 0")
	ErrInvalidConnMaxIdleTime = errors.New("connection max idle time must be >= 0")
	ErrInvalidBusyTimeout     = errors.New("busy timeout must be >= 0")

	// Connection errors
	ErrDatabaseClosed   = errors.New("database connection is closed")
	ErrConnectionFailed = errors.New("failed to connect to database")

	// Transaction errors
	ErrTransactionClosed       = errors.New("transaction is closed")
	ErrTransactionCommitFailed = errors.New("transaction commit failed")

	// Data errors
	ErrNotFound          = errors.New("record not found")
	ErrRoundNotFound     = errors.New("round not found")
	ErrSystemNotFound    = errors.New("system state not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrInvalidDataFormat = errors.New("invalid data format")
)

// ErrorType represents different categories of database errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeData
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeConnection:
		return "connection"
	case ErrorTypeTransaction:
		return "transaction"
	case ErrorTypeData:
		return "data"
	case ErrorTypeConstraint:
		return "constraint"
	case ErrorTypeQuery:
		return "query"
	case ErrorTypeSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// DatabaseError provides detailed information about database errors
type DatabaseError struct {
	Type      ErrorType              `json:"type"`
	Operation string                 `json:"operation"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"cause,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target
func (e *DatabaseError) Is(target error) bool {
	if target == nil {
		return false
	}

	if dbErr, ok := target.(*DatabaseError); ok {
		return e.Message == dbErr.Message && e.Type == dbErr.Type
	}

	switch target {
	case ErrNotFound:
		return e.Type == ErrorTypeData && strings.HasSuffix(e.Code, "NOT_FOUND")
	case ErrRoundNotFound:
		return e.Type == ErrorTypeData && e.Code == "ROUND_NOT_FOUND"
	case ErrSystemNotFound:
		return e.Type == ErrorTypeData && e.Code == "SYSTEM_NOT_FOUND"
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection && e.Code == "CONNECTION_FAILED"
	case ErrTransactionClosed:
		return e.Type == ErrorTypeTransaction && e.Code == "TRANSACTION_CLOSED"
	case ErrDuplicateEntry:
		return e.Type == ErrorTypeConstraint && e.Code == "DUPLICATE_ENTRY"
	}

	return false
}

// WithDetail adds a detail to the error
func (e *DatabaseError) WithDetail(key string, value interface{}) *DatabaseError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCode sets the error code
func (e *DatabaseError) WithCode(code string) *DatabaseError {
	e.Code = code
	return e
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(errorType ErrorType, operation, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableError(errorType, cause),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConnection, operation, message, cause)
}

// NewTransactionError creates a transaction error
func NewTransactionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeTransaction, operation, message, cause)
}

// NewDataError creates a data error
func NewDataError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeData, operation, message, cause)
}

// NewNotFoundError creates a data error matching ErrNotFound.
func NewNotFoundError(operation, what string) *DatabaseError {
	code := strings.ToUpper(strings.ReplaceAll(what, " ", "_")) + "_NOT_FOUND"
	return NewDataError(operation, what+" not found", nil).WithCode(code)
}

// NewConstraintError creates a constraint error
func NewConstraintError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConstraint, operation, message, cause)
}

// NewQueryError creates a query error
func NewQueryError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeQuery, operation, message, cause)
}

// NewSchemaError creates a schema error
func NewSchemaError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeSchema, operation, message, cause)
}

// isRetryableError determines if an error is retryable based on its type and cause
func isRetryableError(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeTransaction, ErrorTypeQuery:
		return cause != nil && hasRetryablePattern(cause.Error())
	default:
		return false
	}
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"database is locked",
	"deadlock",
	"timeout",
	"busy",
	"could not serialize",
}

func hasRetryablePattern(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Type == ErrorTypeConnection
}

// IsDataError checks if an error is a data error
func IsDataError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Type == ErrorTypeData
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Retryable
	}
	return hasRetryablePattern(err.Error())
}

// WrapError wraps an existing error with database error context
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		newErr := *dbErr
		newErr.Operation = operation
		return &newErr
	}

	msg := strings.ToLower(err.Error())
	var errorType ErrorType
	switch {
	case strings.Contains(msg, "constraint") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique"):
		errorType = ErrorTypeConstraint
	case strings.Contains(msg, "connection") || strings.Contains(msg, "connect"):
		errorType = ErrorTypeConnection
	case strings.Contains(msg, "transaction") || strings.Contains(msg, "deadlock"):
		errorType = ErrorTypeTransaction
	case strings.Contains(msg, "no rows"):
		errorType = ErrorTypeData
	case strings.Contains(msg, "syntax"):
		errorType = ErrorTypeQuery
	case strings.Contains(msg, "table") || strings.Contains(msg, "column"):
		errorType = ErrorTypeSchema
	default:
		errorType = ErrorTypeUnknown
	}

	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
		Retryable: errorType == ErrorTypeConnection || hasRetryablePattern(msg),
	}
}
