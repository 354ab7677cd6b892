package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the part of a run an error comes from
type ErrorCategory string

const (
	// Errors that end the run
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryData          ErrorCategory = "DATA"
	ErrorCategoryStrategy      ErrorCategory = "STRATEGY"
	ErrorCategoryBacktest      ErrorCategory = "BACKTEST"

	// Errors the caller logs and continues past
	ErrorCategoryReport     ErrorCategory = "REPORT"
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
)

// OptimizerError represents a categorized error with context
type OptimizerError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *OptimizerError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *OptimizerError) Unwrap() error {
	return e.Underlying
}

// IsFatal returns whether this error should stop the run
func (e *OptimizerError) IsFatal() bool {
	switch e.Category {
	case ErrorCategoryReport, ErrorCategoryValidation:
		return false
	default:
		return true
	}
}

// New creates a new categorized error
func New(category ErrorCategory, component, operation, message string) *OptimizerError {
	return &OptimizerError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with optimizer context
func Wrap(err error, category ErrorCategory, component, operation string) *OptimizerError {
	if err == nil {
		return nil
	}

	return &OptimizerError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *OptimizerError) WithContext(key string, value interface{}) *OptimizerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// CategoryOf returns the category of the first OptimizerError in the chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var optErr *OptimizerError
	if errors.As(err, &optErr) {
		return optErr.Category, true
	}
	return "", false
}

// IsFatal reports whether err should stop the run. Uncategorized errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var optErr *OptimizerError
	if errors.As(err, &optErr) {
		return optErr.IsFatal()
	}
	return true
}

// Common error constructors
func NewConfigurationError(component, operation, message string) *OptimizerError {
	return New(ErrorCategoryConfiguration, component, operation, message)
}

func NewValidationError(component, operation, message string) *OptimizerError {
	return New(ErrorCategoryValidation, component, operation, message)
}

func NewDataError(component, operation string, err error) *OptimizerError {
	return Wrap(err, ErrorCategoryData, component, operation)
}

func NewStrategyError(component, operation string, err error) *OptimizerError {
	return Wrap(err, ErrorCategoryStrategy, component, operation)
}

func NewBacktestError(component, operation string, err error) *OptimizerError {
	return Wrap(err, ErrorCategoryBacktest, component, operation)
}

func NewReportError(component, operation string, err error) *OptimizerError {
	return Wrap(err, ErrorCategoryReport, component, operation)
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*OptimizerError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*OptimizerError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics. Uncategorized errors count as FATAL.
func (es *ErrorStats) RecordError(err error) {
	var optErr *OptimizerError
	if !errors.As(err, &optErr) {
		optErr = Wrap(err, ErrorCategoryFatal, "unknown", "unknown")
	}
	es.TotalErrors++
	es.ErrorsByCategory[optErr.Category]++

	es.RecentErrors = append(es.RecentErrors, optErr)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the error rate for a specific category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}
