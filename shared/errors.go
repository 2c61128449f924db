package shared

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryUpstreamDevice ErrorCategory = "upstream_device"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryDatabase       ErrorCategory = "database"
	ErrorCategoryProcessing     ErrorCategory = "processing"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryInternal       ErrorCategory = "internal"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// HTTPStatus maps the category onto the status code handlers answer with
func (e *ServiceError) HTTPStatus() int {
	switch e.Category {
	case ErrorCategoryValidation:
		return http.StatusBadRequest
	case ErrorCategoryUpstreamDevice, ErrorCategoryNetwork:
		return http.StatusBadGateway
	case ErrorCategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	entry := logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"timestamp":        e.Timestamp,
		"details":          e.Details,
		"underlying_error": e.Cause,
	})

	// Client mistakes are expected traffic, not service faults
	if e.Category == ErrorCategoryValidation {
		entry.Warn("Service error occurred")
		return
	}
	entry.Error("Service error occurred")
}

// AsServiceError extracts a ServiceError from an error chain
func AsServiceError(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries a ServiceError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	serviceErr, ok := AsServiceError(err)
	return ok && serviceErr.Category == category
}

// NewValidationError creates a non-retryable client error
func NewValidationError(code, message, serviceName, operation string) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, code, message, serviceName, operation, false, nil)
}

// NewUpstreamDeviceError creates a retryable error for scanner or backend forwarding failures
func NewUpstreamDeviceError(code, message, serviceName, operation string, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryUpstreamDevice, code, message, serviceName, operation, true, cause)
}

// NewInternalError creates a non-retryable internal failure
func NewInternalError(code, message, serviceName, operation string, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryInternal, code, message, serviceName, operation, false, cause)
}
