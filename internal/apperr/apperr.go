// Package apperr defines the error taxonomy shared by every ytplan component.
//
// Three kinds of failure terminate a run:
//
//   - ErrConfiguration: invalid input parameters, detected before any external call.
//   - ErrTransientService: a network or auth failure against YouTube, Google Sheets,
//     Google Drive or the SMTP server. The whole run may be retried.
//   - ErrDataIntegrity: inconsistent identifiers or a malformed sheet. Detected before
//     anything is written.
//
// The typed errors below carry context and match their sentinel with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure kinds.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrTransientService = errors.New("transient service error")
	ErrDataIntegrity    = errors.New("data integrity error")
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string // configuration key, e.g. "daily_capacity"
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// Configf returns a ConfigError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ServiceError wraps a failed call to an external collaborator.
// Use errors.As() to extract the service and operation:
//
//	var svcErr *apperr.ServiceError
//	if errors.As(err, &svcErr) {
//		fmt.Printf("%s %s failed: %v\n", svcErr.Service, svcErr.Op, svcErr.Err)
//	}
type ServiceError struct {
	Service string // "sheets", "drive", "youtube", "smtp", "store"
	Op      string // "read", "write", "share", "format", "send", ...
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransientService.
func (e *ServiceError) Is(target error) bool { return target == ErrTransientService }

// Transient wraps err as a ServiceError. It returns nil when err is nil and
// returns err unchanged when it already is a transient service error.
func Transient(service, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransientService) {
		return err
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

// IntegrityError reports inconsistent data that makes a merge unsafe.
type IntegrityError struct {
	Reason string
	ID     string // offending item identifier, if any
}

func (e *IntegrityError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("integrity: %s: %s", e.Reason, e.ID)
	}
	return "integrity: " + e.Reason
}

// Is reports whether target is ErrDataIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration):
		return 2
	case errors.Is(err, ErrTransientService):
		return 3
	case errors.Is(err, ErrDataIntegrity):
		return 4
	default:
		return 1
	}
}
