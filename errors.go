package unitboot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-unitboot/registry"
)

var (
	// ErrAlreadyBuilt is returned when Build is called on a builder whose
	// runtime factory was already produced.
	ErrAlreadyBuilt = errors.New("unitboot: runtime factory already built")
	// ErrBuilderClosed is returned once a builder failed or was cancelled.
	ErrBuilderClosed = errors.New("unitboot: builder closed")
	// ErrSettingsSealed is returned when merged settings are mutated after
	// phase 1 started.
	ErrSettingsSealed = errors.New("unitboot: merged settings are sealed")
	// ErrNoSchemaCoordinator is returned by GenerateSchema without a coordinator.
	ErrNoSchemaCoordinator = errors.New("unitboot: schema coordinator not configured")
)

// ResourceAcquisitionError reports a registry or service construction failure.
type ResourceAcquisitionError = registry.ResourceAcquisitionError

// ConfigurationError reports settings that cannot be resolved.
type ConfigurationError struct {
	Unit   string
	Key    string
	Value  any
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "unitboot: configuration"
	if e.Unit != "" {
		msg += fmt.Sprintf(" unit=%q", e.Unit)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" key=%q", e.Key)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" value=%q", fmt.Sprint(e.Value))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func configError(unit, key string, value any, reason string) error {
	return &ConfigurationError{Unit: unit, Key: key, Value: value, Reason: reason}
}

// GuardError reports a settings guard that failed or did not hold.
type GuardError struct {
	Guard  string
	Engine string
	Expr   string
	Keys   []string
	Result any
	Err    error
}

func (e *GuardError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("unitboot: settings guard %q (%s) failed: %v", e.Guard, e.Engine, e.Err)
	}
	if len(e.Keys) > 0 {
		return fmt.Sprintf("unitboot: settings guard %q (%s) %s returned %v reading %s", e.Guard, e.Engine, describeExpression(e.Expr), e.Result, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("unitboot: settings guard %q (%s) %s returned %v", e.Guard, e.Engine, describeExpression(e.Expr), e.Result)
}

func (e *GuardError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
