package registry

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned when a closed registry is asked for services.
var ErrRegistryClosed = errors.New("unitboot: registry closed")

// ResourceAcquisitionError reports a failure to build a registry or to
// acquire a service from it.
type ResourceAcquisitionError struct {
	Role string
	Op   string
	Err  error
}

func (e *ResourceAcquisitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	role := e.Role
	if role == "" {
		role = "<registry>"
	}
	return fmt.Sprintf("unitboot: %s %s: %v", e.Op, role, e.Err)
}

func (e *ResourceAcquisitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClassLoadingError reports a class reference that no loader could resolve
// or instantiate.
type ClassLoadingError struct {
	Name string
	Err  error
}

func (e *ClassLoadingError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("unitboot: unable to load class %q", e.Name)
	}
	return fmt.Sprintf("unitboot: unable to load class %q: %v", e.Name, e.Err)
}

func (e *ClassLoadingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func acquisitionError(op, role string, err error) error {
	if err == nil {
		return nil
	}
	var acquisition *ResourceAcquisitionError
	if errors.As(err, &acquisition) {
		return err
	}
	return &ResourceAcquisitionError{Role: role, Op: op, Err: err}
}
