package cloudsupport

import (
	"errors"
	"fmt"
)

type (
	// ComputeNodeNotDrainedError is returned when VMs would be stopped on a
	// hypervisor that has not been disabled yet
	ComputeNodeNotDrainedError struct {
		Node string
	}

	// MissingParameterError is returned when a required action parameter was
	// not supplied
	MissingParameterError struct {
		Name         string
		Confirmation bool
	}

	// TransientCloudError marks a per-VM failure that can be recorded and
	// skipped without aborting the rest of a batch
	TransientCloudError struct {
		Op  string
		ID  string
		Err error
	}

	// FatalDriverError marks a failure that aborts the whole batch, such as
	// an authentication error or a malformed response
	FatalDriverError struct {
		Op  string
		Err error
	}

	// ConfigError is returned for a missing or unusable credential or
	// configuration file
	ConfigError struct {
		Path   string
		Reason string
		Err    error
	}
)

// ErrNotProvisioner is returned when provisioning is requested from a driver
// that can only list, stop and start servers
var ErrNotProvisioner = errors.New("driver does not support provisioning")

func (e *ComputeNodeNotDrainedError) Error() string {
	return fmt.Sprintf("disable host `%s` before stopping VMs", e.Node)
}

func (e *MissingParameterError) Error() string {
	if e.Confirmation {
		return fmt.Sprintf("%s is a required parameter", e.Name)
	}
	return fmt.Sprintf("parameter %s is missing", e.Name)
}

func (e *TransientCloudError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *TransientCloudError) Unwrap() error {
	return e.Err
}

func (e *FatalDriverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalDriverError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = "invalid configuration"
	}
	if e.Path != "" {
		msg = e.Path + " " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err, or anything it wraps, is a
// TransientCloudError
func IsTransient(err error) bool {
	var t *TransientCloudError
	return errors.As(err, &t)
}

// asFatal wraps err in a FatalDriverError unless it already is one
func asFatal(op string, err error) error {
	var f *FatalDriverError
	if errors.As(err, &f) {
		return err
	}
	return &FatalDriverError{Op: op, Err: err}
}
