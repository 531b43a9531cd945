package imposition

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("imposition: invalid configuration")
	// ErrPrecondition matches every *PreconditionError.
	ErrPrecondition = errors.New("imposition: precondition violated")
)

// ConfigError reports an unusable configuration or page count. It is fatal.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// PreconditionError reports a caller bug, such as stepping an exhausted sequence.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated: %s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
