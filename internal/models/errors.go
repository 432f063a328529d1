package models

import "fmt"

// ConfigError reports an invalid producer configuration. It is fatal at
// compile time: a producer with a config error never starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid config for %q: %s", e.Field, e.Reason)
}

// GenerationError reports a rule that failed at call time, for example a
// dictionary that became empty. The tick is quarantined and the scheduler
// continues.
type GenerationError struct {
	Field  string
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating field %q: %s", e.Field, e.Reason)
}

// DispatchError reports a failed delivery attempt: sink unreachable,
// serialization failure or dispatch timeout. Recoverable; the record is
// quarantined and the scheduler continues.
type DispatchError struct {
	Sink   SinkType
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch to %s failed: %s: %v", e.Sink, e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch to %s failed: %s", e.Sink, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// StateError reports a control operation that is not valid in the current
// lifecycle state. No state mutation occurs.
type StateError struct {
	Op    string
	State Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
