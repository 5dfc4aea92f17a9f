package foreman

import (
	"errors"
	"fmt"

	"github.com/TheBitDrifter/bark"
)

// AccessConflictError reports two live tokens overlapping illegally, or a
// unit fetching something it never declared. It signals a logic defect.
type AccessConflictError struct {
	ID         Identity
	Held       Mode
	Requested  Mode
	Unit       string
	Undeclared bool
}

func (e AccessConflictError) Error() string {
	if e.Undeclared {
		return fmt.Sprintf("access conflict: unit %q requested %s access to undeclared %v", e.Unit, e.Requested, e.ID)
	}
	return fmt.Sprintf("access conflict: unit %q requested %s access to %v while a %s token is live", e.Unit, e.Requested, e.ID, e.Held)
}

// MissingResourceError reports a strict fetch of something never inserted
// or registered.
type MissingResourceError struct {
	ID Identity
}

func (e MissingResourceError) Error() string {
	return fmt.Sprintf("missing %v", e.ID)
}

// StaleEntityError reports an operation on a handle whose generation is no
// longer current. It is ordinary control flow.
type StaleEntityError struct {
	Entity Entity
}

func (e StaleEntityError) Error() string {
	return fmt.Sprintf("stale entity %v", e.Entity)
}

type UnorderedConflictError struct {
	First, Second string
	ID            Identity
}

func (e UnorderedConflictError) Error() string {
	return fmt.Sprintf("units %q and %q conflict on %v but no dependency orders them", e.First, e.Second, e.ID)
}

type UnknownDependencyError struct {
	Unit, Dependency string
}

func (e UnknownDependencyError) Error() string {
	return fmt.Sprintf("unit %q depends on %q, which is not registered before it", e.Unit, e.Dependency)
}

type DuplicateUnitError struct {
	Name string
}

func (e DuplicateUnitError) Error() string {
	return fmt.Sprintf("unit %q is registered twice", e.Name)
}

type TooManyIdentitiesError struct {
	Identity Identity
}

func (e TooManyIdentitiesError) Error() string {
	return fmt.Sprintf("no access bit left for %v (limit %d)", e.Identity, MaxIdentities)
}

// SystemError carries the failure of one unit.
type SystemError struct {
	Unit string
	Err  error
}

func (e SystemError) Error() string {
	return fmt.Sprintf("unit %q failed: %v", e.Unit, e.Err)
}

func (e SystemError) Unwrap() error {
	return e.Err
}

// SystemPanicError carries a recovered unit panic and the stack it was
// raised on.
type SystemPanicError struct {
	Unit  string
	Value any
	Trace bark.Trace
}

func (e SystemPanicError) Error() string {
	return fmt.Sprintf("unit %q panicked: %v", e.Unit, e.Value)
}

type NotTrackedError struct {
	ID Identity
}

func (e NotTrackedError) Error() string {
	return fmt.Sprintf("%v is not change-tracked", e.ID)
}

type UnknownReaderError struct {
	Reader ReaderID
}

func (e UnknownReaderError) Error() string {
	return fmt.Sprintf("reader %d is not registered", e.Reader)
}

// ReaderLaggedError reports events a reader lost to a bounded log. The
// reader has been moved forward and should resynchronize from the storage.
type ReaderLaggedError struct {
	Reader ReaderID
	Missed uint64
}

func (e ReaderLaggedError) Error() string {
	return fmt.Sprintf("reader %d fell behind and missed %d events", e.Reader, e.Missed)
}

type DispatchInProgressError struct{}

func (e DispatchInProgressError) Error() string {
	return "dispatch is already in progress"
}

// IsFatal reports whether err carries an access conflict or a missing
// resource, the two errors that indicate a programming defect.
func IsFatal(err error) bool {
	var conflict AccessConflictError
	var missing MissingResourceError
	return errors.As(err, &conflict) || errors.As(err, &missing)
}
