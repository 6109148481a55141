// Package singleton decides whether an invocation becomes the one server
// instance or a client of it.
//
// A Lease is acquired on a well-known system-wide identifier. Exactly one
// process holds an owning lease at a time; every other acquisition gets a
// non-owning lease. Failing to create the underlying OS primitive is an error,
// never a guess about ownership.
package singleton

import (
	"sync"

	"github.com/core-tools/hsu-sysd/pkg/errors"
)

// Lease is the result of Acquire. Release it on every exit path; With does
// that for you.
type Lease struct {
	id      string
	owner   bool
	release func() error
	once    sync.Once
	err     error
}

// Acquire creates or opens the system-wide lock named id.
func Acquire(id string) (*Lease, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	owner, release, err := acquire(id)
	if err != nil {
		return nil, errors.NewInternalError("failed to create singleton lock", err).WithContext("id", id)
	}

	return &Lease{
		id:      id,
		owner:   owner,
		release: release,
	}, nil
}

// With acquires the lease, runs fn and releases the lease, also when fn panics.
func With(id string, fn func(lease *Lease) error) error {
	lease, err := Acquire(id)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(lease)
}

func (l *Lease) ID() string {
	return l.id
}

// Owner reports whether this process is the single server instance.
func (l *Lease) Owner() bool {
	return l.owner
}

// Release unlocks and closes the primitive. Safe to call more than once.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.err = l.release()
	})
	return l.err
}

// ValidateID rejects identifiers that cannot name a lock file or kernel object.
func ValidateID(id string) error {
	if id == "" {
		return errors.NewValidationError("singleton id cannot be empty", nil)
	}
	if len(id) > 200 {
		return errors.NewValidationError("singleton id cannot exceed 200 characters", nil)
	}
	for _, char := range id {
		if char == '/' || char == '\\' || char == 0 {
			return errors.NewValidationError("singleton id contains a path separator", nil).WithContext("id", id)
		}
	}
	return nil
}
