// Package apperr defines the error taxonomy of the entity graph engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedKind is returned when an unknown kind reaches the
	// entity factory. The caller must correct its input before retrying.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrInvalidMembership is returned when a reorder does not match the
	// current member set, or a removal names a non-member.
	ErrInvalidMembership = errors.New("invalid membership")

	// ErrDuplicateSelf is returned on an attempt to create a second
	// self entity. The self singleton is load-bearing; this is fatal.
	ErrDuplicateSelf = errors.New("self entity already exists")

	// ErrNotConvertible is returned when converting an entity whose kind
	// (or target kind) the registry flags as non-convertible.
	ErrNotConvertible = errors.New("kind is not convertible")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// RecursiveContainmentError reports an insertion that would make an entity
// an ancestor of itself. The graph is left unchanged.
type RecursiveContainmentError struct {
	Source string // id of the entity being inserted into
	Target string // id of the entity whose insertion would close the cycle
}

func (e *RecursiveContainmentError) Error() string {
	return fmt.Sprintf("recursive containment: inserting %s into %s would create a cycle", e.Target, e.Source)
}

// IsRecursiveContainment reports whether err is a RecursiveContainmentError.
func IsRecursiveContainment(err error) bool {
	var rce *RecursiveContainmentError
	return errors.As(err, &rce)
}
