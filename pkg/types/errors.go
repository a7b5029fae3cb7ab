package types

import "errors"

// ErrKind classifies allocation and registration failures so callers can
// branch on intent rather than message text.
type ErrKind int

const (
	ErrKindOverflow         ErrKind = iota // no placement/id satisfies the request within the managed bound
	ErrKindOverlap                         // requested or computed range intersects a live allocation or dispatch entry
	ErrKindUnalignedAddress                // exact-placement request violates the configured alignment
	ErrKindNullRequest                     // zero-size allocation request
	ErrKindDuplicated                      // exact id/address request already in use
	ErrKindInvalid                         // request outside the managed bound, or wrong value kind for the named pool
	ErrKindNonePIORequest                  // wildcard address on a port I/O request
	ErrKindExist                           // duplicate pool name or duplicate device name
	ErrKindNonExist                        // unknown device, or access to unmapped space
)

// Error is a typed error with an optional underlying cause. Two Errors match
// under errors.Is when their kinds are equal, so sentinel comparisons work
// across independently constructed instances.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the ErrKind from err or any error it wraps.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinels commonly returned by the allocator and device-manager packages.
var (
	// ErrOverflow indicates no placement or id exists within the managed bound.
	ErrOverflow = &Error{Kind: ErrKindOverflow, Msg: "resource request overflows the managed bound"}
	// ErrOverlap indicates the requested range intersects an existing allocation.
	ErrOverlap = &Error{Kind: ErrKindOverlap, Msg: "resource overlaps an existing allocation"}
	// ErrUnalignedAddress indicates an exact-placement request that is not aligned.
	ErrUnalignedAddress = &Error{Kind: ErrKindUnalignedAddress, Msg: "requested address is unaligned"}
	// ErrNullRequest indicates a zero-size allocation request.
	ErrNullRequest = &Error{Kind: ErrKindNullRequest, Msg: "zero-size resource request"}
	// ErrDuplicated indicates an exact request for a value already in use.
	ErrDuplicated = &Error{Kind: ErrKindDuplicated, Msg: "requested value is already allocated"}
	// ErrInvalid indicates a request outside the managed bound or of the wrong kind.
	ErrInvalid = &Error{Kind: ErrKindInvalid, Msg: "invalid resource request"}
	// ErrNonePIORequest indicates a port I/O request without a concrete port.
	ErrNonePIORequest = &Error{Kind: ErrKindNonePIORequest, Msg: "port I/O request must name a concrete port"}
	// ErrExist indicates a duplicate pool or device name.
	ErrExist = &Error{Kind: ErrKindExist, Msg: "name is already registered"}
	// ErrNonExist indicates an unknown device or unmapped address.
	ErrNonExist = &Error{Kind: ErrKindNonExist, Msg: "no such device or mapping"}
)
