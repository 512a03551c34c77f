package ft

import "errors"

// Domain failures surfaced to callers. Every failure mode maps to a distinct
// sentinel so a presentation layer can render a specific message; services
// wrap these with fmt.Errorf("...: %w", ...) and callers check errors.Is.
var (
	// ErrNotFound means the referenced node or version is absent or soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrReservedName means the name "root" was used on a non-root node,
	// or a rename of the root was attempted.
	ErrReservedName = errors.New("directory name 'root' is reserved")

	// ErrCyclicMove means the destination of a directory move lies inside
	// the moved directory's own subtree (or is the directory itself).
	ErrCyclicMove = errors.New("destination is inside the moved directory")

	// ErrParentNotFound means a directory or file referenced a parent
	// directory that does not resolve to a live record.
	ErrParentNotFound = errors.New("parent directory not found")

	// ErrTokenInvalid means a signed-URL token could not be parsed or its
	// signature did not verify.
	ErrTokenInvalid = errors.New("signed url token invalid")

	// ErrOperationMismatch means a token was redeemed for a different
	// operation than it was issued for.
	ErrOperationMismatch = errors.New("signed url operation mismatch")

	// ErrTokenExpired means a token was redeemed after its expiry.
	ErrTokenExpired = errors.New("signed url token expired")

	// ErrStoreUnconfigured means no object-store backend could be resolved
	// from configuration.
	ErrStoreUnconfigured = errors.New("object store not configured")

	// ErrIOFailure wraps blob read/write and network failures. The core
	// never retries these; retry policy belongs to the caller.
	ErrIOFailure = errors.New("object store i/o failure")
)
