package authz

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("authz: not found")
	ErrInvalidInput = errors.New("authz: invalid input")

	// ErrIntegrity marks corrupted or conflicting graph state: management
	// cycles, dangling references, double links. Distinct from a plain denial,
	// which is always a boolean false and never an error.
	ErrIntegrity = errors.New("authz: data integrity violation")

	// ErrNotAdmin is returned when a non-admin principal invokes an
	// administrative mutator, so callers can tell "you can't change the org
	// chart" apart from "you can't see this".
	ErrNotAdmin = errors.New("authz: not authorized to administer")
)

// errOrgCodeNotFound keeps a stable message for bulk-assign item errors.
var errOrgCodeNotFound = fmt.Errorf("%w: org code not found", ErrIntegrity)

func cycleError(code string) error {
	return fmt.Errorf("%w: management cycle detected at %s", ErrIntegrity, code)
}

func depthError(code string) error {
	return fmt.Errorf("%w: traversal below %s exceeded depth %d", ErrIntegrity, code, MaxTraversalDepth)
}
