// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that a transactional re-check found
// the operation no longer permitted, while ErrConflict signals that a
// write collided with existing dependent state (e.g. accepting an
// invitation to a team the user already belongs to). Not-found is not
// a sentinel of its own: repositories pass sql.ErrNoRows through
// unchanged and handlers translate it at the boundary.
package repository

import "errors"

// ErrForbidden is returned when a check inside a transaction discovers
// the operation is no longer allowed, such as accepting an invitation
// that was toggled off or ran out its TTL after the handler's own
// checks passed. Handlers should translate this into an HTTP 400/403
// response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as inserting a team membership that already
// exists or submitting a member list that references unknown users.
// Handlers should translate this into an HTTP 400/409 response.
var ErrConflict = errors.New("conflict")
