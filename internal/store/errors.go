// Package store owns the POS aggregate: tables and kitchen tickets,
// held in memory by a single writer and mirrored to one JSON document
// on every successful mutation. Sentinel errors let handlers map
// failures onto HTTP responses without inspecting strings.
package store

import "errors"

// ErrTicketNotFound is returned when a status update targets a ticket
// id that is not in the live collection. Handlers translate this into
// a 404. Deleting a missing ticket is deliberately not an error.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrTableNotFound is returned when a patch targets a table id outside
// the bootstrap set. Handlers translate this into a 404.
var ErrTableNotFound = errors.New("table not found")

// ErrBadPatch is returned when a table patch body cannot be applied
// (wrong types for known fields). Handlers translate this into a 400.
var ErrBadPatch = errors.New("invalid table patch")
