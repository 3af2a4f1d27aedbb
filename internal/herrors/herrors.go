// Package herrors defines the error kinds shared by every layer of the
// HAL RPC core: framing, transport, correlation, subscription, and
// dispatch. Each kind is a sentinel that callers can match with
// errors.Is, wrapped with context via fmt.Errorf("...: %w", ...).
package herrors

import "errors"

var (
	// ErrInvalidArgument marks a nil/missing required field (e.g. a
	// request envelope with no reqId).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfig marks an unreadable or malformed config/schema file.
	ErrConfig = errors.New("config error")

	// ErrTransport marks a socket create/bind/connect/send/recv failure.
	ErrTransport = errors.New("transport error")

	// ErrParse marks a framing/JSON parse failure.
	ErrParse = errors.New("parse error")

	// ErrTimeout marks a pending slot whose ticker reached zero, or a
	// synchronous publish that exceeded its ceiling.
	ErrTimeout = errors.New("timeout")

	// ErrNotFound marks a missing handler for an action, or no matching
	// pending slot for a reply.
	ErrNotFound = errors.New("not found")

	// ErrSchemaViolation marks a handler reply that failed opt-in
	// schema validation.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrAlreadyRegistered marks a duplicate handler registration.
	ErrAlreadyRegistered = errors.New("already registered")
)
