package gateway

import "errors"

// Sentinel errors for the gateway core. Callers use errors.Is to map them
// onto wire-level failure reports.
var (
	// ErrUnauthorized is returned by Registry.Admit when the handshake token
	// is missing or fails verification. The connection is refused — it never
	// enters the registry.
	ErrUnauthorized = errors.New("gateway: unauthorized")

	// ErrUnauthenticated is returned when an operation requires an attached
	// identity and the connection has none. The operation is refused but the
	// connection stays open.
	ErrUnauthenticated = errors.New("gateway: identity required")

	// ErrEmptyMessage is returned by Pipeline.Submit for empty content.
	ErrEmptyMessage = errors.New("gateway: message content is empty")

	// ErrNoRoom is returned when an operation names no room.
	ErrNoRoom = errors.New("gateway: room id is required")

	// ErrUnknownConnection is returned when an event references a connection
	// id that is not (or no longer) admitted.
	ErrUnknownConnection = errors.New("gateway: unknown connection")
)
