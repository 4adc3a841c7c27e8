package soundswitch

import "errors"

// Domain errors for the sound switch bridge.
var (
	// ErrInvalidOptions is returned by NewBridge when a required
	// collaborator is missing.
	ErrInvalidOptions = errors.New("soundswitch: invalid options")

	// ErrGatewayNotReady is returned when a bus command is requested before
	// the gateway's command topic is known.
	ErrGatewayNotReady = errors.New("soundswitch: gateway not discovered")

	// ErrNodeNotReady is returned when a user command targets a node whose
	// tone discovery has not finished.
	ErrNodeNotReady = errors.New("soundswitch: node not ready")

	// ErrPublishFailed is returned when a bus request could not be sent.
	ErrPublishFailed = errors.New("soundswitch: publish failed")

	// ErrSyncFailed is returned when an endpoint could not be pushed to the
	// device registry.
	ErrSyncFailed = errors.New("soundswitch: device sync failed")
)
