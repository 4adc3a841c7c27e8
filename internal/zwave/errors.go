package zwave

import "errors"

// Domain errors for the zwave package.
var (
	// ErrMalformedPayload is returned when a bus payload is not the JSON shape
	// expected for its topic.
	ErrMalformedPayload = errors.New("zwave: malformed payload")

	// ErrNodeNotFound is returned when a node id has not been discovered.
	ErrNodeNotFound = errors.New("zwave: node not found")

	// ErrEndpointNotFound is returned when a node has no such sound switch endpoint.
	ErrEndpointNotFound = errors.New("zwave: endpoint not found")

	// ErrUnknownAttribute is returned for attributes other than defaultVolume and toneId.
	ErrUnknownAttribute = errors.New("zwave: unknown attribute")

	// ErrInvalidExternalID is returned when an external id is not "{node}_{endpoint}_{attribute}".
	ErrInvalidExternalID = errors.New("zwave: invalid external id")
)
