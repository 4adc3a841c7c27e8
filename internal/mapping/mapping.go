package mapping

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// Handle pool bounds.
const (
	MinHandle = 1
	MaxHandle = 254
)

// Key identifies one endpoint attribute.
type Key struct {
	NodeID     int
	EndpointID int
	Attribute  string
}

// ExternalID returns the persisted identity of the key, e.g. "12_1_toneId".
func (k Key) ExternalID() string {
	return zwave.ExternalID(k.NodeID, k.EndpointID, k.Attribute)
}

// ParseKey parses an external id back into a Key.
func ParseKey(externalID string) (Key, error) {
	node, ep, attr, err := zwave.ParseExternalID(externalID)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return Key{NodeID: node, EndpointID: ep, Attribute: attr}, nil
}

// Entry is one persisted mapping record.
type Entry struct {
	ExternalID string `json:"external_id"`
	NodeID     int    `json:"node_id"`
	EndpointID int    `json:"endpoint_id"`
	Attribute  string `json:"attribute"`
	Handle     int    `json:"handle"`
}

// Key returns the entry's endpoint attribute key.
func (e Entry) Key() Key {
	return Key{NodeID: e.NodeID, EndpointID: e.EndpointID, Attribute: e.Attribute}
}

// Validate checks the entry's handle range and that its external id matches
// its fields.
func (e Entry) Validate() error {
	if e.Handle < MinHandle || e.Handle > MaxHandle {
		return fmt.Errorf("%w: handle %d out of range [%d,%d]", ErrInvalidEntry, e.Handle, MinHandle, MaxHandle)
	}
	if e.Attribute == "" {
		return fmt.Errorf("%w: %q has no attribute", ErrInvalidEntry, e.ExternalID)
	}
	if e.ExternalID != e.Key().ExternalID() {
		return fmt.Errorf("%w: external id %q does not match %s", ErrInvalidEntry, e.ExternalID, e.Key().ExternalID())
	}
	return nil
}

// validateSet checks every entry and that handles and external ids are unique.
func validateSet(entries []Entry) error {
	handles := make(map[int]string, len(entries))
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		if other, ok := handles[e.Handle]; ok {
			return fmt.Errorf("%w: handle %d shared by %q and %q", ErrInvalidEntry, e.Handle, other, e.ExternalID)
		}
		if _, ok := ids[e.ExternalID]; ok {
			return fmt.Errorf("%w: duplicate external id %q", ErrInvalidEntry, e.ExternalID)
		}
		handles[e.Handle] = e.ExternalID
		ids[e.ExternalID] = struct{}{}
	}
	return nil
}

// Store persists the complete mapping.
type Store interface {
	// LoadMapping returns every persisted entry.
	LoadMapping(ctx context.Context) ([]Entry, error)

	// SaveMapping replaces the persisted mapping with entries.
	SaveMapping(ctx context.Context, entries []Entry) error
}
