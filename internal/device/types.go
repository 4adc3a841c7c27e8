package device

import (
	"context"
	"slices"
	"time"
)

// Kind says how the host renders a device.
type Kind string

const (
	// KindVolume is a 0-100 slider bound to an endpoint's default volume.
	KindVolume Kind = "volume"

	// KindTone is a selector whose levels step by ten, one per tone.
	KindTone Kind = "tone"
)

// AllKinds returns every valid Kind.
func AllKinds() []Kind {
	return []Kind{KindVolume, KindTone}
}

// Device is a host-side device bound to one endpoint attribute.
type Device struct {
	Handle     int       `json:"handle"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Enabled    bool      `json:"enabled"`
	Level      int       `json:"level"`
	LevelNames []string  `json:"level_names,omitempty"`
	NodeID     int       `json:"node_id"`
	EndpointID int       `json:"endpoint_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	c := *d
	c.LevelNames = slices.Clone(d.LevelNames)
	return &c
}

// DeviceUpdate is what the bridge knows about a device after a sync.
type DeviceUpdate struct {
	Handle     int
	ExternalID string
	Name       string
	Kind       Kind
	Enabled    bool
	Level      int
	LevelNames []string
	NodeID     int
	EndpointID int
}

// sameAs reports whether applying u to d would change nothing.
func (u DeviceUpdate) sameAs(d *Device) bool {
	return d.ExternalID == u.ExternalID &&
		d.Name == u.Name &&
		d.Kind == u.Kind &&
		d.Enabled == u.Enabled &&
		d.Level == u.Level &&
		slices.Equal(d.LevelNames, u.LevelNames) &&
		d.NodeID == u.NodeID &&
		d.EndpointID == u.EndpointID
}

// apply copies u onto d, leaving timestamps alone.
func (u DeviceUpdate) apply(d *Device) {
	d.Handle = u.Handle
	d.ExternalID = u.ExternalID
	d.Name = u.Name
	d.Kind = u.Kind
	d.Enabled = u.Enabled
	d.Level = u.Level
	d.LevelNames = slices.Clone(u.LevelNames)
	d.NodeID = u.NodeID
	d.EndpointID = u.EndpointID
}

// Action is a user command verb.
type Action string

const (
	ActionSetLevel Action = "set_level"
	ActionOn       Action = "on"
	ActionOff      Action = "off"
)

// Command is a user request against a device.
type Command struct {
	Action Action `json:"action"`
	Level  int    `json:"level,omitempty"`
}

// CommandHandler delivers a resolved command to the bus side.
type CommandHandler func(ctx context.Context, handle int, cmd Command) error

// RemoveHandler is told when a device has been deleted from the host.
type RemoveHandler func(ctx context.Context, handle int) error
