package zwave

import (
	"fmt"
	"maps"
	"slices"
)

// Reserved tone ids present in every catalog.
const (
	ToneOff     = 0
	ToneDefault = 255
)

// toneNamePrefixLen is the length of the index prefix ("01 ") that devices
// prepend to tone names in getToneInfo results.
const toneNamePrefixLen = 3

// ToneDefinition is one entry of a node's tone catalog.
type ToneDefinition struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ToneCatalog maps tone id to definition.
type ToneCatalog map[int]ToneDefinition

// NewToneCatalog returns a catalog holding only the reserved tones.
func NewToneCatalog() ToneCatalog {
	return ToneCatalog{
		ToneOff:     {ID: ToneOff, Name: "Off"},
		ToneDefault: {ID: ToneDefault, Name: "Default"},
	}
}

// Clone returns an independent copy of the catalog.
func (c ToneCatalog) Clone() ToneCatalog {
	return maps.Clone(c)
}

// IDs returns the catalog's tone ids in ascending order.
func (c ToneCatalog) IDs() []int {
	return slices.Sorted(maps.Keys(c))
}

// LevelNames returns display names ordered by tone id. Tones with a known
// duration carry a " (Ns)" suffix.
func (c ToneCatalog) LevelNames() []string {
	ids := c.IDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		t := c[id]
		if t.DurationSeconds > 0 {
			names = append(names, fmt.Sprintf("%s (%ds)", t.Name, t.DurationSeconds))
			continue
		}
		names = append(names, t.Name)
	}
	return names
}

// stripTonePrefix removes the fixed index prefix from a device tone name.
func stripTonePrefix(name string) string {
	r := []rune(name)
	if len(r) <= toneNamePrefixLen {
		return ""
	}
	return string(r[toneNamePrefixLen:])
}
