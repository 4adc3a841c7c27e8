package zwave

import "fmt"

// Level bounds for the volume attribute.
const (
	MinVolume = 0
	MaxVolume = 100
)

// toneLevelStep is the selector step between consecutive tone levels.
const toneLevelStep = 10

// DisplayValue is the user-facing state of one endpoint attribute.
type DisplayValue struct {
	Enabled bool `json:"enabled"`
	Level   int  `json:"level"`
}

// TranslateVolume converts a defaultVolume bus value into a display value.
// Values outside (0, 100] are shown as disabled at level 0.
func TranslateVolume(v int) DisplayValue {
	if v > MinVolume && v <= MaxVolume {
		return DisplayValue{Enabled: true, Level: v}
	}
	return DisplayValue{}
}

// TranslateTone converts a toneId bus value into a selector level.
// Tone 255 (Default) maps to the level (toneCount-1)*10.
func TranslateTone(v, toneCount int) DisplayValue {
	switch v {
	case ToneOff:
		return DisplayValue{}
	case ToneDefault:
		return DisplayValue{Enabled: true, Level: (toneCount - 1) * toneLevelStep}
	default:
		return DisplayValue{Enabled: true, Level: v * toneLevelStep}
	}
}

// Translate dispatches on attribute.
func Translate(attribute string, v, toneCount int) (DisplayValue, error) {
	switch attribute {
	case AttributeVolume:
		return TranslateVolume(v), nil
	case AttributeTone:
		return TranslateTone(v, toneCount), nil
	default:
		return DisplayValue{}, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
}

// CommandValue converts a user level into the bus value written to the
// attribute's set topic. For tones, level (toneCount+1)*10 selects the
// Default tone (255); any other level is floored to a tone id.
func CommandValue(attribute string, level, toneCount int) (int, error) {
	switch attribute {
	case AttributeVolume:
		return level, nil
	case AttributeTone:
		if level == (toneCount+1)*toneLevelStep {
			return ToneDefault, nil
		}
		return level / toneLevelStep, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, attribute)
	}
}
