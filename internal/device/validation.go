package device

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minHandle     = 1
	maxHandle     = 254
	maxNameLength = 100
	maxVolume     = 100
	levelStep     = 10
)

var validKinds = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		m[k] = struct{}{}
	}
	return m
}()

// ValidateDevice checks the fields the bridge fills in.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if err := ValidateHandle(d.Handle); err != nil {
		return err
	}
	if d.ExternalID == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidDevice)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if _, ok := validKinds[d.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	if d.Level < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, d.Level)
	}
	return nil
}

// ValidateHandle checks that h is inside the host's handle pool.
func ValidateHandle(h int) error {
	if h < minHandle || h > maxHandle {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidHandle, h, minHandle, maxHandle)
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateCommand checks cmd against the device it targets.
func ValidateCommand(d *Device, cmd Command) error {
	switch cmd.Action {
	case ActionOff, ActionOn:
		return nil
	case ActionSetLevel:
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidCommand, cmd.Action)
	}

	if cmd.Level < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, cmd.Level)
	}
	switch d.Kind {
	case KindVolume:
		if cmd.Level > maxVolume {
			return fmt.Errorf("%w: volume %d above %d", ErrInvalidLevel, cmd.Level, maxVolume)
		}
	case KindTone:
		if cmd.Level%levelStep != 0 {
			return fmt.Errorf("%w: tone level %d is not a multiple of %d", ErrInvalidLevel, cmd.Level, levelStep)
		}
		if n := len(d.LevelNames); n > 0 && cmd.Level > (n-1)*levelStep {
			return fmt.Errorf("%w: tone level %d above %d", ErrInvalidLevel, cmd.Level, (n-1)*levelStep)
		}
	}
	return nil
}
