package soundtouch

import (
	"errors"
	"fmt"
)

var (
	// ErrContentItemNotPresetable is returned when a non-presetable item is stored as a preset.
	ErrContentItemNotPresetable = errors.New("content item is not presetable")
	// ErrNoPresetFound is returned when no preset is stored under the requested id.
	ErrNoPresetFound = errors.New("no preset found")
	// ErrPresetPersistence wraps failures writing the preset file.
	ErrPresetPersistence = errors.New("preset persistence failed")
	// ErrInvalidPresetID is returned for preset ids below 1.
	ErrInvalidPresetID = errors.New("preset id must be positive")
	// ErrReservedPresetID is returned when a user tries to store into a hardware slot.
	ErrReservedPresetID = errors.New("preset ids 1-6 are reserved for hardware presets")
	// ErrNoContentItem is returned when an operation needs a current content item.
	ErrNoContentItem = errors.New("no content item is playing")

	// ErrModeUnavailable is returned when a source is not offered by the device.
	ErrModeUnavailable = errors.New("operation mode not available")
	// ErrNoPresetForMode is returned when a preset-backed mode has no matching preset.
	ErrNoPresetForMode = errors.New("no preset stored for operation mode")
	// ErrNoInternetRadioPresetFound is a ErrNoPresetForMode for INTERNET_RADIO.
	ErrNoInternetRadioPresetFound = fmt.Errorf("%w: no internet radio preset found", ErrNoPresetForMode)
	// ErrNoStoredMusicPresetFound is a ErrNoPresetForMode for STORED_MUSIC.
	ErrNoStoredMusicPresetFound = fmt.Errorf("%w: no stored music preset found", ErrNoPresetForMode)

	// ErrBassUnsupported is returned by SetBass on devices without bass control.
	ErrBassUnsupported = errors.New("bass is not supported by this device")
	// ErrUnknownPlayerCommand is returned for player commands other than PLAY, PAUSE, NEXT, PREVIOUS.
	ErrUnknownPlayerCommand = errors.New("unknown player command")
	// ErrUnknownRemoteKey is returned when a key name is not a remote key.
	ErrUnknownRemoteKey = errors.New("unknown remote key")

	// ErrDeviceNotFound is returned by registries that cannot resolve an identifier.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrAlreadyZoneMember is returned when adding a device that is already a member.
	ErrAlreadyZoneMember = errors.New("device is already a zone member")
	// ErrNotZoneMember is returned when removing a device that is not a member.
	ErrNotZoneMember = errors.New("device is not a zone member")
	// ErrZoneSelf is returned when a device is added to its own zone.
	ErrZoneSelf = errors.New("device cannot join its own zone")
)

// PresetError carries the preset id for preset failures.
type PresetError struct {
	ID  int
	Err error
}

func (e *PresetError) Error() string {
	return fmt.Sprintf("preset %d: %v", e.ID, e.Err)
}

func (e *PresetError) Unwrap() error {
	return e.Err
}
