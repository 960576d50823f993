package soundtouch

import (
	"fmt"
	"strings"
)

// CapabilityBass is the capability name for bass control. Source
// capabilities use the OperationMode names.
const CapabilityBass = "BASS"

// Capabilities maps capability names to availability. Unknown names are
// unavailable.
type Capabilities map[string]bool

// IsAvailable reports whether the named capability is available.
func (c Capabilities) IsAvailable(name string) bool {
	return c[normalizeCapability(name)]
}

func normalizeCapability(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// PresetSource lists presets in the order they should be searched.
type PresetSource interface {
	All() []Preset
}

// ContentItemFactory builds the content item that selects an operation mode.
type ContentItemFactory struct {
	presets PresetSource
}

// NewContentItemFactory creates a factory that searches presets for
// preset-backed modes.
func NewContentItemFactory(presets PresetSource) *ContentItemFactory {
	return &ContentItemFactory{presets: presets}
}

// Resolve returns the item to select for mode, given the device capabilities.
func (f *ContentItemFactory) Resolve(mode OperationMode, caps Capabilities) (ContentItem, error) {
	switch mode {
	case ModeAUX:
		return f.synthesized(mode, caps, ContentItem{Source: sourceAUX, SourceAccount: "AUX"})
	case ModeAUX1, ModeAUX2, ModeAUX3:
		return f.synthesized(mode, caps, ContentItem{Source: sourceAUX, SourceAccount: string(mode)})
	case ModeBluetooth:
		return f.synthesized(mode, caps, ContentItem{Source: "BLUETOOTH"})
	case ModeHDMI1:
		return f.synthesized(mode, caps, ContentItem{Source: sourceProduct, SourceAccount: accountHDMI1})
	case ModeTV:
		return f.synthesized(mode, caps, ContentItem{Source: sourceProduct, SourceAccount: accountTV})
	case ModeInternetRadio:
		return f.fromPresets(mode, caps, ErrNoInternetRadioPresetFound)
	case ModeStoredMusic:
		return f.fromPresets(mode, caps, ErrNoStoredMusicPresetFound)
	}
	return ContentItem{}, fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
}

func (f *ContentItemFactory) synthesized(mode OperationMode, caps Capabilities, item ContentItem) (ContentItem, error) {
	if !caps.IsAvailable(string(mode)) {
		return ContentItem{}, fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
	}
	return item, nil
}

func (f *ContentItemFactory) fromPresets(mode OperationMode, caps Capabilities, notFound error) (ContentItem, error) {
	if !caps.IsAvailable(string(mode)) {
		return ContentItem{}, fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
	}
	if f.presets != nil {
		for _, preset := range f.presets.All() {
			if preset.Item.OperationMode() == mode {
				return preset.Item, nil
			}
		}
	}
	return ContentItem{}, notFound
}
