package soundtouch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type staticPresets []Preset

func (s staticPresets) All() []Preset { return s }

func TestContentItemFactory_SynthesizedModes(t *testing.T) {
	factory := NewContentItemFactory(nil)
	caps := Capabilities{"AUX1": true, "BLUETOOTH": true, "TV": true, "HDMI1": true}

	item, err := factory.Resolve(ModeAUX1, caps)
	require.NoError(t, err)
	require.Equal(t, "AUX", item.Source)
	require.Equal(t, "AUX1", item.SourceAccount)

	item, err = factory.Resolve(ModeBluetooth, caps)
	require.NoError(t, err)
	require.Equal(t, "BLUETOOTH", item.Source)

	item, err = factory.Resolve(ModeTV, caps)
	require.NoError(t, err)
	require.Equal(t, ModeTV, item.OperationMode())

	item, err = factory.Resolve(ModeHDMI1, caps)
	require.NoError(t, err)
	require.Equal(t, "HDMI_1", item.SourceAccount)
}

func TestContentItemFactory_UnavailableMode(t *testing.T) {
	factory := NewContentItemFactory(nil)

	_, err := factory.Resolve(ModeAUX1, Capabilities{"AUX1": false})
	require.ErrorIs(t, err, ErrModeUnavailable)

	_, err = factory.Resolve(ModeSpotify, Capabilities{"SPOTIFY": true})
	require.ErrorIs(t, err, ErrModeUnavailable)

	_, err = factory.Resolve(ModeInternetRadio, Capabilities{})
	require.ErrorIs(t, err, ErrModeUnavailable)
}

func TestContentItemFactory_NoMatchingPreset(t *testing.T) {
	presets := staticPresets{{ID: 7, Item: ContentItem{Source: "STORED_MUSIC", ItemName: "NAS", Presetable: true}}}
	factory := NewContentItemFactory(presets)
	caps := Capabilities{"INTERNET_RADIO": true, "STORED_MUSIC": true}

	_, err := factory.Resolve(ModeInternetRadio, caps)
	require.ErrorIs(t, err, ErrNoInternetRadioPresetFound)
	require.ErrorIs(t, err, ErrNoPresetForMode)
}

func TestContentItemFactory_FirstPresetInStoreOrder(t *testing.T) {
	store := newTestStore(t, "")
	require.NoError(t, store.Put(9, radioItem("Blues")))
	require.NoError(t, store.Put(7, radioItem("Jazz")))

	factory := NewContentItemFactory(store)
	item, err := factory.Resolve(ModeInternetRadio, Capabilities{"INTERNET_RADIO": true})
	require.NoError(t, err)
	require.Equal(t, "Blues", item.ItemName)
	require.Equal(t, 9, item.PresetID)
}
