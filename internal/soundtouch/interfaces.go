package soundtouch

// Session is the outbound side of a device connection. SendText does not
// wait for a reply; a send failure is reported back through HandleError.
type Session interface {
	SendText(msg string) error
	HandleError(err error)
}

// ZonePeer is another device that can take part in a zone.
type ZonePeer interface {
	DeviceID() string
	Name() string
	IPAddress() string
	RemoveDeviceFromZone(peer ZonePeer) error
}

// Registry resolves peers by MAC address, name or host, case-insensitively.
type Registry interface {
	Lookup(identifier string) (ZonePeer, error)
}

// Property names a user-facing value published by a device.
type Property string

const (
	PropertyPower                 Property = "power"
	PropertyVolume                Property = "volume"
	PropertyMute                  Property = "mute"
	PropertyBass                  Property = "bass"
	PropertyBassMin               Property = "bass_min"
	PropertyBassMax               Property = "bass_max"
	PropertyBassDefault           Property = "bass_default"
	PropertyOperationMode         Property = "operation_mode"
	PropertyPreset                Property = "preset"
	PropertyPresets               Property = "presets"
	PropertyPlayerControl         Property = "player_control"
	PropertyZoneInfo              Property = "zone_info"
	PropertyDeviceName            Property = "device_name"
	PropertyDeviceType            Property = "device_type"
	PropertyNowPlayingItemName    Property = "now_playing_item_name"
	PropertyNowPlayingAlbum       Property = "now_playing_album"
	PropertyNowPlayingArtwork     Property = "now_playing_artwork"
	PropertyNowPlayingArtist      Property = "now_playing_artist"
	PropertyNowPlayingDescription Property = "now_playing_description"
	PropertyNowPlayingGenre       Property = "now_playing_genre"
	PropertyNowPlayingPlayStatus  Property = "now_playing_play_status"
	PropertyNowPlayingStation     Property = "now_playing_station_name"
	PropertyNowPlayingLocation    Property = "now_playing_station_location"
	PropertyNowPlayingTrack       Property = "now_playing_track"
	PropertyRateEnabled           Property = "rate_enabled"
	PropertySkipEnabled           Property = "skip_enabled"
	PropertySkipPreviousEnabled   Property = "skip_previous_enabled"
)

// nowPlayingProperties are cleared when the playing source changes.
var nowPlayingProperties = []Property{
	PropertyNowPlayingItemName,
	PropertyNowPlayingAlbum,
	PropertyNowPlayingArtwork,
	PropertyNowPlayingArtist,
	PropertyNowPlayingDescription,
	PropertyNowPlayingGenre,
	PropertyNowPlayingPlayStatus,
	PropertyNowPlayingStation,
	PropertyNowPlayingLocation,
	PropertyNowPlayingTrack,
}

// Listener receives property updates from devices.
type Listener interface {
	UpdateProperty(deviceID string, property Property, value any)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(deviceID string, property Property, value any)

// UpdateProperty implements Listener.
func (f ListenerFunc) UpdateProperty(deviceID string, property Property, value any) {
	f(deviceID, property, value)
}

// Listeners fans updates out to every listener in order.
type Listeners []Listener

// UpdateProperty implements Listener.
func (l Listeners) UpdateProperty(deviceID string, property Property, value any) {
	for _, listener := range l {
		if listener != nil {
			listener.UpdateProperty(deviceID, property, value)
		}
	}
}

type nopListener struct{}

func (nopListener) UpdateProperty(string, Property, any) {}
