package soundtouch

import (
	"fmt"
	"strings"
)

// RemoteKey is a key of the device's remote control.
type RemoteKey string

const (
	KeyPlay           RemoteKey = "PLAY"
	KeyPause          RemoteKey = "PAUSE"
	KeyStop           RemoteKey = "STOP"
	KeyPrevTrack      RemoteKey = "PREV_TRACK"
	KeyNextTrack      RemoteKey = "NEXT_TRACK"
	KeyThumbsUp       RemoteKey = "THUMBS_UP"
	KeyThumbsDown     RemoteKey = "THUMBS_DOWN"
	KeyBookmark       RemoteKey = "BOOKMARK"
	KeyPower          RemoteKey = "POWER"
	KeyMute           RemoteKey = "MUTE"
	KeyVolumeUp       RemoteKey = "VOLUME_UP"
	KeyVolumeDown     RemoteKey = "VOLUME_DOWN"
	KeyPreset1        RemoteKey = "PRESET_1"
	KeyPreset2        RemoteKey = "PRESET_2"
	KeyPreset3        RemoteKey = "PRESET_3"
	KeyPreset4        RemoteKey = "PRESET_4"
	KeyPreset5        RemoteKey = "PRESET_5"
	KeyPreset6        RemoteKey = "PRESET_6"
	KeyAUXInput       RemoteKey = "AUX_INPUT"
	KeyShuffleOff     RemoteKey = "SHUFFLE_OFF"
	KeyShuffleOn      RemoteKey = "SHUFFLE_ON"
	KeyRepeatOff      RemoteKey = "REPEAT_OFF"
	KeyRepeatOne      RemoteKey = "REPEAT_ONE"
	KeyRepeatAll      RemoteKey = "REPEAT_ALL"
	KeyPlayPause      RemoteKey = "PLAY_PAUSE"
	KeyAddFavorite    RemoteKey = "ADD_FAVORITE"
	KeyRemoveFavorite RemoteKey = "REMOVE_FAVORITE"
)

var remoteKeys = map[RemoteKey]struct{}{
	KeyPlay: {}, KeyPause: {}, KeyStop: {}, KeyPrevTrack: {}, KeyNextTrack: {},
	KeyThumbsUp: {}, KeyThumbsDown: {}, KeyBookmark: {}, KeyPower: {}, KeyMute: {},
	KeyVolumeUp: {}, KeyVolumeDown: {},
	KeyPreset1: {}, KeyPreset2: {}, KeyPreset3: {}, KeyPreset4: {}, KeyPreset5: {}, KeyPreset6: {},
	KeyAUXInput: {}, KeyShuffleOff: {}, KeyShuffleOn: {},
	KeyRepeatOff: {}, KeyRepeatOne: {}, KeyRepeatAll: {},
	KeyPlayPause: {}, KeyAddFavorite: {}, KeyRemoveFavorite: {},
}

// ParseRemoteKey resolves a key name case-insensitively.
func ParseRemoteKey(name string) (RemoteKey, error) {
	key := RemoteKey(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := remoteKeys[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRemoteKey, name)
	}
	return key, nil
}

// PlayerCommand is a transport control request.
type PlayerCommand string

const (
	PlayerPlay     PlayerCommand = "PLAY"
	PlayerPause    PlayerCommand = "PAUSE"
	PlayerNext     PlayerCommand = "NEXT"
	PlayerPrevious PlayerCommand = "PREVIOUS"
)

func (c PlayerCommand) remoteKey() (RemoteKey, error) {
	switch PlayerCommand(strings.ToUpper(string(c))) {
	case PlayerPlay:
		return KeyPlay, nil
	case PlayerPause:
		return KeyPause, nil
	case PlayerNext:
		return KeyNextTrack, nil
	case PlayerPrevious:
		return KeyPrevTrack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlayerCommand, string(c))
}
