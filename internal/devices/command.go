package devices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// ErrInvalidCommand is returned for text commands that cannot be parsed.
var ErrInvalidCommand = errors.New("invalid control command")

// ControlKind is the action of a text control command.
type ControlKind string

const (
	ControlPlay       ControlKind = "play"
	ControlPause      ControlKind = "pause"
	ControlPreset     ControlKind = "preset"
	ControlVolume     ControlKind = "volume"
	ControlZoneAdd    ControlKind = "zone_add"
	ControlZoneRemove ControlKind = "zone_remove"
)

// ControlCommand is a parsed text command such as "preset 3" or
// "zone add Kitchen".
type ControlCommand struct {
	Kind   ControlKind
	Preset int
	Volume int
	// Target is the zone peer identifier, with its case preserved.
	Target string
	Text   string
}

// ParseControlCommand parses one text command. Keywords are case-insensitive.
func ParseControlCommand(text string) (ControlCommand, error) {
	raw := strings.TrimSpace(text)
	lower := strings.ToLower(raw)
	cmd := ControlCommand{Text: raw}

	switch {
	case strings.HasPrefix(lower, "pause"):
		cmd.Kind = ControlPause
	case strings.HasPrefix(lower, "play"):
		cmd.Kind = ControlPlay
	case strings.HasPrefix(lower, "preset"):
		id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(lower, "preset")))
		if err != nil || id < 1 || id > soundtouch.HardwarePresetCount {
			return ControlCommand{}, fmt.Errorf("%w: invalid preset in %q", ErrInvalidCommand, raw)
		}
		cmd.Kind = ControlPreset
		cmd.Preset = id
	case strings.HasPrefix(lower, "volume "):
		volume, err := strconv.Atoi(strings.TrimSpace(lower[len("volume "):]))
		if err != nil || volume < 0 || volume > 100 {
			return ControlCommand{}, fmt.Errorf("%w: invalid volume in %q", ErrInvalidCommand, raw)
		}
		cmd.Kind = ControlVolume
		cmd.Volume = volume
	case strings.HasPrefix(lower, "zone "):
		rest := raw[len("zone "):]
		action, target, ok := strings.Cut(strings.TrimSpace(rest), " ")
		target = strings.TrimSpace(target)
		if !ok || target == "" {
			return ControlCommand{}, fmt.Errorf("%w: %q needs an action and a device", ErrInvalidCommand, raw)
		}
		switch strings.ToLower(action) {
		case "add":
			cmd.Kind = ControlZoneAdd
		case "remove":
			cmd.Kind = ControlZoneRemove
		default:
			return ControlCommand{}, fmt.Errorf("%w: unknown zone action %q", ErrInvalidCommand, action)
		}
		cmd.Target = target
	default:
		return ControlCommand{}, fmt.Errorf("%w: %q", ErrInvalidCommand, raw)
	}
	return cmd, nil
}

// Control runs a parsed text command on device.
func (s *Service) Control(meta CommandMeta, device *Device, cmd ControlCommand) error {
	payload := map[string]any{"text": cmd.Text}
	return s.Apply(meta, device, "control:"+string(cmd.Kind), payload, func(exec *soundtouch.Executor) error {
		switch cmd.Kind {
		case ControlPlay:
			exec.SendKey(soundtouch.KeyPlay)
		case ControlPause:
			exec.SendKey(soundtouch.KeyPause)
		case ControlPreset:
			key, err := soundtouch.ParseRemoteKey(fmt.Sprintf("PRESET_%d", cmd.Preset))
			if err != nil {
				return err
			}
			exec.SendKey(key)
		case ControlVolume:
			exec.SetVolume(cmd.Volume)
		case ControlZoneAdd:
			peer, err := s.Lookup(cmd.Target)
			if err != nil {
				return err
			}
			return exec.AddDeviceToZone(peer)
		case ControlZoneRemove:
			peer, err := s.Lookup(cmd.Target)
			if err != nil {
				return err
			}
			return exec.RemoveDeviceFromZone(peer)
		default:
			return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Kind)
		}
		return nil
	})
}
