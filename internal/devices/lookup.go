package devices

import (
	"fmt"
	"strings"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// Device finds a device by MAC address, then name, then host. Matching is
// case-insensitive.
func (s *Service) Device(identifier string) (*Device, error) {
	identifier = strings.TrimSpace(identifier)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if device, ok := s.devices[strings.ToUpper(identifier)]; ok {
		return device, nil
	}
	for _, id := range s.order {
		device := s.devices[id]
		if strings.EqualFold(device.exec.Name(), identifier) {
			s.logger.Debug().Str("requested", identifier).Str("found", id).Msg("Device found by name")
			return device, nil
		}
	}
	for _, id := range s.order {
		device := s.devices[id]
		if strings.EqualFold(device.config.Host, identifier) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", soundtouch.ErrDeviceNotFound, identifier)
}

// Lookup implements soundtouch.Registry.
func (s *Service) Lookup(identifier string) (soundtouch.ZonePeer, error) {
	device, err := s.Device(identifier)
	if err != nil {
		return nil, err
	}
	return device.exec, nil
}
