package devices

import (
	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// AddZoneMember makes master lead a zone that includes member.
func (s *Service) AddZoneMember(meta CommandMeta, master *Device, member string) error {
	return s.changeZone(meta, master, member, "zone_add", (*soundtouch.Executor).AddDeviceToZone)
}

// RemoveZoneMember drops member from the zone led by master.
func (s *Service) RemoveZoneMember(meta CommandMeta, master *Device, member string) error {
	return s.changeZone(meta, master, member, "zone_remove", (*soundtouch.Executor).RemoveDeviceFromZone)
}

func (s *Service) changeZone(meta CommandMeta, master *Device, member, command string, change func(*soundtouch.Executor, soundtouch.ZonePeer) error) error {
	peer, err := s.Lookup(member)
	if err != nil {
		return err
	}
	err = s.Apply(meta, master, command, map[string]any{"member": peer.DeviceID()}, func(exec *soundtouch.Executor) error {
		return change(exec, peer)
	})
	if err != nil {
		return err
	}
	s.recorder.Record(audit.WriteEventInput{
		Type:      audit.EventZoneChanged,
		RequestID: meta.RequestID,
		ClientID:  meta.ClientID,
		DeviceID:  master.ID(),
		Message:   master.exec.ZoneInfo(),
		Payload:   meta.payload(map[string]any{"members": zoneMemberIDs(master.exec.ZoneSnapshot())}),
	})
	return nil
}

func zoneMemberIDs(zone soundtouch.ZoneSnapshot) []string {
	ids := make([]string, 0, len(zone.Members))
	for _, member := range zone.Members {
		ids = append(ids, member.DeviceID)
	}
	return ids
}
