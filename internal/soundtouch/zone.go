package soundtouch

import (
	"strings"
)

// ZoneKind is the role of a device in a multi-room zone.
type ZoneKind string

const (
	ZoneNone   ZoneKind = "NONE"
	ZoneMaster ZoneKind = "MASTER"
	ZoneSlave  ZoneKind = "MEMBER"
)

// ZoneMember is one member of a zone as listed on the wire.
type ZoneMember struct {
	DeviceID  string   `json:"device_id"`
	IPAddress string   `json:"ip_address"`
	Peer      ZonePeer `json:"-"`
}

// ZoneSnapshot is a copy of a device's zone state.
type ZoneSnapshot struct {
	Kind     ZoneKind     `json:"kind"`
	MasterID string       `json:"master_id,omitempty"`
	Members  []ZoneMember `json:"members,omitempty"`
	Info     string       `json:"info"`
}

// zoneState holds members only while the device is master, and a master only
// while it is a member.
type zoneState struct {
	kind     ZoneKind
	master   ZonePeer
	masterID string
	members  []ZoneMember
}

// SetZoneState records the zone the device reported.
func (e *Executor) SetZoneState(kind ZoneKind, master ZonePeer, masterID string, members []ZoneMember) {
	e.mu.Lock()
	switch kind {
	case ZoneMaster:
		e.zone = zoneState{
			kind:     ZoneMaster,
			master:   e,
			masterID: e.deviceID,
			members:  append([]ZoneMember(nil), members...),
		}
	case ZoneSlave:
		if masterID == "" && master != nil {
			masterID = master.DeviceID()
		}
		e.zone = zoneState{kind: ZoneSlave, master: master, masterID: masterID}
	default:
		e.zone = zoneState{}
	}
	e.mu.Unlock()
	e.publish(PropertyZoneInfo, e.ZoneInfo())
}

// ZoneMasterID returns the master's MAC address while the device is a zone
// member.
func (e *Executor) ZoneMasterID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.zone.kind != ZoneSlave {
		return ""
	}
	return e.zone.masterID
}

// AddDeviceToZone adds peer to the zone led by this device and pushes the
// full membership to the device.
func (e *Executor) AddDeviceToZone(peer ZonePeer) error {
	peerID := peer.DeviceID()
	if strings.EqualFold(peerID, e.deviceID) {
		return ErrZoneSelf
	}
	peerIP := peer.IPAddress()

	e.mu.Lock()
	for _, member := range e.zone.members {
		if strings.EqualFold(member.DeviceID, peerID) {
			e.mu.Unlock()
			e.logger.Warn().Str("member", peerID).Msg("Device is already in the zone")
			return ErrAlreadyZoneMember
		}
	}
	members := append(append([]ZoneMember(nil), e.zone.members...), ZoneMember{
		DeviceID:  peerID,
		IPAddress: peerIP,
		Peer:      peer,
	})
	e.zone = zoneState{kind: ZoneMaster, master: e, masterID: e.deviceID, members: members}
	fx := effects{zoneInfo: true}
	fx.messages = append(fx.messages, e.postLocked(URLSetZone, `mainNode="newZone"`, zonePayload(e.deviceID, members)))
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// RemoveDeviceFromZone drops peer from the zone. The remaining membership is
// pushed to the device; when nobody is left the departing member is removed
// explicitly and the zone is dissolved.
func (e *Executor) RemoveDeviceFromZone(peer ZonePeer) error {
	peerID := peer.DeviceID()

	e.mu.Lock()
	index := -1
	for i, member := range e.zone.members {
		if strings.EqualFold(member.DeviceID, peerID) {
			index = i
			break
		}
	}
	if index < 0 {
		e.mu.Unlock()
		e.logger.Warn().Str("member", peerID).Msg("Device is not in the zone")
		return ErrNotZoneMember
	}

	removed := e.zone.members[index]
	members := make([]ZoneMember, 0, len(e.zone.members)-1)
	members = append(members, e.zone.members[:index]...)
	members = append(members, e.zone.members[index+1:]...)

	fx := effects{zoneInfo: true}
	if len(members) > 0 {
		e.zone.members = members
		fx.messages = append(fx.messages, e.postLocked(URLSetZone, `mainNode="newZone"`, zonePayload(e.deviceID, members)))
	} else {
		e.zone = zoneState{}
		fx.messages = append(fx.messages, e.postLocked(URLRemoveZoneSlave, `mainNode="removeZoneSlave"`, zonePayload(e.deviceID, []ZoneMember{removed})))
	}
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// ZoneSnapshot returns the zone state with its summary line.
func (e *Executor) ZoneSnapshot() ZoneSnapshot {
	e.mu.Lock()
	snapshot := ZoneSnapshot{
		Kind:     e.zone.kind,
		MasterID: e.zone.masterID,
		Members:  append([]ZoneMember(nil), e.zone.members...),
	}
	e.mu.Unlock()
	if snapshot.Kind == "" {
		snapshot.Kind = ZoneNone
	}
	snapshot.Info = e.ZoneInfo()
	return snapshot
}

// ZoneInfo summarises the zone for display. Peer names are read after the
// lock is released.
func (e *Executor) ZoneInfo() string {
	e.mu.Lock()
	kind := e.zone.kind
	master := e.zone.master
	masterID := e.zone.masterID
	members := append([]ZoneMember(nil), e.zone.members...)
	e.mu.Unlock()

	switch kind {
	case ZoneMaster:
		names := make([]string, 0, len(members))
		for _, member := range members {
			names = append(names, memberName(member))
		}
		return "Master; Members: " + strings.Join(names, ", ")
	case ZoneSlave:
		name := masterID
		if master != nil {
			if n := master.Name(); n != "" {
				name = n
			}
		}
		return "Member; Master is: " + name
	}
	return "Standalone"
}

// clearZoneLocked forgets the zone and returns the master to detach from.
func (e *Executor) clearZoneLocked() ZonePeer {
	var master ZonePeer
	if e.zone.kind == ZoneSlave && e.zone.master != nil && !strings.EqualFold(e.zone.master.DeviceID(), e.deviceID) {
		master = e.zone.master
	}
	e.zone = zoneState{}
	return master
}

func memberName(member ZoneMember) string {
	if member.Peer != nil {
		if name := member.Peer.Name(); name != "" {
			return name
		}
	}
	return member.DeviceID
}
