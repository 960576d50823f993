package soundtouch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ExecutorConfig wires an Executor to its collaborators.
type ExecutorConfig struct {
	// DeviceID is the device MAC address as it appears in deviceID attributes.
	DeviceID  string
	Name      string
	IPAddress string
	Session   Session
	Listener  Listener
	Registry  Registry
	Presets   *PresetStore
}

// Executor tracks the state of one device and turns commands into protocol
// messages. All methods are safe for concurrent use.
type Executor struct {
	deviceID  string
	ipAddress string
	session   Session
	listener  Listener
	registry  Registry
	presets   *PresetStore
	factory   *ContentItemFactory
	logger    zerolog.Logger

	mu               sync.Mutex
	name             string
	requestID        int
	online           bool
	muted            bool
	current          *ContentItem
	mode             OperationMode
	nowPlayingSource string
	caps             Capabilities
	devicePresets    []Preset
	zone             zoneState
}

// NewExecutor creates an executor for one device. The device starts OFFLINE.
func NewExecutor(cfg ExecutorConfig, logger zerolog.Logger) *Executor {
	listener := cfg.Listener
	if listener == nil {
		listener = nopListener{}
	}
	presets := cfg.Presets
	if presets == nil {
		presets = NewPresetStore("", logger)
	}
	return &Executor{
		deviceID:  cfg.DeviceID,
		ipAddress: cfg.IPAddress,
		session:   cfg.Session,
		listener:  listener,
		registry:  cfg.Registry,
		presets:   presets,
		factory:   NewContentItemFactory(presets),
		logger:    logger.With().Str("device", cfg.DeviceID).Logger(),
		name:      cfg.Name,
		mode:      ModeOffline,
		caps:      Capabilities{},
	}
}

// DeviceID returns the device MAC address.
func (e *Executor) DeviceID() string { return e.deviceID }

// IPAddress returns the device address.
func (e *Executor) IPAddress() string { return e.ipAddress }

// Presets returns the device preset store.
func (e *Executor) Presets() *PresetStore { return e.presets }

// Name returns the device name as last reported by the device.
func (e *Executor) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// SetName records the device name reported in the info response.
func (e *Executor) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
	e.publish(PropertyDeviceName, name)
}

// OperationMode returns the current operating mode.
func (e *Executor) OperationMode() OperationMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// CurrentContentItem returns the item the device is playing, if any.
func (e *Executor) CurrentContentItem() (ContentItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ContentItem{}, false
	}
	return *e.current, true
}

// IsMuted returns the last known mute state.
func (e *Executor) IsMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// SetOnline marks the connection as open or closed. Going offline drops the
// current content item.
func (e *Executor) SetOnline(online bool) {
	e.mu.Lock()
	prev := e.mode
	e.online = online
	if !online {
		e.current = nil
		e.nowPlayingSource = ""
	}
	fx := e.recomputeLocked(prev)
	e.mu.Unlock()
	e.apply(fx)
}

// RequestInfo asks the device for its info block, which in turn triggers a
// full state refresh.
func (e *Executor) RequestInfo() {
	e.Refresh(URLInfo)
}

// Refresh sends a GET for each url.
func (e *Executor) Refresh(urls ...string) {
	e.mu.Lock()
	var fx effects
	for _, url := range urls {
		fx.messages = append(fx.messages, e.getLocked(url))
	}
	e.mu.Unlock()
	e.apply(fx)
}

// SetVolume sets the volume in percent.
func (e *Executor) SetVolume(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	e.mu.Lock()
	fx := effects{messages: []string{e.postLocked(URLVolume, "", volumePayload(e.deviceID, percent))}}
	e.mu.Unlock()
	e.apply(fx)
}

// SetBass sets the bass level. Devices without bass control refuse the
// command without sending anything.
func (e *Executor) SetBass(level int) error {
	e.mu.Lock()
	if !e.caps.IsAvailable(CapabilityBass) {
		e.mu.Unlock()
		e.logger.Warn().Int("bass", level).Msg("Bass command refused, device has no bass control")
		return ErrBassUnsupported
	}
	fx := effects{messages: []string{e.postLocked(URLBass, "", bassPayload(e.deviceID, level))}}
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// SetPower presses POWER when the request changes between active and standby.
func (e *Executor) SetPower(on bool) {
	e.mu.Lock()
	if on == !e.mode.inactive() {
		e.mu.Unlock()
		return
	}
	fx := effects{messages: e.keyLocked(KeyPower)}
	e.mu.Unlock()
	e.apply(fx)
}

// SetMute presses MUTE when the request differs from the current state. The
// new state is assumed until the device reports otherwise.
func (e *Executor) SetMute(on bool) {
	e.mu.Lock()
	if e.muted == on {
		e.mu.Unlock()
		return
	}
	e.muted = on
	var fx effects
	fx.messages = e.keyLocked(KeyMute)
	fx.update(PropertyMute, on)
	e.mu.Unlock()
	e.apply(fx)
}

// ApplyDeviceMute reconciles the mute state reported by the device and
// publishes it only when it differs from the assumed state.
func (e *Executor) ApplyDeviceMute(muted bool) {
	e.mu.Lock()
	var fx effects
	if e.muted != muted {
		e.muted = muted
		fx.update(PropertyMute, muted)
	}
	e.mu.Unlock()
	e.apply(fx)
}

// SendKey presses and releases a remote key.
func (e *Executor) SendKey(key RemoteKey) {
	e.mu.Lock()
	fx := effects{messages: e.keyLocked(key)}
	e.mu.Unlock()
	e.apply(fx)
}

// SetPlayerControl maps a transport command onto the matching remote key.
func (e *Executor) SetPlayerControl(cmd PlayerCommand) error {
	key, err := cmd.remoteKey()
	if err != nil {
		return err
	}
	e.mu.Lock()
	var fx effects
	fx.messages = e.keyLocked(key)
	switch key {
	case KeyPlay:
		fx.update(PropertyPlayerControl, string(PlayerPlay))
	case KeyPause:
		fx.update(PropertyPlayerControl, string(PlayerPause))
	}
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// SelectOperationMode switches the device to mode. STANDBY powers the device
// off; other modes are resolved to a content item first.
func (e *Executor) SelectOperationMode(mode OperationMode) error {
	if mode == ModeStandby {
		e.SetPower(false)
		return nil
	}
	item, err := e.factory.Resolve(mode, e.Capabilities())
	if err != nil {
		e.logger.Warn().Err(err).Str("mode", string(mode)).Msg("Cannot select operation mode")
		return err
	}
	e.SelectContentItem(item)
	return nil
}

// SelectContentItem makes item current and asks the device to play it.
func (e *Executor) SelectContentItem(item ContentItem) {
	e.mu.Lock()
	prev := e.mode
	e.adoptLocked(item)
	fx := e.recomputeLocked(prev)
	fx.messages = append(fx.messages, e.postLocked(URLSelect, "", item.XML()))
	e.mu.Unlock()
	e.apply(fx)
}

// SelectPreset plays the preset stored under id.
func (e *Executor) SelectPreset(id int) error {
	item, err := e.presets.Get(id)
	if err != nil {
		e.logger.Warn().Err(err).Int("preset_id", id).Msg("Cannot select preset")
		return err
	}
	e.SelectContentItem(item)
	return nil
}

// SelectNextPreset plays the preset after the current one.
func (e *Executor) SelectNextPreset() error {
	return e.selectRelativePreset(1)
}

// SelectPreviousPreset plays the preset before the current one.
func (e *Executor) SelectPreviousPreset() error {
	return e.selectRelativePreset(-1)
}

func (e *Executor) selectRelativePreset(offset int) error {
	current, ok := e.CurrentContentItem()
	if !ok {
		e.logger.Warn().Msg("Cannot step presets, nothing is playing")
		return ErrNoContentItem
	}
	return e.SelectPreset(current.PresetID + offset)
}

// StoreCurrentAsPreset saves the playing item as user preset id. Hardware
// slots are refused. Persistence failures are returned but the preset stays
// in memory.
func (e *Executor) StoreCurrentAsPreset(id int) error {
	if id <= HardwarePresetCount {
		e.logger.Warn().Int("preset_id", id).Msg("Only preset ids above 6 can be stored")
		return &PresetError{ID: id, Err: ErrReservedPresetID}
	}
	current, ok := e.CurrentContentItem()
	if !ok {
		e.logger.Warn().Int("preset_id", id).Msg("Cannot store preset, nothing is playing")
		return ErrNoContentItem
	}

	err := e.presets.Put(id, current)
	if err != nil {
		e.logger.Error().Err(err).Int("preset_id", id).Msg("Failed to store preset")
		if !errors.Is(err, ErrPresetPersistence) {
			return err
		}
	}

	e.mu.Lock()
	var fx effects
	if e.current != nil && e.current.Equal(current) {
		e.current.PresetID = id
		fx.update(PropertyPreset, id)
	}
	e.mu.Unlock()
	e.apply(fx)
	return err
}

// AdoptContentItem records the item the device reports as playing.
func (e *Executor) AdoptContentItem(item ContentItem) {
	e.mu.Lock()
	prev := e.mode
	e.adoptLocked(item)
	fx := e.recomputeLocked(prev)
	e.mu.Unlock()
	e.apply(fx)
}

// beginPresetList drops the hardware presets ahead of a fresh listing.
func (e *Executor) beginPresetList() {
	e.presets.RemoveHardware()
	e.mu.Lock()
	e.devicePresets = nil
	e.mu.Unlock()
	e.publish(PropertyPresets, []Preset{})
}

// addPreset records one preset from a device listing.
func (e *Executor) addPreset(preset Preset) {
	if err := e.presets.PutAsync(preset.ID, preset.Item); err != nil {
		e.logger.Warn().Err(err).Int("preset_id", preset.ID).Msg("Ignoring preset")
		return
	}
	e.mu.Lock()
	stored := preset
	stored.Item.PresetID = preset.ID
	e.devicePresets = append(e.devicePresets, stored)
	listed := append([]Preset(nil), e.devicePresets...)
	e.mu.Unlock()
	e.publish(PropertyPresets, listed)
}

// nowPlayingSourceChanged records source and reports whether it differs from
// the previous now-playing source.
func (e *Executor) nowPlayingSourceChanged(source string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := source != e.nowPlayingSource
	e.nowPlayingSource = source
	return changed
}

// IsAvailable reports whether the named capability is available.
func (e *Executor) IsAvailable(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps.IsAvailable(name)
}

// SetAvailable sets one capability.
func (e *Executor) SetAvailable(name string, available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps[normalizeCapability(name)] = available
}

// SetAvailableSources replaces the source capabilities. Bass availability is
// reported separately and is kept.
func (e *Executor) SetAvailableSources(sources Capabilities) {
	e.mu.Lock()
	defer e.mu.Unlock()
	caps := Capabilities{}
	if bass, ok := e.caps[CapabilityBass]; ok {
		caps[CapabilityBass] = bass
	}
	for name, available := range sources {
		caps[normalizeCapability(name)] = available
	}
	e.caps = caps
}

// Capabilities returns a copy of the capability map.
func (e *Executor) Capabilities() Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	caps := make(Capabilities, len(e.caps))
	for name, available := range e.caps {
		caps[name] = available
	}
	return caps
}

// DeviceState is a read-only view of an executor.
type DeviceState struct {
	DeviceID      string        `json:"device_id"`
	Name          string        `json:"name"`
	IPAddress     string        `json:"ip_address"`
	Online        bool          `json:"online"`
	OperationMode OperationMode `json:"operation_mode"`
	Muted         bool          `json:"muted"`
	ContentItem   *ContentItem  `json:"content_item,omitempty"`
	Capabilities  Capabilities  `json:"capabilities"`
	Zone          ZoneSnapshot  `json:"zone"`
}

// Snapshot returns the current device state.
func (e *Executor) Snapshot() DeviceState {
	caps := e.Capabilities()
	zone := e.ZoneSnapshot()

	e.mu.Lock()
	defer e.mu.Unlock()
	state := DeviceState{
		DeviceID:      e.deviceID,
		Name:          e.name,
		IPAddress:     e.ipAddress,
		Online:        e.online,
		OperationMode: e.mode,
		Muted:         e.muted,
		Capabilities:  caps,
		Zone:          zone,
	}
	if e.current != nil {
		item := *e.current
		state.ContentItem = &item
	}
	return state
}

// adoptLocked validates item and makes it current, recovering its preset id.
func (e *Executor) adoptLocked(item ContentItem) {
	if !item.IsValid() {
		e.logger.Debug().Str("source", item.Source).Msg("Ignoring invalid content item")
		return
	}
	item.PresetID = 0
	for _, preset := range e.presets.All() {
		if preset.Item.Equal(item) {
			item.PresetID = preset.ID
			break
		}
	}
	e.current = &item
}

func (e *Executor) deriveModeLocked() OperationMode {
	if !e.online {
		return ModeOffline
	}
	if e.current == nil {
		return ModeStandby
	}
	return e.current.OperationMode()
}

// recomputeLocked derives mode, power and player state after a change. Going
// inactive leaves any zone this device is a member of.
func (e *Executor) recomputeLocked(prev OperationMode) effects {
	mode := e.deriveModeLocked()
	e.mode = mode

	var fx effects
	presetID := 0
	if e.current != nil {
		presetID = e.current.PresetID
	}
	fx.update(PropertyPreset, presetID)
	if mode != prev {
		fx.update(PropertyOperationMode, string(mode))
	}

	switch {
	case mode.inactive() && !prev.inactive():
		fx.update(PropertyPower, false)
		fx.update(PropertyPlayerControl, string(PlayerPause))
		fx.leave = e.clearZoneLocked()
		fx.zoneInfo = true
	case !mode.inactive() && prev.inactive():
		fx.update(PropertyPower, true)
		fx.zoneInfo = true
	}
	return fx
}

func (e *Executor) nextRequestIDLocked() int {
	id := e.requestID
	e.requestID++
	return id
}

func (e *Executor) getLocked(url string) string {
	return buildGetRequest(e.deviceID, url, e.nextRequestIDLocked())
}

func (e *Executor) postLocked(url, infoAddon, payload string) string {
	return buildPostRequest(e.deviceID, url, infoAddon, payload, e.nextRequestIDLocked())
}

func (e *Executor) keyLocked(key RemoteKey) []string {
	return []string{
		e.postLocked(URLKey, `mainNode="keyPress"`, keyPayload("press", key)),
		e.postLocked(URLKey, `mainNode="keyRelease"`, keyPayload("release", key)),
	}
}

type propertyUpdate struct {
	property Property
	value    any
}

// effects collects the work produced under the lock so it can run after the
// lock is released.
type effects struct {
	updates  []propertyUpdate
	messages []string
	leave    ZonePeer
	zoneInfo bool
}

func (fx *effects) update(property Property, value any) {
	fx.updates = append(fx.updates, propertyUpdate{property: property, value: value})
}

func (e *Executor) apply(fx effects) {
	for _, u := range fx.updates {
		e.publish(u.property, u.value)
	}
	e.send(fx.messages...)
	if fx.leave != nil {
		if err := fx.leave.RemoveDeviceFromZone(e); err != nil {
			e.logger.Warn().Err(err).Str("master", fx.leave.DeviceID()).Msg("Failed to leave zone")
		}
	}
	if fx.zoneInfo {
		e.publish(PropertyZoneInfo, e.ZoneInfo())
	}
}

func (e *Executor) publish(property Property, value any) {
	e.listener.UpdateProperty(e.deviceID, property, value)
}

func (e *Executor) send(messages ...string) {
	if e.session == nil {
		return
	}
	for _, msg := range messages {
		if err := e.session.SendText(msg); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send message")
			e.session.HandleError(fmt.Errorf("send to %s: %w", e.deviceID, err))
			return
		}
	}
}
