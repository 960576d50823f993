package soundtouch

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ResponseParser turns device messages into executor calls and property
// updates. It walks the element tree with an explicit state stack. A parser
// belongs to one connection and is not safe for concurrent use.
type ResponseParser struct {
	exec   *Executor
	logger zerolog.Logger

	stack       []parserState
	headerValid bool
	text        strings.Builder

	item    *ContentItem
	preset  *Preset
	muted   bool
	sources Capabilities

	rateEnabled         bool
	skipEnabled         bool
	skipPreviousEnabled bool

	zoneKind     ZoneKind
	zoneMaster   ZonePeer
	zoneMasterID string
	zoneMembers  []ZoneMember
	memberIP     string
}

// NewResponseParser creates a parser feeding exec.
func NewResponseParser(exec *Executor, logger zerolog.Logger) *ResponseParser {
	return &ResponseParser{
		exec:   exec,
		logger: logger.With().Str("device", exec.DeviceID()).Str("component", "parser").Logger(),
	}
}

// HandleMessage parses one websocket text message. Failures are logged with
// the raw message and never propagate to the connection.
func (p *ResponseParser) HandleMessage(data []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error().Interface("panic", recovered).Str("message", string(data)).Msg("Failed to handle device message")
		}
	}()
	if err := p.Parse(data); err != nil {
		p.logger.Warn().Err(err).Str("message", string(data)).Msg("Failed to parse device message")
	}
}

// Parse runs one message through the state machine.
func (p *ResponseParser) Parse(data []byte) error {
	p.Reset()
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			p.StartElement(t)
		case xml.EndElement:
			p.EndElement(t)
		case xml.CharData:
			p.Characters(t)
		}
	}
}

// Reset discards all per-message state.
func (p *ResponseParser) Reset() {
	p.stack = p.stack[:0]
	p.headerValid = false
	p.text.Reset()
	p.item = nil
	p.preset = nil
	p.muted = false
	p.sources = nil
	p.rateEnabled, p.skipEnabled, p.skipPreviousEnabled = false, false, false
	p.zoneKind = ZoneNone
	p.zoneMaster = nil
	p.zoneMasterID = ""
	p.zoneMembers = nil
	p.memberIP = ""
}

func (p *ResponseParser) current() parserState {
	if len(p.stack) == 0 {
		return stateInit
	}
	return p.stack[len(p.stack)-1]
}

// StartElement handles an opening tag.
func (p *ResponseParser) StartElement(se xml.StartElement) {
	parent := p.current()
	name := se.Name.Local

	var child parserState
	switch parent {
	case stateUnprocessed, stateUnprocessedNoTextExpected:
		child = parent
	default:
		next, ok := transitions[parent][name]
		if !ok {
			p.logger.Debug().Str("element", name).Stringer("state", parent).Msg("Unrecognized element")
			next = stateUnprocessed
		}
		child = next

		if required, allowMaster := deviceIDRule(parent, child); required && !p.deviceIDMatches(se.Attr, allowMaster) {
			p.logger.Warn().Str("element", name).Str("device_id", attr(se.Attr, "deviceID")).Msg("Ignoring element addressed to another device")
			child = stateUnprocessed
		}
		if parent == stateMsg && child == stateMsgBody && !p.headerValid {
			p.logger.Warn().Msg("Ignoring message body without a valid header")
			child = stateUnprocessed
		}
		child = p.enter(child, parent, se.Attr)
	}
	p.stack = append(p.stack, child)
}

// Characters handles character data inside the current element.
func (p *ResponseParser) Characters(data []byte) {
	state := p.current()
	switch {
	case textStates[state]:
		p.text.Write(data)
	case quietStates[state]:
	default:
		if text := strings.TrimSpace(string(data)); text != "" {
			p.logger.Warn().Stringer("state", state).Str("text", text).Msg("Unexpected text in device message")
		}
	}
}

// EndElement handles a closing tag.
func (p *ResponseParser) EndElement(xml.EndElement) {
	if len(p.stack) == 0 {
		p.logger.Warn().Msg("Unbalanced closing element")
		return
	}
	state := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.exit(state, p.current())
}

func (p *ResponseParser) deviceIDMatches(attrs []xml.Attr, allowMaster bool) bool {
	id := attr(attrs, "deviceID")
	if strings.EqualFold(id, p.exec.DeviceID()) {
		return true
	}
	if allowMaster {
		master := p.exec.ZoneMasterID()
		return master != "" && strings.EqualFold(id, master)
	}
	return false
}

// enter runs when an element is entered and may reject it as Unprocessed.
func (p *ResponseParser) enter(state, parent parserState, attrs []xml.Attr) parserState {
	if textStates[state] {
		p.text.Reset()
	}

	switch state {
	case stateMsgHeader:
		p.headerValid = true

	case stateContentItem:
		item := &ContentItem{
			Source:        attr(attrs, "source"),
			SourceAccount: attr(attrs, "sourceAccount"),
			Location:      attr(attrs, "location"),
			Presetable:    strings.EqualFold(attr(attrs, "isPresetable"), "true"),
		}
		if item.OperationMode() == ModeOther {
			p.logger.Info().Str("source", item.Source).Str("source_account", item.SourceAccount).Msg("Unknown content item source")
		}
		p.item = item

	case statePresets:
		p.exec.beginPresetList()

	case statePreset:
		raw := attr(attrs, "id")
		id, err := strconv.Atoi(raw)
		if err != nil {
			p.logger.Warn().Str("id", raw).Msg("Ignoring preset with invalid id")
			return stateUnprocessed
		}
		p.preset = &Preset{ID: id}

	case stateVolume:
		p.muted = false

	case stateNowPlaying:
		p.rateEnabled, p.skipEnabled, p.skipPreviousEnabled = false, false, false
		if p.exec.nowPlayingSourceChanged(attr(attrs, "source")) {
			for _, property := range nowPlayingProperties {
				p.exec.publish(property, "")
			}
		}

	case stateNowPlayingRateEnabled:
		p.rateEnabled = true
	case stateNowPlayingSkipEnabled:
		p.skipEnabled = true
	case stateNowPlayingSkipPreviousEnabled:
		p.skipPreviousEnabled = true

	case stateSources:
		p.sources = Capabilities{}

	case stateSourceItem:
		if p.sources == nil {
			return stateUnprocessed
		}
		mode := ContentItem{Source: attr(attrs, "source"), SourceAccount: attr(attrs, "sourceAccount")}.OperationMode()
		if mode != ModeOther {
			available := !strings.EqualFold(attr(attrs, "status"), "UNAVAILABLE")
			p.sources[string(mode)] = p.sources[string(mode)] || available
		}

	case stateZone:
		p.beginZone(attr(attrs, "master"))

	case stateZoneMember:
		p.memberIP = attr(attrs, "ipaddress")
	}
	return state
}

func (p *ResponseParser) beginZone(masterID string) {
	p.zoneMembers = nil
	p.zoneMaster = nil
	p.zoneMasterID = masterID
	switch {
	case masterID == "":
		p.zoneKind = ZoneNone
	case strings.EqualFold(masterID, p.exec.DeviceID()):
		p.zoneKind = ZoneMaster
	default:
		p.zoneKind = ZoneSlave
		p.zoneMaster = p.lookupPeer(masterID)
	}
}

func (p *ResponseParser) lookupPeer(id string) ZonePeer {
	if p.exec.registry == nil {
		p.logger.Warn().Str("peer", id).Msg("No device registry to resolve zone peer")
		return nil
	}
	peer, err := p.exec.registry.Lookup(id)
	if err != nil {
		p.logger.Warn().Err(err).Str("peer", id).Msg("Zone peer is not a known device")
		return nil
	}
	return peer
}

// exit runs when an element ends, with the state it ended in and its parent.
func (p *ResponseParser) exit(state, parent parserState) {
	if textStates[state] {
		text := strings.TrimSpace(p.text.String())
		p.text.Reset()
		p.handleText(state, text)
		return
	}

	switch state {
	case stateInfo:
		p.exec.Refresh(URLVolume, URLPresets, URLNowPlaying, URLGetZone, URLBass, URLSources, URLBassCapabilities)

	case stateContentItem:
		if p.item == nil {
			return
		}
		item := *p.item
		p.item = nil
		switch parent {
		case stateNowPlaying:
			p.exec.publish(PropertyNowPlayingItemName, item.ItemName)
			p.exec.AdoptContentItem(item)
		case statePreset:
			if p.preset != nil {
				item.Presetable = true
				p.preset.Item = item
			}
		}

	case statePreset:
		if p.preset == nil {
			return
		}
		preset := *p.preset
		p.preset = nil
		if parent != statePresets {
			return
		}
		if preset.Item.Source == "" {
			p.logger.Warn().Int("preset_id", preset.ID).Msg("Ignoring preset without content item")
			return
		}
		p.exec.addPreset(preset)

	case stateNowPlaying:
		p.exec.publish(PropertyRateEnabled, p.rateEnabled)
		p.exec.publish(PropertySkipEnabled, p.skipEnabled)
		p.exec.publish(PropertySkipPreviousEnabled, p.skipPreviousEnabled)

	case stateVolume:
		p.exec.ApplyDeviceMute(p.muted)

	case stateSources:
		if p.sources != nil {
			p.exec.SetAvailableSources(p.sources)
			p.sources = nil
		}

	case stateZone:
		p.exec.SetZoneState(p.zoneKind, p.zoneMaster, p.zoneMasterID, p.zoneMembers)
		p.zoneMembers = nil
		p.zoneMaster = nil

	case stateZoneUpdated:
		p.exec.Refresh(URLGetZone)
	}
}

// handleText acts on the collected text of a leaf element.
func (p *ResponseParser) handleText(state parserState, text string) {
	switch state {
	case stateZoneMember:
		if text == "" {
			p.logger.Warn().Str("ip_address", p.memberIP).Msg("Ignoring zone member without device id")
			return
		}
		p.zoneMembers = append(p.zoneMembers, ZoneMember{
			DeviceID:  text,
			IPAddress: p.memberIP,
			Peer:      p.lookupPeer(text),
		})
		p.memberIP = ""
		return
	}

	if text == "" {
		return
	}

	switch state {
	case stateInfoName:
		p.exec.SetName(text)
	case stateInfoType:
		p.exec.publish(PropertyDeviceType, text)

	case stateContentItemItemName:
		if p.item != nil {
			p.item.ItemName = text
		}
	case stateContentItemContainerArt:
		if p.item != nil {
			p.item.ContainerArt = text
		}

	case stateNowPlayingAlbum:
		p.exec.publish(PropertyNowPlayingAlbum, text)
	case stateNowPlayingArt:
		p.exec.publish(PropertyNowPlayingArtwork, text)
	case stateNowPlayingArtist:
		p.exec.publish(PropertyNowPlayingArtist, text)
	case stateNowPlayingDescription:
		p.exec.publish(PropertyNowPlayingDescription, text)
	case stateNowPlayingGenre:
		p.exec.publish(PropertyNowPlayingGenre, text)
	case stateNowPlayingStationLocation:
		p.exec.publish(PropertyNowPlayingLocation, text)
	case stateNowPlayingStationName:
		p.exec.publish(PropertyNowPlayingStation, text)
	case stateNowPlayingTrack:
		p.exec.publish(PropertyNowPlayingTrack, text)
	case stateNowPlayingPlayStatus:
		p.exec.publish(PropertyNowPlayingPlayStatus, text)
		switch text {
		case "PLAY_STATE", "BUFFERING_STATE":
			p.exec.publish(PropertyPlayerControl, string(PlayerPlay))
		case "PAUSE_STATE", "STOP_STATE":
			p.exec.publish(PropertyPlayerControl, string(PlayerPause))
		}

	case stateVolumeActual:
		if volume, ok := p.parseInt(state, text); ok {
			p.exec.publish(PropertyVolume, volume)
		}
	case stateVolumeMuteEnabled:
		if muted, ok := p.parseBool(state, text); ok {
			p.muted = muted
		}

	case stateBassActual:
		if bass, ok := p.parseInt(state, text); ok {
			p.exec.publish(PropertyBass, bass)
		}
	case stateBassAvailable:
		if available, ok := p.parseBool(state, text); ok {
			p.exec.SetAvailable(CapabilityBass, available)
		}
	case stateBassMin:
		if value, ok := p.parseInt(state, text); ok {
			p.exec.publish(PropertyBassMin, value)
		}
	case stateBassMax:
		if value, ok := p.parseInt(state, text); ok {
			p.exec.publish(PropertyBassMax, value)
		}
	case stateBassDefault:
		if value, ok := p.parseInt(state, text); ok {
			p.exec.publish(PropertyBassDefault, value)
		}
	}
}

func (p *ResponseParser) parseInt(state parserState, text string) (int, bool) {
	value, err := strconv.Atoi(text)
	if err != nil {
		p.logger.Warn().Stringer("state", state).Str("text", text).Msg("Expected a number")
		return 0, false
	}
	return value, true
}

func (p *ResponseParser) parseBool(state parserState, text string) (bool, bool) {
	value, err := strconv.ParseBool(text)
	if err != nil {
		p.logger.Warn().Stringer("state", state).Str("text", text).Msg("Expected true or false")
		return false, false
	}
	return value, true
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
