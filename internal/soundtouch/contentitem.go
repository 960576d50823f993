package soundtouch

import (
	"strconv"
	"strings"
)

// OperationMode is the resolved source kind of a device or content item.
type OperationMode string

const (
	ModeOffline       OperationMode = "OFFLINE"
	ModeStandby       OperationMode = "STANDBY"
	ModeInternetRadio OperationMode = "INTERNET_RADIO"
	ModeBluetooth     OperationMode = "BLUETOOTH"
	ModeStoredMusic   OperationMode = "STORED_MUSIC"
	ModeAUX           OperationMode = "AUX"
	ModeAUX1          OperationMode = "AUX1"
	ModeAUX2          OperationMode = "AUX2"
	ModeAUX3          OperationMode = "AUX3"
	ModeTV            OperationMode = "TV"
	ModeHDMI1         OperationMode = "HDMI1"
	ModeSpotify       OperationMode = "SPOTIFY"
	ModePandora       OperationMode = "PANDORA"
	ModeDeezer        OperationMode = "DEEZER"
	ModeSiriusXM      OperationMode = "SIRIUSXM"
	ModeAmazon        OperationMode = "AMAZON"
	ModeOther         OperationMode = "OTHER"
)

// ParseOperationMode resolves a mode name case-insensitively.
func ParseOperationMode(name string) (OperationMode, bool) {
	mode := OperationMode(strings.ToUpper(strings.TrimSpace(name)))
	switch mode {
	case ModeOffline, ModeStandby, ModeInternetRadio, ModeBluetooth, ModeStoredMusic,
		ModeAUX, ModeAUX1, ModeAUX2, ModeAUX3, ModeTV, ModeHDMI1,
		ModeSpotify, ModePandora, ModeDeezer, ModeSiriusXM, ModeAmazon, ModeOther:
		return mode, true
	}
	return "", false
}

// inactive reports whether the mode means the device is not playing anything.
func (m OperationMode) inactive() bool {
	return m == ModeStandby || m == ModeOffline
}

// Raw source attribute values used on the wire.
const (
	sourceAUX     = "AUX"
	sourceProduct = "PRODUCT"

	accountTV    = "TV"
	accountHDMI1 = "HDMI_1"
)

// ContentItem is a playable thing as the device describes it.
type ContentItem struct {
	Source        string `json:"source"`
	SourceAccount string `json:"source_account,omitempty"`
	Location      string `json:"location,omitempty"`
	ItemName      string `json:"item_name,omitempty"`
	ContainerArt  string `json:"container_art,omitempty"`
	Presetable    bool   `json:"presetable"`
	PresetID      int    `json:"preset_id,omitempty"`
	// Unused is kept only because the preset file format carries it.
	Unused int `json:"-"`
}

// OperationMode resolves the item's source kind.
func (c ContentItem) OperationMode() OperationMode {
	switch strings.ToUpper(c.Source) {
	case "STANDBY":
		return ModeStandby
	case "INTERNET_RADIO", "TUNEIN", "LOCAL_INTERNET_RADIO":
		return ModeInternetRadio
	case "BLUETOOTH":
		return ModeBluetooth
	case "STORED_MUSIC":
		return ModeStoredMusic
	case "SPOTIFY":
		return ModeSpotify
	case "PANDORA":
		return ModePandora
	case "DEEZER":
		return ModeDeezer
	case "SIRIUSXM":
		return ModeSiriusXM
	case "AMAZON":
		return ModeAmazon
	case sourceAUX:
		switch strings.ToUpper(c.SourceAccount) {
		case "AUX", "":
			return ModeAUX
		case "AUX1":
			return ModeAUX1
		case "AUX2":
			return ModeAUX2
		case "AUX3":
			return ModeAUX3
		}
	case sourceProduct:
		switch strings.ToUpper(c.SourceAccount) {
		case accountTV:
			return ModeTV
		case accountHDMI1:
			return ModeHDMI1
		}
	}
	return ModeOther
}

// IsPreset reports whether the item occupies a preset slot.
func (c ContentItem) IsPreset() bool {
	return c.Presetable && c.PresetID > 0
}

// IsValid reports whether the item can be adopted as the current item.
func (c ContentItem) IsValid() bool {
	if c.OperationMode() == ModeStandby {
		return true
	}
	return c.ItemName != "" && c.Source != ""
}

// Equal compares the fields that identify an item. PresetID, ContainerArt and
// Unused are ignored.
func (c ContentItem) Equal(other ContentItem) bool {
	return c.Source == other.Source &&
		c.SourceAccount == other.SourceAccount &&
		c.Location == other.Location &&
		c.ItemName == other.ItemName &&
		c.Presetable == other.Presetable
}

// XML renders the ContentItem element sent with the select command.
func (c ContentItem) XML() string {
	var buf strings.Builder
	switch c.OperationMode() {
	case ModeBluetooth:
		buf.WriteString(`<ContentItem source="BLUETOOTH"></ContentItem>`)
	case ModeAUX, ModeAUX1, ModeAUX2, ModeAUX3:
		buf.WriteString(`<ContentItem source="AUX" sourceAccount="`)
		buf.WriteString(escapeXML(c.SourceAccount))
		buf.WriteString(`"></ContentItem>`)
	case ModeTV, ModeHDMI1:
		buf.WriteString(`<ContentItem source="PRODUCT" sourceAccount="`)
		buf.WriteString(escapeXML(c.SourceAccount))
		buf.WriteString(`" isPresetable="false"/>`)
	default:
		buf.WriteString(`<ContentItem source="`)
		buf.WriteString(escapeXML(c.Source))
		buf.WriteString(`" location="`)
		buf.WriteString(escapeXML(c.Location))
		buf.WriteString(`" sourceAccount="`)
		buf.WriteString(escapeXML(c.SourceAccount))
		buf.WriteString(`" isPresetable="`)
		buf.WriteString(strconv.FormatBool(c.Presetable))
		buf.WriteString(`"><itemName>`)
		buf.WriteString(escapeXML(c.ItemName))
		buf.WriteString(`</itemName>`)
		if c.ContainerArt != "" {
			buf.WriteString(`<containerArt>`)
			buf.WriteString(escapeXML(c.ContainerArt))
			buf.WriteString(`</containerArt>`)
		}
		buf.WriteString(`</ContentItem>`)
	}
	return buf.String()
}

// Preset is a content item bound to a slot id.
type Preset struct {
	ID   int         `json:"id"`
	Item ContentItem `json:"item"`
}
