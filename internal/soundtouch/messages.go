package soundtouch

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Endpoint urls understood by the device websocket.
const (
	URLInfo             = "info"
	URLVolume           = "volume"
	URLBass             = "bass"
	URLBassCapabilities = "bassCapabilities"
	URLPresets          = "presets"
	URLNowPlaying       = "now_playing"
	URLSources          = "sources"
	URLGetZone          = "getZone"
	URLSetZone          = "setZone"
	URLRemoveZoneSlave  = "removeZoneSlave"
	URLKey              = "key"
	URLSelect           = "select"
)

// keySender is the sender name the device expects on key presses.
const keySender = "Gabbo"

func buildGetRequest(deviceID, url string, requestID int) string {
	var buf strings.Builder
	writeHeader(&buf, deviceID, url, "GET", requestID, "")
	buf.WriteString("</msg>")
	return buf.String()
}

func buildPostRequest(deviceID, url, infoAddon, payload string, requestID int) string {
	var buf strings.Builder
	writeHeader(&buf, deviceID, url, "POST", requestID, infoAddon)
	buf.WriteString("<body>")
	buf.WriteString(payload)
	buf.WriteString("</body></msg>")
	return buf.String()
}

func writeHeader(buf *strings.Builder, deviceID, url, method string, requestID int, infoAddon string) {
	buf.WriteString(`<msg><header deviceID="`)
	buf.WriteString(escapeXML(deviceID))
	buf.WriteString(`" url="`)
	buf.WriteString(escapeXML(url))
	buf.WriteString(`" method="`)
	buf.WriteString(method)
	buf.WriteString(`"><request requestID="`)
	buf.WriteString(strconv.Itoa(requestID))
	buf.WriteString(`"><info `)
	if infoAddon != "" {
		buf.WriteString(infoAddon)
		buf.WriteString(" ")
	}
	buf.WriteString(`type="new"/></request></header>`)
}

func keyPayload(state string, key RemoteKey) string {
	return `<key state="` + state + `" sender="` + keySender + `">` + string(key) + `</key>`
}

func volumePayload(deviceID string, volume int) string {
	return `<volume deviceID="` + escapeXML(deviceID) + `">` + strconv.Itoa(volume) + `</volume>`
}

func bassPayload(deviceID string, bass int) string {
	return `<bass deviceID="` + escapeXML(deviceID) + `">` + strconv.Itoa(bass) + `</bass>`
}

// zonePayload renders a zone element listing the given members.
func zonePayload(masterID string, members []ZoneMember) string {
	var buf strings.Builder
	buf.WriteString(`<zone master="`)
	buf.WriteString(escapeXML(masterID))
	buf.WriteString(`">`)
	for _, member := range members {
		buf.WriteString(`<member ipaddress="`)
		buf.WriteString(escapeXML(member.IPAddress))
		buf.WriteString(`">`)
		buf.WriteString(escapeXML(member.DeviceID))
		buf.WriteString(`</member>`)
	}
	buf.WriteString(`</zone>`)
	return buf.String()
}

func escapeXML(input string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(input)); err != nil {
		return input
	}
	return b.String()
}
