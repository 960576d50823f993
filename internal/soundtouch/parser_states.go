package soundtouch

import "strconv"

// parserState identifies where the parser is in a device message.
type parserState int

const (
	stateInit parserState = iota
	stateMsg
	stateMsgHeader
	stateMsgBody
	stateUpdates
	stateInfo
	stateInfoName
	stateInfoType
	stateContentItem
	stateContentItemItemName
	stateContentItemContainerArt
	statePresets
	statePreset
	stateNowPlaying
	stateNowPlayingAlbum
	stateNowPlayingArt
	stateNowPlayingArtist
	stateNowPlayingDescription
	stateNowPlayingGenre
	stateNowPlayingPlayStatus
	stateNowPlayingStationLocation
	stateNowPlayingStationName
	stateNowPlayingTrack
	stateNowPlayingRateEnabled
	stateNowPlayingSkipEnabled
	stateNowPlayingSkipPreviousEnabled
	stateVolume
	stateVolumeActual
	stateVolumeMuteEnabled
	stateBass
	stateBassActual
	stateBassCapabilities
	stateBassAvailable
	stateBassMin
	stateBassMax
	stateBassDefault
	stateSources
	stateSourceItem
	stateZone
	stateZoneMember
	stateZoneUpdated
	stateUnprocessed
	stateUnprocessedNoTextExpected
)

var stateNames = map[parserState]string{
	stateInit:                          "Init",
	stateMsg:                           "Msg",
	stateMsgHeader:                     "MsgHeader",
	stateMsgBody:                       "MsgBody",
	stateUpdates:                       "Updates",
	stateInfo:                          "Info",
	stateInfoName:                      "InfoName",
	stateInfoType:                      "InfoType",
	stateContentItem:                   "ContentItem",
	stateContentItemItemName:           "ContentItemItemName",
	stateContentItemContainerArt:       "ContentItemContainerArt",
	statePresets:                       "Presets",
	statePreset:                        "Preset",
	stateNowPlaying:                    "NowPlaying",
	stateNowPlayingAlbum:               "NowPlayingAlbum",
	stateNowPlayingArt:                 "NowPlayingArt",
	stateNowPlayingArtist:              "NowPlayingArtist",
	stateNowPlayingDescription:         "NowPlayingDescription",
	stateNowPlayingGenre:               "NowPlayingGenre",
	stateNowPlayingPlayStatus:          "NowPlayingPlayStatus",
	stateNowPlayingStationLocation:     "NowPlayingStationLocation",
	stateNowPlayingStationName:         "NowPlayingStationName",
	stateNowPlayingTrack:               "NowPlayingTrack",
	stateNowPlayingRateEnabled:         "NowPlayingRateEnabled",
	stateNowPlayingSkipEnabled:         "NowPlayingSkipEnabled",
	stateNowPlayingSkipPreviousEnabled: "NowPlayingSkipPreviousEnabled",
	stateVolume:                        "Volume",
	stateVolumeActual:                  "VolumeActual",
	stateVolumeMuteEnabled:             "VolumeMuteEnabled",
	stateBass:                          "Bass",
	stateBassActual:                    "BassActual",
	stateBassCapabilities:              "BassCapabilities",
	stateBassAvailable:                 "BassAvailable",
	stateBassMin:                       "BassMin",
	stateBassMax:                       "BassMax",
	stateBassDefault:                   "BassDefault",
	stateSources:                       "Sources",
	stateSourceItem:                    "SourceItem",
	stateZone:                          "Zone",
	stateZoneMember:                    "ZoneMember",
	stateZoneUpdated:                   "ZoneUpdated",
	stateUnprocessed:                   "Unprocessed",
	stateUnprocessedNoTextExpected:     "UnprocessedNoTextExpected",
}

func (s parserState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "parserState(" + strconv.Itoa(int(s)) + ")"
}

// transitions maps a parent state and child element name to the child
// state. Children missing from the table are Unprocessed.
var transitions = map[parserState]map[string]parserState{
	stateInit: {
		"msg":     stateMsg,
		"updates": stateUpdates,
	},
	stateMsg: {
		"header": stateMsgHeader,
		"body":   stateMsgBody,
	},
	stateMsgHeader: {
		"request": stateUnprocessed,
	},
	stateMsgBody: {
		"info":             stateInfo,
		"volume":           stateVolume,
		"presets":          statePresets,
		"key":              stateUnprocessed,
		"zone":             stateZone,
		"nowPlaying":       stateNowPlaying,
		"bass":             stateBass,
		"bassCapabilities": stateBassCapabilities,
		"sources":          stateSources,
	},
	stateUpdates: {
		"clockDisplayUpdated":    stateUnprocessed,
		"connectionStateUpdated": stateUnprocessedNoTextExpected,
		"infoUpdated":            stateUnprocessed,
		"nowPlayingUpdated":      stateMsgBody,
		"recentsUpdated":         stateUnprocessed,
		"volumeUpdated":          stateMsgBody,
		"bassUpdated":            stateMsgBody,
		"presetsUpdated":         stateMsgBody,
		"zoneUpdated":            stateZoneUpdated,
	},
	stateInfo: {
		"name":             stateInfoName,
		"type":             stateInfoType,
		"components":       stateUnprocessed,
		"networkInfo":      stateUnprocessed,
		"margeAccountUUID": stateUnprocessed,
		"margeURL":         stateUnprocessed,
		"moduleType":       stateUnprocessed,
		"variant":          stateUnprocessed,
		"variantMode":      stateUnprocessed,
		"countryCode":      stateUnprocessed,
		"regionCode":       stateUnprocessed,
	},
	stateNowPlaying: {
		"ContentItem":          stateContentItem,
		"album":                stateNowPlayingAlbum,
		"art":                  stateNowPlayingArt,
		"artist":               stateNowPlayingArtist,
		"description":          stateNowPlayingDescription,
		"genre":                stateNowPlayingGenre,
		"playStatus":           stateNowPlayingPlayStatus,
		"stationLocation":      stateNowPlayingStationLocation,
		"stationName":          stateNowPlayingStationName,
		"track":                stateNowPlayingTrack,
		"rateEnabled":          stateNowPlayingRateEnabled,
		"skipEnabled":          stateNowPlayingSkipEnabled,
		"skipPreviousEnabled":  stateNowPlayingSkipPreviousEnabled,
		"connectionStatusInfo": stateUnprocessed,
		"time":                 stateUnprocessed,
		"rating":               stateUnprocessed,
	},
	stateContentItem: {
		"itemName":     stateContentItemItemName,
		"containerArt": stateContentItemContainerArt,
	},
	statePresets: {
		"preset": statePreset,
	},
	statePreset: {
		"ContentItem": stateContentItem,
	},
	stateVolume: {
		"targetvolume": stateUnprocessed,
		"actualvolume": stateVolumeActual,
		"muteenabled":  stateVolumeMuteEnabled,
	},
	stateBass: {
		"targetbass": stateUnprocessed,
		"actualbass": stateBassActual,
	},
	stateBassCapabilities: {
		"bassAvailable": stateBassAvailable,
		"bassMin":       stateBassMin,
		"bassMax":       stateBassMax,
		"bassDefault":   stateBassDefault,
	},
	stateSources: {
		"sourceItem": stateSourceItem,
	},
	stateZone: {
		"member": stateZoneMember,
	},
}

// textStates collect character data and act on it when the element ends.
var textStates = map[parserState]bool{
	stateInfoName:                  true,
	stateInfoType:                  true,
	stateContentItemItemName:       true,
	stateContentItemContainerArt:   true,
	stateNowPlayingAlbum:           true,
	stateNowPlayingArt:             true,
	stateNowPlayingArtist:          true,
	stateNowPlayingDescription:     true,
	stateNowPlayingGenre:           true,
	stateNowPlayingPlayStatus:      true,
	stateNowPlayingStationLocation: true,
	stateNowPlayingStationName:     true,
	stateNowPlayingTrack:           true,
	stateVolumeActual:              true,
	stateVolumeMuteEnabled:         true,
	stateBassActual:                true,
	stateBassAvailable:             true,
	stateBassMin:                   true,
	stateBassMax:                   true,
	stateBassDefault:               true,
	stateZoneMember:                true,
}

// quietStates accept and drop character data.
var quietStates = map[parserState]bool{
	stateUnprocessed:                   true,
	stateNowPlayingRateEnabled:         true,
	stateNowPlayingSkipEnabled:         true,
	stateNowPlayingSkipPreviousEnabled: true,
}

// deviceIDRule reports whether entering child under parent requires the
// element's deviceID to match, and whether the zone master's id is accepted.
func deviceIDRule(parent, child parserState) (required, allowMaster bool) {
	switch parent {
	case stateInit:
		return child == stateUpdates, false
	case stateMsg:
		return child == stateMsgHeader, false
	case stateMsgBody:
		switch child {
		case stateVolume, statePresets, stateZone, stateUnprocessed, stateUnprocessedNoTextExpected:
			return false, false
		case stateNowPlaying:
			return true, true
		}
		return true, false
	}
	return false, false
}
