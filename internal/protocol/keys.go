package protocol

import "sort"

// Remote key vocabulary. The set is closed: every name the TV firmware
// accepts on the sendkey action is listed here, and anything else is
// rejected by the codec before any network I/O happens.
var remoteKeys = map[string]struct{}{
	// Power and basics
	"KEY_POWER":    {},
	"KEY_HOME":     {},
	"KEY_MENU":     {},
	"KEY_BACK":     {},
	"KEY_EXIT":     {},
	"KEY_OK":       {},
	"KEY_SETTINGS": {},

	// Navigation
	"KEY_UP":    {},
	"KEY_DOWN":  {},
	"KEY_LEFT":  {},
	"KEY_RIGHT": {},

	// Volume
	"KEY_VOLUMEUP":   {},
	"KEY_VOLUMEDOWN": {},
	"KEY_MUTE":       {},

	// Channel
	"KEY_CHANNELUP":   {},
	"KEY_CHANNELDOWN": {},
	"KEY_LAST":        {},

	// Playback
	"KEY_PLAY":         {},
	"KEY_PAUSE":        {},
	"KEY_STOP":         {},
	"KEY_REWIND":       {},
	"KEY_FASTFORWARD":  {},
	"KEY_RECORD":       {},
	"KEY_PREVIOUS":     {},
	"KEY_NEXT":         {},

	// Digits
	"KEY_0": {},
	"KEY_1": {},
	"KEY_2": {},
	"KEY_3": {},
	"KEY_4": {},
	"KEY_5": {},
	"KEY_6": {},
	"KEY_7": {},
	"KEY_8": {},
	"KEY_9": {},

	// Colors
	"KEY_RED":    {},
	"KEY_GREEN":  {},
	"KEY_YELLOW": {},
	"KEY_BLUE":   {},

	// Auxiliary
	"KEY_SOURCE":    {},
	"KEY_GUIDE":     {},
	"KEY_INFO":      {},
	"KEY_SUBTITLE":  {},
	"KEY_AUDIO":     {},
	"KEY_ZOOM":      {},
	"KEY_SLEEP":     {},
	"KEY_NETFLIX":   {},
	"KEY_YOUTUBE":   {},
	"KEY_AMAZON":    {},
}

// App describes one launchable application known to the firmware.
type App struct {
	// Name is the display name the launcher expects.
	Name string

	// URL is the store or deep-link URL sent alongside the name.
	URL string

	// URLType selects how the launcher interprets URL (0 = store id).
	URLType int

	// StoreType is the firmware app-store identifier.
	StoreType int
}

// apps maps caller-facing application identifiers to launcher payloads.
var apps = map[string]App{
	"netflix":      {Name: "Netflix", URL: "netflix", URLType: 0, StoreType: 0},
	"youtube":      {Name: "YouTube", URL: "youtube", URLType: 0, StoreType: 0},
	"prime-video":  {Name: "Prime Video", URL: "amazon", URLType: 0, StoreType: 0},
	"disney-plus":  {Name: "Disney+", URL: "disney", URLType: 0, StoreType: 0},
	"vidaa-free":   {Name: "VIDAA Free", URL: "vidaafree", URLType: 0, StoreType: 0},
	"browser":      {Name: "Browser", URL: "browser", URLType: 0, StoreType: 0},
	"media-player": {Name: "Media Player", URL: "mediaplayer", URLType: 0, StoreType: 0},
}

// Source describes a selectable input source.
type Source struct {
	// ID is the firmware source identifier sent on changesource.
	ID string

	// DisplayName is the name shown in the TV's source menu.
	DisplayName string
}

// sources maps caller-facing input names to firmware source identifiers.
var sources = map[string]Source{
	"tv":        {ID: "0", DisplayName: "TV"},
	"hdmi1":     {ID: "1", DisplayName: "HDMI 1"},
	"hdmi2":     {ID: "2", DisplayName: "HDMI 2"},
	"hdmi3":     {ID: "3", DisplayName: "HDMI 3"},
	"hdmi4":     {ID: "4", DisplayName: "HDMI 4"},
	"av":        {ID: "5", DisplayName: "AV"},
	"component": {ID: "6", DisplayName: "Component"},
}

// IsValidKey reports whether name is a recognized remote key.
func IsValidKey(name string) bool {
	_, ok := remoteKeys[name]
	return ok
}

// LookupApp resolves a caller-facing application identifier.
func LookupApp(id string) (App, bool) {
	app, ok := apps[id]
	return app, ok
}

// LookupSource resolves a caller-facing input source name.
func LookupSource(name string) (Source, bool) {
	src, ok := sources[name]
	return src, ok
}

// KeyNames returns the full key vocabulary in sorted order.
func KeyNames() []string {
	names := make([]string, 0, len(remoteKeys))
	for name := range remoteKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppNames returns all known application identifiers in sorted order.
func AppNames() []string {
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceNames returns all known input source names in sorted order.
func SourceNames() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
