package gypi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Features records which optional modules are left out of the build. The
// zero value enables everything.
type Features struct {
	DisableAccessibility     bool
	DisableAppBanner         bool
	DisableBackgroundSync    bool
	DisableBattery           bool
	DisableBeacon            bool
	DisableBluetooth         bool
	DisableCacheStorage      bool
	DisableCanvas2D          bool
	DisableCompositorWorker  bool
	DisableCredentialManager bool
	DisableCrypto            bool
	DisableDoNotTrack        bool
	DisableDeviceLight       bool
	DisableDeviceOrientation bool
	DisableEncoding          bool
	DisableEncryptedMedia    bool
	DisableFetch             bool
	DisableFileSystem        bool
	DisableGamepad           bool
	DisableGeoFeatures       bool
	DisableIndexedDB         bool
	DisableMediaSession      bool
	DisableMediaSource       bool
	DisableMediaStream       bool
	DisableNavigatorConnect  bool
	DisableNetInfo           bool
	DisableNFC               bool
	DisableNotifications     bool
	DisablePerformance       bool
	DisablePermissions       bool
	DisablePlugins           bool
	DisablePresentation      bool
	DisablePushMessaging     bool
	DisableQuota             bool
	DisableScreenOrientation bool
	DisableServiceWorkers    bool
	DisableSpeech            bool
	DisableStorage           bool
	DisableVibration         bool
	DisableVR                bool
	DisableWebAudio          bool
	DisableWebCL             bool
	DisableWebDatabase       bool
	DisableWebGL             bool
	DisableWebMIDI           bool
	DisableWebSockets        bool
	DisableWebUSB            bool
}

var featureTable = []struct {
	name  string
	field func(*Features) *bool
}{
	{"accessibility", func(f *Features) *bool { return &f.DisableAccessibility }},
	{"app_banner", func(f *Features) *bool { return &f.DisableAppBanner }},
	{"background_sync", func(f *Features) *bool { return &f.DisableBackgroundSync }},
	{"battery", func(f *Features) *bool { return &f.DisableBattery }},
	{"beacon", func(f *Features) *bool { return &f.DisableBeacon }},
	{"bluetooth", func(f *Features) *bool { return &f.DisableBluetooth }},
	{"cachestorage", func(f *Features) *bool { return &f.DisableCacheStorage }},
	{"canvas2d", func(f *Features) *bool { return &f.DisableCanvas2D }},
	{"compositorworker", func(f *Features) *bool { return &f.DisableCompositorWorker }},
	{"credentialmanager", func(f *Features) *bool { return &f.DisableCredentialManager }},
	{"crypto", func(f *Features) *bool { return &f.DisableCrypto }},
	{"donottrack", func(f *Features) *bool { return &f.DisableDoNotTrack }},
	{"device_light", func(f *Features) *bool { return &f.DisableDeviceLight }},
	{"device_orientation", func(f *Features) *bool { return &f.DisableDeviceOrientation }},
	{"encoding", func(f *Features) *bool { return &f.DisableEncoding }},
	{"encryptedmedia", func(f *Features) *bool { return &f.DisableEncryptedMedia }},
	{"fetch", func(f *Features) *bool { return &f.DisableFetch }},
	{"filesystem", func(f *Features) *bool { return &f.DisableFileSystem }},
	{"gamepad", func(f *Features) *bool { return &f.DisableGamepad }},
	{"geo_features", func(f *Features) *bool { return &f.DisableGeoFeatures }},
	{"indexeddb", func(f *Features) *bool { return &f.DisableIndexedDB }},
	{"mediasession", func(f *Features) *bool { return &f.DisableMediaSession }},
	{"mediasource", func(f *Features) *bool { return &f.DisableMediaSource }},
	{"mediastream", func(f *Features) *bool { return &f.DisableMediaStream }},
	{"navigatorconnect", func(f *Features) *bool { return &f.DisableNavigatorConnect }},
	{"netinfo", func(f *Features) *bool { return &f.DisableNetInfo }},
	{"nfc", func(f *Features) *bool { return &f.DisableNFC }},
	{"notifications", func(f *Features) *bool { return &f.DisableNotifications }},
	{"performance", func(f *Features) *bool { return &f.DisablePerformance }},
	{"permissions", func(f *Features) *bool { return &f.DisablePermissions }},
	{"plugins", func(f *Features) *bool { return &f.DisablePlugins }},
	{"presentation", func(f *Features) *bool { return &f.DisablePresentation }},
	{"push_messaging", func(f *Features) *bool { return &f.DisablePushMessaging }},
	{"quota", func(f *Features) *bool { return &f.DisableQuota }},
	{"screen_orientation", func(f *Features) *bool { return &f.DisableScreenOrientation }},
	{"serviceworkers", func(f *Features) *bool { return &f.DisableServiceWorkers }},
	{"speech", func(f *Features) *bool { return &f.DisableSpeech }},
	{"storage", func(f *Features) *bool { return &f.DisableStorage }},
	{"vibration", func(f *Features) *bool { return &f.DisableVibration }},
	{"vr", func(f *Features) *bool { return &f.DisableVR }},
	{"webaudio", func(f *Features) *bool { return &f.DisableWebAudio }},
	{"webcl", func(f *Features) *bool { return &f.DisableWebCL }},
	{"webdatabase", func(f *Features) *bool { return &f.DisableWebDatabase }},
	{"webgl", func(f *Features) *bool { return &f.DisableWebGL }},
	{"webmidi", func(f *Features) *bool { return &f.DisableWebMIDI }},
	{"websockets", func(f *Features) *bool { return &f.DisableWebSockets }},
	{"webusb", func(f *Features) *bool { return &f.DisableWebUSB }},
}

// LegacyArgOrder is the order of the positional toggles accepted by the
// command line.
var LegacyArgOrder = []string{
	"accessibility", "bluetooth", "geo_features", "indexeddb",
	"mediastream", "notifications", "plugins", "speech",
	"webaudio", "webcl", "webdatabase", "webmidi",
}

// UnknownFeatureError reports a feature name that has no toggle.
type UnknownFeatureError struct {
	Name string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Name)
}

// FeatureNames lists every feature that can be disabled.
func FeatureNames() []string {
	out := make([]string, len(featureTable))
	for i, ft := range featureTable {
		out[i] = ft.name
	}
	return out
}

// Known reports whether name is a feature with a toggle.
func Known(name string) bool {
	return lookup(name) != nil
}

func lookup(name string) func(*Features) *bool {
	for _, ft := range featureTable {
		if ft.name == name {
			return ft.field
		}
	}
	return nil
}

// Disabled reports whether the named feature is off. The empty name stands
// for unconditional groups and is never disabled.
func (f Features) Disabled(name string) bool {
	field := lookup(name)
	if field == nil {
		return false
	}
	return *field(&f)
}

// Set turns the named feature off (disabled=true) or on.
func (f *Features) Set(name string, disabled bool) error {
	field := lookup(name)
	if field == nil {
		return &UnknownFeatureError{Name: name}
	}
	*field(f) = disabled
	return nil
}

// Disable turns off every named feature. Blank names are skipped so that
// comma-separated lists may carry stray separators.
func (f *Features) Disable(names ...string) error {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if err := f.Set(n, true); err != nil {
			return err
		}
	}
	return nil
}

// DisabledNames returns the disabled features in table order.
func (f Features) DisabledNames() []string {
	var out []string
	for _, ft := range featureTable {
		if *ft.field(&f) {
			out = append(out, ft.name)
		}
	}
	return out
}

// ParseLegacyArgs maps positional values onto LegacyArgOrder. Missing
// trailing values leave the feature enabled.
func ParseLegacyArgs(args []string) (Features, error) {
	var f Features
	if len(args) > len(LegacyArgOrder) {
		return f, fmt.Errorf("too many feature arguments: got %d, want at most %d", len(args), len(LegacyArgOrder))
	}
	for i, a := range args {
		v, err := strconv.ParseBool(a)
		if err != nil {
			return f, fmt.Errorf("%s: %w", LegacyArgOrder[i], err)
		}
		if err := f.Set(LegacyArgOrder[i], v); err != nil {
			return f, err
		}
	}
	return f, nil
}

// ApplyYAML sets toggles from a YAML mapping of feature name to disabled.
func (f *Features) ApplyYAML(data []byte) error {
	var m map[string]bool
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse features: %w", err)
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := f.Set(n, m[n]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFile reads a feature file and applies it with ApplyYAML.
func (f *Features) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := f.ApplyYAML(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
