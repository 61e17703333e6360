package ac

import (
	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// Attribute names. Keys are fixed for the air-conditioner device class;
// unknown names from the wire are ignored, not stored.
const (
	AttrPromptTone        = "prompt_tone"
	AttrPower             = "power"
	AttrMode              = "mode"
	AttrTargetTemperature = "target_temperature"
	AttrFanSpeed          = "fan_speed"
	AttrSwingVertical     = "swing_vertical"
	AttrSwingHorizontal   = "swing_horizontal"
	AttrSmartEye          = "smart_eye"
	AttrDry               = "dry"
	AttrAuxHeating        = "aux_heating"
	AttrBoostMode         = "boost_mode"
	AttrSleepMode         = "sleep_mode"
	AttrFrostProtect      = "frost_protect"
	AttrComfortMode       = "comfort_mode"
	AttrEcoMode           = "eco_mode"
	AttrNaturalWind       = "natural_wind"
	AttrTempFahrenheit    = "temp_fahrenheit"
	AttrScreenDisplay     = "screen_display"
	AttrFullDust          = "full_dust"
	AttrIndirectWind      = "indirect_wind"
	AttrBreezeless        = "breezeless"
	AttrIndoorTemperature = "indoor_temperature"
	AttrOutdoorTemp       = "outdoor_temperature"
	AttrIndoorHumidity    = "indoor_humidity"
	AttrTotalEnergy       = "total_energy_consumption"
	AttrCurrentEnergy     = "current_energy_consumption"
	AttrRealtimePower     = "realtime_power"
	AttrFreshAirPower     = "fresh_air_power"
	AttrFreshAirFanSpeed  = "fresh_air_fan_speed"
	AttrFreshAirMode      = "fresh_air_mode"
	AttrFreshAir1         = "fresh_air_1"
	AttrFreshAir2         = "fresh_air_2"

	// AttrScreenDisplayNew is the capability-gated display toggle key. The
	// literal is kept exactly as the persisted configuration and wire
	// protocol use it.
	AttrScreenDisplayNew = "screen_display_new"
)

// Names is the full attribute name set for the AC device class, in the order
// incoming updates are merged.
var Names = []string{
	AttrPromptTone,
	AttrPower,
	AttrMode,
	AttrTargetTemperature,
	AttrFanSpeed,
	AttrSwingVertical,
	AttrSwingHorizontal,
	AttrSmartEye,
	AttrDry,
	AttrAuxHeating,
	AttrBoostMode,
	AttrSleepMode,
	AttrFrostProtect,
	AttrComfortMode,
	AttrEcoMode,
	AttrNaturalWind,
	AttrTempFahrenheit,
	AttrScreenDisplay,
	AttrScreenDisplayNew,
	AttrFullDust,
	AttrIndirectWind,
	AttrBreezeless,
	AttrIndoorTemperature,
	AttrOutdoorTemp,
	AttrIndoorHumidity,
	AttrTotalEnergy,
	AttrCurrentEnergy,
	AttrRealtimePower,
	AttrFreshAirPower,
	AttrFreshAirFanSpeed,
	AttrFreshAirMode,
	AttrFreshAir1,
	AttrFreshAir2,
}

// sensorOnly lists attributes the appliance pushes and the client must never
// set. Set requests on them are silent no-ops.
var sensorOnly = map[string]bool{
	AttrIndoorTemperature: true,
	AttrOutdoorTemp:       true,
	AttrIndoorHumidity:    true,
	AttrFullDust:          true,
	AttrTotalEnergy:       true,
	AttrCurrentEnergy:     true,
	AttrRealtimePower:     true,
}

// exclusiveModes is the mutually-exclusive mode group. Setting any member
// true clears all others in the same outbound command. Frost protection and
// comfort mode only exist on the general command form.
var exclusiveModes = []string{
	AttrBoostMode,
	AttrSleepMode,
	AttrEcoMode,
	AttrFrostProtect,
	AttrComfortMode,
}

// generalOnlyModes are exclusive-group members absent from the sub-protocol
// command form.
var generalOnlyModes = map[string]bool{
	AttrFrostProtect: true,
	AttrComfortMode:  true,
}

// freshAirTier pairs a speed threshold with its mode name.
type freshAirTier struct {
	Threshold int64
	Name      string
}

// freshAirTiers maps fan-speed thresholds to fresh-air mode names,
// ascending. A speed resolves to the highest tier whose threshold it
// reaches.
var freshAirTiers = []freshAirTier{
	{0, "Off"},
	{20, "Silent"},
	{40, "Low"},
	{60, "Medium"},
	{80, "High"},
	{100, "Full"},
}

// freshAirModeOff is the derived mode when fresh-air power is off.
const freshAirModeOff = "Off"

// freshAirModeFor derives the mode name for a fan speed: walk the tiers in
// ascending order, keep overwriting while the threshold does not exceed the
// speed, stop at the first one that does.
func freshAirModeFor(speed int64) string {
	mode := freshAirModeOff
	for _, tier := range freshAirTiers {
		if speed < tier.Threshold {
			break
		}
		mode = tier.Name
	}
	return mode
}

// freshAirSpeedFor resolves a mode name back to its tier speed.
func freshAirSpeedFor(mode string) (int64, bool) {
	for _, tier := range freshAirTiers {
		if tier.Name == mode {
			return tier.Threshold, true
		}
	}
	return 0, false
}

// FreshAirVersion is the sticky fresh-air sub-protocol version. It starts
// unknown and only ever transitions forward to V1 or V2.
type FreshAirVersion uint8

const (
	FreshAirUnknown FreshAirVersion = iota
	FreshAirV1
	FreshAirV2
)

// String returns the version name.
func (v FreshAirVersion) String() string {
	switch v {
	case FreshAirV1:
		return "V1"
	case FreshAirV2:
		return "V2"
	default:
		return "UNKNOWN"
	}
}

// ChangeSet is the subset of attributes altered by processing one incoming
// message, keyed by attribute name.
type ChangeSet map[string]wire.Value

// AttributeSet holds the current attribute values for one appliance. It is
// created with device-class defaults and mutated only by its owning
// synchronizer.
type AttributeSet struct {
	values map[string]wire.Value
}

// NewAttributeSet creates an attribute set with AC defaults. Sensor readings
// start absent; they appear once the appliance first reports them.
func NewAttributeSet() *AttributeSet {
	return &AttributeSet{values: map[string]wire.Value{
		AttrPromptTone:        wire.Bool(true),
		AttrPower:             wire.Bool(false),
		AttrMode:              wire.Int(0),
		AttrTargetTemperature: wire.Float(24.0),
		AttrFanSpeed:          wire.Int(102),
		AttrSwingVertical:     wire.Bool(false),
		AttrSwingHorizontal:   wire.Bool(false),
		AttrSmartEye:          wire.Bool(false),
		AttrDry:               wire.Bool(false),
		AttrAuxHeating:        wire.Bool(false),
		AttrBoostMode:         wire.Bool(false),
		AttrSleepMode:         wire.Bool(false),
		AttrFrostProtect:      wire.Bool(false),
		AttrComfortMode:       wire.Bool(false),
		AttrEcoMode:           wire.Bool(false),
		AttrNaturalWind:       wire.Bool(false),
		AttrTempFahrenheit:    wire.Bool(false),
		AttrScreenDisplay:     wire.Bool(false),
		AttrScreenDisplayNew:  wire.Bool(false),
		AttrIndirectWind:      wire.Bool(false),
		AttrBreezeless:        wire.Bool(false),
		AttrFreshAirPower:     wire.Bool(false),
		AttrFreshAirFanSpeed:  wire.Int(0),
		AttrFreshAirMode:      wire.Str(freshAirModeOff),
	}}
}

// Get returns the named attribute value, absent if never observed.
func (a *AttributeSet) Get(name string) (wire.Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Bool returns the named attribute coerced to bool, false if absent.
func (a *AttributeSet) Bool(name string) bool {
	return a.values[name].AsBool()
}

// Int returns the named attribute coerced to int64, zero if absent.
func (a *AttributeSet) Int(name string) int64 {
	return a.values[name].AsInt()
}

// Snapshot returns an immutable copy of all current attribute values.
func (a *AttributeSet) Snapshot() map[string]wire.Value {
	out := make(map[string]wire.Value, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// set writes an attribute value. Unknown names are dropped.
func (a *AttributeSet) set(name string, v wire.Value) {
	a.values[name] = v
}
