package ac

import (
	"strings"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// SetRequest is one desired attribute write. BuildCommand preserves the order
// requests arrive in.
type SetRequest struct {
	Name  string
	Value wire.Value
}

// Synchronizer reconciles the cached attribute set of one appliance with its
// wire traffic. All mutation happens on the owning session's receive path or
// synchronously inside the build methods.
type Synchronizer struct {
	attrs *AttributeSet

	freshAirVersion FreshAirVersion
	subProtocol     bool
	sn8             bool
	timer           bool

	screenDisplayCapable bool
	pendingTags          []uint16
}

// NewSynchronizer creates a synchronizer with device-class defaults.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{attrs: NewAttributeSet()}
}

// Attributes returns a snapshot of the current attribute values.
func (s *Synchronizer) Attributes() map[string]wire.Value {
	return s.attrs.Snapshot()
}

// FreshAirVersion returns the detected fresh-air sub-protocol version.
func (s *Synchronizer) FreshAirVersion() FreshAirVersion {
	return s.freshAirVersion
}

// SubProtocol reports whether the appliance has been detected as using the
// legacy command family. Once true it stays true for the session's lifetime.
func (s *Synchronizer) SubProtocol() bool {
	return s.subProtocol
}

// ProcessIncoming merges one decoded update into the attribute set and
// returns the change-set of attributes that were altered or re-asserted.
func (s *Synchronizer) ProcessIncoming(update *Update) ChangeSet {
	changed := make(ChangeSet)

	if update.SubProtocol {
		s.subProtocol = true
		if update.SN8 != nil {
			s.sn8 = *update.SN8
		}
		if update.Timer != nil {
			s.timer = *update.Timer
		}
	}
	if update.ScreenDisplayCapable {
		s.screenDisplayCapable = true
	}
	if len(update.NewProtocolTags) > 0 {
		s.pendingTags = append(s.pendingTags, update.NewProtocolTags...)
	}

	freshAirPowerSeen := update.Has(AttrFreshAirPower)
	for _, name := range Names {
		v, ok := update.Field(name)
		if !ok {
			continue
		}
		prev, had := s.attrs.Get(name)
		if !had || !prev.Equal(v) {
			changed[name] = v
		}
		s.attrs.set(name, v)
	}

	// Fresh-air mode is derived, never taken from the wire. Re-derive on
	// every update that carried the power flag, recording the result even
	// when the name did not change.
	if freshAirPowerSeen {
		mode := freshAirModeOff
		if s.attrs.Bool(AttrFreshAirPower) {
			mode = freshAirModeFor(s.attrs.Int(AttrFreshAirFanSpeed))
		}
		s.attrs.set(AttrFreshAirMode, wire.Str(mode))
		changed[AttrFreshAirMode] = wire.Str(mode)
	}

	// Power-off corrections are re-asserted unconditionally so observers
	// always see an authoritative value after a power transition.
	powerOff := !s.attrs.Bool(AttrPower)
	if swing, ok := changed[AttrSwingVertical]; powerOff || (ok && swing.AsBool()) {
		s.attrs.set(AttrIndirectWind, wire.Bool(false))
		changed[AttrIndirectWind] = wire.Bool(false)
	}
	if powerOff {
		s.attrs.set(AttrScreenDisplay, wire.Bool(false))
		changed[AttrScreenDisplay] = wire.Bool(false)
	}

	if s.freshAirVersion == FreshAirUnknown {
		if v, ok := update.Field(AttrFreshAir1); ok && v.AsBool() {
			s.freshAirVersion = FreshAirV1
		} else if v, ok := update.Field(AttrFreshAir2); ok && v.AsBool() {
			s.freshAirVersion = FreshAirV2
		}
	}

	return changed
}

// TakeFollowUpQuery returns the tag query for capabilities advertised by the
// last capability enumeration, consuming the pending set. The enumeration
// reports presence only; the query fetches current state.
func (s *Synchronizer) TakeFollowUpQuery() (Command, bool) {
	if len(s.pendingTags) == 0 {
		return Command{}, false
	}
	tags := s.pendingTags
	s.pendingTags = nil
	return newNewProtocolQuery(tags), true
}

// Commit applies a transmitted command's attribute writes to the cache.
func (s *Synchronizer) Commit(apply ChangeSet) {
	for name, v := range apply {
		s.attrs.set(name, v)
	}
}

// BuildCommand routes desired attribute writes to outbound commands, one per
// request, in request order. Prompt-tone requests update the stored tone
// preference and ride along with the other commands of the same call instead
// of producing their own.
func (s *Synchronizer) BuildCommand(requests []SetRequest) []Command {
	// Tone preference is extracted first so it applies to every command of
	// this call, wherever the request appears in the slice.
	for _, req := range requests {
		if req.Name == AttrPromptTone {
			s.attrs.set(AttrPromptTone, wire.Bool(req.Value.AsBool()))
		}
	}

	var out []Command
	for _, req := range requests {
		if req.Name == AttrPromptTone {
			continue
		}
		if cmd, ok := s.buildOne(req); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func (s *Synchronizer) buildOne(req SetRequest) (Command, bool) {
	if sensorOnly[req.Name] {
		return Command{}, false
	}
	tone := s.attrs.Bool(AttrPromptTone)

	switch req.Name {
	case AttrScreenDisplay, AttrScreenDisplayNew:
		target := req.Value.AsBool()
		if s.screenDisplayCapable {
			v := byte(0)
			if target {
				v = 100
			}
			return newNewProtocolSet(
				[]wire.NewProtocolParam{{Tag: tagScreenDisp, Value: []byte{v}}},
				tone,
				ChangeSet{AttrScreenDisplayNew: wire.Bool(target)},
			), true
		}
		return newSwitchDisplay(target), true

	case AttrIndirectWind:
		v := byte(0x01)
		if req.Value.AsBool() {
			v = 0x02
		}
		return newNewProtocolSet(
			[]wire.NewProtocolParam{{Tag: tagIndirectWind, Value: []byte{v}}},
			tone,
			ChangeSet{AttrIndirectWind: wire.Bool(req.Value.AsBool())},
		), true

	case AttrBreezeless:
		v := byte(0x02)
		if req.Value.AsBool() {
			v = 0x01
		}
		return newNewProtocolSet(
			[]wire.NewProtocolParam{{Tag: tagBreezeless, Value: []byte{v}}},
			tone,
			ChangeSet{AttrBreezeless: wire.Bool(req.Value.AsBool())},
		), true

	case AttrFreshAirPower:
		return s.buildFreshAir(req.Value.AsBool(), s.attrs.Int(AttrFreshAirFanSpeed), false)

	case AttrFreshAirMode:
		speed, known := freshAirSpeedFor(req.Value.AsString())
		if !known || speed == 0 {
			// Unknown names and "Off" both mean power down; the cached fan
			// speed survives so the next power-on restores it.
			return s.buildFreshAir(false, s.attrs.Int(AttrFreshAirFanSpeed), false)
		}
		return s.buildFreshAir(true, speed, true)

	case AttrFreshAirFanSpeed:
		speed := req.Value.AsInt()
		if speed <= 0 {
			return s.buildFreshAir(false, s.attrs.Int(AttrFreshAirFanSpeed), false)
		}
		return s.buildFreshAir(true, speed, true)
	}

	return s.buildStatusSet(req)
}

// buildFreshAir builds the version-tagged (power, speed) tuple command.
// Impossible before the version is known.
func (s *Synchronizer) buildFreshAir(power bool, speed int64, commitSpeed bool) (Command, bool) {
	var tag uint16
	switch s.freshAirVersion {
	case FreshAirV1:
		tag = tagFreshAirV1
	case FreshAirV2:
		tag = tagFreshAirV2
	default:
		return Command{}, false
	}

	p := byte(0)
	if power {
		p = 1
	}
	apply := ChangeSet{AttrFreshAirPower: wire.Bool(power)}
	if commitSpeed {
		apply[AttrFreshAirFanSpeed] = wire.Int(speed)
	}
	mode := freshAirModeOff
	if power {
		mode = freshAirModeFor(speed)
	}
	apply[AttrFreshAirMode] = wire.Str(mode)

	return newNewProtocolSet(
		[]wire.NewProtocolParam{{Tag: tag, Value: []byte{p, byte(speed)}}},
		s.attrs.Bool(AttrPromptTone),
		apply,
	), true
}

// buildStatusSet routes a plain attribute write through the active command
// family's full-state set.
func (s *Synchronizer) buildStatusSet(req SetRequest) (Command, bool) {
	apply := ChangeSet{req.Name: req.Value}

	if isExclusiveMode(req.Name) && req.Value.AsBool() {
		for _, other := range exclusiveModes {
			if other == req.Name {
				continue
			}
			if s.subProtocol && generalOnlyModes[other] {
				continue
			}
			apply[other] = wire.Bool(false)
		}
	}
	if req.Name == AttrMode && req.Value.AsInt() != 0 {
		apply[AttrPower] = wire.Bool(true)
	}

	return s.stagedSet(apply, false), true
}

// SetTargetTemperature builds one status set carrying the new target. A
// non-zero mode also selects that mode and forces power on, so one command
// both wakes the unit and points it at the setpoint.
func (s *Synchronizer) SetTargetTemperature(value float64, mode int64) Command {
	apply := ChangeSet{AttrTargetTemperature: wire.Float(value)}
	if mode != 0 {
		apply[AttrMode] = wire.Int(mode)
		apply[AttrPower] = wire.Bool(true)
	}
	return s.stagedSet(apply, false)
}

// SetSwing builds the swing set. Swing has no slot on the sub-protocol form,
// so this always uses the general family.
func (s *Synchronizer) SetSwing(horizontal, vertical bool) Command {
	apply := ChangeSet{
		AttrSwingHorizontal: wire.Bool(horizontal),
		AttrSwingVertical:   wire.Bool(vertical),
	}
	return s.stagedSet(apply, true)
}

// stagedSet builds a family-appropriate full-state set with apply layered
// over the cache, without committing apply. The caller commits after
// transmission.
func (s *Synchronizer) stagedSet(apply ChangeSet, forceGeneral bool) Command {
	staged := &AttributeSet{values: s.attrs.Snapshot()}
	for name, v := range apply {
		staged.set(name, v)
	}
	tone := s.attrs.Bool(AttrPromptTone)
	if s.subProtocol && !forceGeneral {
		return newSubProtocolSet(staged, tone, apply)
	}
	return newGeneralSet(staged, tone, apply)
}

// BuildQueries returns the ordered queries to issue on (re)connect for the
// active command family.
func (s *Synchronizer) BuildQueries() []Command {
	if s.subProtocol {
		return []Command{
			newSubProtocolQuery(subQueryStatus),
			newSubProtocolQuery(subQuerySensor),
			newSubProtocolQuery(subQueryTimer),
		}
	}
	return []Command{
		newQuery(),
		newCapabilityQuery(),
		newPowerQuery(),
	}
}

func isExclusiveMode(name string) bool {
	for _, m := range exclusiveModes {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}
