package ac

import (
	"fmt"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// Body type bytes for the AC device class.
const (
	bodyTypeStatus      = 0xC0 // full status response
	bodyTypeEnergy      = 0xC1 // energy counters and realtime power
	bodyTypeNotify1     = 0xA0 // unsolicited state report
	bodyTypeNotify2     = 0xA1 // unsolicited sensor report
	bodyTypeNewProtoSet = 0xB0 // new-protocol set acknowledgement
	bodyTypeNewProtoQry = 0xB1 // new-protocol query response
	bodyTypeCapability  = 0xB5 // capability enumeration
	bodyTypeSubProtocol = 0xBB // sub-protocol response marker
)

// New-protocol tag codes.
const (
	tagBreezeless   uint16 = 0x18
	tagPromptTone   uint16 = 0x1A
	tagScreenDisp   uint16 = 0x24
	tagIndirectWind uint16 = 0x42
	tagFreshAirV1   uint16 = 0x233
	tagFreshAirV2   uint16 = 0x4B4
)

// Capability codes reported by the 0xB5 enumeration.
const (
	capScreenDisplay uint16 = 0x224
	capFreshAir      uint16 = 0x233
	capBreezeless    uint16 = 0x18
)

// Sub-protocol query codes, fixed by firmware.
const (
	subQueryStatus = 0x10
	subQuerySensor = 0x11
	subQueryTimer  = 0x30
	subSetControl  = 0x20
)

// Update is one decoded inbound message projected onto the attribute name
// space. Fields resolve through the body's field table or, for tag-keyed
// bodies, a synthetic field map.
type Update struct {
	body  wire.Body
	extra map[string]wire.Value

	// SubProtocol marks bodies from the legacy command family.
	SubProtocol bool

	// SN8 and Timer are sub-protocol-only capability flags, nil when the
	// update does not carry them.
	SN8   *bool
	Timer *bool

	// ScreenDisplayCapable is set when the capability enumeration advertises
	// the new-protocol display toggle.
	ScreenDisplayCapable bool

	// NewProtocolTags lists tag-keyed attributes the capability enumeration
	// advertised. Their current state is not part of the enumeration and has
	// to be fetched with a follow-up tag query.
	NewProtocolTags []uint16
}

// Field looks up one named field of this update.
func (u *Update) Field(name string) (wire.Value, bool) {
	if u.extra != nil {
		if v, ok := u.extra[name]; ok {
			return v, true
		}
	}
	return u.body.Field(name)
}

// Has reports whether the update carries the named field.
func (u *Update) Has(name string) bool {
	if u.extra != nil {
		if _, ok := u.extra[name]; ok {
			return true
		}
	}
	return u.body.Has(name)
}

// DecodeResponse projects a decoded frame body onto the attribute name space.
// Unknown body types decode to an empty update: absence means "unchanged".
func DecodeResponse(frame *wire.Frame) (*Update, error) {
	if len(frame.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", wire.ErrMalformedFrame)
	}

	switch frame.Body[0] {
	case bodyTypeStatus:
		return &Update{body: wire.NewBody(frame.Body, statusFields)}, nil
	case bodyTypeEnergy:
		return &Update{body: wire.NewBody(frame.Body, energyFields)}, nil
	case bodyTypeNotify1:
		return &Update{body: wire.NewBody(frame.Body, notify1Fields)}, nil
	case bodyTypeNotify2:
		return &Update{body: wire.NewBody(frame.Body, notify2Fields)}, nil
	case bodyTypeNewProtoSet, bodyTypeNewProtoQry:
		return decodeNewProtocol(frame.Body)
	case bodyTypeCapability:
		return decodeCapabilities(frame.Body)
	case bodyTypeSubProtocol:
		return decodeSubProtocol(frame.Body)
	default:
		return &Update{}, nil
	}
}

// statusFields is the field table for the 0xC0 status body.
var statusFields = wire.FieldTable{
	AttrPower: boolAt(1, 0x01),
	AttrMode: func(b []byte) (wire.Value, bool) {
		if len(b) < 3 {
			return wire.Value{}, false
		}
		return wire.Int(int64(b[2]&0xE0) >> 5), true
	},
	AttrTargetTemperature: func(b []byte) (wire.Value, bool) {
		if len(b) < 3 {
			return wire.Value{}, false
		}
		t := float64(b[2]&0x0F) + 16
		if b[2]&0x10 != 0 {
			t += 0.5
		}
		return wire.Float(t), true
	},
	AttrFanSpeed: func(b []byte) (wire.Value, bool) {
		if len(b) < 4 {
			return wire.Value{}, false
		}
		return wire.Int(int64(b[3] & 0x7F)), true
	},
	AttrSwingVertical:   boolAt(7, 0x0C),
	AttrSwingHorizontal: boolAt(7, 0x03),
	AttrSmartEye:        boolAt(8, 0x40),
	AttrNaturalWind:     boolAt(9, 0x02),
	AttrDry:             boolAt(9, 0x04),
	AttrAuxHeating:      boolAt(9, 0x08),
	AttrEcoMode:         boolAt(9, 0x10),
	AttrSleepMode:       boolAt(10, 0x01),
	AttrTempFahrenheit:  boolAt(10, 0x04),
	AttrBoostMode: func(b []byte) (wire.Value, bool) {
		if len(b) < 11 {
			return wire.Value{}, false
		}
		return wire.Bool(b[8]&0x20 != 0 || b[10]&0x02 != 0), true
	},
	AttrIndoorTemperature: tempAt(11, 15, false),
	AttrOutdoorTemp:       tempAt(12, 15, true),
	AttrFullDust:          boolAt(13, 0x20),
	AttrScreenDisplay: func(b []byte) (wire.Value, bool) {
		if len(b) < 15 {
			return wire.Value{}, false
		}
		return wire.Bool(b[14]>>4&0x07 != 0x07 && b[1]&0x01 != 0), true
	},
	AttrFrostProtect: func(b []byte) (wire.Value, bool) {
		if len(b) < 22 {
			return wire.Value{}, false
		}
		return wire.Bool(b[21]&0x80 != 0), true
	},
	AttrComfortMode: func(b []byte) (wire.Value, bool) {
		if len(b) < 23 {
			return wire.Value{}, false
		}
		return wire.Bool(b[22]&0x01 != 0), true
	},
}

// energyFields is the field table for the 0xC1 energy body. Counters are
// packed BCD, two digits per byte.
var energyFields = wire.FieldTable{
	AttrTotalEnergy: func(b []byte) (wire.Value, bool) {
		if len(b) < 8 {
			return wire.Value{}, false
		}
		return wire.Float(float64(bcd(b[4:8])) / 100), true
	},
	AttrCurrentEnergy: func(b []byte) (wire.Value, bool) {
		if len(b) < 16 {
			return wire.Value{}, false
		}
		return wire.Float(float64(bcd(b[12:16])) / 100), true
	},
	AttrRealtimePower: func(b []byte) (wire.Value, bool) {
		if len(b) < 19 {
			return wire.Value{}, false
		}
		return wire.Float(float64(bcd(b[16:19])) / 10), true
	},
}

// notify1Fields is the field table for the 0xA0 state report.
var notify1Fields = wire.FieldTable{
	AttrPower: boolAt(1, 0x01),
	AttrTargetTemperature: func(b []byte) (wire.Value, bool) {
		if len(b) < 2 {
			return wire.Value{}, false
		}
		t := float64(b[1]&0x3E)/2 + 12
		if b[1]&0x40 != 0 {
			t += 0.5
		}
		return wire.Float(t), true
	},
	AttrMode: func(b []byte) (wire.Value, bool) {
		if len(b) < 3 {
			return wire.Value{}, false
		}
		return wire.Int(int64(b[2]&0xE0) >> 5), true
	},
	AttrFanSpeed: func(b []byte) (wire.Value, bool) {
		if len(b) < 4 {
			return wire.Value{}, false
		}
		return wire.Int(int64(b[3] & 0x7F)), true
	},
	AttrSwingVertical:   boolAt(7, 0x0C),
	AttrSwingHorizontal: boolAt(7, 0x03),
	AttrBoostMode:       boolAt(8, 0x20),
	AttrEcoMode:         boolAt(9, 0x10),
	AttrSleepMode:       boolAt(10, 0x01),
}

// notify2Fields is the field table for the 0xA1 sensor report.
var notify2Fields = wire.FieldTable{
	AttrIndoorTemperature: func(b []byte) (wire.Value, bool) {
		if len(b) < 14 || b[13] == 0xFF {
			return wire.Value{}, false
		}
		return wire.Float((float64(b[13]) - 50) / 2), true
	},
	AttrOutdoorTemp: func(b []byte) (wire.Value, bool) {
		if len(b) < 15 || b[14] == 0xFF {
			return wire.Value{}, false
		}
		return wire.Float((float64(b[14]) - 50) / 2), true
	},
	AttrIndoorHumidity: func(b []byte) (wire.Value, bool) {
		if len(b) < 18 || b[17] == 0 {
			return wire.Value{}, false
		}
		return wire.Int(int64(b[17])), true
	},
}

// decodeNewProtocol maps tag-keyed extension params onto attribute names.
func decodeNewProtocol(body []byte) (*Update, error) {
	params, err := wire.DecodeNewProtocolParams(body[1:])
	if err != nil {
		return nil, err
	}

	extra := make(map[string]wire.Value)
	if v, ok := params[tagIndirectWind]; ok && len(v) > 0 {
		extra[AttrIndirectWind] = wire.Bool(v[0] == 0x02)
	}
	if v, ok := params[tagBreezeless]; ok && len(v) > 0 {
		extra[AttrBreezeless] = wire.Bool(v[0] == 0x01)
	}
	if v, ok := params[tagScreenDisp]; ok && len(v) > 0 {
		extra[AttrScreenDisplayNew] = wire.Bool(v[0] > 0)
	}
	if v, ok := params[tagFreshAirV1]; ok && len(v) >= 2 {
		extra[AttrFreshAir1] = wire.Bool(true)
		extra[AttrFreshAirPower] = wire.Bool(v[0] == 0x01)
		extra[AttrFreshAirFanSpeed] = wire.Int(int64(v[1]))
	}
	if v, ok := params[tagFreshAirV2]; ok && len(v) >= 2 {
		extra[AttrFreshAir2] = wire.Bool(true)
		extra[AttrFreshAirPower] = wire.Bool(v[0] == 0x01)
		extra[AttrFreshAirFanSpeed] = wire.Int(int64(v[1]))
	}

	return &Update{extra: extra}, nil
}

// decodeCapabilities parses the 0xB5 capability enumeration. Only the
// capabilities the synchronizer routes on are extracted.
func decodeCapabilities(body []byte) (*Update, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: truncated capability body", wire.ErrMalformedFrame)
	}

	u := &Update{extra: make(map[string]wire.Value)}
	count := int(body[1])
	pos := 2
	for i := 0; i < count && pos+3 <= len(body); i++ {
		cap := uint16(body[pos]) | uint16(body[pos+1])<<8
		length := int(body[pos+2])
		pos += 3
		if pos+length > len(body) {
			break
		}
		value := body[pos : pos+length]
		pos += length

		switch cap {
		case capScreenDisplay:
			if len(value) > 0 && value[0] > 0 {
				u.ScreenDisplayCapable = true
				u.NewProtocolTags = append(u.NewProtocolTags, tagScreenDisp)
			}
		case capFreshAir:
			if len(value) >= 2 {
				if value[0] == 1 {
					u.extra[AttrFreshAir1] = wire.Bool(true)
					u.NewProtocolTags = append(u.NewProtocolTags, tagFreshAirV1)
				} else if value[0] == 2 {
					u.extra[AttrFreshAir2] = wire.Bool(true)
					u.NewProtocolTags = append(u.NewProtocolTags, tagFreshAirV2)
				}
			}
		case capBreezeless:
			// The enumeration only advertises presence; current state comes
			// from the tag query. Indirect wind rides the same wind group.
			u.NewProtocolTags = append(u.NewProtocolTags, tagBreezeless, tagIndirectWind)
		}
	}
	return u, nil
}

// decodeSubProtocol parses a 0xBB sub-protocol body. The six-byte prefix
// carries the query code; the payload layout depends on it.
func decodeSubProtocol(body []byte) (*Update, error) {
	if len(body) < 6 {
		return nil, fmt.Errorf("%w: truncated sub-protocol body", wire.ErrMalformedFrame)
	}

	u := &Update{SubProtocol: true, extra: make(map[string]wire.Value)}
	code := body[5]
	payload := body[6:]

	switch code {
	case subQueryStatus, subSetControl:
		if len(payload) < 5 {
			return u, nil
		}
		u.extra[AttrPower] = wire.Bool(payload[0]&0x01 != 0)
		u.extra[AttrMode] = wire.Int(int64(payload[1]&0xE0) >> 5)
		u.extra[AttrTargetTemperature] = wire.Float((float64(payload[2]) - 30) / 2)
		u.extra[AttrFanSpeed] = wire.Int(int64(payload[3] & 0x7F))
		u.extra[AttrBoostMode] = wire.Bool(payload[4]&0x20 != 0)
		u.extra[AttrSleepMode] = wire.Bool(payload[4]&0x01 != 0)
		u.extra[AttrEcoMode] = wire.Bool(payload[4]&0x80 != 0)
		if len(payload) >= 6 {
			sn8 := payload[5]&0x01 != 0
			u.SN8 = &sn8
		}
	case subQuerySensor:
		if len(payload) >= 2 && payload[0] != 0xFF {
			u.extra[AttrIndoorTemperature] = wire.Float((float64(payload[0]) - 50) / 2)
		}
		if len(payload) >= 2 && payload[1] != 0xFF {
			u.extra[AttrOutdoorTemp] = wire.Float((float64(payload[1]) - 50) / 2)
		}
	case subQueryTimer:
		if len(payload) >= 1 {
			timer := payload[0]&0x01 != 0
			u.Timer = &timer
		}
	}
	return u, nil
}

// boolAt builds a decoder for a single flag bit with a length guard.
func boolAt(idx int, mask byte) wire.FieldDecoder {
	return func(b []byte) (wire.Value, bool) {
		if len(b) <= idx {
			return wire.Value{}, false
		}
		return wire.Bool(b[idx]&mask != 0), true
	}
}

// tempAt builds a decoder for the packed temperature encoding: offset-50
// halves with a shared decimal byte, absent when the sensor reports 0xFF.
func tempAt(idx, decimalIdx int, highNibble bool) wire.FieldDecoder {
	return func(b []byte) (wire.Value, bool) {
		if len(b) <= idx || b[idx] == 0xFF {
			return wire.Value{}, false
		}
		t := (float64(b[idx]) - 50) / 2
		if len(b) > decimalIdx {
			d := b[decimalIdx] & 0x0F
			if highNibble {
				d = b[decimalIdx] >> 4
			}
			if t >= 0 {
				t += float64(d) / 10
			} else {
				t -= float64(d) / 10
			}
		}
		return wire.Float(t), true
	}
}

// bcd unpacks packed-BCD bytes into an integer.
func bcd(b []byte) int64 {
	var v int64
	for _, x := range b {
		v = v*100 + int64(x>>4)*10 + int64(x&0x0F)
	}
	return v
}
