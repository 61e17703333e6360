package ac

import (
	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// Command is one outbound message ready for framing. Apply carries the
// attribute writes the caller commits once the command has been handed to the
// transport, so the cached state tracks what was requested.
type Command struct {
	FrameType wire.FrameType
	Body      []byte
	Apply     ChangeSet
}

// newQuery builds the general status query body.
func newQuery() Command {
	body := []byte{
		0x41, 0x81, 0x00, 0xFF, 0x03, 0xFF, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x03,
	}
	return Command{FrameType: wire.FrameTypeRequest, Body: wire.AppendCRC8(body)}
}

// newPowerQuery builds the realtime power and energy counter query body.
func newPowerQuery() Command {
	body := []byte{0x41, 0x21, 0x01, 0x44, 0x00, 0x01}
	return Command{FrameType: wire.FrameTypeRequest, Body: wire.AppendCRC8(body)}
}

// newCapabilityQuery builds the capability enumeration query body.
func newCapabilityQuery() Command {
	body := []byte{bodyTypeCapability, 0x01, 0x11}
	return Command{FrameType: wire.FrameTypeRequest, Body: wire.AppendCRC8(body)}
}

// newSwitchDisplay builds the dedicated display-toggle request used by
// firmware without the new-protocol display capability. The toggle carries no
// payload; the appliance flips the panel state itself.
func newSwitchDisplay(target bool) Command {
	body := []byte{
		0x41, 0x61, 0x00, 0xFF, 0x02, 0x00, 0x02, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00,
	}
	return Command{
		FrameType: wire.FrameTypeRequest,
		Body:      wire.AppendCRC8(body),
		Apply:     ChangeSet{AttrScreenDisplay: wire.Bool(target)},
	}
}

// newNewProtocolSet builds a tag-keyed extension set. The prompt-tone flag
// always rides along.
func newNewProtocolSet(params []wire.NewProtocolParam, tone bool, apply ChangeSet) Command {
	toneByte := byte(0)
	if tone {
		toneByte = 1
	}
	params = append(params, wire.NewProtocolParam{Tag: tagPromptTone, Value: []byte{toneByte}})
	body := append([]byte{bodyTypeNewProtoSet}, wire.EncodeNewProtocolSet(params)...)
	return Command{FrameType: wire.FrameTypeSet, Body: wire.AppendCRC8(body), Apply: apply}
}

// newNewProtocolQuery builds a tag-keyed extension query.
func newNewProtocolQuery(tags []uint16) Command {
	body := append([]byte{bodyTypeNewProtoQry}, wire.EncodeNewProtocolQuery(tags)...)
	return Command{FrameType: wire.FrameTypeRequest, Body: wire.AppendCRC8(body)}
}

// newGeneralSet builds the general status set from the full cached state.
// Every set carries the whole state block; the appliance treats it as
// authoritative, which is why exclusive-mode clearing only needs the cache
// mutated before this builder runs.
func newGeneralSet(attrs *AttributeSet, tone bool, apply ChangeSet) Command {
	body := make([]byte, 23)
	body[0] = 0x40

	if attrs.Bool(AttrPower) {
		body[1] |= 0x01
	}
	if tone {
		body[1] |= 0x40
	}

	temp, _ := attrs.Get(AttrTargetTemperature)
	whole := int64(temp.AsFloat())
	body[2] = byte(attrs.Int(AttrMode)&0x07)<<5 | byte((whole-16)&0x0F)
	if temp.AsFloat()-float64(whole) >= 0.5 {
		body[2] |= 0x10
	}

	body[3] = byte(attrs.Int(AttrFanSpeed) & 0x7F)

	if attrs.Bool(AttrSwingVertical) {
		body[7] |= 0x0C
	}
	if attrs.Bool(AttrSwingHorizontal) {
		body[7] |= 0x03
	}
	if attrs.Bool(AttrSwingVertical) || attrs.Bool(AttrSwingHorizontal) {
		body[7] |= 0x30
	}

	if attrs.Bool(AttrSmartEye) {
		body[8] |= 0x40
	}
	if attrs.Bool(AttrBoostMode) {
		body[8] |= 0x20
		body[10] |= 0x02
	}
	if attrs.Bool(AttrNaturalWind) {
		body[9] |= 0x02
	}
	if attrs.Bool(AttrDry) {
		body[9] |= 0x04
	}
	if attrs.Bool(AttrAuxHeating) {
		body[9] |= 0x08
	}
	if attrs.Bool(AttrEcoMode) {
		body[9] |= 0x10
	}
	if attrs.Bool(AttrSleepMode) {
		body[10] |= 0x01
	}
	if attrs.Bool(AttrTempFahrenheit) {
		body[10] |= 0x04
	}
	if attrs.Bool(AttrFrostProtect) {
		body[21] |= 0x80
	}
	if attrs.Bool(AttrComfortMode) {
		body[22] |= 0x01
	}

	return Command{FrameType: wire.FrameTypeSet, Body: wire.AppendCRC8(body), Apply: apply}
}

// newSubProtocolQuery builds one legacy-family query for the given code.
func newSubProtocolQuery(code byte) Command {
	body := encodeSubProtocolBody(code, nil)
	return Command{FrameType: wire.FrameTypeRequest, Body: body}
}

// newSubProtocolSet builds the legacy-family control set from the cached
// state. Frost protection and comfort mode have no slot on this form.
func newSubProtocolSet(attrs *AttributeSet, tone bool, apply ChangeSet) Command {
	payload := make([]byte, 5)
	if attrs.Bool(AttrPower) {
		payload[0] |= 0x01
	}
	if tone {
		payload[0] |= 0x40
	}
	payload[1] = byte(attrs.Int(AttrMode)&0x07) << 5

	temp, _ := attrs.Get(AttrTargetTemperature)
	payload[2] = byte(temp.AsFloat()*2 + 30)
	payload[3] = byte(attrs.Int(AttrFanSpeed) & 0x7F)

	if attrs.Bool(AttrBoostMode) {
		payload[4] |= 0x20
	}
	if attrs.Bool(AttrSleepMode) {
		payload[4] |= 0x01
	}
	if attrs.Bool(AttrEcoMode) {
		payload[4] |= 0x80
	}

	body := encodeSubProtocolBody(subSetControl, payload)
	return Command{FrameType: wire.FrameTypeSet, Body: body, Apply: apply}
}

// encodeSubProtocolBody frames a sub-protocol payload under the outbound
// 0xAA marker. The length byte covers everything after itself up to and
// including the CRC.
func encodeSubProtocolBody(code byte, payload []byte) []byte {
	body := []byte{0xAA, byte(5 + len(payload)), 0x00, 0xFF, 0xFF, code}
	body = append(body, payload...)
	return wire.AppendCRC8(body)
}
