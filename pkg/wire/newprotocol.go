package wire

import (
	"fmt"
)

// NewProtocolParam is one tagged sub-field of a new-protocol extension body.
// Tags are small integer codes; values are opaque to the codec.
type NewProtocolParam struct {
	Tag   uint16
	Value []byte
}

// EncodeNewProtocolSet builds the payload of a new-protocol set body: a
// parameter count followed by tag (little-endian), length, value entries.
func EncodeNewProtocolSet(params []NewProtocolParam) []byte {
	out := []byte{byte(len(params))}
	for _, p := range params {
		out = append(out, byte(p.Tag&0xFF), byte(p.Tag>>8), byte(len(p.Value)))
		out = append(out, p.Value...)
	}
	return out
}

// EncodeNewProtocolQuery builds the payload of a new-protocol query body: a
// tag count followed by the little-endian tag codes.
func EncodeNewProtocolQuery(tags []uint16) []byte {
	out := []byte{byte(len(tags))}
	for _, tag := range tags {
		out = append(out, byte(tag&0xFF), byte(tag>>8))
	}
	return out
}

// DecodeNewProtocolParams parses a new-protocol response payload into its
// tagged sub-fields. payload starts at the parameter count byte.
func DecodeNewProtocolParams(payload []byte) (map[uint16][]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty new-protocol payload", ErrMalformedFrame)
	}

	count := int(payload[0])
	params := make(map[uint16][]byte, count)
	pos := 1
	for i := 0; i < count; i++ {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("%w: truncated new-protocol entry %d", ErrMalformedFrame, i)
		}
		tag := uint16(payload[pos]) | uint16(payload[pos+1])<<8
		// Entry layout: tag(2), result/length split differs per firmware; the
		// observed layout is tag(2), status(1), length(1), value(length).
		length := int(payload[pos+3])
		pos += 4
		if pos+length > len(payload) {
			return nil, fmt.Errorf("%w: new-protocol value for tag 0x%X overruns payload", ErrMalformedFrame, tag)
		}
		params[tag] = payload[pos : pos+length]
		pos += length
	}
	return params, nil
}
