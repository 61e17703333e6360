package wire

import (
	"errors"
	"fmt"
)

// Frame layout constants.
const (
	// SyncByte starts every device frame.
	SyncByte = 0xAA

	// HeaderSize is the device frame header length.
	HeaderSize = 10

	// MinFrameSize is a header plus a one-byte body and the checksum.
	MinFrameSize = HeaderSize + 2
)

// FrameType is the frame-type byte in the device frame header.
type FrameType uint8

const (
	// FrameTypeSet carries a state-changing command.
	FrameTypeSet FrameType = 0x02

	// FrameTypeRequest carries a status query.
	FrameTypeRequest FrameType = 0x03

	// FrameTypeResponse carries an appliance response.
	FrameTypeResponse FrameType = 0x04

	// FrameTypeAbnormalReport carries an unsolicited appliance report.
	FrameTypeAbnormalReport FrameType = 0x06
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameTypeSet:
		return "SET"
	case FrameTypeRequest:
		return "REQUEST"
	case FrameTypeResponse:
		return "RESPONSE"
	case FrameTypeAbnormalReport:
		return "ABNORMAL_REPORT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// known reports whether the frame type is in the accepted set.
func (t FrameType) known() bool {
	switch t {
	case FrameTypeSet, FrameTypeRequest, FrameTypeResponse, FrameTypeAbnormalReport:
		return true
	default:
		return false
	}
}

// Codec errors.
var (
	// ErrMalformedFrame indicates an inconsistent header, length or checksum.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownFrameType indicates a frame-type byte outside the known set.
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// Frame is a decoded device frame.
type Frame struct {
	// Type is the frame type from the header.
	Type FrameType

	// DeviceType is the appliance class code (0xAC for air conditioners).
	DeviceType uint8

	// ProtocolVersion is the firmware protocol version from the header.
	ProtocolVersion uint8

	// Body is the frame body, starting with the body-type byte.
	Body []byte
}

// EncodeFrame serializes a device frame: header, body, trailing checksum.
// The declared length covers everything except the sync byte.
func EncodeFrame(deviceType, protocolVersion uint8, frameType FrameType, body []byte) []byte {
	frame := make([]byte, HeaderSize, HeaderSize+len(body)+1)
	frame[0] = SyncByte
	frame[1] = byte(HeaderSize + len(body))
	frame[2] = deviceType
	frame[8] = protocolVersion
	frame[9] = byte(frameType)
	frame = append(frame, body...)
	return append(frame, Checksum(frame[1:]))
}

// DecodeFrame parses and validates a device frame.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(data))
	}
	if data[0] != SyncByte {
		return nil, fmt.Errorf("%w: bad sync byte 0x%02X", ErrMalformedFrame, data[0])
	}
	if int(data[1])+1 != len(data) {
		return nil, fmt.Errorf("%w: declared length %d, frame is %d bytes", ErrMalformedFrame, data[1], len(data))
	}
	if sum := Checksum(data[1 : len(data)-1]); sum != data[len(data)-1] {
		return nil, fmt.Errorf("%w: checksum 0x%02X, want 0x%02X", ErrMalformedFrame, data[len(data)-1], sum)
	}

	frameType := FrameType(data[9])
	if !frameType.known() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownFrameType, data[9])
	}

	return &Frame{
		Type:            frameType,
		DeviceType:      data[2],
		ProtocolVersion: data[8],
		Body:            data[HeaderSize : len(data)-1],
	}, nil
}

// Checksum computes the additive frame checksum: the two's complement of the
// byte sum, so that summing the covered bytes plus the checksum yields zero.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}
