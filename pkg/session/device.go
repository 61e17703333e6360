package session

import (
	"fmt"
)

// DeviceTypeAC is the device-class code for air conditioners.
const DeviceTypeAC = 0xAC

// DeviceInfo is the immutable identity of one discovered appliance.
type DeviceInfo struct {
	IP              string
	Port            int
	ID              uint64
	Model           string
	SerialNumber    string
	Name            string
	Type            uint8
	ProtocolVersion uint8
}

// Addr returns the appliance's TCP address.
func (d DeviceInfo) Addr() string {
	return fmt.Sprintf("%s:%d", d.IP, d.Port)
}
