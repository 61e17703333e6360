package wire

// crc8Table is the Maxim/Dallas CRC-8 lookup table (reflected polynomial
// 0x8C) the appliances use for body integrity.
var crc8Table [256]byte

func init() {
	for i := range crc8Table {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x01 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
		crc8Table[i] = crc
	}
}

// CRC8 computes the body CRC over data.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// AppendCRC8 returns body with its CRC byte appended.
func AppendCRC8(body []byte) []byte {
	return append(body, CRC8(body))
}
