package discovery

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/security"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/session"
)

// Network constants.
const (
	// BroadcastPort is the UDP port appliances listen on for probes.
	BroadcastPort = 6445

	// DefaultInterval is the rebroadcast period while scanning.
	DefaultInterval = 5 * time.Second
)

// ErrMalformedReply indicates a discovery reply that does not parse.
var ErrMalformedReply = errors.New("malformed discovery reply")

// probePayload is the fixed broadcast template appliances recognize. The
// trailing block is an opaque vendor signature; firmware compares it
// byte-for-byte, so it must be reproduced exactly.
var probePayload = []byte{
	0x5a, 0x5a, 0x01, 0x11, 0x48, 0x00, 0x92, 0x00,
	0x96, 0x41, 0x91, 0x02, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x7f, 0x75, 0xbd, 0x6b, 0x3c, 0xe4, 0x8d, 0x75,
	0xa6, 0x7a, 0xd4, 0xe6, 0x30, 0x32, 0x76, 0x32,
	0x61, 0x74, 0x64, 0x62, 0x35, 0xfb, 0xe4, 0x33,
	0x4c, 0x29, 0x9f, 0x80, 0x83, 0x5c, 0x11, 0x93,
	0x7c, 0xde, 0x34, 0x03, 0xc8, 0xc6, 0x09, 0x2f,
	0x23, 0xf9, 0x5a, 0x26, 0x21, 0xae, 0xaa, 0x44,
	0x0d, 0x3f, 0x59, 0x2c, 0x2d, 0x0e, 0x14, 0xb6,
	0x7b,
}

// Config configures a discoverer.
type Config struct {
	// Interval between broadcast rounds. Defaults to DefaultInterval.
	Interval time.Duration

	// OnDevice is invoked for each appliance found, at most once per
	// device ID per Run. Required.
	OnDevice func(session.DeviceInfo)
}

// Discoverer scans the local network for appliances.
type Discoverer struct {
	interval time.Duration
	onDevice func(session.DeviceInfo)

	mu   sync.Mutex
	seen map[uint64]bool
}

// New creates a discoverer.
func New(cfg Config) (*Discoverer, error) {
	if cfg.OnDevice == nil {
		return nil, errors.New("OnDevice callback is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Discoverer{
		interval: interval,
		onDevice: cfg.OnDevice,
		seen:     make(map[uint64]bool),
	}, nil
}

// Run broadcasts probes and collects replies until ctx is done. Each device
// is reported once; Run blocks for the scan's lifetime.
func (d *Discoverer) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	go d.broadcastLoop(ctx, conn)

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		info, err := ParseReply(addr.IP.String(), buf[:n])
		if err != nil {
			continue
		}
		d.report(info)
	}
}

// Probe sends one direct probe to a known address, for devices that do not
// answer broadcasts across subnets.
func (d *Discoverer) Probe(ctx context.Context, ip string) (session.DeviceInfo, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return session.DeviceInfo{}, err
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: net.ParseIP(ip), Port: BroadcastPort}
	if _, err := conn.WriteToUDP(probePayload, dst); err != nil {
		return session.DeviceInfo{}, err
	}

	deadline := time.Now().Add(3 * time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return session.DeviceInfo{}, fmt.Errorf("probe of %s failed: %w", ip, err)
	}
	return ParseReply(ip, buf[:n])
}

func (d *Discoverer) broadcastLoop(ctx context.Context, conn *net.UDPConn) {
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: BroadcastPort}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		_, _ = conn.WriteToUDP(probePayload, dst)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Discoverer) report(info session.DeviceInfo) {
	d.mu.Lock()
	dup := d.seen[info.ID]
	d.seen[info.ID] = true
	d.mu.Unlock()
	if !dup {
		d.onDevice(info)
	}
}

// ParseReply decodes one discovery reply into a DeviceInfo. Replies from v3
// firmware arrive wrapped in the stream framing; the inner identity packet
// is the same on both versions.
func ParseReply(ip string, data []byte) (session.DeviceInfo, error) {
	version := uint8(2)
	if len(data) > 8+16 && data[0] == 0x83 && data[1] == 0x70 {
		data = data[8 : len(data)-16]
		version = 3
	}
	if len(data) < 104 || data[0] != 0x5a || data[1] != 0x5a {
		return session.DeviceInfo{}, ErrMalformedReply
	}

	deviceID := binary.LittleEndian.Uint64(data[20:28])

	plain, err := security.DecryptBody(data[40 : len(data)-16])
	if err != nil {
		return session.DeviceInfo{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(plain) < 41 {
		return session.DeviceInfo{}, ErrMalformedReply
	}

	port := int(binary.LittleEndian.Uint32(plain[4:8]))
	serial := string(plain[8:40])

	ssidLen := int(plain[40])
	if len(plain) < 41+ssidLen {
		return session.DeviceInfo{}, ErrMalformedReply
	}
	ssid := string(plain[41 : 41+ssidLen])

	return session.DeviceInfo{
		IP:              ip,
		Port:            port,
		ID:              deviceID,
		Model:           ssid,
		SerialNumber:    serial,
		Name:            ssid,
		Type:            typeFromSSID(ssid),
		ProtocolVersion: version,
	}, nil
}

// typeFromSSID extracts the device-class code from the appliance SSID, which
// has the form net_<type>_<suffix> with the type in hex.
func typeFromSSID(ssid string) uint8 {
	parts := strings.Split(ssid, "_")
	if len(parts) < 2 {
		return 0
	}
	t, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return 0
	}
	return uint8(t)
}
