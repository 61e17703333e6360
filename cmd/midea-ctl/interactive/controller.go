// Package interactive provides the interactive command-line interface
// for midea-ctl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/ac"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/cloud"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/connection"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/discovery"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/persistence"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/session"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// Config wires the controller's collaborators.
type Config struct {
	Logger log.Logger
	Store  *persistence.CredentialStore
	Gate   *cloud.Gate
}

// device tracks one known appliance and its session, if connected.
type device struct {
	info       session.DeviceInfo
	sess       *session.Session
	supervisor *connection.Supervisor
}

// Controller handles interactive mode for midea-ctl.
type Controller struct {
	logger log.Logger
	store  *persistence.CredentialStore
	gate   *cloud.Gate
	rl     *readline.Instance

	devices map[uint64]*device
}

// New creates an interactive controller.
func New(cfg Config) (*Controller, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "midea> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Controller{
		logger:  cfg.Logger,
		store:   cfg.Store,
		gate:    cfg.Gate,
		rl:      rl,
		devices: make(map[uint64]*device),
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *Controller) Stdout() io.Writer {
	return c.rl.Stdout()
}

// AddDevice registers a known appliance without connecting.
func (c *Controller) AddDevice(info session.DeviceInfo) {
	if _, exists := c.devices[info.ID]; !exists {
		c.devices[info.ID] = &device{info: info}
	}
}

// Close shuts down all sessions.
func (c *Controller) Close() {
	for _, d := range c.devices {
		if d.supervisor != nil {
			d.supervisor.Close()
		}
	}
	_ = c.rl.Close()
}

// Run starts the interactive command loop.
func (c *Controller) Run(ctx context.Context, cancel context.CancelFunc) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "discover":
			c.cmdDiscover(ctx)

		case "devices", "list", "ls":
			c.cmdDevices()

		case "connect":
			c.cmdConnect(ctx, args)

		case "disconnect":
			c.cmdDisconnect(args)

		case "status", "s":
			c.cmdStatus(args)

		case "set":
			c.cmdSet(args)

		case "temp":
			c.cmdTemp(args)

		case "swing":
			c.cmdSwing(args)

		case "forget":
			c.cmdForget(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Controller) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Commands:
  Discovery & Connection:
    discover                 - Scan the network for appliances
    devices                  - List known appliances
    connect <id>             - Connect to an appliance
    disconnect <id>          - Disconnect from an appliance
    forget <id>              - Drop stored credentials

  Control:
    status <id>              - Show cached attribute values
    set <id> <attr> <value>  - Set one attribute (e.g. set 123 power on)
    temp <id> <value> [mode] - Set target temperature
    swing <id> <h|v|hv|off>  - Set swing louvres

  General:
    help                     - Show this help
    quit                     - Exit`)
}

func (c *Controller) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(c.rl.Stdout(), "Scanning for appliances...")

	found := 0
	d, err := discovery.New(discovery.Config{
		OnDevice: func(info session.DeviceInfo) {
			found++
			fmt.Fprintf(c.rl.Stdout(), "  found %d at %s (model %s, protocol v%d)\n",
				info.ID, info.Addr(), info.Model, info.ProtocolVersion)
			c.AddDevice(info)
		},
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	_ = d.Run(scanCtx)

	if found == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No appliances found")
	}
}

func (c *Controller) cmdDevices() {
	if len(c.devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No known appliances (try 'discover')")
		return
	}

	ids := make([]uint64, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		d := c.devices[id]
		state := "disconnected"
		if d.sess != nil {
			state = strings.ToLower(d.sess.State().String())
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d  %-21s %-10s %s\n", id, d.info.Addr(), state, d.info.Name)
	}
}

func (c *Controller) cmdConnect(ctx context.Context, args []string) {
	d, ok := c.device(args)
	if !ok {
		return
	}
	if d.sess != nil && d.sess.State() == session.StateConnected {
		fmt.Fprintln(c.rl.Stdout(), "Already connected")
		return
	}

	// The supervisor owns reconnection; the session reports loss to it.
	var sup *connection.Supervisor
	sess := session.New(session.Config{
		Device: d.info,
		Logger: c.logger,
		OnChange: func(changed ac.ChangeSet) {
			names := make([]string, 0, len(changed))
			for name := range changed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(c.rl.Stdout(), "  [%d] %s = %s\n", d.info.ID, name, changed[name])
			}
		},
		OnDisconnect: func(error) {
			sup.NotifyConnectionLost()
		},
	})
	sup = connection.NewSupervisor(sess, nil)
	sup.OnConnected(func() {
		if err := sess.Query(); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Query failed: %v\n", err)
		}
	})
	sup.OnRetry(func(attempt int, delay time.Duration) {
		fmt.Fprintf(c.rl.Stdout(), "  [%d] reconnect attempt %d in %s\n", d.info.ID, attempt, delay)
	})

	if creds, endianness, found, err := c.store.Load(d.info.ID); err == nil && found {
		sess.SetCredentials(creds, endianness)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connection.ConnectTimeout)
	defer cancel()

	var err error
	if creds, _ := sess.Credentials(); len(creds.Token) > 0 || d.info.ProtocolVersion < 3 {
		err = sup.Start(connectCtx)
	} else {
		// Pairing connects while probing tokens; adopt the live connection.
		err = sess.Pair(connectCtx, c.gate)
		if err == nil {
			creds, endianness := sess.Credentials()
			if saveErr := c.store.Save(d.info.ID, creds, endianness); saveErr != nil {
				fmt.Fprintf(c.rl.Stdout(), "Warning: failed to persist credentials: %v\n", saveErr)
			}
			err = sup.Adopt()
		}
	}
	if err != nil {
		sup.Close()
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}

	d.sess = sess
	d.supervisor = sup
	fmt.Fprintf(c.rl.Stdout(), "Connected to %d\n", d.info.ID)
}

func (c *Controller) cmdDisconnect(args []string) {
	d, ok := c.device(args)
	if !ok {
		return
	}
	if d.supervisor != nil {
		d.supervisor.Close()
		d.supervisor = nil
	}
	if d.sess != nil {
		_ = d.sess.Disconnect()
		d.sess = nil
	}
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

func (c *Controller) cmdStatus(args []string) {
	d, ok := c.connected(args)
	if !ok {
		return
	}

	attrs := d.sess.Attributes()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.rl.Stdout(), "  %-28s %s\n", name, attrs[name])
	}
}

func (c *Controller) cmdSet(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: set <id> <attr> <value>")
		return
	}
	d, ok := c.connected(args[:1])
	if !ok {
		return
	}

	value := parseValue(args[2])
	if err := d.sess.SetAttributes([]ac.SetRequest{{Name: args[1], Value: value}}); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Set failed: %v\n", err)
	}
}

func (c *Controller) cmdTemp(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: temp <id> <value> [mode]")
		return
	}
	d, ok := c.connected(args[:1])
	if !ok {
		return
	}

	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid temperature: %v\n", err)
		return
	}
	var mode int64
	if len(args) > 2 {
		mode, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid mode: %v\n", err)
			return
		}
	}

	if err := d.sess.SetTargetTemperature(value, mode); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Set failed: %v\n", err)
	}
}

func (c *Controller) cmdSwing(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: swing <id> <h|v|hv|off>")
		return
	}
	d, ok := c.connected(args[:1])
	if !ok {
		return
	}

	mode := strings.ToLower(args[1])
	horizontal := strings.Contains(mode, "h")
	vertical := strings.Contains(mode, "v")
	if !horizontal && !vertical && mode != "off" {
		fmt.Fprintln(c.rl.Stdout(), "Usage: swing <id> <h|v|hv|off>")
		return
	}

	if err := d.sess.SetSwing(horizontal, vertical); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Set failed: %v\n", err)
	}
}

func (c *Controller) cmdForget(args []string) {
	d, ok := c.device(args)
	if !ok {
		return
	}
	if err := c.store.Forget(d.info.ID); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Forget failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Credentials for %d removed\n", d.info.ID)
}

func (c *Controller) device(args []string) (*device, bool) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: <command> <id>")
		return nil, false
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid device id: %v\n", err)
		return nil, false
	}
	d, ok := c.devices[id]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Unknown device %d (try 'discover')\n", id)
		return nil, false
	}
	return d, true
}

func (c *Controller) connected(args []string) (*device, bool) {
	d, ok := c.device(args)
	if !ok {
		return nil, false
	}
	if d.sess == nil || d.sess.State() != session.StateConnected {
		fmt.Fprintf(c.rl.Stdout(), "Device %d is not connected\n", d.info.ID)
		return nil, false
	}
	return d, true
}

// parseValue interprets a command argument as the most specific value kind:
// bool words first, then integers, then floats, falling back to a string.
func parseValue(s string) wire.Value {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return wire.Bool(true)
	case "off", "false", "no":
		return wire.Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return wire.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return wire.Float(f)
	}
	return wire.Str(s)
}
