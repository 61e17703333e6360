// Command midea-ctl is an interactive controller for LAN air conditioners.
//
// It discovers appliances on the local network, connects to them over the
// encrypted LAN protocol, mirrors their state through the attribute
// synchronizer and sends control commands.
//
// Usage:
//
//	midea-ctl [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-log-level string   Console log level: debug, info, warn (default "info")
//	-log-file string    Optional CBOR event log path
//	-credentials string Credential store path (default "credentials.json")
//
// Interactive Commands:
//
//	discover            - Scan the network for appliances
//	devices             - List known appliances
//	connect <id>        - Connect to an appliance
//	disconnect <id>     - Disconnect from an appliance
//	status <id>         - Show cached attribute values
//	set <id> <attr> <value> - Set one attribute
//	temp <id> <value> [mode] - Set target temperature (and optionally mode)
//	swing <id> <h|v|hv|off> - Set swing louvres
//	forget <id>         - Drop stored credentials for an appliance
//	quit                - Exit
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kovapatrik/homebridge-midea-ac/cmd/midea-ctl/interactive"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/cloud"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/config"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/persistence"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/session"

	"flag"
)

func main() {
	var (
		configPath string
		logLevel   string
		logFile    string
		credPath   string
	)
	flag.StringVar(&configPath, "config", "", "Configuration file path")
	flag.StringVar(&logLevel, "log-level", "info", "Console log level: debug, info, warn")
	flag.StringVar(&logFile, "log-file", "", "Optional CBOR event log path")
	flag.StringVar(&credPath, "credentials", "credentials.json", "Credential store path")
	flag.Parse()

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		if cfg.Log.Level != "" {
			logLevel = cfg.Log.Level
		}
		if cfg.Log.File != "" {
			logFile = cfg.Log.File
		}
		if cfg.CredentialFile != "" {
			credPath = cfg.CredentialFile
		}
	} else {
		cfg = &config.Config{}
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", logLevel)
		os.Exit(1)
	}

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	loggers := []log.Logger{log.NewZerologAdapter(console)}
	if logFile != "" {
		fileLogger, err := log.NewFileLogger(logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open event log: %v\n", err)
			os.Exit(1)
		}
		defer fileLogger.Close()
		loggers = append(loggers, fileLogger)
	}
	logger := log.NewMultiLogger(loggers...)

	store := persistence.NewCredentialStore(credPath)

	// Config-supplied token/key pairs take the place of a cloud account.
	provider := cloud.NewStaticProvider()
	for _, d := range cfg.Devices {
		if d.Token == "" || d.Key == "" {
			continue
		}
		token, err := hex.DecodeString(d.Token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "device %d: invalid token hex\n", d.ID)
			os.Exit(1)
		}
		key, err := hex.DecodeString(d.Key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "device %d: invalid key hex\n", d.ID)
			os.Exit(1)
		}
		provider.Add(d.ID, cloud.Credentials{Token: token, Key: key})
	}
	gate := cloud.NewGate(provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctl, err := interactive.New(interactive.Config{
		Logger: logger,
		Store:  store,
		Gate:   gate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	// Devices pinned in the config are known before any scan.
	for _, d := range cfg.Devices {
		ctl.AddDevice(session.DeviceInfo{
			IP:              d.IP,
			Port:            d.Port,
			ID:              d.ID,
			Name:            d.Name,
			Type:            session.DeviceTypeAC,
			ProtocolVersion: d.ProtocolVersion,
		})
	}

	go ctl.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	ctl.Close()
}
