package main

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-pdu/logger"
	"github.com/cyberinferno/go-pdu/pduclient"
	"github.com/cyberinferno/go-pdu/protocol"
)

var (
	flagHost    string
	flagUser    string
	flagPass    string
	flagTimeout time.Duration
	flagConfig  string
	flagLogDir  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pductl",
	Short: "Control networked power-distribution devices",
	Long: `pductl talks the line protocol of networked power-distribution devices
over a persistent TCP session.

The device address, credentials, and timeout are resolved in order from
flags, a TOML config file (--config), and the PDU_HOST / PDU_USER /
PDU_PASS environment variables. A host without a port defaults to the
device's telnet port.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagHost, "host", "H", "", "Device address, host or host:port")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Login username")
	rootCmd.PersistentFlags().StringVarP(&flagPass, "pass", "p", "", "Login password")
	rootCmd.PersistentFlags().DurationVarP(&flagTimeout, "timeout", "t", 0, "Command timeout (e.g. 3s)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Write daily-rotated log files to this directory instead of the console")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the logger for CLI commands, honoring --verbose. With a
// log directory set, output goes to daily-rotated files; otherwise to the
// console.
func newLogger(logDir string) (logger.Logger, error) {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}

	if logDir != "" {
		return logger.NewZerologFileLogger("pductl", logDir, level)
	}

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	return logger.NewZerologLogger(console, "pductl", level), nil
}

// connectClient resolves the effective settings and opens an authenticated
// session. The caller owns the returned client and must Close it.
func connectClient() (*pduclient.Client, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(s.LogDir)
	if err != nil {
		return nil, err
	}

	cfg := pduclient.DefaultConfig(s.Host)
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.CommandTimeout = s.Timeout
	cfg.Logger = log

	client := pduclient.NewClient(cfg)
	if err := client.Connect(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// ensurePort appends the protocol's default port when host carries none.
func ensurePort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(protocol.DefaultPort))
}
