package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/shv-protocol/shv-go/pkg/client"
	"github.com/shv-protocol/shv-go/pkg/transport"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// Config holds the agent configuration. Every field can come from the
// config file; flags set on the command line win.
type Config struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Scheme   string `yaml:"scheme" toml:"scheme"`
	WSPath   string `yaml:"ws_path" toml:"ws_path"`
	Discover bool   `yaml:"discover" toml:"discover"`

	User         string `yaml:"user" toml:"user"`
	Password     string `yaml:"password" toml:"password"`
	PasswordType string `yaml:"password_type" toml:"password_type"`

	DeviceID   string `yaml:"device_id" toml:"device_id"`
	MountPoint string `yaml:"mount_point" toml:"mount_point"`
	ExportDir  string `yaml:"export_dir" toml:"export_dir"`

	Protocol    string        `yaml:"protocol" toml:"protocol"`
	Heartbeat   time.Duration `yaml:"heartbeat" toml:"heartbeat"`
	CallTimeout time.Duration `yaml:"call_timeout" toml:"call_timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	MaxRetry    time.Duration `yaml:"max_retry_delay" toml:"max_retry_delay"`
	CmdTimeout  time.Duration `yaml:"command_timeout" toml:"command_timeout"`

	CAFile             string `yaml:"ca_file" toml:"ca_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`

	Verbosity   string `yaml:"verbose" toml:"verbose"`
	LogFormat   string `yaml:"log_format" toml:"log_format"`
	ProtocolLog string `yaml:"protocol_log" toml:"protocol_log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        3755,
		Scheme:      transport.SchemeTCP,
		Protocol:    wire.ProtocolCBOR.String(),
		Heartbeat:   client.DefaultHeartbeatInterval,
		CallTimeout: client.DefaultCallTimeout,
		RetryDelay:  5 * time.Second,
		CmdTimeout:  60 * time.Second,
		LogFormat:   "text",
	}
}

// LoadConfigFile overlays the file at path onto cfg. The format follows the
// extension: .yaml/.yml or .toml.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported format %q (use .yaml, .yml or .toml)", path, filepath.Ext(path))
	}
	return nil
}

// ParseArgs builds the configuration from defaults, the optional config
// file and the command line.
func ParseArgs(args []string, output io.Writer) (Config, error) {
	var (
		fc         = DefaultConfig()
		configPath string
	)
	fs := flag.NewFlagSet("shvagent", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&configPath, "config", "", "Configuration file (.yaml, .yml or .toml)")
	fs.StringVar(&fc.Host, "host", fc.Host, "Broker host")
	fs.StringVar(&fc.Host, "s", fc.Host, "Broker host (shorthand)")
	fs.IntVar(&fc.Port, "port", fc.Port, "Broker port")
	fs.IntVar(&fc.Port, "p", fc.Port, "Broker port (shorthand)")
	fs.StringVar(&fc.Scheme, "scheme", fc.Scheme, "Transport: tcp, ssl, ws or wss")
	fs.StringVar(&fc.WSPath, "ws-path", fc.WSPath, "HTTP path for ws and wss")
	fs.BoolVar(&fc.Discover, "discover", fc.Discover, "Find the broker with mDNS when no host is set")
	fs.StringVar(&fc.User, "user", fc.User, "Login user")
	fs.StringVar(&fc.User, "u", fc.User, "Login user (shorthand)")
	fs.StringVar(&fc.Password, "password", fc.Password, "Login password")
	fs.StringVar(&fc.PasswordType, "password-type", fc.PasswordType, "PLAIN or SHA1 (guessed from the password when empty)")
	fs.StringVar(&fc.DeviceID, "device-id", fc.DeviceID, "Device id announced at login")
	fs.StringVar(&fc.MountPoint, "mount-point", fc.MountPoint, "Mount point requested at login")
	fs.StringVar(&fc.MountPoint, "m", fc.MountPoint, "Mount point (shorthand)")
	fs.StringVar(&fc.ExportDir, "export-dir", fc.ExportDir, "Directory exported as the 'fs' node")
	fs.StringVar(&fc.ExportDir, "e", fc.ExportDir, "Export directory (shorthand)")
	fs.StringVar(&fc.Protocol, "protocol", fc.Protocol, "Wire encoding: cbor or json")
	fs.DurationVar(&fc.Heartbeat, "heartbeat", fc.Heartbeat, "Heartbeat interval, 0 disables")
	fs.DurationVar(&fc.CallTimeout, "call-timeout", fc.CallTimeout, "Timeout of outgoing calls")
	fs.DurationVar(&fc.RetryDelay, "retry-delay", fc.RetryDelay, "Delay between connection attempts")
	fs.DurationVar(&fc.MaxRetry, "max-retry-delay", fc.MaxRetry, "Grow the retry delay up to this cap, 0 keeps it fixed")
	fs.DurationVar(&fc.CmdTimeout, "command-timeout", fc.CmdTimeout, "Timeout of runCmd commands")
	fs.StringVar(&fc.CAFile, "ca-file", fc.CAFile, "PEM CA bundle for ssl and wss")
	fs.BoolVar(&fc.InsecureSkipVerify, "insecure", fc.InsecureSkipVerify, "Skip TLS verification (testing only)")
	fs.StringVar(&fc.Verbosity, "v", fc.Verbosity, "Verbosity levels for targets, for example: rpcmsg:W or :T")
	fs.StringVar(&fc.LogFormat, "log-format", fc.LogFormat, "Log format: text or json")
	fs.StringVar(&fc.ProtocolLog, "protocol-log", fc.ProtocolLog, "Write protocol events to this CBOR file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	// The default host applies only when neither the file nor a flag names
	// one and discovery is off.
	cfg := DefaultConfig()
	cfg.Host = ""
	if configPath != "" {
		if err := LoadConfigFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	hostSet := cfg.Host != ""
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "host" || f.Name == "s" {
			hostSet = true
		}
		applyFlag(&cfg, &fc, f.Name)
	})
	if !hostSet && !cfg.Discover {
		cfg.Host = DefaultConfig().Host
	}
	return cfg, cfg.Validate()
}

func applyFlag(dst, src *Config, name string) {
	switch name {
	case "host", "s":
		dst.Host = src.Host
	case "port", "p":
		dst.Port = src.Port
	case "scheme":
		dst.Scheme = src.Scheme
	case "ws-path":
		dst.WSPath = src.WSPath
	case "discover":
		dst.Discover = src.Discover
	case "user", "u":
		dst.User = src.User
	case "password":
		dst.Password = src.Password
	case "password-type":
		dst.PasswordType = src.PasswordType
	case "device-id":
		dst.DeviceID = src.DeviceID
	case "mount-point", "m":
		dst.MountPoint = src.MountPoint
	case "export-dir", "e":
		dst.ExportDir = src.ExportDir
	case "protocol":
		dst.Protocol = src.Protocol
	case "heartbeat":
		dst.Heartbeat = src.Heartbeat
	case "call-timeout":
		dst.CallTimeout = src.CallTimeout
	case "retry-delay":
		dst.RetryDelay = src.RetryDelay
	case "max-retry-delay":
		dst.MaxRetry = src.MaxRetry
	case "command-timeout":
		dst.CmdTimeout = src.CmdTimeout
	case "ca-file":
		dst.CAFile = src.CAFile
	case "insecure":
		dst.InsecureSkipVerify = src.InsecureSkipVerify
	case "v":
		dst.Verbosity = src.Verbosity
	case "log-format":
		dst.LogFormat = src.LogFormat
	case "protocol-log":
		dst.ProtocolLog = src.ProtocolLog
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" && !c.Discover {
		errs = append(errs, errors.New("host is required unless -discover is set"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Scheme {
	case transport.SchemeTCP, transport.SchemeSSL, transport.SchemeWS, transport.SchemeWSS:
	default:
		errs = append(errs, fmt.Errorf("unknown scheme %q", c.Scheme))
	}
	if c.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if c.PasswordType != "" {
		if _, err := client.ParsePasswordType(c.PasswordType); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := wire.ParseProtocol(c.Protocol); err != nil {
		errs = append(errs, err)
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ConnectionParams converts the configuration into login parameters.
func (c *Config) ConnectionParams() (*client.ConnectionParams, error) {
	p := client.NewConnectionParams(c.Host, c.Port, c.User, c.Password)
	p.Scheme = c.Scheme
	p.WSPath = c.WSPath
	p.DeviceID = c.DeviceID
	p.MountPoint = c.MountPoint
	p.HeartbeatInterval = c.Heartbeat
	if c.PasswordType != "" {
		pt, err := client.ParsePasswordType(c.PasswordType)
		if err != nil {
			return nil, err
		}
		p.PasswordType = pt
	}
	proto, err := wire.ParseProtocol(c.Protocol)
	if err != nil {
		return nil, err
	}
	p.Protocol = proto
	if c.CAFile != "" || c.InsecureSkipVerify {
		p.TLS = &transport.TLSConfig{CAFile: c.CAFile, InsecureSkipVerify: c.InsecureSkipVerify}
	}
	return p, nil
}
