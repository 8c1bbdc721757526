package client

import (
	"fmt"
	"time"

	"github.com/shv-protocol/shv-go/pkg/transport"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// DefaultHeartbeatInterval is the ping period announced at login.
const DefaultHeartbeatInterval = 60 * time.Second

// HashedPasswordLength is the length of a hex-encoded SHA1 password.
const HashedPasswordLength = 40

// PasswordType tells the broker how to interpret the login password.
type PasswordType uint8

const (
	// PasswordPlain is a plaintext password.
	PasswordPlain PasswordType = iota

	// PasswordSHA1 is a hex-encoded SHA1 digest.
	PasswordSHA1
)

// String returns the name used in login parameters.
func (t PasswordType) String() string {
	switch t {
	case PasswordPlain:
		return "PLAIN"
	case PasswordSHA1:
		return "SHA1"
	default:
		return "UNKNOWN"
	}
}

// ParsePasswordType parses "PLAIN" or "SHA1" (case-sensitive).
func ParsePasswordType(s string) (PasswordType, error) {
	switch s {
	case "PLAIN":
		return PasswordPlain, nil
	case "SHA1":
		return PasswordSHA1, nil
	default:
		return 0, fmt.Errorf("unknown password type %q", s)
	}
}

// ConnectionParams describes how to reach and log in to a broker.
type ConnectionParams struct {
	// Scheme is the transport scheme: tcp (default), ssl, ws or wss.
	Scheme string

	// Host and Port locate the broker. Port 0 selects the scheme default.
	Host string
	Port int

	// WSPath is the HTTP path for websocket schemes.
	WSPath string

	// TLS configures ssl and wss connections.
	TLS *transport.TLSConfig

	User         string
	Password     string
	PasswordType PasswordType

	// DeviceID takes precedence over MountPoint when both are set.
	DeviceID   string
	MountPoint string

	// HeartbeatInterval is the ping period. Zero disables the heartbeat
	// and omits idleWatchDogTimeOut from the login options.
	HeartbeatInterval time.Duration

	// Protocol is the wire encoding (default CBOR).
	Protocol wire.Protocol
}

// NewConnectionParams creates parameters with defaults. A password that
// already has the hashed length is sent as SHA1.
func NewConnectionParams(host string, port int, user, password string) *ConnectionParams {
	p := &ConnectionParams{
		Host:              host,
		Port:              port,
		User:              user,
		Password:          password,
		PasswordType:      PasswordPlain,
		HeartbeatInterval: DefaultHeartbeatInterval,
		Protocol:          wire.DefaultProtocol,
	}
	if len(password) == HashedPasswordLength {
		p.PasswordType = PasswordSHA1
	}
	return p
}

// DialConfig returns the transport configuration for these parameters.
func (p *ConnectionParams) DialConfig() transport.DialConfig {
	return transport.DialConfig{
		Scheme: p.Scheme,
		Host:   p.Host,
		Port:   p.Port,
		Path:   p.WSPath,
		TLS:    p.TLS,
	}
}

// LoginParams builds the parameter map of the "login" call.
func (p *ConnectionParams) LoginParams() map[string]any {
	options := map[string]any{}
	if p.HeartbeatInterval > 0 {
		secs := int64(p.HeartbeatInterval / time.Second)
		options["idleWatchDogTimeOut"] = secs * 3
	}
	switch {
	case p.DeviceID != "":
		options["device"] = map[string]any{"deviceId": p.DeviceID}
	case p.MountPoint != "":
		options["device"] = map[string]any{"mountPoint": p.MountPoint}
	}

	return map[string]any{
		"login": map[string]any{
			"user":     p.User,
			"password": p.Password,
			"type":     p.PasswordType.String(),
		},
		"options": options,
	}
}
