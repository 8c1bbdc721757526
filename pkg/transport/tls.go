package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCACerts indicates a CA file without any usable PEM certificate.
var ErrNoCACerts = errors.New("no CA certificates found")

// TLSConfig holds configuration for ssl:// and wss:// broker connections.
type TLSConfig struct {
	// CAFile is a PEM bundle of trusted CAs. Empty uses the system pool.
	CAFile string

	// CertFile and KeyFile optionally hold a client certificate.
	CertFile string
	KeyFile  string

	// ServerName overrides the name used for verification and SNI.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// NewClientTLSConfig creates a TLS configuration for connecting to a broker.
// A nil cfg yields defaults verified against the system pool.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if cfg == nil {
		return tlsConfig, nil
	}

	tlsConfig.ServerName = cfg.ServerName
	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w in %s", ErrNoCACerts, cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
