package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shv-protocol/shv-go/pkg/transport"
)

// Service type constants for mDNS.
const (
	// ServiceTypeBroker is the service type brokers advertise.
	ServiceTypeBroker = "_shvbroker._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is used when an entry carries no port.
	DefaultPort = 3755
)

// TXT record keys.
const (
	TXTKeyScheme = "scheme" // tcp, ssl, ws or wss (optional, default tcp)
	TXTKeyPath   = "path"   // websocket path (optional)
	TXTKeyName   = "name"   // broker name (optional)
)

// BrowseTimeout is the default timeout for Find.
const BrowseTimeout = 5 * time.Second

// Errors returned by discovery.
var (
	ErrNotFound      = errors.New("no broker found")
	ErrInvalidScheme = errors.New("invalid scheme in TXT record")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ServiceEntry is a raw browse result, independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []string
}

// BrokerService is a broker found on the local network.
type BrokerService struct {
	InstanceName string
	Name         string
	Host         string
	Port         int
	Addresses    []string
	Scheme       string
	Path         string
}

// ToBrokerService converts a browse entry. Entries with an unknown scheme
// are rejected.
func (e *ServiceEntry) ToBrokerService() (*BrokerService, error) {
	txt := StringsToTXTRecords(e.Text)
	scheme := txt[TXTKeyScheme]
	switch scheme {
	case "":
		scheme = transport.SchemeTCP
	case transport.SchemeTCP, transport.SchemeSSL, transport.SchemeWS, transport.SchemeWSS:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
	}
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	return &BrokerService{
		InstanceName: e.Instance,
		Name:         txt[TXTKeyName],
		Host:         strings.TrimSuffix(e.Host, "."),
		Port:         port,
		Addresses:    append([]string(nil), e.Addrs...),
		Scheme:       scheme,
		Path:         txt[TXTKeyPath],
	}, nil
}

// DialHost returns the host to connect to: the first address when the
// entry carried any, else the advertised host name.
func (s *BrokerService) DialHost() string {
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return s.Host
}

// DialConfig returns the transport configuration for the broker.
func (s *BrokerService) DialConfig() transport.DialConfig {
	return transport.DialConfig{
		Scheme: s.Scheme,
		Host:   s.DialHost(),
		Port:   s.Port,
		Path:   s.Path,
	}
}

// String formats the service as scheme://host:port.
func (s *BrokerService) String() string {
	return s.Scheme + "://" + s.DialHost() + ":" + strconv.Itoa(s.Port)
}
