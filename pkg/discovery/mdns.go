package discovery

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowseFunc streams raw entries for service until ctx ends. Removed
// entries carry the addresses that went away.
type BrowseFunc func(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface. Empty means all.
	Interface string

	// Browse overrides the mDNS backend. Defaults to zeroconf.
	Browse BrowseFunc

	// Logger receives browse diagnostics (default slog.Default()).
	Logger *slog.Logger
}

// Browser finds brokers with mDNS.
type Browser struct {
	config BrowserConfig
	logger *slog.Logger
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	b := &Browser{config: config, logger: config.Logger.With("target", "discovery")}
	if b.config.Browse == nil {
		b.config.Browse = b.zeroconfBrowse
	}
	return b
}

// Browse streams brokers as they appear. Entries for the same instance seen
// on several interfaces are merged and reported once. The channel closes
// when ctx ends.
func (b *Browser) Browse(ctx context.Context) <-chan *BrokerService {
	out := make(chan *BrokerService)
	entries := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*BrokerService)
		for {
			select {
			case entry := <-entries:
				svc, err := entry.ToBrokerService()
				if err != nil {
					b.logger.Debug("ignoring broker entry", "instance", entry.Instance, "error", err)
					continue
				}
				if existing, found := services[svc.InstanceName]; found {
					merged := *existing
					merged.Addresses = mergeAddresses(append([]string(nil), existing.Addresses...), svc.Addresses)
					services[svc.InstanceName] = &merged
					continue
				}
				services[svc.InstanceName] = svc
				b.logger.Debug("broker found", "instance", svc.InstanceName, "address", svc.String())
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry := <-removed:
				if existing, found := services[entry.Instance]; found {
					remaining := removeAddresses(existing.Addresses, entry.Addrs)
					if len(remaining) == 0 {
						delete(services, entry.Instance)
						continue
					}
					updated := *existing
					updated.Addresses = remaining
					services[entry.Instance] = &updated
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.config.Browse(ctx, ServiceTypeBroker, entries, removed); err != nil && ctx.Err() == nil {
			b.logger.Warn("mDNS browse failed", "error", err)
		}
	}()

	return out
}

// Find returns the first broker seen within timeout (BrowseTimeout when
// zero).
func (b *Browser) Find(ctx context.Context, timeout time.Duration) (*BrokerService, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case svc, ok := <-b.Browse(ctx):
		if ok {
			return svc, nil
		}
	case <-ctx.Done():
	}
	if err := context.Cause(ctx); err != nil && err != context.DeadlineExceeded {
		return nil, err
	}
	return nil, ErrNotFound
}

func (b *Browser) zeroconfBrowse(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			return err
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}

	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			var (
				e   *zeroconf.ServiceEntry
				ok  bool
				dst chan<- *ServiceEntry
			)
			select {
			case e, ok = <-zEntries:
				dst = entries
			case e, ok = <-zRemoved:
				dst = removed
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			select {
			case dst <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		}
	}()
	return zeroconf.Browse(ctx, service, Domain, zEntries, zRemoved, opts...)
}

func fromZeroconf(e *zeroconf.ServiceEntry) *ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		Addrs:    addrs,
	}
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}
