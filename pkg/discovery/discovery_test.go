package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shv-protocol/shv-go/pkg/transport"
)

// scriptedBrowse feeds fixed entries and then waits for cancellation.
func scriptedBrowse(found []*ServiceEntry, gone ...*ServiceEntry) BrowseFunc {
	return func(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) error {
		if service != ServiceTypeBroker {
			return nil
		}
		for _, e := range found {
			select {
			case entries <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, e := range gone {
			select {
			case removed <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestToBrokerService(t *testing.T) {
	tests := []struct {
		name    string
		entry   ServiceEntry
		want    *BrokerService
		wantErr error
	}{
		{
			name:  "defaults",
			entry: ServiceEntry{Instance: "broker", Host: "broker.local.", Addrs: []string{"10.0.0.2"}},
			want: &BrokerService{
				InstanceName: "broker", Host: "broker.local", Port: DefaultPort,
				Addresses: []string{"10.0.0.2"}, Scheme: transport.SchemeTCP,
			},
		},
		{
			name: "websocket",
			entry: ServiceEntry{
				Instance: "ws-broker", Host: "gw.local.", Port: 8080,
				Text: []string{"scheme=ws", "path=/shv", "name=gateway"},
			},
			want: &BrokerService{
				InstanceName: "ws-broker", Name: "gateway", Host: "gw.local", Port: 8080,
				Scheme: transport.SchemeWS, Path: "/shv",
			},
		},
		{
			name:    "unknown scheme",
			entry:   ServiceEntry{Instance: "x", Text: []string{"scheme=udp"}},
			wantErr: ErrInvalidScheme,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.entry.ToBrokerService()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBrokerServiceDialConfig(t *testing.T) {
	svc := &BrokerService{Host: "broker.local", Port: 3755, Scheme: transport.SchemeTCP}
	assert.Equal(t, "broker.local", svc.DialHost())
	assert.Equal(t, "tcp://broker.local:3755", svc.String())

	svc.Addresses = []string{"192.168.1.5"}
	dc := svc.DialConfig()
	assert.Equal(t, "192.168.1.5", dc.Host)
	assert.Equal(t, 3755, dc.Port)
	assert.Equal(t, transport.SchemeTCP, dc.Scheme)
}

func TestBrowseMergesInstances(t *testing.T) {
	b := NewBrowser(BrowserConfig{Browse: scriptedBrowse([]*ServiceEntry{
		{Instance: "a", Host: "a.local.", Port: 3755, Addrs: []string{"10.0.0.1"}},
		{Instance: "a", Host: "a.local.", Port: 3755, Addrs: []string{"fe80::1"}},
		{Instance: "bad", Text: []string{"scheme=gopher"}},
		{Instance: "b", Host: "b.local.", Port: 3756, Addrs: []string{"10.0.0.2"}},
	})})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var names []string
	for svc := range b.Browse(ctx) {
		names = append(names, svc.InstanceName)
		if len(names) == 2 {
			cancel()
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFind(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		b := NewBrowser(BrowserConfig{Browse: scriptedBrowse([]*ServiceEntry{
			{Instance: "broker", Host: "broker.local.", Port: 3755, Addrs: []string{"10.0.0.9"}},
		})})
		svc, err := b.Find(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.9", svc.DialHost())
	})

	t.Run("timeout", func(t *testing.T) {
		b := NewBrowser(BrowserConfig{Browse: scriptedBrowse(nil)})
		_, err := b.Find(context.Background(), 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled", func(t *testing.T) {
		b := NewBrowser(BrowserConfig{Browse: scriptedBrowse(nil)})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Find(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAddressHelpers(t *testing.T) {
	merged := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
	assert.Equal(t, []string{"a", "c"}, removeAddresses(merged, []string{"b"}))
	assert.Empty(t, removeAddresses([]string{"a"}, []string{"a"}))
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"scheme=ssl", "flag", "", "path=/a=b"})
	assert.Equal(t, TXTRecordMap{"scheme": "ssl", "flag": "", "path": "/a=b"}, txt)
}
