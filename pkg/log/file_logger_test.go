package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.shvlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, event)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 15, 32, 123456789, time.UTC)
	latency := 12 * time.Millisecond
	code := wire.CodeMethodNotFound

	events := []Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerTransport,
			Category:     CategoryMessage,
			RemoteAddr:   "10.0.0.1:3755",
			Frame:        &FrameEvent{Size: 9, Data: []byte{1, 2, 3}, Truncated: true},
		},
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Direction:    DirectionOut,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			DeviceID:     "dev-1",
			Message: &MessageEvent{
				Kind:      wire.KindResponse,
				RequestID: 7,
				ErrorCode: &code,
			},
		},
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Layer:        LayerSession,
			Category:     CategoryHeartbeat,
			Heartbeat:    &HeartbeatEvent{Outcome: HeartbeatAnswered, RequestID: 8, Latency: &latency},
		},
	}

	path := createTestLogFile(t, events)
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	got := readAll(t, reader)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, ts)
	}
	if got[0].Frame == nil || !got[0].Frame.Truncated || got[0].RemoteAddr != "10.0.0.1:3755" {
		t.Errorf("frame event = %+v", got[0])
	}
	if got[1].Message == nil || got[1].Message.ErrorCode == nil || *got[1].Message.ErrorCode != code {
		t.Errorf("message event = %+v", got[1].Message)
	}
	if got[2].Heartbeat == nil || got[2].Heartbeat.Latency == nil || *got[2].Heartbeat.Latency != latency {
		t.Errorf("heartbeat event = %+v", got[2].Heartbeat)
	}
}

func TestFileLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.shvlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(Event{Timestamp: time.Now(), ConnectionID: "c"})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	// Logging after close is ignored.
	logger.Log(Event{})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	if n := len(readAll(t, reader)); n != 100 {
		t.Errorf("got %d events, want 100", n)
	}
}

func TestFilteredReader(t *testing.T) {
	events := []Event{
		{ConnectionID: "a", Direction: DirectionIn, Category: CategoryMessage,
			Message: &MessageEvent{Kind: wire.KindRequest, Path: "fs/x", Method: "ls"}},
		{ConnectionID: "a", Direction: DirectionOut, Category: CategoryMessage,
			Message: &MessageEvent{Kind: wire.KindRequest, Path: ".broker/app", Method: "ping"}},
		{ConnectionID: "b", Direction: DirectionIn, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityConnection, NewState: "CONNECTED"}},
	}
	path := createTestLogFile(t, events)

	in := DirectionIn
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"connection", Filter{ConnectionID: "a"}, 2},
		{"direction", Filter{Direction: &in}, 2},
		{"path prefix", Filter{PathPrefix: "fs"}, 1},
		{"method", Filter{Method: "ping"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()
			if n := len(readAll(t, reader)); n != tt.want {
				t.Errorf("got %d events, want %d", n, tt.want)
			}
		})
	}
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		ConnectionID: "conn-456",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message:      &MessageEvent{Kind: wire.KindRequest, RequestID: 42, Path: "fs", Method: "dir"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["conn_id"] != "conn-456" {
		t.Errorf("conn_id = %v", entry["conn_id"])
	}
	if entry["rq_id"] != float64(42) {
		t.Errorf("rq_id = %v, want 42", entry["rq_id"])
	}
	if entry["kind"] != "REQUEST" || entry["method"] != "dir" {
		t.Errorf("kind/method = %v/%v", entry["kind"], entry["method"])
	}
}
