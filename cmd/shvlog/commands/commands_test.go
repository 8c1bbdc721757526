package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shv-protocol/shv-go/pkg/log"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func sessionEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	notFound := wire.CodeMethodNotFound
	latency := 3 * time.Millisecond
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: "4f1c2a9e-0000", Layer: log.LayerSession, Category: log.CategoryState,
			RemoteAddr:  "10.0.0.1:3755",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, NewState: "LOGGED_IN"},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: "4f1c2a9e-0000", Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Kind: wire.KindRequest, RequestID: 7, Path: "fs", Method: "ls",
				Payload: map[string]any{"filter": "logs"}},
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: "4f1c2a9e-0000", Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Kind: wire.KindResponse, RequestID: 8, ErrorCode: &notFound},
		},
		{
			Timestamp: ts.Add(3 * time.Second), ConnectionID: "4f1c2a9e-0000", Direction: log.DirectionOut,
			Layer: log.LayerSession, Category: log.CategoryHeartbeat,
			Heartbeat: &log.HeartbeatEvent{Outcome: log.HeartbeatAnswered, RequestID: 9, Latency: &latency},
		},
		{
			Timestamp: ts.Add(4 * time.Second), ConnectionID: "4f1c2a9e-0000", Layer: log.LayerTransport,
			Category: log.CategoryError, Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection reset"},
		},
	}
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:00:00.000000Z [conn:4f1c2a9e]",
		"-> LOGGED_IN",
		"Target: fs:ls",
		`Payload: {"filter":"logs"}`,
		"Error: METHOD_NOT_FOUND (2)",
		"Outcome: ANSWERED",
		"Latency: 3.000ms",
		"Message: connection reset",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunViewFiltered(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	filter, err := FilterOptions{Direction: "in", Method: "ls"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "[conn:"); got != 1 {
		t.Errorf("expected 1 event, got %d:\n%s", got, buf.String())
	}
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}
	if stats.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", stats.TotalEvents)
	}
	if stats.Methods["ls"] != 1 {
		t.Errorf("Methods[ls] = %d, want 1", stats.Methods["ls"])
	}
	if stats.ErrorResponses != 1 || stats.Errors != 1 {
		t.Errorf("ErrorResponses = %d, Errors = %d, want 1 and 1", stats.ErrorResponses, stats.Errors)
	}
	if stats.Heartbeats[log.HeartbeatAnswered] != 1 {
		t.Errorf("answered heartbeats = %d, want 1", stats.Heartbeats[log.HeartbeatAnswered])
	}
	conn := stats.Connections["4f1c2a9e-0000"]
	if conn == nil || conn.LastState != "LOGGED_IN" || conn.RemoteAddr != "10.0.0.1:3755" {
		t.Errorf("unexpected connection stats: %+v", conn)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	for _, want := range []string{"Total Events: 5", "SESSION:", "HEARTBEAT:", "ls:", "Duration:   4s", "Errors: 1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, out, FilterOptions{Category: "message"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("filtered %d events, want 2", n)
	}

	stats, err := CollectStats(out)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}
	if stats.TotalEvents != 2 {
		t.Errorf("output has %d events, want 2", stats.TotalEvents)
	}
}

func TestFilterOptionsErrors(t *testing.T) {
	tests := []FilterOptions{
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "control"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	}
	for _, opts := range tests {
		if _, err := opts.Build(); err == nil {
			t.Errorf("Build(%+v) succeeded, want error", opts)
		}
	}
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	lines := 0
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 5 {
		t.Errorf("exported %d lines, want 5", lines)
	}
}

func TestRunExportCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "csv", &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	output := buf.String()
	if !strings.HasPrefix(output, "timestamp,connection_id,") {
		t.Errorf("missing header:\n%s", output)
	}
	if !strings.Contains(output, "REQUEST,7,fs,ls,") {
		t.Errorf("missing request row:\n%s", output)
	}
	if !strings.Contains(output, "RESPONSE,8,,,2") {
		t.Errorf("missing error response row:\n%s", output)
	}

	if err := RunExport(path, "xml", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
