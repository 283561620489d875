package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", OpConnect)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Operation != OpConnect {
		t.Errorf("Operation = %q, want %q", event.Operation, OpConnect)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", OpConnect).
		WithSwitch("10.0.0.5").
		WithPorts(3, 7).
		WithSVLAN(1001).
		WithSuccess().
		WithDuration(time.Second)

	if event.Switch != "10.0.0.5" {
		t.Errorf("Switch = %q", event.Switch)
	}
	if len(event.Ports) != 2 || event.Ports[0] != 3 || event.Ports[1] != 7 {
		t.Errorf("Ports = %v", event.Ports)
	}
	if event.SVLAN != 1001 {
		t.Errorf("SVLAN = %d", event.SVLAN)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", OpDisconnect).
		WithError(errors.New("test error"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "test error" {
		t.Errorf("Error = %q", event.Error)
	}

	event2 := NewEvent("alice", OpDisconnect).WithError(nil)
	if event2.Success {
		t.Error("Success should be false even with nil error")
	}
	if event2.Error != "" {
		t.Errorf("Error should be empty with nil error, got %q", event2.Error)
	}
}

func TestEvent_WithWarning(t *testing.T) {
	event := NewEvent("alice", OpRelease).
		WithSuccess().
		WithWarning("banner push failed")

	if !event.Success {
		t.Error("a warning should not flip Success")
	}
	if event.Warning != "banner push failed" {
		t.Errorf("Warning = %q", event.Warning)
	}
}

func TestFileLogger_Basic(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	event := NewEvent("alice", OpReserve).
		WithSwitch("10.0.0.5").
		WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].User != "alice" {
		t.Errorf("User = %q, want %q", events[0].User, "alice")
	}
	if events[0].Switch != "10.0.0.5" {
		t.Errorf("Switch = %q, want %q", events[0].Switch, "10.0.0.5")
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	events := []*Event{
		NewEvent("alice", OpReserve).WithSwitch("10.0.0.5").WithSuccess(),
		NewEvent("bob", OpReserve).WithSwitch("10.0.0.6").WithSuccess(),
		NewEvent("alice", OpConnect).WithSwitch("10.0.0.5").WithSVLAN(1001).WithError(errors.New("failed")),
		NewEvent("charlie", OpRelease).WithSwitch("10.0.0.7").WithSuccess(),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	t.Run("filter by user", func(t *testing.T) {
		results, _ := logger.Query(Filter{User: "alice"})
		if len(results) != 2 {
			t.Errorf("Expected 2 events for alice, got %d", len(results))
		}
	})

	t.Run("filter by switch", func(t *testing.T) {
		results, _ := logger.Query(Filter{Switch: "10.0.0.5"})
		if len(results) != 2 {
			t.Errorf("Expected 2 events for 10.0.0.5, got %d", len(results))
		}
	})

	t.Run("filter by operation", func(t *testing.T) {
		results, _ := logger.Query(Filter{Operation: OpReserve})
		if len(results) != 2 {
			t.Errorf("Expected 2 reserve events, got %d", len(results))
		}
	})

	t.Run("filter by svlan", func(t *testing.T) {
		results, _ := logger.Query(Filter{SVLAN: 1001})
		if len(results) != 1 {
			t.Errorf("Expected 1 event for svlan 1001, got %d", len(results))
		}
	})

	t.Run("filter success only", func(t *testing.T) {
		results, _ := logger.Query(Filter{SuccessOnly: true})
		if len(results) != 3 {
			t.Errorf("Expected 3 successful events, got %d", len(results))
		}
	})

	t.Run("filter failure only", func(t *testing.T) {
		results, _ := logger.Query(Filter{FailureOnly: true})
		if len(results) != 1 {
			t.Errorf("Expected 1 failed event, got %d", len(results))
		}
	})

	t.Run("filter with limit", func(t *testing.T) {
		results, _ := logger.Query(Filter{Limit: 2})
		if len(results) != 2 {
			t.Errorf("Expected 2 events with limit, got %d", len(results))
		}
	})

	t.Run("filter with offset", func(t *testing.T) {
		results, _ := logger.Query(Filter{Offset: 2})
		if len(results) != 2 {
			t.Errorf("Expected 2 events with offset, got %d", len(results))
		}
	})
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Log(NewEvent("alice", OpReserve).WithSuccess())

	results, _ := logger.Query(Filter{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	if len(results) != 1 {
		t.Errorf("Expected 1 event in time range, got %d", len(results))
	}

	results, _ = logger.Query(Filter{StartTime: time.Now().Add(time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events outside time range, got %d", len(results))
	}
}

func TestFileLogger_LogRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{
		MaxSize:    100,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 5; i++ {
		event := NewEvent("alice", OpConnect).WithSwitch("10.0.0.5").WithSuccess()
		if err := logger.Log(event); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(tmpDir, "audit.log.*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("Expected rotation to create backup files")
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")

	content := `{"user":"alice","switch":"10.0.0.5","operation":"reserve","success":true}
invalid json line
{"user":"bob","switch":"10.0.0.6","operation":"release","success":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)

	if err := Log(NewEvent("test", OpReserve)); err != nil {
		t.Errorf("Log with nil default should not error: %v", err)
	}
	results, err := Query(Filter{})
	if err != nil {
		t.Errorf("Query with nil default should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}

	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	SetDefaultLogger(logger)
	defer SetDefaultLogger(nil)

	if err := Log(NewEvent("alice", OpReserve).WithSuccess()); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	results, err = Query(Filter{})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}
