package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestIsRunning_NoPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	running, err := IsRunning(pidFile)
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsRunning() = true, want false for non-existent PID file")
	}
}

func TestIsRunning_WithCurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	if err := WritePID(pidFile, os.Getpid()); err != nil {
		t.Fatalf("WritePID() error = %v", err)
	}

	running, err := IsRunning(pidFile)
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil", err)
	}
	if !running {
		t.Error("IsRunning() = false, want true for current process")
	}
}

func TestIsRunning_WithDeadProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")

	// A PID that is very unlikely to be in use.
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(999999)+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsRunning(pidFile)
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsRunning() = true, want false for dead process")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestIsRunning_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(pidFile, []byte("not-a-number\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsRunning(pidFile)
	if err != nil {
		t.Errorf("IsRunning() error = %v, want nil for invalid PID", err)
	}
	if running {
		t.Error("IsRunning() = true, want false for invalid PID")
	}
}

func TestStop_NotRunning(t *testing.T) {
	if err := Stop(filepath.Join(t.TempDir(), "test.pid")); err == nil {
		t.Error("Stop() expected error for non-existent daemon, got nil")
	}
}

func TestStop_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(pidFile, []byte("invalid\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
	if err := Stop(pidFile); err == nil {
		t.Error("Stop() expected error for invalid PID, got nil")
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")
	if err := WritePID(pidFile, os.Getpid()); err != nil {
		t.Fatalf("WritePID() error = %v", err)
	}

	if _, err := Start(pidFile, filepath.Join(dir, "test.log"), "serve"); err == nil {
		t.Error("Start() expected error for already running daemon, got nil")
	}
}

func TestStart_InvalidLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "nonexistent", "test.log")

	if _, err := Start(filepath.Join(dir, "test.pid"), logFile, "serve"); err == nil {
		t.Error("Start() expected error for invalid log file path, got nil")
	}
}

func TestRemovePID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	if err := WritePID(pidFile, 12345); err != nil {
		t.Fatalf("WritePID() error = %v", err)
	}
	if err := RemovePID(pidFile); err != nil {
		t.Errorf("RemovePID() error = %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file still exists after RemovePID()")
	}
	if err := RemovePID(pidFile); err != nil {
		t.Errorf("RemovePID() on missing file error = %v", err)
	}
}
