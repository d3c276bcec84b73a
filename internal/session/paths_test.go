package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".sendq", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestSettingsPath(t *testing.T) {
	got := SettingsPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "settings.toml")) {
		t.Errorf("SettingsPath(test) = %q, want suffix sessions/test/settings.toml", got)
	}
}

func TestAppDBPath(t *testing.T) {
	got := AppDBPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "sendq.db")) {
		t.Errorf("AppDBPath(test) = %q, want suffix sessions/test/sendq.db", got)
	}
}
