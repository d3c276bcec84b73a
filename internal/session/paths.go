package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.sendq.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sendq")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// WhatsAppDBPath returns the whatsmeow credential store path.
func WhatsAppDBPath(name string) string {
	return filepath.Join(Dir(name), "whatsapp.db")
}

// AppDBPath returns the app-owned sendq.db path holding the dispatch log.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "sendq.db")
}

// SettingsPath returns the per-session settings file path.
func SettingsPath(name string) string {
	return filepath.Join(Dir(name), "settings.toml")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the application log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "sendq.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
