package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns the root data directory. ORDERBOT_HOME overrides the
// default of ~/.orderbot.
func BaseDir() string {
	if dir := os.Getenv("ORDERBOT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".orderbot")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the control socket path for a profile.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the order database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "orderbot.db")
}

// SettingsPath returns the runtime settings file (keyword and admins).
func SettingsPath(name string) string {
	return filepath.Join(Dir(name), "settings.toml")
}

// BootstrapPath returns the optional bootstrap config file.
func BootstrapPath(name string) string {
	return filepath.Join(Dir(name), "orderbot.toml")
}

// EnvPath returns the profile's .env file.
func EnvPath(name string) string {
	return filepath.Join(Dir(name), ".env")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "orderbotd.log")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
