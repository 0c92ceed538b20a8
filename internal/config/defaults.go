package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "scriptrec"

func home() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// xdg returns $env/scriptrec, or ~/fallback/scriptrec when env is unset.
func xdg(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(append(append([]string{home()}, fallback...), appName)...)
}

// windowsDir returns %env%\scriptrec\sub..., falling back to the profile.
func windowsDir(env, profileSub string, sub ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(home(), "AppData", profileSub)
	}
	return filepath.Join(append([]string{base, appName}, sub...)...)
}

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/scriptrec/
//   - Linux:   $XDG_DATA_HOME/scriptrec/ or ~/.local/share/scriptrec/
//   - Windows: %APPDATA%\scriptrec\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home(), "Library", "Application Support", appName)
	case "windows":
		return windowsDir("APPDATA", "Roaming")
	case "linux":
		return xdg("XDG_DATA_HOME", ".local", "share")
	default:
		return filepath.Join(home(), "."+appName)
	}
}

// PlatformConfigDir returns the platform-specific config directory.
// macOS and Windows keep configuration next to the data.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return PlatformDataDir()
	case "linux":
		return xdg("XDG_CONFIG_HOME", ".config")
	default:
		return filepath.Join(home(), "."+appName)
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/scriptrec/
//   - Linux:   $XDG_STATE_HOME/scriptrec/ or ~/.local/state/scriptrec/
//   - Windows: %LOCALAPPDATA%\scriptrec\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home(), "Library", "Logs", appName)
	case "windows":
		return windowsDir("LOCALAPPDATA", "Local", "logs")
	case "linux":
		return xdg("XDG_STATE_HOME", ".local", "state")
	default:
		return filepath.Join(home(), "."+appName, "logs")
	}
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the current directory, then the config
// directory, for config.<ext>. It returns "" when none exists.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
