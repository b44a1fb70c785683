package figma

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const credentialsFileName = "credentials.json"

// Credentials is the blob the desktop app writes after OAuth sign-in. Token
// refresh is the shell's job; the bridge only consumes the current values.
type Credentials struct {
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	DefaultFileKey string `json:"defaultFileKey,omitempty"`
}

// DefaultCredentialsPath returns the platform location of the blob.
func DefaultCredentialsPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support", "TalkToFigma", credentialsFileName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return ""
		}
		return filepath.Join(appData, "TalkToFigma", credentialsFileName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "talktofigma", credentialsFileName)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".config", "talktofigma", credentialsFileName)
	}
}

// LoadCredentials reads the blob at path, or the platform default when path
// is empty. A missing file yields empty credentials, not an error; the
// commands that need a token fail per-call with unauthenticated.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		path = DefaultCredentialsPath()
	}
	if path == "" {
		return Credentials{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("reading credentials %s: %w", path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return creds, nil
}
