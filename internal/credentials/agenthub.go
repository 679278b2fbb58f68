// Package credentials resolves the marketplace API token. Lookup happens in
// one place and is handed to the transport as a Resolver, instead of each
// call site probing its own set of locations.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Resolver returns the API token to attach to backend requests. Requests
// are sent unauthenticated when it errors, so anonymous access keeps
// working against local backends.
type Resolver func() (string, error)

// Static returns a Resolver for a fixed token, used when the token comes
// from config or a flag.
func Static(token string) Resolver {
	return func() (string, error) {
		if token == "" {
			return "", fmt.Errorf("no API token configured")
		}
		return token, nil
	}
}

type agenthubCredentials struct {
	AgentHub *storedToken `json:"agenthub"`
}

type storedToken struct {
	APIKey    string `json:"apiKey"`
	ExpiresAt int64  `json:"expiresAt"`
}

// GetAgentHubToken retrieves the marketplace API token.
// Checks the AGENTHUB_API_KEY environment variable first; otherwise reads
// the login credentials (system keychain on macOS,
// ~/.agenthub/credentials.json elsewhere).
func GetAgentHubToken() (string, error) {
	if key := os.Getenv("AGENTHUB_API_KEY"); key != "" {
		return key, nil
	}

	var jsonData []byte
	var err error

	if runtime.GOOS == "darwin" {
		jsonData, err = getFromMacKeychain()
	} else {
		jsonData, err = getFromCredentialsFile()
	}
	if err != nil {
		return "", err
	}

	var creds agenthubCredentials
	if err := json.Unmarshal(jsonData, &creds); err != nil {
		return "", fmt.Errorf("failed to parse agenthub credentials: %w", err)
	}

	if creds.AgentHub == nil || creds.AgentHub.APIKey == "" {
		return "", fmt.Errorf("no API key found in agenthub credentials")
	}

	return creds.AgentHub.APIKey, nil
}

func getFromMacKeychain() ([]byte, error) {
	user := os.Getenv("USER")
	if user == "" {
		return nil, fmt.Errorf("USER environment variable not set")
	}

	cmd := exec.Command("security", "find-generic-password",
		"-s", "AgentHub-credentials",
		"-a", user,
		"-w")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read from keychain: %w (run 'agenthub config init' and add your API key)", err)
	}

	return output, nil
}

func getFromCredentialsFile() ([]byte, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	credPath := filepath.Join(home, ".agenthub", "credentials.json")
	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w (run 'agenthub config init' and add your API key)", credPath, err)
	}

	return data, nil
}
