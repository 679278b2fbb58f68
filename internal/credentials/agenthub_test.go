package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStatic(t *testing.T) {
	token, err := Static("tok-1")()
	if err != nil {
		t.Fatalf("static resolver failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("token = %q", token)
	}

	if _, err := Static("")(); err == nil {
		t.Error("empty static token should error")
	}
}

func TestGetAgentHubTokenEnvWins(t *testing.T) {
	t.Setenv("AGENTHUB_API_KEY", "env-token")

	token, err := GetAgentHubToken()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if token != "env-token" {
		t.Errorf("token = %q, want env value", token)
	}
}

func TestGetAgentHubTokenFromFile(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("darwin resolves from the keychain")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGENTHUB_API_KEY", "")

	credDir := filepath.Join(home, ".agenthub")
	if err := os.MkdirAll(credDir, 0700); err != nil {
		t.Fatal(err)
	}
	content := `{"agenthub": {"apiKey": "file-token", "expiresAt": 0}}`
	if err := os.WriteFile(filepath.Join(credDir, "credentials.json"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	token, err := GetAgentHubToken()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if token != "file-token" {
		t.Errorf("token = %q, want file value", token)
	}
}
