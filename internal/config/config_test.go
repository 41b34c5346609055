package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
database:
  path: data/messages.db
whatsapp:
  session_path: data/session.db
  transcription:
    allow_all: false
    whitelist: ["111"]
    blacklist: ["222"]
    message:
      mode: reply
      template: "{author}: {text}"
openai:
  api_key: sk-test
http:
  addr: ":8080"
  jwt_secret: secret
  username: admin
  password: hunter2
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tr := cfg.WhatsApp.Transcription
	if tr.AllowAll {
		t.Error("allow_all should be false")
	}
	if len(tr.Whitelist) != 1 || tr.Whitelist[0] != "111" {
		t.Errorf("whitelist = %v", tr.Whitelist)
	}
	if tr.Message.Mode != ModeReply {
		t.Errorf("mode = %q, want reply", tr.Message.Mode)
	}
	if cfg.SendRate.PerMinute != 20 || cfg.SendRate.Burst != 5 {
		t.Errorf("send rate defaults not applied: %+v", cfg.SendRate)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	cfg, err := Load(writeConfig(t, strings.Replace(validConfig, "sk-test", "${TEST_OPENAI_KEY}", 1)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded env value", cfg.OpenAI.APIKey)
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "mode: reply", "mode: broadcast", 1)))
	if err == nil {
		t.Fatal("expected error for unknown delivery mode")
	}
	if !strings.Contains(err.Error(), "delivery mode") {
		t.Errorf("error should name the delivery mode, got %v", err)
	}
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "api_key: sk-test", "api_key: \"\"", 1)))
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestLoad_RequiresHTTPCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "jwt_secret: secret", "jwt_secret: \"\"", 1)))
	if err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
