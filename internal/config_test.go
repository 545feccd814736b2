package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/yourview/yourview/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.AnonKey = "anon"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_RequiresSupabaseForREST(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "supabase") {
		t.Fatalf("expected supabase error, got %v", err)
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestCanopyConfig_PostgresBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Canopy.Backend = BackendPostgres
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres dsn error, got %v", err)
	}
	cfg.Postgres.DSN = "postgres://localhost/canopy"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres backend without supabase should pass: %v", err)
	}
}

func TestCanopyConfig_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Canopy.Backend = "graphql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestModerationConfig(t *testing.T) {
	cfg := ModerationConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled moderation without credentials should fail")
	}
	if cfg.Checker() == nil {
		t.Error("enabled moderation should build a checker")
	}

	cfg = ModerationConfig{Thresholds: map[string]float64{"erotica": 1.5}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("out-of-range threshold should fail")
	}

	cfg = ModerationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled moderation should pass: %v", err)
	}
	if cfg.Checker() != nil {
		t.Error("disabled moderation should not build a checker")
	}
}

func TestUploadsConfig_RejectsTraversalFolder(t *testing.T) {
	cfg := UploadsConfig{Dir: "media", MaxFileSize: 1, Folder: "../up"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("traversal folder should fail")
	}
}

func TestThemeConfig_InvalidColour(t *testing.T) {
	cfg := validConfig()
	p := cfg.Theme.Themes["light"]
	p.Primary = "blue"
	cfg.Theme.Themes["light"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("non-hex colour should fail")
	}
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("YOURVIEW_TEST_ANON_KEY", "secret-anon")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
supabase:
  url: https://abc.supabase.co
  anon_key: ${YOURVIEW_TEST_ANON_KEY}
  timeout: 5s
moderation:
  thresholds:
    erotica: 0.6
theme:
  default: dark
  themes:
    dark:
      primary: "#1E3A8A"
      secondary: "#065F46"
      surface: "#111827"
      background: "#030712"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supabase.AnonKey != "secret-anon" {
		t.Errorf("anon key = %q", cfg.Supabase.AnonKey)
	}
	if cfg.Supabase.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Supabase.Timeout)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if len(cfg.Moderation.Thresholds) != 1 || cfg.Moderation.Thresholds["erotica"] != 0.6 {
		t.Errorf("thresholds should be replaced, got %v", cfg.Moderation.Thresholds)
	}
	if cfg.Theme.Active().Primary != "#1E3A8A" {
		t.Errorf("active palette = %+v", cfg.Theme.Active())
	}
	if _, ok := cfg.Theme.Themes["light"]; ok {
		t.Errorf("stock light theme should be replaced, got %v", cfg.Theme.Themes)
	}
	if cfg.Canopy.Procedure != "get_canopy_cover_by_suburb" {
		t.Errorf("procedure = %q", cfg.Canopy.Procedure)
	}
}

func TestLoadWithoutThresholdsKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "supabase:\n  url: https://abc.supabase.co\n  anon_key: anon\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Moderation.Thresholds) != 3 {
		t.Errorf("thresholds = %v", cfg.Moderation.Thresholds)
	}
	if _, ok := cfg.Theme.Themes["light"]; !ok {
		t.Errorf("themes = %v", cfg.Theme.Themes)
	}
}
