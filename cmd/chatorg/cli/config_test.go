package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultServerConfig()
	if cfg.Addr != ":5000" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.EncKeyPath != "chatorg_secret.key" {
		t.Fatalf("EncKeyPath=%q", cfg.EncKeyPath)
	}
	if cfg.TempDir != "" {
		t.Fatalf("TempDir=%q", cfg.TempDir)
	}
}

func TestLoadServerConfig_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	contents := "addr = \":8080\"\nenc_key_path = \"/var/lib/chatorg/secret.key\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	prev := cfgPath
	cfgPath = path
	defer func() { cfgPath = prev }()

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.EncKeyPath != "/var/lib/chatorg/secret.key" {
		t.Fatalf("EncKeyPath=%q", cfg.EncKeyPath)
	}
	// Fields absent from the file keep their defaults.
	if cfg.TempDir != "" {
		t.Fatalf("TempDir=%q", cfg.TempDir)
	}
}

func TestLoadServerConfig_MissingExplicitFile(t *testing.T) {
	prev := cfgPath
	cfgPath = filepath.Join(t.TempDir(), "absent.toml")
	defer func() { cfgPath = prev }()

	if _, err := loadServerConfig(); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadServerConfig_NoFileUsesDefaults(t *testing.T) {
	prev := cfgPath
	cfgPath = ""
	defer func() { cfgPath = prev }()

	// Run from a directory without a local chatorg.toml.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig: %v", err)
	}
	if cfg != defaultServerConfig() {
		t.Fatalf("cfg=%+v", cfg)
	}
}
