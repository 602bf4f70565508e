package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultHasBothSites(t *testing.T) {
	cfg := Default()
	if len(cfg.Sites) != 2 {
		t.Fatalf("expected 2 default sites, got %d", len(cfg.Sites))
	}
	names := map[string]bool{}
	for _, s := range cfg.Sites {
		names[s.Name] = true
	}
	if !names["era"] || !names["gaf"] {
		t.Errorf("default sites missing era or gaf: %v", names)
	}
	if cfg.Embed.MaxChars != 2048 {
		t.Errorf("default max_chars = %d, want 2048", cfg.Embed.MaxChars)
	}
	if cfg.Embed.LineLength != 60 {
		t.Errorf("default line_length = %d, want 60", cfg.Embed.LineLength)
	}
}

func TestDefaultRegistryValidates(t *testing.T) {
	reg, err := Default().Registry()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	era := reg.ByName("era")
	if era == nil {
		t.Fatal("era profile missing from registry")
	}
	if era.AccentColor != 8343994 {
		t.Errorf("era accent = %d, want 8343994", era.AccentColor)
	}
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Embed.StdLines != 6 {
		t.Errorf("std_lines = %d, want default 6", cfg.Embed.StdLines)
	}
}

func TestLoadFromLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[embed]\nmax_chars = 500\n\n[discord]\ncommand_prefix = \"?\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Embed.MaxChars != 500 {
		t.Errorf("max_chars = %d, want 500", cfg.Embed.MaxChars)
	}
	if cfg.Embed.StdLines != 6 {
		t.Errorf("std_lines = %d, want default 6 to survive", cfg.Embed.StdLines)
	}
	if cfg.Discord.CommandPrefix != "?" {
		t.Errorf("command_prefix = %q, want ?", cfg.Discord.CommandPrefix)
	}
	if len(cfg.Sites) != 2 {
		t.Errorf("sites = %d, want default 2 to survive", len(cfg.Sites))
	}
}

func TestLoadFromBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for malformed toml")
	}
}

func TestDefaultTOMLRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(DefaultTOML()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom default toml: %v", err)
	}
	if _, err := cfg.Registry(); err != nil {
		t.Fatalf("registry from default toml: %v", err)
	}
	if !strings.Contains(DefaultTOML(), "resetera") {
		t.Error("default toml missing resetera site")
	}
}
