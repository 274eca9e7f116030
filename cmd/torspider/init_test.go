package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/torspider/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	tests := []struct {
		flag      string
		shorthand string
		def       string
	}{
		{flag: "output", shorthand: "o", def: config.DefaultConfigFile},
		{flag: "force", shorthand: "f", def: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()

			f := cmd.Flags().Lookup(tt.flag)
			if f == nil {
				t.Fatalf("flag %q missing", tt.flag)
			}
			if f.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, expected %q", f.Shorthand, tt.shorthand)
			}
			if f.DefValue != tt.def {
				t.Errorf("default = %q, expected %q", f.DefValue, tt.def)
			}
		})
	}
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".torspider")
		out, err := runInit(t, "-o", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, path) {
			t.Errorf("output %q does not name the file", out)
		}

		cf, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("generated file does not load: %v", err)
		}
		cfg := config.NewConfig()
		cfg.ApplyFile(cf)
		if cfg.Workers != config.DefaultWorkers {
			t.Errorf("Workers = %d, expected %d", cfg.Workers, config.DefaultWorkers)
		}
		if cfg.Timeout != config.DefaultTimeout {
			t.Errorf("Timeout = %v, expected %v", cfg.Timeout, config.DefaultTimeout)
		}
		if cfg.StoreDriver != config.StoreSQLite {
			t.Errorf("StoreDriver = %q, expected %q", cfg.StoreDriver, config.StoreSQLite)
		}
		if got := cf.GetSiteConfig("example.onion").Headers["Accept-Language"]; got == "" {
			t.Error("expected the default Accept-Language header")
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".torspider")
		if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		_, err := runInit(t, "-o", path)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("error = %v, expected an 'already exists' error", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".torspider")
		if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if _, err := runInit(t, "-o", path, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sub", "nested", ".torspider")
		if _, err := runInit(t, "-o", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected config file in nested directory: %v", err)
		}
	})

	t.Run("file is owner-only", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}

		path := filepath.Join(t.TempDir(), ".torspider")
		if _, err := runInit(t, "-o", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, expected 600", perm)
		}
	})
}

func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	content, err := configTemplate.ReadFile("templates/torspider.yaml")
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}
	for _, section := range []string{"crawl:", "store:", "cache:", "defaults:", "sites:"} {
		if !strings.Contains(string(content), section) {
			t.Errorf("template does not contain %q", section)
		}
	}
}
