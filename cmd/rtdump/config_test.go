//go:build linux

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want options
		ok   bool
	}{
		{
			name: "empty",
			want: defaultOptions(),
			ok:   true,
		},
		{
			name: "all keys",
			toml: `
output = "JSON"
family = "inet6"
debug = true
pid = 4242
`,
			want: options{
				Output: "json",
				Family: unix.AF_INET6,
				Debug:  true,
				PID:    4242,
			},
			ok: true,
		},
		{
			name: "family only",
			toml: `family = "ipv4"`,
			want: options{
				Output: "yaml",
				Family: unix.AF_INET,
			},
			ok: true,
		},
		{
			name: "bad output",
			toml: `output = "xml"`,
		},
		{
			name: "bad family",
			toml: `family = "ipx"`,
		},
		{
			name: "unknown key",
			toml: `colour = true`,
		},
		{
			name: "bad syntax",
			toml: `output = `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rtdump.toml")
			if err := os.WriteFile(path, []byte(tt.toml), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			got, err := loadConfig(path, defaultOptions())
			if err != nil && tt.ok {
				t.Fatalf("unexpected error: %v", err)
			}
			if err == nil && !tt.ok {
				t.Fatal("expected an error, but none occurred")
			}
			if !tt.ok {
				return
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected options (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), defaultOptions())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist error, but got: %v", err)
	}
}
