//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/sys/unix"
)

// options holds the settings shared by every subcommand.
type options struct {
	Output string
	Family uint8
	Debug  bool
	PID    uint32
}

func defaultOptions() options {
	return options{
		Output: "yaml",
		Family: unix.AF_UNSPEC,
	}
}

type fileConfig struct {
	Output string `toml:"output"`
	Family string `toml:"family"`
	Debug  bool   `toml:"debug"`
	PID    uint32 `toml:"pid"`
}

// loadConfig applies the keys defined in the TOML file at path over opts.
func loadConfig(path string, opts options) (options, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return options{}, fmt.Errorf("load config: %w", err)
	}

	if keys := meta.Undecoded(); len(keys) > 0 {
		return options{}, fmt.Errorf("load config: unknown key %q", keys[0].String())
	}

	if meta.IsDefined("output") {
		o, err := parseOutput(raw.Output)
		if err != nil {
			return options{}, err
		}
		opts.Output = o
	}

	if meta.IsDefined("family") {
		f, err := parseFamily(raw.Family)
		if err != nil {
			return options{}, err
		}
		opts.Family = f
	}

	if meta.IsDefined("debug") {
		opts.Debug = raw.Debug
	}

	if meta.IsDefined("pid") {
		opts.PID = raw.PID
	}

	return opts, nil
}

func parseOutput(s string) (string, error) {
	switch o := strings.ToLower(strings.TrimSpace(s)); o {
	case "yaml", "json":
		return o, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

func parseFamily(s string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "unspec":
		return unix.AF_UNSPEC, nil
	case "inet", "ipv4", "4":
		return unix.AF_INET, nil
	case "inet6", "ipv6", "6":
		return unix.AF_INET6, nil
	default:
		return 0, fmt.Errorf("unknown address family %q", s)
	}
}
