//go:build linux

// Command rtdump prints the kernel's links, addresses and routes as read
// over an rtnetlink dump.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mdlayher/rtdump"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var (
	opts       = defaultOptions()
	configPath string
	output     string
	debug      bool
	ipv4, ipv6 bool

	// Retries for dumps the kernel interrupts.
	retries = 3

	builtCommit = "dev"
)

var (
	rootCmd = &cobra.Command{
		Use:   "rtdump",
		Short: "Dump links, addresses and routes over rtnetlink.",

		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Get the built version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "built commit: %s\n", builtCommit)
		},
	}

	linksCmd = &cobra.Command{
		Use:   "links",
		Short: "List network interfaces.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *rtdump.Channel) (any, error) {
				return c.Links()
			})
		},
	}

	addrsCmd = &cobra.Command{
		Use:     "addrs",
		Aliases: []string{"addresses"},
		Short:   "List interface addresses.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *rtdump.Channel) (any, error) {
				return c.Addresses(opts.Family)
			})
		},
	}

	routesCmd = &cobra.Command{
		Use:   "routes",
		Short: "List routes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(c *rtdump.Channel) (any, error) {
				return c.Routes(opts.Family)
			})
		},
	}
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML file with default settings")
	pf.StringVarP(&output, "output", "o", "", "output format: yaml or json")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{addrsCmd, routesCmd} {
		cmd.Flags().BoolVarP(&ipv4, "ipv4", "4", false, "only IPv4")
		cmd.Flags().BoolVarP(&ipv6, "ipv6", "6", false, "only IPv6")
		cmd.MarkFlagsMutuallyExclusive("ipv4", "ipv6")
	}

	rootCmd.AddCommand(versionCmd, linksCmd, addrsCmd, routesCmd)
}

// setup layers the config file and then flags over the defaults.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		o, err := loadConfig(configPath, opts)
		if err != nil {
			return err
		}
		opts = o
	}

	if cmd.Flags().Changed("output") {
		o, err := parseOutput(output)
		if err != nil {
			return err
		}
		opts.Output = o
	}

	if cmd.Flags().Changed("debug") {
		opts.Debug = debug
	}

	switch {
	case ipv4:
		opts.Family = unix.AF_INET
	case ipv6:
		opts.Family = unix.AF_INET6
	}

	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

// run opens a Channel, performs dump and writes its records, retrying
// interrupted dumps. Records which failed to decode are reported but do
// not stop the output of the rest.
func run(cmd *cobra.Command, dump func(c *rtdump.Channel) (any, error)) error {
	log, err := newLogger(opts.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	c, err := rtdump.Open(&rtdump.Config{
		PID:    opts.PID,
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	var v any
	for i := 0; i <= retries; i++ {
		v, err = dump(c)
		if !errors.Is(err, rtdump.ErrDumpInterrupted) {
			break
		}

		log.Info("dump interrupted, retrying", zap.Int("attempt", i+1))
	}

	if err != nil {
		if fatal(err) {
			return err
		}

		log.Warn("some records failed to decode", zap.Error(err))
	}

	return write(cmd.OutOrStdout(), opts.Output, v)
}

// fatal reports whether err ended the dump, as opposed to only dropping
// some of its records.
func fatal(err error) bool {
	var (
		operr *rtdump.OpError
		kerr  *rtdump.KernelError
	)

	return errors.As(err, &operr) ||
		errors.As(err, &kerr) ||
		errors.Is(err, rtdump.ErrDumpInterrupted) ||
		errors.Is(err, rtdump.ErrEndOfStream) ||
		errors.Is(err, rtdump.ErrMalformedMessage) ||
		errors.Is(err, rtdump.ErrUnsupportedFamily)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
