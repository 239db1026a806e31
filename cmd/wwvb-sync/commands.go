package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dbehnke/wwvb-sync/pkg/config"
	"github.com/dbehnke/wwvb-sync/pkg/timezone"
)

var timezonesCmd = &cobra.Command{
	Use:   "timezones",
	Short: "List the supported timezone abbreviations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, name := range timezone.Names() {
			off, _ := timezone.Lookup(name)
			fmt.Fprintf(out, "%-5s UTC%+d\n", name, off)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		offset, _ := cfg.Timezone.Resolve()
		file := config.ConfigFileUsed()
		if file == "" {
			file = "(defaults)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", file)
		fmt.Fprintf(cmd.OutOrStdout(), "  source:   %s\n", cfg.Receiver.Source)
		fmt.Fprintf(cmd.OutOrStdout(), "  timezone: UTC%+d\n", offset)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wwvb-sync %s (commit %s, built %s)\n", version, commit, buildTime)
		fmt.Fprintf(out, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
	},
}
