// Package main implements flowkit-nodetypes, a tool dumping the JSON
// description of every node type known to the process: the built-in
// catalog plus any plugin modules named on the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const appName = "flowkit-nodetypes"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		plugins   []string
		output    string
		pretty    bool
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Dump the JSON description of registered node types",
		Long: `Dumps a JSON array describing every node type in the built-in
catalog and in the plugin modules given with --plugin: ports with their
packet types and array sizes, and option members with their defaults.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(setupLogger(logLevel, logFormat))
			return run(plugins, output, pretty)
		},
	}

	cmd.Flags().StringSliceVar(&plugins, "plugin", nil, "Plugin module to load (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the JSON output")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: json, text")

	v := viper.New()
	v.SetEnvPrefix("FLOWKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(cmd.Flags())

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		// Environment variables fill in flags the user did not set.
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if !f.Changed && v.IsSet(f.Name) {
				_ = cmd.Flags().Set(f.Name, v.GetString(f.Name))
			}
		})
	}

	return cmd
}

func run(plugins []string, output string, pretty bool) error {
	catalog, err := loadCatalog(plugins)
	if err != nil {
		return err
	}

	data, err := dumpTypes(catalog, pretty)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(output, append(data, '\n'), 0o644)
}
