package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, get or set configuration values",
		Example: `  genekor config                                   # show effective config
  genekor config get evaluation.min_submitters
  genekor config set evaluation.pm5_accept_likely_pathogenic true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := e.manager.AllSettings()
			if db, ok := settings["database"].(map[string]any); ok && db["password"] != "" {
				db["password"] = "********"
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			if used := e.manager.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.manager.IsSet(args[0]) {
				return fmt.Errorf("key %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.manager.Get(args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and write the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := e.manager.ConfigFileUsed()
			if path == "" {
				path = filepath.Join(".", "config.yaml")
			}
			if err := e.manager.Set(args[0], parseValue(args[1]), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	})

	return cmd
}

// parseValue keeps booleans and integers typed in the written file.
func parseValue(s string) any {
	switch s {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
