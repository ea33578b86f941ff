// Package configcmder provides the config command for managing persistent
// rxrank configuration stored in the .rxrank/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
)

const configLongDesc string = `Manage persistent rxrank configuration.

Configuration is stored as config.toml in the .rxrank/ directory and provides
default values for command flags. CLI flags and RXRANK_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  artifacts.embeddings, artifacts.mappings, artifacts.graph, artifacts.records,
  api.listen, client.api_target,
  fallback.enabled, fallback.encoder, fallback.encoder_target, fallback.fanout,
  fallback.timeout, fallback.max_concurrent, fallback.rate_per_second, fallback.seed,
  graph.provider, records.provider, records.dsn,
  neo4j.uri, neo4j.user, neo4j.password, neo4j.database,
  log.json, log.file

Use subcommands to get, set, or list configuration values:
  rxrank config set <key> <value>    Set a configuration value
  rxrank config get <key>            Get a configuration value
  rxrank config list [section]       List values, "*" marks non-defaults

Examples:
  rxrank config set artifacts.embeddings s3://models/embeddings.json.zst
  rxrank config set fallback.fanout 10,5
  rxrank config get graph.provider
  rxrank config list`

const configShortDesc string = "Manage persistent rxrank configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
