// Package configcmder provides the config command for managing persistent
// simsearch configuration stored in the .simsearch/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/pkg/cliui"
	"github.com/papercomputeco/simsearch/pkg/config"
)

const configLongDesc string = `Manage persistent simsearch configuration.

Configuration is stored as config.toml in the .simsearch/ directory and
provides default values for command flags. CLI flags and SIMSEARCH_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  store.provider, store.target, store.sqlite_path, store.api_key,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  embedding.api_key, embedding.cache_path,
  index.name, index.metric, index.text_fields,
  search.strategy, search.top_k, search.num_candidates,
  api.listen,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  simsearch config set <key> <value>    Set a configuration value
  simsearch config get <key>            Get a configuration value
  simsearch config list                 List all configuration values

Examples:
  simsearch config set store.provider postgres
  simsearch config set index.text_fields title,content
  simsearch config get embedding.model
  simsearch config list`

const configShortDesc string = "Manage persistent simsearch configuration"

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

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// mask hides all but the last four characters of a secret.
func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
