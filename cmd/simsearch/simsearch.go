// Package simsearchcmder is the root simsearch command.
package simsearchcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/simsearch/cmd/simsearch/config"
	indexcmder "github.com/papercomputeco/simsearch/cmd/simsearch/index"
	initcmder "github.com/papercomputeco/simsearch/cmd/simsearch/init"
	resetcmder "github.com/papercomputeco/simsearch/cmd/simsearch/reset"
	searchcmder "github.com/papercomputeco/simsearch/cmd/simsearch/search"
	servecmder "github.com/papercomputeco/simsearch/cmd/simsearch/serve"
	statuscmder "github.com/papercomputeco/simsearch/cmd/simsearch/status"
	versioncmder "github.com/papercomputeco/simsearch/cmd/version"
)

const simsearchLongDesc string = `simsearch embeds documents into a vector index and runs similarity search over it.

Typical flow:
  simsearch init                     Create a local .simsearch/ directory
  simsearch reset                    Drop and recreate the configured index
  simsearch index data.csv docs/     Embed and bulk load documents
  simsearch search "climate change"  Rank documents against a query
  simsearch serve                    Run the HTTP API and MCP server`

const simsearchShortDesc string = "simsearch - embedding index and similarity search"

func NewSimsearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "simsearch",
		Short:         simsearchShortDesc,
		Long:          simsearchLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .simsearch/ config directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(resetcmder.NewResetCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
