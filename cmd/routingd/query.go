package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/oraichain/ibc-routing/tracker/db"
	"github.com/oraichain/ibc-routing/tracker/hopstore"
	"github.com/oraichain/ibc-routing/tracker/query"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

func queryCmd(v *viper.Viper) *cobra.Command {
	var (
		hint         query.Hint
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:     "query <txHash>",
		Aliases: []string{"q"},
		Short:   "Print the routes a transaction took part in, read from the local database",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hint.EvmChainPrefix != "" && hint.ChainID != "" {
				return fmt.Errorf("only one of --evm-chain-prefix and --chain-id may be set")
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			database, err := db.OpenFileDB(cfg.DatabaseDir, cfg.DatabaseFile, true)
			if err != nil {
				return err
			}
			defer database.Close()

			engine := query.NewEngine(query.Config{
				Store:          hopstore.NewStore(database, zerolog.Nop()),
				PrimaryChainID: cfg.PrimaryChain.ChainID,
				RelayChainID:   cfg.RelayChain.ChainID,
				StuckAfter:     cfg.StuckAfter(),
				Logger:         zerolog.Nop(),
			})
			routes, err := engine.Routes(cmd.Context(), args[0], hint)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), routes, outputFormat)
		},
	}

	cmd.Flags().StringVar(&hint.EvmChainPrefix, "evm-chain-prefix", "", "look the hash up on the EVM chain with this prefix")
	cmd.Flags().StringVar(&hint.ChainID, "chain-id", "", "look the hash up on the Cosmos chain with this id")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func printOutput(w io.Writer, data any, format string) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		// Round-trip through JSON so the YAML keys follow the json tags.
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return err
		}
		return yaml.NewEncoder(w).Encode(generic)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
