package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
)

// NewInitCmd returns the command initializing a new relayer.yaml file in the
// home directory.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: fmt.Sprintf("Initialize a new %s file", rollconf.RelayerConfigYaml),
		Long: fmt.Sprintf(`This command initializes a new %s file with default values in the home directory,
together with its config and data directories. The trusted validator set must be
placed at relayer.validator_set_path before the relayer is started.`, rollconf.RelayerConfigYaml),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			homePath, err := cmd.Flags().GetString(rollconf.FlagRootDir)
			if err != nil {
				return fmt.Errorf("error reading home flag: %w", err)
			}

			if homePath == "" {
				return fmt.Errorf("%w: home path is required", rollconf.ErrConfigInvalid)
			}

			configFilePath := filepath.Join(homePath, rollconf.RelayerConfigYaml)
			if _, err := os.Stat(configFilePath); err == nil {
				return fmt.Errorf("%s file already exists in the specified directory", rollconf.RelayerConfigYaml)
			}

			config := rollconf.DefaultConfig
			config.RootDir = homePath

			chainID, err := cmd.Flags().GetString(rollconf.FlagChainID)
			if err != nil {
				return fmt.Errorf("error reading chain id flag: %w", err)
			}
			config.ChainID = chainID

			if err := rollconf.WriteYamlConfig(config); err != nil {
				return fmt.Errorf("error writing %s file: %w", rollconf.RelayerConfigYaml, err)
			}

			cmd.Printf("Initialized %s file in %s\n", rollconf.RelayerConfigYaml, homePath)
			return nil
		},
	}
	cmd.Flags().String(rollconf.FlagChainID, rollconf.DefaultConfig.ChainID, "sequencer chain ID")
	return cmd
}
