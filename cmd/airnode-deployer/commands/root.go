// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse arguments and runtime settings and delegate execution to the
// handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/api3dao/airnode-deployer/internal/config"
)

// Root returns the root command for the airnode-deployer CLI.
//
// Runtime settings are persistent flags shared by every subcommand. Each can
// also be set through an AIRNODE_DEPLOYER_* environment variable or deployer.yaml.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "airnode-deployer",
		Short:         "Deploy and remove Airnodes on AWS and GCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	// Deployment lifecycle
	cmd.AddCommand(Deploy())
	cmd.AddCommand(RemoveWithReceipt())
	cmd.AddCommand(RemoveWithDeploymentDetails())

	// Inspection
	cmd.AddCommand(List())
	cmd.AddCommand(Info())

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// settings resolves the runtime settings of the running command.
func settings(cmd *cobra.Command) (config.Settings, error) {
	return config.LoadSettings(cmd.Flags())
}
