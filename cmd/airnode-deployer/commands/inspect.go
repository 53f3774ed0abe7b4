package commands

import (
	"github.com/spf13/cobra"

	"github.com/api3dao/airnode-deployer/cmd/airnode-deployer/handlers"
	"github.com/api3dao/airnode-deployer/internal/cloud"
)

// List returns the list command.
func List() *cobra.Command {
	var provider, region, projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the Airnodes deployed to a cloud account",
		Long: `List prints every deployed Airnode stage found in the Airnode bucket of
the cloud account, together with its latest version.

Example:
  airnode-deployer list --cloud-provider aws --region us-east-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settings(cmd)
			if err != nil {
				return err
			}
			return handlers.List(cmd.Context(), s, cloud.Settings{
				Type:      cloud.Type(provider),
				Region:    region,
				ProjectID: projectID,
			})
		},
	}

	cloudFlags(cmd, &provider, &region, &projectID)

	return cmd
}

// Info returns the info command.
func Info() *cobra.Command {
	var (
		details handlers.DeploymentDetails
		output  string
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the versions of a deployed Airnode stage",
		Long: `Info prints the cloud settings, node version and stored versions of one
deployed Airnode stage.

Example:
  airnode-deployer info -a 0xA30CA71Ba54E83127214D3271aEA8F5D6bD4Dace -s dev -c aws -e us-east-1 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settings(cmd)
			if err != nil {
				return err
			}
			return handlers.Info(cmd.Context(), s, details, output)
		},
	}

	deploymentDetailsFlags(cmd, &details)
	cmd.Flags().StringVarP(&output, "output", "o", handlers.OutputText, "Output format (text, yaml or json)")

	return cmd
}
