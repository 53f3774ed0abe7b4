package commands

import (
	"github.com/spf13/cobra"

	"github.com/api3dao/airnode-deployer/cmd/airnode-deployer/handlers"
)

const removeWarning = `WARNING: This operation is irreversible. The cloud resources of the stage
and every stored version of its configuration are deleted.`

// RemoveWithReceipt returns the remove-with-receipt command.
func RemoveWithReceipt() *cobra.Command {
	var (
		receiptPath string
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "remove-with-receipt",
		Short: "Remove an Airnode using the receipt of its deployment",
		Long: `Remove-with-receipt destroys the deployment described by a receipt file.

Example:
  airnode-deployer remove-with-receipt -r output/receipt.json

` + removeWarning,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settings(cmd)
			if err != nil {
				return err
			}
			return handlers.RemoveWithReceipt(cmd.Context(), s, receiptPath, yes)
		},
	}

	cmd.Flags().StringVarP(&receiptPath, "receipt", "r", "output/receipt.json", "Path to receipt file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// RemoveWithDeploymentDetails returns the remove-with-deployment-details command.
func RemoveWithDeploymentDetails() *cobra.Command {
	var (
		details handlers.DeploymentDetails
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "remove-with-deployment-details",
		Short: "Remove an Airnode identified by its address, stage and cloud",
		Long: `Remove-with-deployment-details destroys a deployment without a receipt.

Example:
  airnode-deployer remove-with-deployment-details \
    --airnode-address 0xA30CA71Ba54E83127214D3271aEA8F5D6bD4Dace \
    --stage dev --cloud-provider aws --region us-east-1

` + removeWarning,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := settings(cmd)
			if err != nil {
				return err
			}
			return handlers.RemoveWithDeploymentDetails(cmd.Context(), s, details, yes)
		},
	}

	deploymentDetailsFlags(cmd, &details)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func deploymentDetailsFlags(cmd *cobra.Command, details *handlers.DeploymentDetails) {
	cmd.Flags().StringVarP(&details.AirnodeAddress, "airnode-address", "a", "", "Airnode address (required)")
	cmd.Flags().StringVarP(&details.Stage, "stage", "s", "", "Stage of the deployment (required)")
	cloudFlags(cmd, &details.CloudProvider, &details.Region, &details.ProjectID)
	_ = cmd.MarkFlagRequired("airnode-address")
	_ = cmd.MarkFlagRequired("stage")
}

func cloudFlags(cmd *cobra.Command, provider, region, projectID *string) {
	cmd.Flags().StringVarP(provider, "cloud-provider", "c", "", "Cloud provider, aws or gcp (required)")
	cmd.Flags().StringVarP(region, "region", "e", "", "Cloud region (required)")
	cmd.Flags().StringVarP(projectID, "project-id", "p", "", "GCP project ID (required for gcp)")
	_ = cmd.MarkFlagRequired("cloud-provider")
	_ = cmd.MarkFlagRequired("region")
}
