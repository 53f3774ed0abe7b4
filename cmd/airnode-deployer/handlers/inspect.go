package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/config"
	"github.com/api3dao/airnode-deployer/internal/deployer"
)

// Output formats of the info command.
const (
	OutputText = "text"
	OutputYAML = "yaml"
	OutputJSON = "json"
)

// List handles the list command.
func List(ctx context.Context, settings config.Settings, cloudSettings cloud.Settings) error {
	provider, err := cloudSettings.Provider()
	if err != nil {
		return err
	}
	rt, err := newRuntime(settings)
	if err != nil {
		return err
	}
	defer rt.finish()
	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	gw, closeGateway, err := rt.gateway(ctx, provider)
	if err != nil {
		return err
	}
	defer closeGateway()

	infos, err := rt.inspector(gw).List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(stdout, "No deployments found")
		return nil
	}

	t := table.New().Headers("AIRNODE ADDRESS", "STAGE", "CLOUD PROVIDER", "NODE VERSION", "LATEST VERSION")
	for _, info := range infos {
		t.Row(info.AirnodeAddress, info.Stage,
			fmt.Sprintf("%s (%s)", info.CloudProvider.Type, info.CloudProvider.Region),
			info.NodeVersion, info.LatestVersion)
	}
	fmt.Fprintln(stdout, t.Render())
	return nil
}

// Info handles the info command.
func Info(ctx context.Context, settings config.Settings, details DeploymentDetails, output string) error {
	details, provider, err := details.Resolve()
	if err != nil {
		return err
	}
	rt, err := newRuntime(settings)
	if err != nil {
		return err
	}
	defer rt.finish()
	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	gw, closeGateway, err := rt.gateway(ctx, provider)
	if err != nil {
		return err
	}
	defer closeGateway()

	info, err := rt.inspector(gw).Info(ctx, details.AirnodeAddress, details.Stage)
	if err != nil {
		return err
	}
	return writeInfo(info, output)
}

func writeInfo(info *deployer.DeploymentInfo, output string) error {
	switch output {
	case OutputYAML:
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to encode deployment info: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	case OutputJSON:
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode deployment info: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	case "", OutputText:
		fmt.Fprintf(stdout, "Airnode address: %s\n", info.AirnodeAddress)
		fmt.Fprintf(stdout, "Stage:           %s\n", info.Stage)
		fmt.Fprintf(stdout, "Cloud provider:  %s (%s)\n", info.CloudProvider.Type, info.CloudProvider.Region)
		fmt.Fprintf(stdout, "Node version:    %s\n", info.NodeVersion)
		fmt.Fprintf(stdout, "Versions:\n")
		for _, version := range info.Versions {
			marker := ""
			if version == info.LatestVersion {
				marker = " (latest)"
			}
			fmt.Fprintf(stdout, "  %s%s\n", version, marker)
		}
		return nil
	}
	return fmt.Errorf("unsupported output format %q (expected %s, %s or %s)", output, OutputText, OutputYAML, OutputJSON)
}
