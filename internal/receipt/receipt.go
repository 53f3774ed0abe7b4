// Package receipt reads and writes deployment receipts.
//
// A receipt records what was deployed where. It is written once before
// Terraform runs and again when the deployment finishes, so an interrupted
// deployment still leaves enough information behind to remove it.
package receipt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/api3dao/airnode-deployer/internal/cloud"
)

// Receipt is the receipt.json document.
type Receipt struct {
	AirnodeWallet AirnodeWallet `json:"airnodeWallet"`
	Deployment    Deployment    `json:"deployment"`
	API           API           `json:"api"`
	Success       bool          `json:"success"`
}

// AirnodeWallet identifies the deployed Airnode.
type AirnodeWallet struct {
	AirnodeAddress      string `json:"airnodeAddress"`
	AirnodeAddressShort string `json:"airnodeAddressShort"`
	AirnodeXpub         string `json:"airnodeXpub,omitempty"`
}

// Deployment describes where and when the Airnode was deployed.
type Deployment struct {
	AirnodeAddressShort string         `json:"airnodeAddressShort"`
	CloudProvider       cloud.Settings `json:"cloudProvider"`
	Stage               string         `json:"stage"`
	NodeVersion         string         `json:"nodeVersion"`
	Timestamp           time.Time      `json:"timestamp"`
}

// API lists the gateway endpoints of the deployment.
type API struct {
	HTTPGatewayURL           string `json:"httpGatewayUrl,omitempty"`
	HTTPSignedDataGatewayURL string `json:"httpSignedDataGatewayUrl,omitempty"`
	OEVGatewayURL            string `json:"oevGatewayUrl,omitempty"`
}

// Read loads a receipt from path.
func Read(path string) (*Receipt, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt %s: %w", path, err)
	}
	if r.AirnodeWallet.AirnodeAddress == "" || r.Deployment.Stage == "" || r.Deployment.CloudProvider.Type == "" {
		return nil, fmt.Errorf("receipt %s is incomplete: airnode address, stage and cloud provider are required", path)
	}
	return &r, nil
}

// Write stores the receipt at path, creating its directory. The file is
// replaced atomically.
func Write(path string, r *Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".receipt-*.json")
	if err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write receipt %s: %w", path, err)
	}
	return nil
}
