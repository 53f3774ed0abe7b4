package testing

import (
	"encoding/json"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/config"
)

// DefaultNodeVersion is the node version used by builders and fixtures.
const DefaultNodeVersion = "0.15.0"

// ConfigBuilder provides a fluent interface for constructing config.json documents.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Airnode
}

// NewConfigBuilder creates a ConfigBuilder for an AWS deployment in us-east-1.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Airnode{
			NodeSettings: config.NodeSettings{
				CloudProvider: cloud.Settings{Type: cloud.TypeAWS, Region: "us-east-1"},
				Stage:         "dev",
				NodeVersion:   DefaultNodeVersion,
			},
		},
	}
}

// WithStage sets the stage.
func (b *ConfigBuilder) WithStage(stage string) *ConfigBuilder {
	next := b.clone()
	next.cfg.NodeSettings.Stage = stage
	return next
}

// WithNodeVersion sets the node version.
func (b *ConfigBuilder) WithNodeVersion(version string) *ConfigBuilder {
	next := b.clone()
	next.cfg.NodeSettings.NodeVersion = version
	return next
}

// WithCloudProvider sets the cloud provider settings.
func (b *ConfigBuilder) WithCloudProvider(settings cloud.Settings) *ConfigBuilder {
	next := b.clone()
	next.cfg.NodeSettings.CloudProvider = settings
	return next
}

// WithRegion changes only the region of the cloud provider.
func (b *ConfigBuilder) WithRegion(region string) *ConfigBuilder {
	next := b.clone()
	next.cfg.NodeSettings.CloudProvider.Region = region
	return next
}

// WithHTTPGateway enables the HTTP gateway.
func (b *ConfigBuilder) WithHTTPGateway(apiKey string, maxConcurrency int) *ConfigBuilder {
	next := b.clone()
	next.cfg.NodeSettings.HTTPGateway = config.Gateway{Enabled: true, APIKey: apiKey, MaxConcurrency: maxConcurrency}
	return next
}

// Settings returns the node settings.
func (b *ConfigBuilder) Settings() config.NodeSettings {
	return b.cfg.NodeSettings
}

// Build returns the config.json document.
func (b *ConfigBuilder) Build() []byte {
	data, err := json.MarshalIndent(b.cfg, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	return &ConfigBuilder{cfg: b.cfg}
}
