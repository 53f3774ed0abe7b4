package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/terraform"
)

var (
	stagePattern       = regexp.MustCompile(`^[a-z0-9-]{1,16}$`)
	interpolatePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Airnode is the part of an Airnode config.json that drives a deployment.
// Sections the deployer does not interpret are uploaded unchanged.
type Airnode struct {
	NodeSettings NodeSettings `json:"nodeSettings"`
}

// NodeSettings is the nodeSettings section of config.json.
type NodeSettings struct {
	CloudProvider         cloud.Settings `json:"cloudProvider"`
	Stage                 string         `json:"stage"`
	NodeVersion           string         `json:"nodeVersion"`
	HTTPGateway           Gateway        `json:"httpGateway"`
	HTTPSignedDataGateway Gateway        `json:"httpSignedDataGateway"`
	OEVGateway            Gateway        `json:"oevGateway"`
}

// Gateway is the configuration of one optional gateway.
type Gateway struct {
	Enabled        bool   `json:"enabled"`
	APIKey         string `json:"apiKey,omitempty"`
	MaxConcurrency int    `json:"maxConcurrency,omitempty"`
}

// Gateways converts the gateway sections into Terraform settings.
func (n NodeSettings) Gateways() terraform.Gateways {
	return terraform.Gateways{
		HTTP:           n.HTTPGateway.settings(),
		HTTPSignedData: n.HTTPSignedDataGateway.settings(),
		OEV:            n.OEVGateway.settings(),
	}
}

func (g Gateway) settings() terraform.GatewaySettings {
	return terraform.GatewaySettings{Enabled: g.Enabled, APIKey: g.APIKey, MaxConcurrency: g.MaxConcurrency}
}

// LoadAirnode reads config.json, interpolates ${NAME} references with secrets
// and validates the node settings against the deployer version. It returns
// the parsed config and the raw, uninterpolated file content.
func LoadAirnode(path string, secrets map[string]string, deployerVersion string) (*Airnode, []byte, error) {
	// #nosec G304
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	interpolated, err := Interpolate(raw, secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to interpolate config file %s: %w", path, err)
	}

	var cfg Airnode
	if err := yaml.Unmarshal(interpolated, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(deployerVersion); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, raw, nil
}

// ReadNodeSettings parses the node settings of a stored config.json without
// interpolation or validation. It is used on configs of earlier deployments.
func ReadNodeSettings(data []byte) (NodeSettings, error) {
	var cfg Airnode
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodeSettings{}, fmt.Errorf("failed to parse stored config: %w", err)
	}
	return cfg.NodeSettings, nil
}

// Interpolate replaces every ${NAME} in data with secrets[NAME].
// All missing names are reported together.
func Interpolate(data []byte, secrets map[string]string) ([]byte, error) {
	missing := map[string]bool{}
	out := interpolatePattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(interpolatePattern.FindSubmatch(match)[1])
		value, ok := secrets[name]
		if !ok {
			missing[name] = true
			return match
		}
		return []byte(escapeJSONString(value))
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("missing secrets: %s", strings.Join(names, ", "))
	}
	return out, nil
}

// escapeJSONString escapes a value for use inside a JSON string literal.
func escapeJSONString(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks the node settings. deployerVersion is the version the
// config must be written for.
func (c *Airnode) Validate(deployerVersion string) error {
	n := c.NodeSettings
	var errs []error

	if err := n.CloudProvider.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !stagePattern.MatchString(n.Stage) {
		errs = append(errs, fmt.Errorf("invalid stage %q: must match %s", n.Stage, stagePattern))
	}
	if n.NodeVersion != deployerVersion {
		errs = append(errs, fmt.Errorf("nodeVersion %q does not match deployer version %q", n.NodeVersion, deployerVersion))
	}
	for name, gw := range map[string]Gateway{
		"httpGateway":           n.HTTPGateway,
		"httpSignedDataGateway": n.HTTPSignedDataGateway,
	} {
		if gw.Enabled && gw.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is enabled but has no apiKey", name))
		}
	}
	for name, gw := range map[string]Gateway{
		"httpGateway":           n.HTTPGateway,
		"httpSignedDataGateway": n.HTTPSignedDataGateway,
		"oevGateway":            n.OEVGateway,
	} {
		if gw.MaxConcurrency < 0 {
			errs = append(errs, fmt.Errorf("%s maxConcurrency must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// ValidateStage checks a stage name given on the command line.
func ValidateStage(stage string) error {
	if !stagePattern.MatchString(stage) {
		return fmt.Errorf("invalid stage %q: must match %s", stage, stagePattern)
	}
	return nil
}
