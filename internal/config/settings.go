package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the deployer.
const EnvPrefix = "AIRNODE_DEPLOYER"

// Setting keys, shared by flags, environment variables and deployer.yaml.
const (
	KeyTerraformDir        = "terraform-dir"
	KeyHandlerDir          = "handler-dir"
	KeyTerraformBinary     = "terraform-binary"
	KeyLogFormat           = "log-format"
	KeyDebug               = "debug"
	KeyMetricsFile         = "metrics-file"
	KeyTimeout             = "timeout"
	KeyNumericVersionOrder = "numeric-version-order"
	KeyAWSCredentials      = "aws-credentials"
	KeyGCPCredentials      = "gcp-credentials"
	KeySettingsFile        = "settings-file"
)

// Settings are the deployer runtime settings.
type Settings struct {
	TerraformDir        string
	HandlerDir          string
	TerraformBinary     string
	LogFormat           string
	Debug               bool
	MetricsFile         string
	Timeout             time.Duration
	NumericVersionOrder bool
	AWSCredentials      string
	GCPCredentials      string
}

// RegisterFlags adds the runtime settings to a flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyTerraformDir, "terraform", "Directory holding the aws/ and gcp/ Terraform modules")
	flags.String(KeyHandlerDir, "handlers", "Directory holding the packaged Airnode handlers")
	flags.String(KeyTerraformBinary, "terraform", "Terraform executable")
	flags.String(KeyLogFormat, "console", "Log format (console or json)")
	flags.Bool(KeyDebug, false, "Enable debug logging")
	flags.String(KeyMetricsFile, "", "Write Prometheus metrics to this file on exit")
	flags.Duration(KeyTimeout, 0, "Abort the command after this duration (0 disables the timeout)")
	flags.Bool(KeyNumericVersionOrder, false, "Order deployment versions numerically instead of lexicographically")
	flags.String(KeyAWSCredentials, "", "Optional aws.env file with AWS credentials")
	flags.String(KeyGCPCredentials, "", "Optional GCP service account key file")
	flags.String(KeySettingsFile, "", "Optional settings file (default: ./deployer.yaml if present)")
}

// LoadSettings resolves the runtime settings from flags, AIRNODE_DEPLOYER_*
// environment variables and an optional settings file, in that order of
// precedence.
func LoadSettings(flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	if file := v.GetString(KeySettingsFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("deployer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("failed to read deployer.yaml: %w", err)
			}
		}
	}

	s := Settings{
		TerraformDir:        v.GetString(KeyTerraformDir),
		HandlerDir:          v.GetString(KeyHandlerDir),
		TerraformBinary:     v.GetString(KeyTerraformBinary),
		LogFormat:           v.GetString(KeyLogFormat),
		Debug:               v.GetBool(KeyDebug),
		MetricsFile:         v.GetString(KeyMetricsFile),
		Timeout:             v.GetDuration(KeyTimeout),
		NumericVersionOrder: v.GetBool(KeyNumericVersionOrder),
		AWSCredentials:      v.GetString(KeyAWSCredentials),
		GCPCredentials:      v.GetString(KeyGCPCredentials),
	}
	if s.Timeout < 0 {
		return Settings{}, fmt.Errorf("%s must not be negative", KeyTimeout)
	}
	return s, nil
}
