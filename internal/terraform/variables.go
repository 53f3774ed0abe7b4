package terraform

import (
	"strconv"

	"github.com/api3dao/airnode-deployer/internal/util/naming"
)

// GatewaySettings configures one of the optional Airnode gateways.
type GatewaySettings struct {
	Enabled        bool
	APIKey         string
	MaxConcurrency int
}

// Gateways groups the gateway settings of an Airnode configuration.
type Gateways struct {
	HTTP           GatewaySettings
	HTTPSignedData GatewaySettings
	OEV            GatewaySettings
}

// Arguments returns the variables of every enabled gateway.
// A non-positive MaxConcurrency leaves the module default in place.
func (g Gateways) Arguments() []Argument {
	var args []Argument
	if g.HTTP.Enabled {
		args = append(args, Var("http_api_key", g.HTTP.APIKey))
		args = appendConcurrency(args, "http_max_concurrency", g.HTTP.MaxConcurrency)
	}
	if g.HTTPSignedData.Enabled {
		args = append(args, Var("http_signed_data_api_key", g.HTTPSignedData.APIKey))
		args = appendConcurrency(args, "http_signed_data_max_concurrency", g.HTTPSignedData.MaxConcurrency)
	}
	if g.OEV.Enabled {
		args = appendConcurrency(args, "oev_max_concurrency", g.OEV.MaxConcurrency)
	}
	return args
}

func appendConcurrency(args []Argument, name string, value int) []Argument {
	if value <= 0 {
		return args
	}
	return append(args, Var(name, strconv.Itoa(value)))
}

// CommonVariables are passed to every apply and destroy of the Airnode module.
type CommonVariables struct {
	AirnodeAddressShort string
	Stage               string
	// ConfigPath and SecretsPath are absolute paths; empty means NULL.
	ConfigPath                    string
	SecretsPath                   string
	HandlerDir                    string
	DisableConcurrencyReservation bool
}

// Arguments renders the common variables followed by the non-interactive flags.
func (c CommonVariables) Arguments() []Argument {
	return []Argument{
		Var("airnode_address_short", c.AirnodeAddressShort),
		Var("stage", c.Stage),
		Var("configuration_file", orNull(c.ConfigPath)),
		Var("secrets_file", orNull(c.SecretsPath)),
		Var("handler_dir", c.HandlerDir),
		Var("disable_concurrency_reservation", strconv.FormatBool(c.DisableConcurrencyReservation)),
		Pair("input", "false"),
		Flag("no-color"),
	}
}

func orNull(path string) string {
	if path == "" {
		return naming.Null
	}
	return path
}

// Import names a resource that must be adopted into state before apply.
type Import struct {
	Address string
	ID      string
}
