package terraform

import (
	"encoding/json"
	"fmt"
)

// GatewayURLs are the gateway endpoints reported by the Airnode module.
type GatewayURLs struct {
	HTTP           string
	HTTPSignedData string
	OEV            string
}

type outputValue struct {
	Value any `json:"value"`
}

// ParseOutputs reads the gateway URLs from `terraform output -json`.
// Outputs that are missing or not strings are left empty.
func ParseOutputs(data []byte) (GatewayURLs, error) {
	var urls GatewayURLs
	if len(data) == 0 {
		return urls, nil
	}

	var outputs map[string]outputValue
	if err := json.Unmarshal(data, &outputs); err != nil {
		return urls, fmt.Errorf("failed to parse terraform outputs: %w", err)
	}

	urls.HTTP = stringOutput(outputs, "http_gateway_url")
	urls.HTTPSignedData = stringOutput(outputs, "http_signed_data_gateway_url")
	urls.OEV = stringOutput(outputs, "oev_gateway_url")
	return urls, nil
}

func stringOutput(outputs map[string]outputValue, name string) string {
	s, _ := outputs[name].Value.(string)
	return s
}
