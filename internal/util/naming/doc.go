// Package naming provides consistent naming functions for Airnode buckets and object keys.
//
// Deployments live under <airnodeAddress>/<stage>/<version>/ where version is
// the deployment time in epoch milliseconds. Each version directory holds the
// uploaded config.json and secrets.env and the Terraform default.tfstate.
package naming
