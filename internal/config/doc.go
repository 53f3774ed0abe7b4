// Package config loads the inputs of a deployment.
//
// [LoadAirnode] and [LoadSecrets] read the Airnode config.json and
// secrets.env given to deploy. [LoadSettings] resolves the runtime settings of
// the deployer itself from flags, AIRNODE_DEPLOYER_* environment variables and
// an optional deployer.yaml.
package config
