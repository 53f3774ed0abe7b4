package testing

import (
	"github.com/api3dao/airnode-deployer/internal/util/naming"
)

// Airnode addresses with valid EIP-55 checksums.
const (
	ExampleAddress = "0xA30CA71Ba54E83127214D3271aEA8F5D6bD4Dace"
	SiblingAddress = "0xd0624E6C2C8A1DaEdE9Fa7E9C409167ed5F256c6"
)

// ExampleBucket is the name MemoryGateway gives to the bucket it creates.
const ExampleBucket = "airnode-123456789abc"

// SeedDeployment stores a complete deployment version without recording it as a write.
func SeedDeployment(g *MemoryGateway, address, stage, version string, configJSON []byte) {
	g.EnsureBucket()
	path := naming.DeploymentPath(address, stage, version)
	g.Seed(naming.ConfigKey(path), configJSON)
	g.Seed(naming.SecretsKey(path), []byte("AIRNODE_WALLET_ADDRESS="+address+"\n"))
	g.Seed(naming.StateKey(path), []byte(`{"version":4}`))
}
