// Package testing provides fakes, mocks, builders and fixtures shared by the
// deployer's unit tests.
//
//   - MemoryGateway: in-memory storage.Gateway that records every mutation
//   - RecordingRunner: terraform.Runner that records commands and injects failures
//   - MockGateway, MockRunner, MockProgress: testify mocks for strict expectations
//   - ConfigBuilder: fluent builder for config.json documents
//
// Usage:
//
//	gw := testing.NewMemoryGateway("us-east-1")
//	testing.SeedDeployment(gw, testing.ExampleAddress, "dev", "1662559204554",
//	    testing.NewConfigBuilder().WithStage("dev").Build())
package testing
