package deployer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/api3dao/airnode-deployer/internal/cloud"
	"github.com/api3dao/airnode-deployer/internal/deployer"
	"github.com/api3dao/airnode-deployer/internal/receipt"
	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
	testutil "github.com/api3dao/airnode-deployer/internal/testing"
)

const (
	exampleVersion = "1662559204554"
	shortAddress   = "a30ca71"
)

var gatewayOutputs = []byte(`{
  "http_gateway_url": {"sensitive": false, "type": "string", "value": "https://example.com/http"},
  "http_signed_data_gateway_url": {"sensitive": false, "type": "string", "value": "https://example.com/signed"}
}`)

func argsOf(cmd terraform.Command) string {
	return terraform.CommandLine(cmd.Args)
}

var _ = Describe("Deployer", func() {
	var (
		ctx         context.Context
		gw          *testutil.MemoryGateway
		runner      *testutil.RecordingRunner
		tfDir       string
		receiptPath string
		provider    cloud.Provider
		d           *deployer.Deployer
	)

	newDeployer := func() *deployer.Deployer {
		return deployer.New(gw, runner, testutil.DefaultNodeVersion,
			deployer.WithClock(func() time.Time { return time.UnixMilli(1662559204554) }),
			deployer.WithTerraformDir(tfDir),
			deployer.WithHandlerDir("/opt/airnode/handlers"),
		)
	}

	request := func() deployer.DeployRequest {
		return deployer.DeployRequest{
			AirnodeAddress: testutil.ExampleAddress,
			Stage:          "dev",
			Provider:       provider,
			Gateways: terraform.Gateways{
				HTTP: terraform.GatewaySettings{Enabled: true, APIKey: "http-key"},
			},
			ConfigPath:  "/work/config.json",
			SecretsPath: "/work/secrets.env",
			Config:      testutil.NewConfigBuilder().Build(),
			Secrets:     []byte("AIRNODE_WALLET_ADDRESS=" + testutil.ExampleAddress + "\n"),
			ReceiptPath: receiptPath,
		}
	}

	removeRequest := func() deployer.RemoveRequest {
		return deployer.RemoveRequest{AirnodeAddress: testutil.ExampleAddress, Stage: "dev", Provider: provider}
	}

	versionPath := func(address, stage, version string) string {
		return address + "/" + stage + "/" + version
	}

	BeforeEach(func() {
		ctx = context.Background()
		gw = testutil.NewMemoryGateway("us-east-1")
		runner = testutil.NewRecordingRunner()
		runner.SetOutput("output", gatewayOutputs)
		tfDir = testutil.TerraformDir(GinkgoT(), "aws/airnode", "gcp/airnode")
		receiptPath = filepath.Join(GinkgoT().TempDir(), "receipt.json")
		provider = &cloud.AWS{Region: "us-east-1"}
		d = newDeployer()
	})

	Describe("Deploy", func() {
		Context("on an empty account", func() {
			It("creates the bucket and deploys a single version", func() {
				result, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Version).To(Equal(exampleVersion))
				Expect(result.URLs.HTTP).To(Equal("https://example.com/http"))

				path := versionPath(testutil.ExampleAddress, "dev", exampleVersion)
				Expect(gw.CreatedBuckets).To(Equal(1))
				Expect(gw.Keys()).To(Equal([]string{path + "/config.json", path + "/secrets.env"}))
				Expect(gw.Reads).To(BeEmpty())
				Expect(runner.Names()).To(Equal([]string{"init", "apply", "output"}))
			})

			It("points the backend at the new version", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())

				init := runner.Find("init")[0]
				Expect(argsOf(init)).To(Equal(
					`-backend-config="region=us-east-1" ` +
						`-backend-config="bucket=` + testutil.ExampleBucket + `" ` +
						`-backend-config="key=` + versionPath(testutil.ExampleAddress, "dev", exampleVersion) + `/default.tfstate" ` +
						`-input=false -no-color`))
			})

			It("passes the common variables to apply", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())

				apply := runner.Find("apply")[0]
				Expect(argsOf(apply)).To(Equal(
					`-var="aws_region=us-east-1" ` +
						`-var="airnode_address_short=` + shortAddress + `" ` +
						`-var="stage=dev" ` +
						`-var="configuration_file=/work/config.json" ` +
						`-var="secrets_file=/work/secrets.env" ` +
						`-var="handler_dir=/opt/airnode/handlers" ` +
						`-var="disable_concurrency_reservation=false" ` +
						`-input=false -no-color ` +
						`-var="http_api_key=http-key" ` +
						`-auto-approve`))
			})

			It("writes a successful receipt", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())

				r, err := receipt.Read(receiptPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.Success).To(BeTrue())
				Expect(r.AirnodeWallet.AirnodeAddressShort).To(Equal(shortAddress))
				Expect(r.Deployment.Timestamp.UnixMilli()).To(Equal(int64(1662559204554)))
				Expect(r.API.HTTPGatewayURL).To(Equal("https://example.com/http"))
				Expect(r.API.HTTPSignedDataGatewayURL).To(Equal("https://example.com/signed"))
			})
		})

		Context("on GCP", func() {
			BeforeEach(func() {
				provider = &cloud.GCP{Region: "us-east1", ProjectID: "airnode-project"}
				gw = testutil.NewMemoryGateway("us-east1")
				d = newDeployer()
			})

			It("runs one ignorable import before apply", func() {
				runner.FailOn("import", errors.New("resource already managed"))

				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(runner.Names()).To(Equal([]string{"init", "import", "apply", "output"}))

				imports := runner.Find("import")
				Expect(imports).To(HaveLen(1))
				Expect(imports[0].IgnoreError).To(BeTrue())
				Expect(imports[0].Positional).To(Equal([]string{
					"module.startCoordinator.google_app_engine_application.app[0]",
					"airnode-project",
				}))
			})

			It("uses a prefix backend", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(argsOf(runner.Find("init")[0])).To(HavePrefix(
					`-backend-config="bucket=` + testutil.ExampleBucket + `" ` +
						`-backend-config="prefix=` + versionPath(testutil.ExampleAddress, "dev", exampleVersion) + `"`))
			})
		})

		Context("with a state module", func() {
			BeforeEach(func() {
				tfDir = testutil.TerraformDir(GinkgoT(), "aws/airnode", "aws/state")
				d = newDeployer()
			})

			It("creates the missing state bucket first", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(runner.Names()).To(Equal([]string{"init", "apply", "init", "apply", "output"}))
				Expect(argsOf(runner.Find("apply")[0])).To(ContainSubstring(
					`-var="bucket_name=airnode-` + shortAddress + `-dev-terraform"`))
			})

			It("skips an existing state bucket", func() {
				gw.StateBuckets["airnode-"+shortAddress+"-dev-terraform"] = true

				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(runner.Names()).To(Equal([]string{"init", "apply", "output"}))
			})
		})

		Context("with an earlier version", func() {
			const previous = "1662559100000"

			It("copies the Terraform state forward", func() {
				testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", previous, testutil.NewConfigBuilder().Build())

				_, err := d.Deploy(ctx, request())
				Expect(err).NotTo(HaveOccurred())

				oldPath := versionPath(testutil.ExampleAddress, "dev", previous)
				newPath := versionPath(testutil.ExampleAddress, "dev", exampleVersion)
				Expect(gw.Reads).To(Equal([]string{oldPath + "/config.json"}))
				Expect(gw.CreatedBuckets).To(BeZero())

				state, ok := gw.Object(newPath + "/default.tfstate")
				Expect(ok).To(BeTrue())
				Expect(string(state)).To(Equal(`{"version":4}`))
			})

			It("refuses a different node version without writing anything", func() {
				testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", previous,
					testutil.NewConfigBuilder().WithNodeVersion("0.14.0").Build())

				_, err := d.Deploy(ctx, request())

				var consistencyErr *deployer.ConsistencyError
				Expect(errors.As(err, &consistencyErr)).To(BeTrue())
				Expect(err).To(MatchError(storage.ErrVersionMismatch))
				Expect(err.Error()).To(ContainSubstring("0.14.0"))
				Expect(err.Error()).To(ContainSubstring(testutil.DefaultNodeVersion))
				Expect(gw.Mutations()).To(BeZero())
				Expect(runner.Commands()).To(BeEmpty())
			})

			It("refuses a different region without writing anything", func() {
				testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", previous,
					testutil.NewConfigBuilder().WithRegion("eu-west-1").Build())

				_, err := d.Deploy(ctx, request())
				Expect(err).To(MatchError(storage.ErrRegionMismatch))
				Expect(err.Error()).To(ContainSubstring("eu-west-1"))
				Expect(err.Error()).To(ContainSubstring("us-east-1"))
				Expect(gw.Mutations()).To(BeZero())
			})

			It("does not roll back a consistency failure", func() {
				testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", previous,
					testutil.NewConfigBuilder().WithNodeVersion("0.14.0").Build())
				req := request()
				req.AutoRemove = true

				_, err := d.Deploy(ctx, req)
				Expect(deployer.IsConsistencyError(err)).To(BeTrue())
				Expect(runner.Find("destroy")).To(BeEmpty())
			})
		})

		Context("when writing deployment files fails", func() {
			const previous = "1662559100000"

			var seeded []string

			BeforeEach(func() {
				testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", previous, testutil.NewConfigBuilder().Build())
				seeded = gw.Keys()
			})

			It("keeps the earlier version when an upload fails", func() {
				storeErr := errors.New("store exploded")
				gw.FailOn("StoreFile", storeErr)
				req := request()
				req.AutoRemove = true

				_, err := d.Deploy(ctx, req)
				Expect(err).To(MatchError(storeErr))

				var aggregate *deployer.AggregateError
				Expect(errors.As(err, &aggregate)).To(BeFalse())
				Expect(runner.Commands()).To(BeEmpty())
				Expect(gw.DeletedDirectories).To(BeEmpty())
				Expect(gw.DeletedBuckets).To(BeZero())
				Expect(gw.Keys()).To(ContainElements(seeded))
			})

			It("keeps the earlier version when the receipt cannot be written", func() {
				blocker := filepath.Join(GinkgoT().TempDir(), "file")
				Expect(os.WriteFile(blocker, []byte("x"), 0o600)).To(Succeed())
				req := request()
				req.ReceiptPath = filepath.Join(blocker, "receipt.json")
				req.AutoRemove = true

				_, err := d.Deploy(ctx, req)
				Expect(err).To(HaveOccurred())
				Expect(runner.Find("init")).To(BeEmpty())
				Expect(runner.Find("destroy")).To(BeEmpty())
				Expect(gw.DeletedDirectories).To(BeEmpty())
				Expect(gw.DeletedBuckets).To(BeZero())
				Expect(gw.Keys()).To(ContainElements(seeded))
			})
		})

		Context("when apply fails", func() {
			applyErr := errors.New("apply exploded")

			BeforeEach(func() {
				runner.FailOn("apply", applyErr)
			})

			It("leaves the deployment in place when auto-remove is disabled", func() {
				_, err := d.Deploy(ctx, request())
				Expect(err).To(MatchError(applyErr))
				Expect(runner.Find("destroy")).To(BeEmpty())
				Expect(gw.Keys()).To(HaveLen(2))

				r, readErr := receipt.Read(receiptPath)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(r.Success).To(BeFalse())
			})

			It("removes the deployment once and returns the original error", func() {
				req := request()
				req.AutoRemove = true

				_, err := d.Deploy(ctx, req)
				Expect(err).To(MatchError(applyErr))

				var aggregate *deployer.AggregateError
				Expect(errors.As(err, &aggregate)).To(BeFalse())
				Expect(runner.Find("destroy")).To(HaveLen(1))
				Expect(runner.Names()).To(Equal([]string{"init", "apply", "init", "destroy"}))
				Expect(gw.HasBucket()).To(BeFalse())
			})

			It("removes the deployment after the deploy context is cancelled", func() {
				cancelCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				runner.OnRun("apply", cancel)
				req := request()
				req.AutoRemove = true

				_, err := d.Deploy(cancelCtx, req)
				Expect(err).To(MatchError(applyErr))

				var aggregate *deployer.AggregateError
				Expect(errors.As(err, &aggregate)).To(BeFalse())
				Expect(runner.Names()).To(Equal([]string{"init", "apply", "init", "destroy"}))
				Expect(gw.HasBucket()).To(BeFalse())
			})

			It("reports both errors when removal fails too", func() {
				destroyErr := errors.New("destroy exploded")
				runner.FailOn("destroy", destroyErr)
				req := request()
				req.AutoRemove = true

				_, err := d.Deploy(ctx, req)

				var aggregate *deployer.AggregateError
				Expect(errors.As(err, &aggregate)).To(BeTrue())
				Expect(err).To(MatchError(applyErr))
				Expect(err).To(MatchError(destroyErr))

				msg := err.Error()
				Expect(msg).To(HavePrefix("Deployment error:\n"))
				Expect(strings.Index(msg, "apply exploded")).To(BeNumerically("<", strings.Index(msg, "Removal error:\n")))
				Expect(strings.Index(msg, "Removal error:\n")).To(BeNumerically("<", strings.Index(msg, "destroy exploded")))
				Expect(gw.Keys()).To(HaveLen(2))
			})
		})
	})

	Describe("Remove", func() {
		It("fails without an Airnode bucket", func() {
			err := d.Remove(ctx, removeRequest())
			Expect(err).To(MatchError(deployer.ErrNoBucketAvailable))
			Expect(runner.Commands()).To(BeEmpty())
		})

		It("fails for an unknown stage", func() {
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "prod", exampleVersion, testutil.NewConfigBuilder().Build())

			err := d.Remove(ctx, removeRequest())

			var notFound *deployer.DeploymentNotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Address).To(Equal(testutil.ExampleAddress))
			Expect(notFound.Stage).To(Equal("dev"))
			Expect(gw.Mutations()).To(BeZero())
		})

		It("refuses a different node version before deleting anything", func() {
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", exampleVersion,
				testutil.NewConfigBuilder().WithNodeVersion("0.14.0").Build())

			err := d.Remove(ctx, removeRequest())
			Expect(err).To(MatchError(storage.ErrVersionMismatch))
			Expect(gw.Mutations()).To(BeZero())
			Expect(runner.Commands()).To(BeEmpty())
		})

		Context("with three versions of the only stage", func() {
			BeforeEach(func() {
				for _, version := range []string{"1662559100000", "1662559200000", "1662559204554"} {
					testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", version, testutil.NewConfigBuilder().Build())
				}
			})

			It("destroys with the latest state and NULL files", func() {
				Expect(d.Remove(ctx, removeRequest())).To(Succeed())
				Expect(runner.Names()).To(Equal([]string{"init", "destroy"}))

				Expect(argsOf(runner.Find("init")[0])).To(ContainSubstring(
					`-backend-config="key=` + versionPath(testutil.ExampleAddress, "dev", exampleVersion) + `/default.tfstate"`))

				destroy := argsOf(runner.Find("destroy")[0])
				Expect(destroy).To(ContainSubstring(`-var="configuration_file=NULL"`))
				Expect(destroy).To(ContainSubstring(`-var="secrets_file=NULL"`))
				Expect(destroy).To(HaveSuffix("-auto-approve"))
			})

			It("deletes the stage, the address and the bucket", func() {
				Expect(d.Remove(ctx, removeRequest())).To(Succeed())
				Expect(gw.DeletedDirectories).To(Equal([]string{
					testutil.ExampleAddress + "/dev/",
					testutil.ExampleAddress + "/",
				}))
				Expect(gw.DeletedBuckets).To(Equal(1))
				Expect(gw.Keys()).To(BeEmpty())
			})
		})

		It("keeps the bucket when another Airnode is deployed", func() {
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", exampleVersion, testutil.NewConfigBuilder().Build())
			testutil.SeedDeployment(gw, testutil.SiblingAddress, "prod", "1662559204555",
				testutil.NewConfigBuilder().WithStage("prod").Build())

			Expect(d.Remove(ctx, removeRequest())).To(Succeed())
			Expect(gw.DeletedDirectories).To(Equal([]string{
				testutil.ExampleAddress + "/dev/",
				testutil.ExampleAddress + "/",
			}))
			Expect(gw.DeletedBuckets).To(BeZero())
			Expect(gw.Keys()).To(HaveLen(3))
			Expect(gw.Keys()[0]).To(HavePrefix(testutil.SiblingAddress + "/prod/1662559204555/"))
		})

		It("keeps the address when it has another stage", func() {
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", exampleVersion, testutil.NewConfigBuilder().Build())
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "prod", exampleVersion,
				testutil.NewConfigBuilder().WithStage("prod").Build())

			Expect(d.Remove(ctx, removeRequest())).To(Succeed())
			Expect(gw.DeletedDirectories).To(Equal([]string{testutil.ExampleAddress + "/dev/"}))
			Expect(gw.DeletedBuckets).To(BeZero())
		})
	})

	Describe("List and Info", func() {
		It("returns nothing without a bucket", func() {
			infos, err := d.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})

		It("describes every stage without writing", func() {
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", "1662559100000", testutil.NewConfigBuilder().Build())
			testutil.SeedDeployment(gw, testutil.ExampleAddress, "dev", exampleVersion, testutil.NewConfigBuilder().Build())
			testutil.SeedDeployment(gw, testutil.SiblingAddress, "prod", exampleVersion,
				testutil.NewConfigBuilder().WithStage("prod").Build())

			infos, err := d.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(2))
			Expect(infos[0].AirnodeAddress).To(Equal(testutil.ExampleAddress))
			Expect(infos[0].Versions).To(Equal([]string{"1662559100000", exampleVersion}))
			Expect(infos[0].LatestVersion).To(Equal(exampleVersion))
			Expect(infos[0].NodeVersion).To(Equal(testutil.DefaultNodeVersion))
			Expect(infos[1].Stage).To(Equal("prod"))
			Expect(gw.Mutations()).To(BeZero())
		})

		It("reports a missing deployment", func() {
			gw.EnsureBucket()
			_, err := d.Info(ctx, testutil.ExampleAddress, "dev")

			var notFound *deployer.DeploymentNotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})
})
