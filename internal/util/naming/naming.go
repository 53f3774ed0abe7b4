package naming

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Files stored in every deployment version directory.
const (
	ConfigFile  = "config.json"
	SecretsFile = "secrets.env"
	StateFile   = "default.tfstate"
)

// Null is passed to Terraform in place of a file path that must not be read.
const Null = "NULL"

// AirnodeBucket returns a fresh Airnode bucket name: "airnode-" and 12 random hex digits.
func AirnodeBucket() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "airnode-" + id[:12]
}

// StateBucket names the bucket backing the Terraform state of one Airnode stage.
func StateBucket(shortAddress, stage string) string {
	return fmt.Sprintf("airnode-%s-%s-terraform", shortAddress, stage)
}

// Version formats a deployment timestamp as epoch milliseconds.
func Version(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// StagePath returns the key prefix of all versions of a stage, without trailing slash.
func StagePath(airnodeAddress, stage string) string {
	return airnodeAddress + "/" + stage
}

// DeploymentPath returns the key prefix of one deployment version, without trailing slash.
func DeploymentPath(airnodeAddress, stage, version string) string {
	return StagePath(airnodeAddress, stage) + "/" + version
}

func ConfigKey(deploymentPath string) string {
	return deploymentPath + "/" + ConfigFile
}

func SecretsKey(deploymentPath string) string {
	return deploymentPath + "/" + SecretsFile
}

func StateKey(deploymentPath string) string {
	return deploymentPath + "/" + StateFile
}
