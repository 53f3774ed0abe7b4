// Package prerequisites checks that the command-line tools the deployer
// drives are installed.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name or path to look for.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// TerraformTool returns the Terraform binary the deployer shells out to.
func TerraformTool(binary string) Tool {
	if binary == "" {
		binary = "terraform"
	}
	return Tool{
		Name:        binary,
		Required:    true,
		Description: "Required for provisioning and destroying Airnode cloud resources",
		InstallURL:  "https://developer.hashicorp.com/terraform/install",
	}
}

// OptionalTools returns tools that are useful but not required.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "aws",
			Description: "Useful for inspecting AWS deployments and credentials",
			InstallURL:  "https://docs.aws.amazon.com/cli/latest/userguide/getting-started-install.html",
		},
		{
			Name:        "gcloud",
			Description: "Useful for inspecting GCP deployments and credentials",
			InstallURL:  "https://cloud.google.com/sdk/docs/install",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			result.Version = getToolVersion(path)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckDeployment checks the Terraform binary and the optional cloud CLIs.
// Only a missing Terraform binary is an error.
func CheckDeployment(binary string) *CheckResults {
	return Check(append([]Tool{TerraformTool(binary)}, OptionalTools()...))
}

// getToolVersion returns the first line printed by the tool's version command,
// or an empty string.
func getToolVersion(path string) string {
	for _, flag := range []string{"version", "--version"} {
		// #nosec G204 - path was resolved from a Tool definition
		output, err := exec.Command(path, flag).Output()
		if err != nil {
			continue
		}
		line, _, _ := strings.Cut(string(output), "\n")
		return strings.TrimSpace(line)
	}
	return ""
}
