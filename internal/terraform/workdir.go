package terraform

import (
	"fmt"
	"os"
)

// PrepareWorkdir copies the Terraform module at moduleDir into a fresh
// temporary directory. The returned cleanup removes the copy.
func PrepareWorkdir(moduleDir string) (string, func(), error) {
	info, err := os.Stat(moduleDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read terraform module %s: %w", moduleDir, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("terraform module %s is not a directory", moduleDir)
	}

	dir, err := os.MkdirTemp("", "airnode-terraform-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create terraform workdir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	if err := os.CopyFS(dir, os.DirFS(moduleDir)); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to copy terraform module %s: %w", moduleDir, err)
	}
	return dir, cleanup, nil
}
