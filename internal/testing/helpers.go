package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TB is the part of testing.TB used by the helpers. GinkgoT() satisfies it too.
type TB interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// TerraformDir creates a Terraform directory holding an empty module for
// each given "<provider>/<module>" path, for example "aws/airnode".
func TerraformDir(t TB, modules ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, module := range modules {
		path := filepath.Join(dir, filepath.FromSlash(module))
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatalf("failed to create module %s: %v", module, err)
		}
		if err := os.WriteFile(filepath.Join(path, "main.tf"), []byte("# "+module+"\n"), 0o600); err != nil {
			t.Fatalf("failed to write module %s: %v", module, err)
		}
	}
	return dir
}
