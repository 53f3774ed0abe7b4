// Package storage models the object-storage side of an Airnode deployment.
//
// Deployments are kept in a single bucket per cloud account under keys of the
// form <airnodeAddress>/<stage>/<version>/{config.json,secrets.env,default.tfstate}.
// The package turns a flat key listing into a directory tree, and defines the
// Gateway contract implemented by the AWS and GCP platform packages.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// BucketNamePrefix starts the name of every Airnode bucket.
const BucketNamePrefix = "airnode-"

var bucketNamePattern = regexp.MustCompile(`^airnode-[0-9a-f]{12}$`)

// Bucket identifies the Airnode bucket of a cloud account.
type Bucket struct {
	Name   string
	Region string
}

// IsAirnodeBucket reports whether name follows the airnode-<12 hex> convention.
func IsAirnodeBucket(name string) bool {
	return bucketNamePattern.MatchString(name)
}

// SelectAirnodeBucket picks the Airnode bucket out of all bucket names in an account.
// It returns an empty name when there is none.
func SelectAirnodeBucket(names []string) (string, error) {
	var matches []string
	for _, name := range names {
		if IsAirnodeBucket(name) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", &ConsistencyError{
			Err:     ErrMultipleBuckets,
			Message: fmt.Sprintf("%v: %s", ErrMultipleBuckets, strings.Join(matches, ", ")),
		}
	}
}

// Gateway is the object-storage capability the deployer needs from a cloud provider.
type Gateway interface {
	// AirnodeBucket returns the Airnode bucket, or nil when none exists yet.
	AirnodeBucket(ctx context.Context) (*Bucket, error)

	// CreateAirnodeBucket creates a fresh, hardened Airnode bucket.
	CreateAirnodeBucket(ctx context.Context) (*Bucket, error)

	// BucketExists reports whether a bucket with the given name is accessible.
	BucketExists(ctx context.Context, name string) (bool, error)

	// DirectoryStructure lists every key in the bucket as a tree.
	DirectoryStructure(ctx context.Context, bucket *Bucket) (DirectoryStructure, error)

	StoreFile(ctx context.Context, bucket *Bucket, key string, data []byte) error
	GetFile(ctx context.Context, bucket *Bucket, key string) ([]byte, error)
	CopyFile(ctx context.Context, bucket *Bucket, fromKey, toKey string) error

	// DeleteDirectory removes every object in the directory's subtree.
	DeleteDirectory(ctx context.Context, bucket *Bucket, dir *Directory) error

	// DeleteBucket drains all objects and object versions, then deletes the bucket.
	DeleteBucket(ctx context.Context, bucket *Bucket) error
}
