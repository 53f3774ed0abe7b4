// Package gcs implements the Airnode storage gateway on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"github.com/go-logr/logr"
	"google.golang.org/api/option"

	airnodestorage "github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
	"github.com/api3dao/airnode-deployer/internal/util/retry"
)

// DefaultLocation is reported for buckets without a location.
const DefaultLocation = "US"

// Options configures NewGateway.
type Options struct {
	ProjectID string
	Region    string
	// CredentialsFile is an optional service account key. Without it
	// application default credentials are used.
	CredentialsFile string
	// Endpoint overrides the Cloud Storage endpoint, for emulators.
	Endpoint string
	Logger   logr.Logger
}

// Gateway stores Airnode deployments in Cloud Storage.
type Gateway struct {
	backend   backend
	projectID string
	region    string
	logger    logr.Logger
	retryOpts []retry.Option
	newName   func() string
	close     func() error
}

var _ airnodestorage.Gateway = (*Gateway)(nil)

// NewGateway creates a Cloud Storage client and a Gateway for the project.
func NewGateway(ctx context.Context, opts Options) (*Gateway, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	g := newGateway(&clientBackend{client: client}, opts.ProjectID, opts.Region, opts.Logger)
	g.close = client.Close
	return g, nil
}

func newGateway(b backend, projectID, region string, logger logr.Logger) *Gateway {
	return &Gateway{
		backend:   b,
		projectID: projectID,
		region:    region,
		logger:    logger,
		newName:   naming.AirnodeBucket,
	}
}

// Close releases the underlying client.
func (g *Gateway) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// AirnodeBucket implements storage.Gateway.
func (g *Gateway) AirnodeBucket(ctx context.Context) (*airnodestorage.Bucket, error) {
	names, err := g.backend.BucketNames(ctx, g.projectID, airnodestorage.BucketNamePrefix)
	if err != nil {
		return nil, airnodestorage.WrapError("list buckets", "", "", err)
	}

	name, err := airnodestorage.SelectAirnodeBucket(names)
	if err != nil || name == "" {
		return nil, err
	}

	location, err := g.backend.BucketLocation(ctx, name)
	if err != nil {
		return nil, airnodestorage.WrapError("get bucket location", name, "", err)
	}
	if location == "" {
		location = DefaultLocation
	}
	return &airnodestorage.Bucket{Name: name, Region: location}, nil
}

// CreateAirnodeBucket implements storage.Gateway.
func (g *Gateway) CreateAirnodeBucket(ctx context.Context) (*airnodestorage.Bucket, error) {
	bucket := &airnodestorage.Bucket{Name: g.newName(), Region: g.region}

	if err := g.backend.CreateBucket(ctx, g.projectID, bucket.Name, g.region); err != nil {
		return nil, airnodestorage.WrapError("create bucket", bucket.Name, "", err)
	}
	g.logger.V(1).Info("Created bucket", "bucket", bucket.Name, "location", bucket.Region)

	if err := g.whenVisible(ctx, func(ctx context.Context) error {
		return g.backend.EnableUniformAccess(ctx, bucket.Name)
	}); err != nil {
		return nil, airnodestorage.WrapError("enable uniform bucket-level access", bucket.Name, "", err)
	}

	if err := g.whenVisible(ctx, func(ctx context.Context) error {
		policy, err := g.backend.Policy(ctx, bucket.Name)
		if err != nil {
			return err
		}
		grantProjectRoles(policy, g.projectID)
		return g.backend.SetPolicy(ctx, bucket.Name, policy)
	}); err != nil {
		return nil, airnodestorage.WrapError("set bucket policy", bucket.Name, "", err)
	}

	return bucket, nil
}

// grantProjectRoles gives project viewers read access and project editors and
// owners full control over the bucket and its objects.
func grantProjectRoles(policy *iam.Policy, projectID string) {
	viewer := "projectViewer:" + projectID
	editor := "projectEditor:" + projectID
	owner := "projectOwner:" + projectID

	policy.Add(viewer, "roles/storage.legacyBucketReader")
	policy.Add(viewer, "roles/storage.legacyObjectReader")
	for _, member := range []string{editor, owner} {
		policy.Add(member, "roles/storage.legacyBucketOwner")
		policy.Add(member, "roles/storage.legacyObjectOwner")
	}
}

func (g *Gateway) whenVisible(ctx context.Context, op func(context.Context) error) error {
	opts := append([]retry.Option{
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, storage.ErrBucketNotExist) }),
		retry.WithNotify(func(attempt int, err error, delay time.Duration) {
			g.logger.V(1).Info("Bucket not visible yet, retrying", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}),
	}, g.retryOpts...)
	return retry.Do(ctx, op, opts...)
}

// BucketExists implements storage.Gateway.
func (g *Gateway) BucketExists(ctx context.Context, name string) (bool, error) {
	exists, err := g.backend.BucketExists(ctx, name)
	if err != nil {
		return false, airnodestorage.WrapError("check bucket", name, "", err)
	}
	return exists, nil
}

// DirectoryStructure implements storage.Gateway.
func (g *Gateway) DirectoryStructure(ctx context.Context, bucket *airnodestorage.Bucket) (airnodestorage.DirectoryStructure, error) {
	names, err := g.backend.ObjectNames(ctx, bucket.Name)
	if err != nil {
		return nil, airnodestorage.WrapError("list objects", bucket.Name, "", err)
	}
	return airnodestorage.Build(names), nil
}

// StoreFile implements storage.Gateway.
func (g *Gateway) StoreFile(ctx context.Context, bucket *airnodestorage.Bucket, key string, data []byte) error {
	return airnodestorage.WrapError("write object", bucket.Name, key, g.backend.Write(ctx, bucket.Name, key, data))
}

// GetFile implements storage.Gateway.
func (g *Gateway) GetFile(ctx context.Context, bucket *airnodestorage.Bucket, key string) ([]byte, error) {
	data, err := g.backend.Read(ctx, bucket.Name, key)
	if err != nil {
		return nil, airnodestorage.WrapError("read object", bucket.Name, key, err)
	}
	return data, nil
}

// CopyFile implements storage.Gateway.
func (g *Gateway) CopyFile(ctx context.Context, bucket *airnodestorage.Bucket, fromKey, toKey string) error {
	return airnodestorage.WrapError("copy object "+fromKey+" to", bucket.Name, toKey, g.backend.Copy(ctx, bucket.Name, fromKey, toKey))
}

// DeleteDirectory implements storage.Gateway. Directory keys without a
// marker object are skipped.
func (g *Gateway) DeleteDirectory(ctx context.Context, bucket *airnodestorage.Bucket, dir *airnodestorage.Directory) error {
	keys := airnodestorage.Keys(dir)
	g.logger.V(1).Info("Deleting directory", "bucket", bucket.Name, "directory", dir.BucketKey, "objects", len(keys))

	for _, key := range keys {
		err := g.backend.Delete(ctx, bucket.Name, key, 0)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return airnodestorage.WrapError("delete object", bucket.Name, key, err)
		}
	}
	return nil
}

// DeleteBucket implements storage.Gateway.
func (g *Gateway) DeleteBucket(ctx context.Context, bucket *airnodestorage.Bucket) error {
	for {
		versions, err := g.backend.ObjectVersions(ctx, bucket.Name)
		if err != nil {
			return airnodestorage.WrapError("list object versions", bucket.Name, "", err)
		}
		if len(versions) == 0 {
			break
		}

		g.logger.V(1).Info("Draining bucket", "bucket", bucket.Name, "objects", len(versions))
		for _, v := range versions {
			err := g.backend.Delete(ctx, bucket.Name, v.Name, v.Generation)
			if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
				return airnodestorage.WrapError("delete object version", bucket.Name, v.Name, err)
			}
		}
	}

	return airnodestorage.WrapError("delete bucket", bucket.Name, "", g.backend.DeleteBucket(ctx, bucket.Name))
}
