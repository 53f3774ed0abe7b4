package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
	"github.com/joho/godotenv"

	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
	"github.com/api3dao/airnode-deployer/internal/util/retry"
)

// DefaultRegion is reported for buckets without a location constraint.
const DefaultRegion = "us-east-1"

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

// API is the subset of *s3.Client used by the gateway.
type API interface {
	s3.ListBucketsAPIClient
	s3.ListObjectsV2APIClient
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Options configures NewGateway.
type Options struct {
	Region string
	// CredentialsFile is an optional aws.env file with AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN. Without it the default
	// credential chain is used.
	CredentialsFile string
	// Endpoint overrides the S3 endpoint, for S3-compatible test servers.
	Endpoint string
	Logger   logr.Logger
}

// Gateway stores Airnode deployments in S3.
type Gateway struct {
	api       API
	region    string
	logger    logr.Logger
	retryOpts []retry.Option
	newName   func() string
}

var _ storage.Gateway = (*Gateway)(nil)

// NewGateway loads the AWS configuration and creates a Gateway for the region.
func NewGateway(ctx context.Context, opts Options) (*Gateway, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}

	if opts.CredentialsFile != "" {
		env, err := godotenv.Read(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read AWS credentials from %s: %w", opts.CredentialsFile, err)
		}
		if env["AWS_ACCESS_KEY_ID"] == "" || env["AWS_SECRET_ACCESS_KEY"] == "" {
			return nil, fmt.Errorf("AWS credentials file %s must set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY", opts.CredentialsFile)
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			env["AWS_ACCESS_KEY_ID"], env["AWS_SECRET_ACCESS_KEY"], env["AWS_SESSION_TOKEN"],
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewFromAPI(client, opts.Region, opts.Logger), nil
}

// NewFromAPI creates a Gateway on top of an existing S3 API client.
func NewFromAPI(api API, region string, logger logr.Logger) *Gateway {
	return &Gateway{
		api:     api,
		region:  region,
		logger:  logger,
		newName: naming.AirnodeBucket,
	}
}

// AirnodeBucket implements storage.Gateway.
func (g *Gateway) AirnodeBucket(ctx context.Context) (*storage.Bucket, error) {
	var names []string
	paginator := s3.NewListBucketsPaginator(g.api, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1000)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storage.WrapError("list buckets", "", "", err)
		}
		for _, b := range page.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}

	name, err := storage.SelectAirnodeBucket(names)
	if err != nil || name == "" {
		return nil, err
	}

	location, err := g.api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return nil, storage.WrapError("get bucket location", name, "", err)
	}

	return &storage.Bucket{Name: name, Region: bucketRegion(location.LocationConstraint)}, nil
}

func bucketRegion(constraint types.BucketLocationConstraint) string {
	switch constraint {
	case "":
		return DefaultRegion
	case types.BucketLocationConstraintEu:
		return "eu-west-1"
	default:
		return string(constraint)
	}
}

// CreateAirnodeBucket implements storage.Gateway.
func (g *Gateway) CreateAirnodeBucket(ctx context.Context) (*storage.Bucket, error) {
	bucket := &storage.Bucket{Name: g.newName(), Region: g.region}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket.Name)}
	if g.region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(g.region),
		}
	}
	if _, err := g.api.CreateBucket(ctx, input); err != nil {
		return nil, storage.WrapError("create bucket", bucket.Name, "", err)
	}
	g.logger.V(1).Info("Created bucket", "bucket", bucket.Name, "region", bucket.Region)

	if err := g.whenVisible(ctx, func(ctx context.Context) error {
		_, err := g.api.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
			Bucket: aws.String(bucket.Name),
			ServerSideEncryptionConfiguration: &types.ServerSideEncryptionConfiguration{
				Rules: []types.ServerSideEncryptionRule{{
					ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{
						SSEAlgorithm: types.ServerSideEncryptionAes256,
					},
				}},
			},
		})
		return err
	}); err != nil {
		return nil, storage.WrapError("enable encryption", bucket.Name, "", err)
	}

	if err := g.whenVisible(ctx, func(ctx context.Context) error {
		_, err := g.api.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(bucket.Name),
			PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
		})
		return err
	}); err != nil {
		return nil, storage.WrapError("block public access", bucket.Name, "", err)
	}

	return bucket, nil
}

// whenVisible retries op while the new bucket is still reported as missing.
func (g *Gateway) whenVisible(ctx context.Context, op func(context.Context) error) error {
	opts := append([]retry.Option{
		retry.WithRetryIf(isNotFoundError),
		retry.WithNotify(func(attempt int, err error, delay time.Duration) {
			g.logger.V(1).Info("Bucket not visible yet, retrying", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}),
	}, g.retryOpts...)
	return retry.Do(ctx, op, opts...)
}

// BucketExists implements storage.Gateway.
func (g *Gateway) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := g.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, storage.WrapError("check bucket", name, "", err)
	}
	return true, nil
}

// DirectoryStructure implements storage.Gateway.
func (g *Gateway) DirectoryStructure(ctx context.Context, bucket *storage.Bucket) (storage.DirectoryStructure, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(g.api, &s3.ListObjectsV2Input{Bucket: aws.String(bucket.Name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storage.WrapError("list objects", bucket.Name, "", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return storage.Build(keys), nil
}

// StoreFile implements storage.Gateway.
func (g *Gateway) StoreFile(ctx context.Context, bucket *storage.Bucket, key string, data []byte) error {
	_, err := g.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket.Name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return storage.WrapError("put object", bucket.Name, key, err)
}

// GetFile implements storage.Gateway.
func (g *Gateway) GetFile(ctx context.Context, bucket *storage.Bucket, key string) ([]byte, error) {
	result, err := g.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket.Name),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storage.WrapError("get object", bucket.Name, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, storage.WrapError("read object", bucket.Name, key, err)
	}
	return data, nil
}

// CopyFile implements storage.Gateway.
func (g *Gateway) CopyFile(ctx context.Context, bucket *storage.Bucket, fromKey, toKey string) error {
	_, err := g.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket.Name),
		Key:        aws.String(toKey),
		CopySource: aws.String(copySource(bucket.Name, fromKey)),
	})
	return storage.WrapError("copy object "+fromKey+" to", bucket.Name, toKey, err)
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// DeleteDirectory implements storage.Gateway.
func (g *Gateway) DeleteDirectory(ctx context.Context, bucket *storage.Bucket, dir *storage.Directory) error {
	keys := storage.Keys(dir)
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	g.logger.V(1).Info("Deleting directory", "bucket", bucket.Name, "directory", dir.BucketKey, "objects", len(objects))
	if err := g.deleteObjects(ctx, bucket.Name, objects); err != nil {
		return storage.WrapError("delete directory", bucket.Name, dir.BucketKey, err)
	}
	return nil
}

func (g *Gateway) deleteObjects(ctx context.Context, bucket string, objects []types.ObjectIdentifier) error {
	for start := 0; start < len(objects); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(objects))
		out, err := g.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: objects[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("%d objects not deleted, first %s: %s", len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

// DeleteBucket implements storage.Gateway.
func (g *Gateway) DeleteBucket(ctx context.Context, bucket *storage.Bucket) error {
	for {
		out, err := g.api.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:  aws.String(bucket.Name),
			MaxKeys: aws.Int32(deleteBatchSize),
		})
		if err != nil {
			return storage.WrapError("list object versions", bucket.Name, "", err)
		}

		var objects []types.ObjectIdentifier
		for _, v := range out.Versions {
			objects = append(objects, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			objects = append(objects, types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		if len(objects) == 0 {
			break
		}

		g.logger.V(1).Info("Draining bucket", "bucket", bucket.Name, "objects", len(objects))
		if err := g.deleteObjects(ctx, bucket.Name, objects); err != nil {
			return storage.WrapError("drain bucket", bucket.Name, "", err)
		}
	}

	_, err := g.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket.Name)})
	return storage.WrapError("delete bucket", bucket.Name, "", err)
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// S3 reports some missing buckets only through the API error code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}
