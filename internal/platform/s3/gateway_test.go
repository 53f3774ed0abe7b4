package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/util/retry"
)

const (
	testBucket = "airnode-0123456789ab"
	address    = "0xA30CA71Ba54E83127214D3271aEA8F5D6bD4Dace"
)

func testGateway(api API, region string) *Gateway {
	g := NewFromAPI(api, region, logr.Discard())
	g.newName = func() string { return testBucket }
	g.retryOpts = []retry.Option{retry.WithInitialDelay(time.Millisecond), retry.WithMaxRetries(3)}
	return g
}

func TestAirnodeBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		buckets  map[string]string
		pageSize int
		want     *storage.Bucket
		wantErr  error
	}{
		{
			name:    "no buckets",
			buckets: map[string]string{"logs": ""},
		},
		{
			name:    "default location",
			buckets: map[string]string{"logs": "", testBucket: ""},
			want:    &storage.Bucket{Name: testBucket, Region: "us-east-1"},
		},
		{
			name:    "explicit location",
			buckets: map[string]string{testBucket: "eu-central-1"},
			want:    &storage.Bucket{Name: testBucket, Region: "eu-central-1"},
		},
		{
			name:    "legacy EU location",
			buckets: map[string]string{testBucket: "EU"},
			want:    &storage.Bucket{Name: testBucket, Region: "eu-west-1"},
		},
		{
			name:     "found on a later page",
			buckets:  map[string]string{"a": "", "b": "", "c": "", "d": "", testBucket: "us-west-2"},
			pageSize: 2,
			want:     &storage.Bucket{Name: testBucket, Region: "us-west-2"},
		},
		{
			name:    "multiple",
			buckets: map[string]string{testBucket: "", "airnode-ba9876543210": ""},
			wantErr: storage.ErrMultipleBuckets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newFakeAPI()
			if tt.pageSize > 0 {
				api.pageSize = tt.pageSize
			}
			for name, location := range tt.buckets {
				api.addBucket(name, location)
			}

			got, err := testGateway(api, "us-east-1").AirnodeBucket(context.Background())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAirnodeBucket_ListError(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.errs["ListBuckets"] = errors.New("access denied")

	_, err := testGateway(api, "us-east-1").AirnodeBucket(context.Background())

	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "list buckets", storageErr.Op)
}

func TestCreateAirnodeBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		region           string
		wantLocation     string
		notFoundFailures int
	}{
		{name: "us-east-1 has no location constraint", region: "us-east-1", wantLocation: ""},
		{name: "other region", region: "eu-central-1", wantLocation: "eu-central-1"},
		{name: "hardening retries while bucket propagates", region: "us-east-1", notFoundFailures: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newFakeAPI()
			api.notFoundFailures["PutBucketEncryption"] = tt.notFoundFailures
			api.notFoundFailures["PutPublicAccessBlock"] = tt.notFoundFailures

			bucket, err := testGateway(api, tt.region).CreateAirnodeBucket(context.Background())
			require.NoError(t, err)
			assert.Equal(t, &storage.Bucket{Name: testBucket, Region: tt.region}, bucket)

			created := api.buckets[testBucket]
			require.NotNil(t, created)
			assert.Equal(t, tt.wantLocation, created.location)

			require.NotNil(t, created.encryption)
			assert.Equal(t, types.ServerSideEncryptionAes256,
				created.encryption.Rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm)

			require.NotNil(t, created.publicAcl)
			assert.True(t, aws.ToBool(created.publicAcl.BlockPublicAcls))
			assert.True(t, aws.ToBool(created.publicAcl.BlockPublicPolicy))
			assert.True(t, aws.ToBool(created.publicAcl.IgnorePublicAcls))
			assert.True(t, aws.ToBool(created.publicAcl.RestrictPublicBuckets))
		})
	}
}

func TestCreateAirnodeBucket_HardeningFailureNamesBucket(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.errs["PutPublicAccessBlock"] = errors.New("AccessDenied")

	_, err := testGateway(api, "us-east-1").CreateAirnodeBucket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block public access")
	assert.Contains(t, err.Error(), testBucket)
	assert.Contains(t, err.Error(), "AccessDenied")

	// Only one attempt: AccessDenied is not a propagation error.
	count := 0
	for _, call := range api.calls {
		if call == "PutPublicAccessBlock" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBucketExists(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.addBucket("airnode-a30ca71-dev-terraform", "")
	g := testGateway(api, "us-east-1")

	exists, err := g.BucketExists(context.Background(), "airnode-a30ca71-dev-terraform")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = g.BucketExists(context.Background(), "airnode-a30ca71-prod-terraform")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestObjects(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.addBucket(testBucket, "")
	g := testGateway(api, "us-east-1")
	bucket := &storage.Bucket{Name: testBucket, Region: "us-east-1"}
	ctx := context.Background()

	from := address + "/dev/1662559204554/default.tfstate"
	to := address + "/dev/1662559300000/default.tfstate"

	require.NoError(t, g.StoreFile(ctx, bucket, from, []byte(`{"version":4}`)))
	require.NoError(t, g.CopyFile(ctx, bucket, from, to))

	data, err := g.GetFile(ctx, bucket, to)
	require.NoError(t, err)
	assert.Equal(t, `{"version":4}`, string(data))

	_, err = g.GetFile(ctx, bucket, address+"/missing")
	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, address+"/missing", storageErr.Key)

	tree, err := g.DirectoryStructure(ctx, bucket)
	require.NoError(t, err)
	stage, err := storage.StageDirectory(tree, address, "dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"1662559204554", "1662559300000"}, stage.ChildNames())
}

func TestDirectoryStructure_Paginates(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.pageSize = 2
	var keys []string
	for i := range 5 {
		keys = append(keys, fmt.Sprintf("%s/dev/%d/config.json", address, 1662559204550+i))
	}
	api.addBucket(testBucket, "", keys...)

	tree, err := testGateway(api, "us-east-1").DirectoryStructure(context.Background(), &storage.Bucket{Name: testBucket})
	require.NoError(t, err)

	stage, err := storage.StageDirectory(tree, address, "dev")
	require.NoError(t, err)
	assert.Len(t, stage.Children, 5)
}

func TestDeleteDirectory_Batches(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	var keys []string
	for i := range 1500 {
		keys = append(keys, fmt.Sprintf("%s/dev/%d/config.json", address, i))
	}
	keys = append(keys, address+"/prod/1/config.json")
	api.addBucket(testBucket, "", keys...)

	g := testGateway(api, "us-east-1")
	bucket := &storage.Bucket{Name: testBucket}
	tree, err := g.DirectoryStructure(context.Background(), bucket)
	require.NoError(t, err)
	stage, err := storage.StageDirectory(tree, address, "dev")
	require.NoError(t, err)

	require.NoError(t, g.DeleteDirectory(context.Background(), bucket, stage))

	assert.Equal(t, []string{address + "/prod/1/config.json"}, sortedKeys(api.buckets[testBucket].objects))
	deletes := 0
	for _, call := range api.calls {
		if call == "DeleteObjects" {
			deletes++
		}
	}
	// 1500 files, 1500 version directory keys and the stage key.
	assert.Equal(t, 4, deletes)
}

func TestDeleteBucket_DrainsVersions(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.pageSize = 3
	api.addBucket(testBucket, "", address+"/dev/1/config.json", address+"/dev/1/secrets.env")
	g := testGateway(api, "us-east-1")
	bucket := &storage.Bucket{Name: testBucket}
	ctx := context.Background()

	// Overwrite and delete to leave older versions and delete markers behind.
	require.NoError(t, g.StoreFile(ctx, bucket, address+"/dev/1/config.json", []byte("v2")))
	tree, err := g.DirectoryStructure(ctx, bucket)
	require.NoError(t, err)
	stage, err := storage.StageDirectory(tree, address, "dev")
	require.NoError(t, err)
	require.NoError(t, g.DeleteDirectory(ctx, bucket, stage))
	require.NotEmpty(t, api.buckets[testBucket].versions)

	require.NoError(t, g.DeleteBucket(ctx, bucket))
	assert.NotContains(t, api.buckets, testBucket)
}

func TestDeleteBucket_Error(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.addBucket(testBucket, "")
	api.errs["DeleteBucket"] = errors.New("AccessDenied")

	err := testGateway(api, "us-east-1").DeleteBucket(context.Background(), &storage.Bucket{Name: testBucket})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete bucket")
}

func TestCopySource(t *testing.T) {
	t.Parallel()

	assert.Equal(t, testBucket+"/"+address+"/dev/1/default.tfstate", copySource(testBucket, address+"/dev/1/default.tfstate"))
	assert.Equal(t, testBucket+"/a%20b/c", copySource(testBucket, "a b/c"))
}

// testClient creates an S3 client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *s3.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
	})
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestBucketExists_HTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"exists", http.StatusOK, true, false},
		{"missing", http.StatusNotFound, false, false},
		{"forbidden", http.StatusForbidden, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			got, err := testGateway(client, "us-east-1").BucketExists(context.Background(), "airnode-a30ca71-dev-terraform")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateAirnodeBucket_HTTPError(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, http.StatusForbidden, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>AccessDenied</Code>
  <Message>Access Denied</Message>
</Error>`)
	}))

	_, err := testGateway(client, "us-east-1").CreateAirnodeBucket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create bucket (bucket "+testBucket+")")
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"no such bucket", &types.NoSuchBucket{}, true},
		{"not found", &types.NotFound{}, true},
		{"wrapped", fmt.Errorf("put: %w", &types.NoSuchBucket{}), true},
		{"other", errors.New("AccessDenied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
