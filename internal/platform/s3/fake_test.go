package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeAPI is an in-memory S3 with object versioning always enabled.
type fakeAPI struct {
	mu sync.Mutex

	buckets  map[string]*fakeBucket
	pageSize int

	// failures counts down per operation before the operation succeeds.
	notFoundFailures map[string]int
	errs             map[string]error
	calls            []string
}

type fakeBucket struct {
	location   string
	objects    map[string][]byte
	versions   []types.ObjectVersion
	encryption *types.ServerSideEncryptionConfiguration
	publicAcl  *types.PublicAccessBlockConfiguration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		buckets:          map[string]*fakeBucket{},
		pageSize:         1000,
		notFoundFailures: map[string]int{},
		errs:             map[string]error{},
	}
}

func (f *fakeAPI) addBucket(name, location string, keys ...string) {
	b := &fakeBucket{location: location, objects: map[string][]byte{}}
	f.buckets[name] = b
	for _, key := range keys {
		f.put(b, key, []byte("content of "+key))
	}
}

func (f *fakeAPI) put(b *fakeBucket, key string, data []byte) {
	b.objects[key] = data
	b.versions = append(b.versions, types.ObjectVersion{
		Key:       aws.String(key),
		VersionId: aws.String(fmt.Sprintf("v%d", len(b.versions)+1)),
	})
}

func (f *fakeAPI) begin(op string, bucket *string) (*fakeBucket, error) {
	f.calls = append(f.calls, op)
	if err := f.errs[op]; err != nil {
		return nil, err
	}
	if f.notFoundFailures[op] > 0 {
		f.notFoundFailures[op]--
		return nil, &types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	if bucket == nil {
		return nil, nil
	}
	b, ok := f.buckets[*bucket]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	return b, nil
}

func (f *fakeAPI) ListBuckets(_ context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.begin("ListBuckets", nil); err != nil {
		return nil, err
	}

	var names []string
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if in.ContinuationToken != nil {
		for i, name := range names {
			if name == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+f.pageSize, len(names))

	out := &s3.ListBucketsOutput{}
	for _, name := range names[start:end] {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	if end < len(names) {
		out.ContinuationToken = aws.String(names[end])
	}
	return out, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("ListObjectsV2", in.Bucket)
	if err != nil {
		return nil, err
	}

	keys := sortedKeys(b.objects)
	start := 0
	if in.ContinuationToken != nil {
		start = sort.SearchStrings(keys, *in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeAPI) GetBucketLocation(_ context.Context, in *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("GetBucketLocation", in.Bucket)
	if err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraint(b.location)}, nil
}

func (f *fakeAPI) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.begin("HeadBucket", in.Bucket); err != nil {
		return nil, err
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.begin("CreateBucket", nil); err != nil {
		return nil, err
	}
	location := ""
	if in.CreateBucketConfiguration != nil {
		location = string(in.CreateBucketConfiguration.LocationConstraint)
	}
	f.buckets[*in.Bucket] = &fakeBucket{location: location, objects: map[string][]byte{}}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeAPI) PutBucketEncryption(_ context.Context, in *s3.PutBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("PutBucketEncryption", in.Bucket)
	if err != nil {
		return nil, err
	}
	b.encryption = in.ServerSideEncryptionConfiguration
	return &s3.PutBucketEncryptionOutput{}, nil
}

func (f *fakeAPI) PutPublicAccessBlock(_ context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("PutPublicAccessBlock", in.Bucket)
	if err != nil {
		return nil, err
	}
	b.publicAcl = in.PublicAccessBlockConfiguration
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("PutObject", in.Bucket)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.put(b, *in.Key, data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("GetObject", in.Bucket)
	if err != nil {
		return nil, err
	}
	data, ok := b.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("CopyObject", in.Bucket)
	if err != nil {
		return nil, err
	}
	sourceKey := strings.TrimPrefix(*in.CopySource, *in.Bucket+"/")
	data, ok := b.objects[sourceKey]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	f.put(b, *in.Key, data)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("DeleteObjects", in.Bucket)
	if err != nil {
		return nil, err
	}
	if len(in.Delete.Objects) > deleteBatchSize {
		return nil, fmt.Errorf("too many objects: %d", len(in.Delete.Objects))
	}

	for _, obj := range in.Delete.Objects {
		key := aws.ToString(obj.Key)
		if obj.VersionId == nil {
			if _, ok := b.objects[key]; ok {
				delete(b.objects, key)
				b.versions = append(b.versions, types.ObjectVersion{Key: obj.Key, VersionId: aws.String("marker-" + key)})
			}
			continue
		}
		kept := b.versions[:0]
		for _, v := range b.versions {
			if aws.ToString(v.Key) == key && aws.ToString(v.VersionId) == *obj.VersionId {
				continue
			}
			kept = append(kept, v)
		}
		b.versions = kept
		delete(b.objects, key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// ListObjectVersions reports marker-* versions as delete markers.
func (f *fakeAPI) ListObjectVersions(_ context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("ListObjectVersions", in.Bucket)
	if err != nil {
		return nil, err
	}

	limit := min(int(aws.ToInt32(in.MaxKeys)), f.pageSize, len(b.versions))
	out := &s3.ListObjectVersionsOutput{}
	for _, v := range b.versions[:limit] {
		if strings.HasPrefix(aws.ToString(v.VersionId), "marker-") {
			out.DeleteMarkers = append(out.DeleteMarkers, types.DeleteMarkerEntry{Key: v.Key, VersionId: v.VersionId})
			continue
		}
		out.Versions = append(out.Versions, v)
	}
	return out, nil
}

func (f *fakeAPI) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := f.begin("DeleteBucket", in.Bucket)
	if err != nil {
		return nil, err
	}
	if len(b.versions) > 0 {
		return nil, fmt.Errorf("BucketNotEmpty: %d versions left", len(b.versions))
	}
	delete(f.buckets, *in.Bucket)
	return &s3.DeleteBucketOutput{}, nil
}

func sortedKeys(objects map[string][]byte) []string {
	keys := make([]string, 0, len(objects))
	for key := range objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
