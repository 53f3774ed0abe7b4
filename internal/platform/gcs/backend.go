package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// listPageSize is the number of items requested per listing page.
const listPageSize = 1000

// objectVersion identifies one generation of an object.
type objectVersion struct {
	Name       string
	Generation int64
}

// backend abstracts the Cloud Storage calls made by the gateway so that the
// gateway logic can be tested without a real *storage.Client.
type backend interface {
	BucketNames(ctx context.Context, projectID, prefix string) ([]string, error)
	BucketLocation(ctx context.Context, name string) (string, error)
	BucketExists(ctx context.Context, name string) (bool, error)
	CreateBucket(ctx context.Context, projectID, name, location string) error
	EnableUniformAccess(ctx context.Context, name string) error
	Policy(ctx context.Context, name string) (*iam.Policy, error)
	SetPolicy(ctx context.Context, name string, policy *iam.Policy) error
	ObjectNames(ctx context.Context, bucket string) ([]string, error)
	ObjectVersions(ctx context.Context, bucket string) ([]objectVersion, error)
	Write(ctx context.Context, bucket, name string, data []byte) error
	Read(ctx context.Context, bucket, name string) ([]byte, error)
	Copy(ctx context.Context, bucket, from, to string) error
	Delete(ctx context.Context, bucket, name string, generation int64) error
	DeleteBucket(ctx context.Context, name string) error
}

// clientBackend implements backend on a real *storage.Client.
type clientBackend struct {
	client *storage.Client
}

func (b *clientBackend) BucketNames(ctx context.Context, projectID, prefix string) ([]string, error) {
	it := b.client.Buckets(ctx, projectID)
	it.Prefix = prefix

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
}

func (b *clientBackend) BucketLocation(ctx context.Context, name string) (string, error) {
	attrs, err := b.client.Bucket(name).Attrs(ctx)
	if err != nil {
		return "", err
	}
	return attrs.Location, nil
}

func (b *clientBackend) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := b.client.Bucket(name).Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *clientBackend) CreateBucket(ctx context.Context, projectID, name, location string) error {
	return b.client.Bucket(name).Create(ctx, projectID, &storage.BucketAttrs{Location: location})
}

func (b *clientBackend) EnableUniformAccess(ctx context.Context, name string) error {
	_, err := b.client.Bucket(name).Update(ctx, storage.BucketAttrsToUpdate{
		UniformBucketLevelAccess: &storage.UniformBucketLevelAccess{Enabled: true},
	})
	return err
}

func (b *clientBackend) Policy(ctx context.Context, name string) (*iam.Policy, error) {
	return b.client.Bucket(name).IAM().Policy(ctx)
}

func (b *clientBackend) SetPolicy(ctx context.Context, name string, policy *iam.Policy) error {
	return b.client.Bucket(name).IAM().SetPolicy(ctx, policy)
}

func (b *clientBackend) ObjectNames(ctx context.Context, bucket string) ([]string, error) {
	query := &storage.Query{}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}
	pager := iterator.NewPager(b.client.Bucket(bucket).Objects(ctx, query), listPageSize, "")

	var names []string
	for {
		var page []*storage.ObjectAttrs
		next, err := pager.NextPage(&page)
		if err != nil {
			return nil, err
		}
		for _, attrs := range page {
			names = append(names, attrs.Name)
		}
		if next == "" {
			return names, nil
		}
	}
}

func (b *clientBackend) ObjectVersions(ctx context.Context, bucket string) ([]objectVersion, error) {
	pager := iterator.NewPager(b.client.Bucket(bucket).Objects(ctx, &storage.Query{Versions: true}), listPageSize, "")

	var page []*storage.ObjectAttrs
	if _, err := pager.NextPage(&page); err != nil {
		return nil, err
	}
	versions := make([]objectVersion, len(page))
	for i, attrs := range page {
		versions[i] = objectVersion{Name: attrs.Name, Generation: attrs.Generation}
	}
	return versions, nil
}

func (b *clientBackend) Write(ctx context.Context, bucket, name string, data []byte) error {
	w := b.client.Bucket(bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *clientBackend) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := b.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *clientBackend) Copy(ctx context.Context, bucket, from, to string) error {
	handle := b.client.Bucket(bucket)
	_, err := handle.Object(to).CopierFrom(handle.Object(from)).Run(ctx)
	return err
}

func (b *clientBackend) Delete(ctx context.Context, bucket, name string, generation int64) error {
	obj := b.client.Bucket(bucket).Object(name)
	if generation != 0 {
		obj = obj.Generation(generation)
	}
	return obj.Delete(ctx)
}

func (b *clientBackend) DeleteBucket(ctx context.Context, name string) error {
	return b.client.Bucket(name).Delete(ctx)
}
