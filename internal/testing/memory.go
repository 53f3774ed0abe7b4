package testing

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/api3dao/airnode-deployer/internal/storage"
)

// ErrObjectNotFound is wrapped by MemoryGateway when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// MemoryGateway is an in-memory storage.Gateway. Every mutation is recorded
// so tests can assert on what was written and deleted.
type MemoryGateway struct {
	mu      sync.Mutex
	region  string
	bucket  *storage.Bucket
	objects map[string][]byte
	errs    map[string]error

	// StateBuckets are reported as existing by BucketExists.
	StateBuckets map[string]bool

	Reads              []string
	Writes             []string
	DeletedDirectories []string
	CreatedBuckets     int
	DeletedBuckets     int
}

// NewMemoryGateway creates a gateway for an account without an Airnode bucket.
func NewMemoryGateway(region string) *MemoryGateway {
	return &MemoryGateway{
		region:       region,
		objects:      map[string][]byte{},
		errs:         map[string]error{},
		StateBuckets: map[string]bool{},
	}
}

// FailOn makes every later call of method return err.
func (g *MemoryGateway) FailOn(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[method] = err
}

// EnsureBucket creates the Airnode bucket without recording it.
func (g *MemoryGateway) EnsureBucket() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bucket == nil {
		g.bucket = &storage.Bucket{Name: ExampleBucket, Region: g.region}
	}
}

// Seed stores an object without recording it as a write.
func (g *MemoryGateway) Seed(key string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[key] = slices.Clone(data)
}

// Object returns a stored object.
func (g *MemoryGateway) Object(key string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[key]
	return data, ok
}

// Keys returns all stored keys in ascending order.
func (g *MemoryGateway) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.objects))
	for key := range g.objects {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// HasBucket reports whether the Airnode bucket exists.
func (g *MemoryGateway) HasBucket() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bucket != nil
}

// Mutations counts every write and delete made through the Gateway interface.
func (g *MemoryGateway) Mutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Writes) + len(g.DeletedDirectories) + g.CreatedBuckets + g.DeletedBuckets
}

func (g *MemoryGateway) fail(method string) error {
	return g.errs[method]
}

func (g *MemoryGateway) AirnodeBucket(context.Context) (*storage.Bucket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("AirnodeBucket"); err != nil {
		return nil, err
	}
	if g.bucket == nil {
		return nil, nil
	}
	b := *g.bucket
	return &b, nil
}

func (g *MemoryGateway) CreateAirnodeBucket(context.Context) (*storage.Bucket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("CreateAirnodeBucket"); err != nil {
		return nil, err
	}
	g.bucket = &storage.Bucket{Name: ExampleBucket, Region: g.region}
	g.CreatedBuckets++
	b := *g.bucket
	return &b, nil
}

func (g *MemoryGateway) BucketExists(_ context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("BucketExists"); err != nil {
		return false, err
	}
	return g.StateBuckets[name] || (g.bucket != nil && g.bucket.Name == name), nil
}

func (g *MemoryGateway) DirectoryStructure(context.Context, *storage.Bucket) (storage.DirectoryStructure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DirectoryStructure"); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(g.objects))
	for key := range g.objects {
		keys = append(keys, key)
	}
	return storage.Build(keys), nil
}

func (g *MemoryGateway) StoreFile(_ context.Context, bucket *storage.Bucket, key string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("StoreFile"); err != nil {
		return storage.WrapError("store file", bucket.Name, key, err)
	}
	g.objects[key] = slices.Clone(data)
	g.Writes = append(g.Writes, key)
	return nil
}

func (g *MemoryGateway) GetFile(_ context.Context, bucket *storage.Bucket, key string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("GetFile"); err != nil {
		return nil, storage.WrapError("get file", bucket.Name, key, err)
	}
	g.Reads = append(g.Reads, key)
	data, ok := g.objects[key]
	if !ok {
		return nil, storage.WrapError("get file", bucket.Name, key, ErrObjectNotFound)
	}
	return slices.Clone(data), nil
}

func (g *MemoryGateway) CopyFile(_ context.Context, bucket *storage.Bucket, fromKey, toKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("CopyFile"); err != nil {
		return storage.WrapError("copy file", bucket.Name, fromKey, err)
	}
	data, ok := g.objects[fromKey]
	if !ok {
		return storage.WrapError("copy file", bucket.Name, fromKey, ErrObjectNotFound)
	}
	g.objects[toKey] = slices.Clone(data)
	g.Writes = append(g.Writes, toKey)
	return nil
}

func (g *MemoryGateway) DeleteDirectory(_ context.Context, bucket *storage.Bucket, dir *storage.Directory) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DeleteDirectory"); err != nil {
		return storage.WrapError("delete directory", bucket.Name, dir.BucketKey, err)
	}
	for key := range g.objects {
		if strings.HasPrefix(key, dir.BucketKey) {
			delete(g.objects, key)
		}
	}
	g.DeletedDirectories = append(g.DeletedDirectories, dir.BucketKey)
	return nil
}

func (g *MemoryGateway) DeleteBucket(_ context.Context, bucket *storage.Bucket) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("DeleteBucket"); err != nil {
		return storage.WrapError("delete bucket", bucket.Name, "", err)
	}
	clear(g.objects)
	g.bucket = nil
	g.DeletedBuckets++
	return nil
}

var _ storage.Gateway = (*MemoryGateway)(nil)
