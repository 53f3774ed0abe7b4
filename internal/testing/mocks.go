package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/terraform"
)

// MockGateway is a testify mock of storage.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) AirnodeBucket(ctx context.Context) (*storage.Bucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Bucket), args.Error(1)
}

func (m *MockGateway) CreateAirnodeBucket(ctx context.Context) (*storage.Bucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Bucket), args.Error(1)
}

func (m *MockGateway) BucketExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) DirectoryStructure(ctx context.Context, bucket *storage.Bucket) (storage.DirectoryStructure, error) {
	args := m.Called(ctx, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(storage.DirectoryStructure), args.Error(1)
}

func (m *MockGateway) StoreFile(ctx context.Context, bucket *storage.Bucket, key string, data []byte) error {
	args := m.Called(ctx, bucket, key, data)
	return args.Error(0)
}

func (m *MockGateway) GetFile(ctx context.Context, bucket *storage.Bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockGateway) CopyFile(ctx context.Context, bucket *storage.Bucket, fromKey, toKey string) error {
	args := m.Called(ctx, bucket, fromKey, toKey)
	return args.Error(0)
}

func (m *MockGateway) DeleteDirectory(ctx context.Context, bucket *storage.Bucket, dir *storage.Directory) error {
	args := m.Called(ctx, bucket, dir)
	return args.Error(0)
}

func (m *MockGateway) DeleteBucket(ctx context.Context, bucket *storage.Bucket) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

// MockRunner is a testify mock of terraform.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, cmd terraform.Command) ([]byte, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockProgress is a testify mock of the deployer's progress reporter.
type MockProgress struct {
	mock.Mock
}

func (m *MockProgress) Start(message string) {
	m.Called(message)
}

func (m *MockProgress) Succeed(message string) {
	m.Called(message)
}

func (m *MockProgress) Fail(message string) {
	m.Called(message)
}

var (
	_ storage.Gateway  = (*MockGateway)(nil)
	_ terraform.Runner = (*MockRunner)(nil)
)
