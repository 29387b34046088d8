package fgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/gobeaver/fgen/storage"
	"github.com/gobeaver/fgen/storage/local"
	"github.com/gobeaver/fgen/storage/memory"
	"github.com/gobeaver/fgen/storage/s3"
)

// StorageFactory creates the output storage described by cfg.
type StorageFactory func(ctx context.Context, cfg *Config) (storage.FileSystem, error)

var (
	storageFactories = map[string]StorageFactory{
		"local":  newLocalStorage,
		"memory": newMemoryStorage,
		"s3":     newS3Storage,
	}
	factoryMutex sync.RWMutex
)

// RegisterStorage registers an output storage factory
func RegisterStorage(name string, factory StorageFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	storageFactories[name] = factory
}

// CreateStorage creates the output storage from config
func CreateStorage(ctx context.Context, cfg *Config) (storage.FileSystem, error) {
	factoryMutex.RLock()
	factory, exists := storageFactories[cfg.Storage]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage %s not registered", cfg.Storage)
	}

	return factory(ctx, cfg)
}

func storageRegistered(name string) bool {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	_, ok := storageFactories[name]
	return ok
}

func newLocalStorage(_ context.Context, cfg *Config) (storage.FileSystem, error) {
	root := cfg.DestinationDir
	if root == "" {
		root = cfg.SourceDir
	}
	return local.New(root)
}

func newMemoryStorage(_ context.Context, _ *Config) (storage.FileSystem, error) {
	return memory.New(), nil
}

func newS3Storage(ctx context.Context, cfg *Config) (storage.FileSystem, error) {
	return s3.NewFromConfig(ctx, s3.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Prefix:          cfg.S3Prefix,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		ForcePathStyle:  cfg.S3ForcePathStyle,
	})
}
