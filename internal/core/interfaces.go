package core

import "context"

// KVStore is the persistent key-value boundary used for the region cache
// and package metadata. Get returns found=false for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Storage keys shared by the core components
const (
	KeyRegionDetection = "regionDetection"
	KeyPackageMeta     = "packageMeta"
)
