// Package publish writes finished runs to a blob store: the local
// filesystem, memory or an S3 compatible bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
)

// Driver identifies a store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrExists   = errors.New("blob already exists")
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the small S3-like surface publishing needs. Put never
// overwrites.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Open selects a store from the publish configuration. An empty driver
// disables publishing and returns a nil store.
func Open(ctx context.Context, cfg config.Publish) (Store, error) {
	switch Driver(cfg.Driver) {
	case "":
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
