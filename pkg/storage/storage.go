// Package storage keeps small named blobs in an Azure Blob Storage
// container. The container is created on startup if missing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/tally/pkg/lifecycle"
)

// ErrNotReady is reported by Ready until the container has been ensured.
var ErrNotReady = errors.New("storage not ready")

type System interface {
	// Start registers the container bootstrap with the coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Ready returns ErrNotReady until the container exists.
	Ready() error
	// Put replaces the blob at key with data.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Open streams the blob at key. The caller closes it. A missing blob
	// or container is ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type container struct {
	client *azblob.Client
	name   string
	logger *slog.Logger
	ready  atomic.Bool
}

// New builds a client from the connection string without contacting the
// service.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &container{
		client: client,
		name:   cfg.ContainerName,
		logger: logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func (c *container) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		_, err := c.client.CreateContainer(lc.Context(), c.name, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			c.logger.Error("container bootstrap failed", "error", err)
			return
		}
		c.ready.Store(true)
		c.logger.Info("container ready")
	})
	return nil
}

func (c *container) Ready() error {
	if c.ready.Load() {
		return nil
	}
	return ErrNotReady
}

func (c *container) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	}
	if _, err := c.client.UploadBuffer(ctx, c.name, key, data, opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	c.logger.Debug("blob written", "key", key, "bytes", len(data))
	return nil
}

func (c *container) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	resp, err := c.client.DownloadStream(ctx, c.name, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return resp.Body, nil
}

// ValidateKey accepts relative slash-separated keys without empty, "."
// or ".." segments.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.ContainsRune(key, '\\') || path.IsAbs(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
