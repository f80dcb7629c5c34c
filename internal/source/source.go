// Package source re-exports the document source abstraction and selects a
// driver from configuration.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"catalogcore/internal/config"
	fsstore "catalogcore/internal/infra/source/fs"
	memorystore "catalogcore/internal/infra/source/memory"
	s3store "catalogcore/internal/infra/source/s3"
	"catalogcore/internal/source/core"
	"catalogcore/pkg/domain"
)

type (
	// Driver identifies a source backend.
	Driver = core.Driver
	// PutOptions configures a document write.
	PutOptions = core.PutOptions
	// Info describes stored document metadata.
	Info = core.Info
	// Store is the interface for document sources.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3 compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

// ErrNotFound reports a missing document.
var ErrNotFound = core.ErrNotFound

// ContentTypeJSON is attached to exported documents.
const ContentTypeJSON = "application/json"

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.Source) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fsstore.New(cfg.Root)
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown source driver %s", cfg.Driver)
	}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *memorystore.Store { return memorystore.New() }

// ReadAll returns the raw bytes stored under key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	_, rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// ReadDocument reads and parses the catalog stored under key.
func ReadDocument(ctx context.Context, s Store, key string) (domain.Document, error) {
	data, err := ReadAll(ctx, s, key)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.ParseDocument(data)
}

// WriteDocument stores data under key as JSON, replacing any existing
// document.
func WriteDocument(ctx context.Context, s Store, key string, data []byte, metadata map[string]string) (Info, error) {
	info, err := s.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: ContentTypeJSON, Metadata: metadata})
	if err != nil {
		return Info{}, fmt.Errorf("write %s: %w", key, err)
	}
	return info, nil
}
