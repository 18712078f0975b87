// Package storage provides the object-store abstraction shared by every
// stage: one bucket per container in the external-interfaces table, backed
// by an S3-compatible client.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"contentpipeline/internal/domain"
)

// Container names, one per §6 object-store container.
const (
	ContainerCollected = "collected-content"
	ContainerProcessed = "processed-content"
	ContainerMarkdown  = "markdown-content"
	ContainerWeb       = "static-sites"
	ContainerBackup    = "backup"
)

// Object is a single listed blob.
type Object struct {
	Key  string
	Size int64
}

// Store is the narrow domain interface every stage depends on, implemented
// here against an S3-compatible client. Stages never talk to minio directly.
type Store interface {
	Put(ctx context.Context, container, key string, body []byte) error
	Get(ctx context.Context, container, key string) ([]byte, error)
	List(ctx context.Context, container, prefix string) ([]Object, error)
	Delete(ctx context.Context, container, key string) error
	Copy(ctx context.Context, srcContainer, srcKey, dstContainer, dstKey string) error
}

// Config configures the S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// BlobStore is the minio-go-backed Store implementation.
type BlobStore struct {
	client *minio.Client
}

// New creates a BlobStore and ensures every known container/bucket exists.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create object store client: %v", domain.ErrFatal, err)
	}

	bs := &BlobStore{client: client}
	for _, container := range []string{ContainerCollected, ContainerProcessed, ContainerMarkdown, ContainerWeb, ContainerBackup} {
		exists, err := client.BucketExists(ctx, container)
		if err != nil {
			return nil, fmt.Errorf("%w: check bucket %s: %v", domain.ErrTransientIO, container, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, container, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("%w: create bucket %s: %v", domain.ErrTransientIO, container, err)
			}
		}
	}
	return bs, nil
}

// Put writes body at key within container, overwriting any existing object.
func (bs *BlobStore) Put(ctx context.Context, container, key string, body []byte) error {
	_, err := bs.client.PutObject(ctx, container, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", domain.ErrTransientIO, container, key, err)
	}
	return nil
}

// Get reads the full contents of key within container.
func (bs *BlobStore) Get(ctx context.Context, container, key string) ([]byte, error) {
	obj, err := bs.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", domain.ErrTransientIO, container, key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, container, key)
		}
		return nil, fmt.Errorf("%w: read %s/%s: %v", domain.ErrTransientIO, container, key, err)
	}
	return data, nil
}

// List returns every object under prefix in container.
func (bs *BlobStore) List(ctx context.Context, container, prefix string) ([]Object, error) {
	var objects []Object
	for info := range bs.client.ListObjects(ctx, container, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("%w: list %s/%s: %v", domain.ErrTransientIO, container, prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Size: info.Size})
	}
	return objects, nil
}

// Delete removes key from container.
func (bs *BlobStore) Delete(ctx context.Context, container, key string) error {
	if err := bs.client.RemoveObject(ctx, container, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", domain.ErrTransientIO, container, key, err)
	}
	return nil
}

// Copy duplicates an object between containers (used for backup and for
// restoring from backup).
func (bs *BlobStore) Copy(ctx context.Context, srcContainer, srcKey, dstContainer, dstKey string) error {
	src := minio.CopySrcOptions{Bucket: srcContainer, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: dstContainer, Object: dstKey}
	if _, err := bs.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("%w: copy %s/%s -> %s/%s: %v", domain.ErrTransientIO, srcContainer, srcKey, dstContainer, dstKey, err)
	}
	return nil
}
