// Package cloud is the remote document root: documents kept in an object
// store bucket. They have no path on the volume, so translating a cloud
// locator back to a path always yields "unknown".
package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"storageverifier/internal/pathuri"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Root struct {
	client *minio.Client
	bucket string
	log    logrus.FieldLogger
}

// Info is the provider metadata of a remote document.
type Info struct {
	Key      string
	Size     int64
	Modified time.Time
	MimeType string
}

func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Root, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Region: cfg.Region,
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket '%s' does not exist", cfg.Bucket)
	}

	return &Root{
		client: client,
		bucket: cfg.Bucket,
		log:    log,
	}, nil
}

// normalizeKey strips the leading slash of a document id.
func normalizeKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func (r *Root) translate(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return &fs.PathError{Op: op, Path: key, Err: fs.ErrNotExist}
	}
	return fmt.Errorf("cloud %s '%s': %w", op, key, err)
}

// Stat returns the metadata of a document.
func (r *Root) Stat(ctx context.Context, key string) (*Info, error) {
	key = normalizeKey(key)
	info, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, r.translate("stat", key, err)
	}
	return &Info{
		Key:      key,
		Size:     info.Size,
		Modified: info.LastModified,
		MimeType: info.ContentType,
	}, nil
}

// Open returns the content of a document; the caller closes it.
func (r *Root) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)
	r.log.WithFields(logrus.Fields{"bucket": r.bucket, "key": key}).Debug("cloud read")

	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, r.translate("open", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, r.translate("open", key, err)
	}
	return obj, nil
}

// Write replaces the content of a document.
func (r *Root) Write(ctx context.Context, key string, data []byte) error {
	key = normalizeKey(key)
	opts := minio.PutObjectOptions{ContentType: mimetype.Detect(data).String()}
	r.log.WithFields(logrus.Fields{"bucket": r.bucket, "key": key, "mime": opts.ContentType}).Debug("cloud write")

	_, err := r.client.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	return r.translate("write", key, err)
}

func (r *Root) exists(ctx context.Context, key string) (bool, error) {
	_, err := r.Stat(ctx, key)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Create makes an empty document named name under the prefix dir and
// returns its key, picking "name (n).ext" on collision.
func (r *Root) Create(ctx context.Context, dir, name string) (string, error) {
	for n := 0; n < 32; n++ {
		key := normalizeKey(path.Join(dir, pathuri.NumberedName(name, n)))
		taken, err := r.exists(ctx, key)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		if err := r.Write(ctx, key, nil); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", fmt.Errorf("cloud: no free name for %s in %s", name, dir)
}

// Delete removes a document. Deleting a missing document is an error, as
// it is for the volume provider.
func (r *Root) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)
	if _, err := r.Stat(ctx, key); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"bucket": r.bucket, "key": key}).Debug("cloud delete")
	return r.translate("delete", key, r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}))
}

// Rename moves a document to newKey with copy + delete; object stores have
// no native rename.
func (r *Root) Rename(ctx context.Context, key, newKey string) error {
	key, newKey = normalizeKey(key), normalizeKey(newKey)

	src := minio.CopySrcOptions{Bucket: r.bucket, Object: key}
	dst := minio.CopyDestOptions{Bucket: r.bucket, Object: newKey}
	if _, err := r.client.CopyObject(ctx, dst, src); err != nil {
		return r.translate("copy", key, err)
	}

	if err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		// the copy exists, so the rename still took effect
		r.log.WithError(err).WithField("key", key).Warn("cloud: failed to delete original after rename")
	}
	return nil
}
