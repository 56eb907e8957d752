// Package drive uploads PDFs to a MinIO bucket and returns shareable links
// for failed-row report enrichment.
package drive

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Uploader stores PDF bytes and returns a link to the stored object.
type Uploader interface {
	UploadPDF(ctx context.Context, objectName string, pdf []byte) (string, error)
}

// Config holds MinIO connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type minioUploader struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "drive: init minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "drive: check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, eris.Wrapf(err, "drive: make bucket %s", cfg.Bucket)
		}
	}

	return &minioUploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// UploadPDF stores the bytes and returns either a public URL (when a public
// base is configured) or a presigned link valid for seven days.
func (u *minioUploader) UploadPDF(ctx context.Context, objectName string, pdf []byte) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, objectName,
		bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"},
	)
	if err != nil {
		return "", eris.Wrapf(err, "drive: put object %s", objectName)
	}

	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + u.bucket + "/" + objectName, nil
	}

	link, err := u.client.PresignedGetObject(ctx, u.bucket, objectName, 7*24*time.Hour, nil)
	if err != nil {
		return "", eris.Wrapf(err, "drive: presign %s", objectName)
	}
	return link.String(), nil
}
