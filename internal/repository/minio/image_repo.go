package minio

import (
	"bytes"
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует хранилище оригиналов изображений поверх MinIO.
type ImageRepo struct {
	mc     *minio.Client
	bucket string
}

func NewImageRepo(mc *minio.Client, bucket string) *ImageRepo {
	return &ImageRepo{
		mc:     mc,
		bucket: bucket,
	}
}

// Upload загружает изображение в MinIO и возвращает ключ объекта.
// Пустой Bucket у изображения означает бакет по умолчанию.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (string, error) {
	bucket := image.Bucket
	if bucket == "" {
		bucket = i.bucket
	}

	info, err := i.mc.PutObject(ctx, bucket, image.ObjectKey, bytes.NewReader(image.Bytes), image.Size, minio.PutObjectOptions{
		ContentType:  image.ContentType,
		UserMetadata: image.Metadata,
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Exists проверяет наличие объекта в бакете по умолчанию.
func (i *ImageRepo) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := i.mc.StatObject(ctx, i.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return true, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
