package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// maxDownloadSize ограничивает чтение объекта при скачивании.
const maxDownloadSize = 20 << 20

// ImageRepo реализует репозиторий изображений поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Upload загружает изображение в MinIO и возвращает ключ объекта.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (string, error) {
	reader := bytes.NewReader(image.Bytes)

	info, err := i.mc.PutObject(ctx, i.bucket(image), image.ObjectKey, reader, image.Size, minio.PutObjectOptions{
		ContentType: image.ContentType,
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Download читает объект целиком.
func (i *ImageRepo) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := i.mc.GetObject(ctx, i.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDownloadSize))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (i *ImageRepo) bucket(image *domain.Image) string {
	if image.Bucket != "" {
		return image.Bucket
	}
	return i.cfg.BucketName
}
