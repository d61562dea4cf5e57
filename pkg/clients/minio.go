package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// productImagesPrefix — префикс объектов, которые отдаются по image_url без подписи.
const productImagesPrefix = "products/"

func NewMinIOClient(cfg *config.MinIOCfg) (*minio.Client, error) {
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioRootUser, cfg.MinioRootPassword, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return minioClient, nil
}

// EnsureBucket создаёт бакет изображений, если его нет, и открывает на чтение префикс products/.
func EnsureBucket(ctx context.Context, client *minio.Client, bucketName string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			// бакет мог создать параллельно запущенный экземпляр
			if minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
				return e.Wrap(whereami.WhereAmI(), err)
			}
		}
	}

	if err := client.SetBucketPolicy(ctx, bucketName, publicReadPolicy(bucketName)); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/%s*"]
  }]
}`, bucket, productImagesPrefix)
}
