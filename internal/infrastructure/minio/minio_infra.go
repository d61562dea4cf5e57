package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/jitter"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/google/uuid"
)

const maxRemoteImageSize = 20 << 20

// MinioInfrastructure управляет загрузкой, скачиванием и очисткой изображений товаров.
type MinioInfrastructure struct {
	minioRepo         usecase.ImageRepository
	cfg               *cfg.MinIOCfg
	logger            logger.Logger
	httpClient        *http.Client
	shutdownCtx       context.Context
	wg                sync.WaitGroup
	uploadImagesLimit int
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	limit := cfg.UploadImagesLimit
	if limit <= 0 {
		limit = 1
	}

	return &MinioInfrastructure{
		minioRepo:         minioRepo,
		cfg:               cfg,
		logger:            logger,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
		shutdownCtx:       shutdownCtx,
		uploadImagesLimit: limit,
	}
}

// UploadImages загружает изображения товара в MinIO параллельно с ограничением одновременных операций.
// Результаты идут в порядке входных изображений. При ошибке уже загруженные файлы удаляются в фоне.
func (m *MinioInfrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.UploadImagesRes, error) {
	const op = "MinioInfrastructure.UploadImages"
	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]usecase.UploadImageRes, len(req.Images))
	errCh := make(chan error, len(req.Images))
	sem := make(chan struct{}, m.uploadImagesLimit)

	var uploadWg sync.WaitGroup
	for i, image := range req.Images {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			imageID := uuid.NewString()
			ext, err := infrastructure.GetExtensionFromMIME(image.MimeType)
			if err != nil {
				errCh <- fmt.Errorf("invalid mime type %s for %s: %w", image.MimeType, image.Name, err)
				cancel()
				return
			}
			objKey := fmt.Sprintf("products/%s.%s", imageID, ext)
			newImage := domain.NewImage(imageID, m.cfg.BucketName, objKey, image.Data, image.MimeType)

			key, err := m.minioRepo.Upload(ctx, newImage)
			if err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", image.Name, err)
				cancel()
				return
			}

			results[i] = usecase.UploadImageRes{Key: key, URL: m.PublicURL(key)}
		}()
	}
	uploadWg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		m.CleanupImages(uploadedKeys(results))
		return nil, e.Wrap(op, err)
	}

	return usecase.NewUploadImagesRes(results), nil
}

// PublicURL собирает публичную ссылку на объект.
func (m *MinioInfrastructure) PublicURL(key string) string {
	base := strings.TrimRight(m.cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if m.cfg.MinioUseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, m.cfg.MinioEndpoint)
	}
	return fmt.Sprintf("%s/%s/%s", base, m.cfg.BucketName, key)
}

// FetchImage возвращает байты изображения товара: из MinIO по ключу или по внешней ссылке.
func (m *MinioInfrastructure) FetchImage(ctx context.Context, key, url string) ([]byte, string, error) {
	const op = "MinioInfrastructure.FetchImage"

	var (
		data []byte
		err  error
	)
	switch {
	case key != "":
		data, err = m.minioRepo.Download(ctx, key)
	case url != "":
		data, err = m.download(ctx, url)
	default:
		return nil, "", e.Wrap(op, e.ErrNoImages)
	}
	if err != nil {
		return nil, "", e.Wrap(op, err)
	}

	mime := infrastructure.DetectImageMIME(data)
	if mime == "" {
		return nil, "", e.Wrap(op, e.ErrUnsupportedMediaType)
	}

	return data, mime, nil
}

func (m *MinioInfrastructure) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageSize))
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, 30*time.Second)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < 3; attempt++ {
			err := m.minioRepo.Delete(ctx, key)
			if err == nil {
				break
			}
			if attempt == 2 {
				m.logger.Errorf(err, "%s: giving up on key=%s", op, key)
				break
			}

			if err := jitter.Sleep(ctx, jitter.Exponential(time.Second, 10*time.Second).Delay(attempt)); err != nil {
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

func uploadedKeys(results []usecase.UploadImageRes) []string {
	keys := make([]string, 0, len(results))
	for _, r := range results {
		if r.Key != "" {
			keys = append(keys, r.Key)
		}
	}
	return keys
}
