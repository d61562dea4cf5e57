package usecase

import (
	"context"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/intent"
)

// ModelEngine объединяет текстовую, визуальную и генеративную модели.
type ModelEngine interface {
	EmbedText(ctx context.Context, text string) (domain.Vector, error)
	EmbedImage(ctx context.Context, image []byte, region domain.Region) (domain.Vector, error)
	// EmbedImageRegions возвращает полученные векторы и объединённую ошибку по остальным регионам.
	EmbedImageRegions(ctx context.Context, image []byte, regions []domain.Region) (map[domain.Region]domain.Vector, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
	AnalyzeProductImage(ctx context.Context, image []byte, mimeType string) (*domain.ProductDraft, error)
}

type EvidenceGatherer interface {
	Gather(ctx context.Context, intent domain.SearchIntent) (*domain.ExternalEvidence, error)
}

type IntentClassifier interface {
	Classify(query string, opts intent.Options) domain.SearchIntent
	Version() int
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
	FetchImage(ctx context.Context, key, url string) ([]byte, string, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

// TxManager выполняет fn в транзакции; репозитории берут её из контекста.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
