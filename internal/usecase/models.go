package usecase

import (
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
)

// SEARCH USECASE

// SearchReq — поисковый запрос. Пустой Query допустим, если передано изображение.
type SearchReq struct {
	Query     string
	Image     []byte
	ImageMime string
	Limit     int
	Region    domain.Region // явный регион из карточки кандидата
	Filters   domain.SearchFilters
}

// SearchRes — ранжированная выдача и прозрачность выбора уровня.
type SearchRes struct {
	Products            []domain.Candidate
	Strategy            domain.SearchStrategy
	GenderFilterApplied bool
	Path                domain.SearchPath
	Answer              string
	Intent              domain.SearchIntent
	Evidence            *domain.ExternalEvidence
	UnavailableSignals  []string
	Cached              bool
}

// Weights — веса комбинированного расстояния.
type Weights struct {
	Text   float64
	Visual float64
}

// Signals — входы политики ранжирования.
type Signals struct {
	Intent       domain.SearchIntent
	TextVector   domain.Vector
	VisualVector domain.Vector
	Filters      domain.SearchFilters
	Limit        int
}

// CombineResult — результат первого непустого уровня.
type CombineResult struct {
	Candidates          []domain.Candidate
	Strategy            domain.SearchStrategy
	GenderFilterApplied bool
}

// PRODUCT USECASE

// RegisterProductReq — запрос на добавление товара.
type RegisterProductReq struct {
	Name          string
	Description   string
	Price         int64
	StockQuantity int64
	Category      string
	Gender        string
	ImageURL      string
	Images        []ProductImage
}

// AnalyzeProductReq — добавление товара по изображению. Заполненные поля имеют приоритет над ответом модели.
type AnalyzeProductReq struct {
	Image         ProductImage
	Name          string
	Category      string
	Gender        string
	Price         *int64
	StockQuantity int64
}

// ProductImage представляет изображение, загруженное через multipart/form-data.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type, определённый по содержимому
	Size     int64
	Name     string // оригинальное имя файла (для логов и ключа объекта)
}

// RecommendMode — способ подбора похожих товаров.
type RecommendMode string

const (
	RecommendByPrice        RecommendMode = "price"
	RecommendByCoordination RecommendMode = "coordination"
	RecommendByColor        RecommendMode = "color"
	RecommendByStyle        RecommendMode = "style"
)

// RecommendRes — подборка с пояснением.
type RecommendRes struct {
	Answer   string
	Products []domain.Candidate
}

// HEAL USECASE

// HealReport — что было исправлено у товара.
type HealReport struct {
	ProductID   int64
	Text        bool
	Description bool
	Regions     []domain.Region
	Skipped     bool
}

func (r *HealReport) Changed() bool {
	return r.Text || r.Description || len(r.Regions) > 0
}

// BackfillRes — итог пакетного восстановления.
type BackfillRes struct {
	Scanned int
	Healed  int
	Failed  int
}

// DerivedUpdate — частичное обновление производных полей. nil-поля не меняются.
type DerivedUpdate struct {
	Description *string
	TextVector  domain.Vector
	Visual      map[domain.Region]domain.Vector
}

func (u *DerivedUpdate) Empty() bool {
	return u.Description == nil && u.TextVector == nil && len(u.Visual) == 0
}

// INFRASTRUCTURE

// UploadImageRes — результат загрузки изображения.
type UploadImageRes struct {
	Key string
	URL string
}

// UploadImagesReq — запрос на загрузку изображений товара.
type UploadImagesReq struct {
	Name   string
	Images []ProductImage
}

// UploadImagesRes — загруженные объекты в порядке входных изображений.
type UploadImagesRes struct {
	Images []UploadImageRes
}

// WriteRawMessageReq — сообщение для брокера.
type WriteRawMessageReq struct {
	ProductID int64
	Payload   []byte
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	ProductHealRequested OutboxEventType = "product.heal_requested"
)

// OutboxEvent — запись transactional outbox.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	ProductID   int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// HealRequest — полезная нагрузка события восстановления.
type HealRequest struct {
	ProductID   int64
	Reason      string
	RequestedAt time.Time
}

// MAPPERS

func NewSearchReq(query string, image []byte, imageMime string, limit int, region domain.Region, filters domain.SearchFilters) *SearchReq {
	return &SearchReq{
		Query:     query,
		Image:     image,
		ImageMime: imageMime,
		Limit:     limit,
		Region:    region,
		Filters:   filters,
	}
}

func NewProductImage(data []byte, mimeType string, size int64, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewUploadImagesReq(name string, images []ProductImage) *UploadImagesReq {
	return &UploadImagesReq{
		Name:   name,
		Images: images,
	}
}

func NewUploadImagesRes(images []UploadImageRes) *UploadImagesRes {
	return &UploadImagesRes{Images: images}
}

func NewWriteRawMessageReq(productID int64, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ProductID: productID,
		Payload:   payload,
	}
}

func NewHealRequest(productID int64, reason string) *HealRequest {
	return &HealRequest{
		ProductID:   productID,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}
