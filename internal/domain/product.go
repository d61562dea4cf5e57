package domain

import (
	"strings"
	"time"
)

// Product описывает товар каталога. Цена и остаток — неотрицательные целые.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         int64
	StockQuantity int64
	Category      Category
	Gender        Gender
	ImageURL      string
	ImageKey      string // ключ объекта в MinIO, если изображение загружено к нам
	Vectors       ProductVectors
	Health        ProductHealth
	IsActive      bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

func NewProduct(name, description string, price, stock int64, category Category, gender Gender) *Product {
	return &Product{
		Name:          strings.TrimSpace(name),
		Description:   strings.TrimSpace(description),
		Price:         price,
		StockQuantity: stock,
		Category:      category,
		Gender:        gender,
		IsActive:      true,
	}
}

// ProductHealth — признаки повреждённых производных полей, вычисляемые при чтении.
type ProductHealth struct {
	MissingText    bool
	MissingFull    bool
	MissingUpper   bool
	MissingLower   bool
	BadDescription bool
}

func (h ProductHealth) Broken() bool {
	return h.MissingText || h.MissingFull || h.MissingUpper || h.MissingLower || h.BadDescription
}

func (h ProductHealth) MissingVisual() bool {
	return h.MissingFull || h.MissingUpper || h.MissingLower
}

// knownBadDescriptions — заглушки, которые сервис анализа возвращал вместо описания.
var knownBadDescriptions = []string{
	"AI 분석 실패",
	"이미지 분석에 실패했습니다.",
	"분석 실패",
	"analysis failed",
}

// IsBadDescription сообщает, что описание пустое или является известной заглушкой.
func IsBadDescription(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}

	for _, bad := range knownBadDescriptions {
		if strings.EqualFold(s, bad) {
			return true
		}
	}

	return false
}

// KnownBadDescriptions возвращает копию списка заглушек (для SQL-фильтров).
func KnownBadDescriptions() []string {
	return append([]string(nil), knownBadDescriptions...)
}
