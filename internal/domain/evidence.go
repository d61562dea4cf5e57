package domain

// EvidenceImage — внешнее изображение-кандидат с оценкой релевантности запросу.
type EvidenceImage struct {
	URL          string
	Score        float64 // сырая оценка сходства изображение-текст с бонусом
	DisplayScore int     // оценка для показа пользователю, 0 или 60..99
}

// ExternalEvidence — то, что внешний поиск возвращает ядру ранжирования.
// VisualVector равен nil, если подходящее изображение не найдено.
type ExternalEvidence struct {
	Query             string
	VisualVector      Vector
	Summary           string
	ReferenceImageURL string
	Candidates        []EvidenceImage
}

// ProductDraft — поля товара, извлечённые из ответа модели по изображению.
type ProductDraft struct {
	Name        string
	Category    string
	Gender      string
	Description string
	Price       *int64
}
