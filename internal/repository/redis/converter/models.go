package converter

import "time"

// ProductRedisModel — карточка товара в кэше (без векторов).
type ProductRedisModel struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Price          int64      `json:"price"`
	StockQuantity  int64      `json:"stock_quantity"`
	Category       string     `json:"category"`
	Gender         string     `json:"gender,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	ImageKey       string     `json:"image_key,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	MissingText    bool       `json:"missing_text,omitempty"`
	MissingFull    bool       `json:"missing_full,omitempty"`
	MissingUpper   bool       `json:"missing_upper,omitempty"`
	MissingLower   bool       `json:"missing_lower,omitempty"`
	BadDescription bool       `json:"bad_description,omitempty"`
}

type CandidateRedisModel struct {
	Product ProductRedisModel `json:"product"`
	Score   *float64          `json:"score"`
}

type IntentRedisModel struct {
	Query             string   `json:"query"`
	Gender            string   `json:"gender,omitempty"`
	CoreKeyword       string   `json:"core_keyword"`
	KeywordCandidates []string `json:"keyword_candidates"`
	Region            string   `json:"region"`
	External          bool     `json:"external"`
	ExternalQuery     string   `json:"external_query,omitempty"`
}

type EvidenceImageRedisModel struct {
	URL          string  `json:"url"`
	Score        float64 `json:"score"`
	DisplayScore int     `json:"display_score"`
}

// EvidenceRedisModel хранится без визуального вектора: он нужен только для ранжирования.
type EvidenceRedisModel struct {
	Query             string                    `json:"query"`
	Summary           string                    `json:"summary"`
	ReferenceImageURL string                    `json:"reference_image_url,omitempty"`
	Candidates        []EvidenceImageRedisModel `json:"candidates,omitempty"`
}

type SearchResultRedisModel struct {
	Products            []CandidateRedisModel `json:"products"`
	Strategy            string                `json:"strategy"`
	GenderFilterApplied bool                  `json:"gender_filter_applied"`
	Path                string                `json:"path"`
	Answer              string                `json:"answer"`
	Intent              IntentRedisModel      `json:"intent"`
	Evidence            *EvidenceRedisModel   `json:"evidence,omitempty"`
}
