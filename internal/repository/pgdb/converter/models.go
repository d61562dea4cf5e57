package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL (без векторов).
// Признаки Missing* вычисляются в SELECT.
type ProductModel struct {
	ID            int64      `db:"id"`
	Name          string     `db:"name"`
	Description   string     `db:"description"`
	Price         int64      `db:"price"`
	StockQuantity int64      `db:"stock_quantity"`
	Category      string     `db:"category"`
	Gender        string     `db:"gender"`
	ImageURL      string     `db:"image_url"`
	ImageKey      string     `db:"image_key"`
	IsActive      bool       `db:"is_active"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
	MissingText   bool       `db:"missing_text"`
	MissingFull   bool       `db:"missing_full"`
	MissingUpper  bool       `db:"missing_upper"`
	MissingLower  bool       `db:"missing_lower"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	ProductID   int64      `db:"product_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
