package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

type Config struct {
	App      *AppCfg
	Minio    *MinIOCfg
	Http     *HTTPConfig
	Grpc     *GRPCConfig
	Db       *PGDBCfg
	Qdrant   *QdrantCfg
	Redis    *RedisCfg
	Ml       *MLServiceCfg
	Llm      *LLMCfg
	Kafka    *KafkaCfg
	Search   *SearchCfg
	External *ExternalCfg
	Intent   *IntentCfg
}

type AppCfg struct {
	Env      string
	LogLevel string
}

type KafkaCfg struct {
	Topic             string
	GroupID           string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет для изображений товаров
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	PublicBaseURL     string // Базовый URL, из которого собирается image_url товара
	UploadImagesLimit int    // Лимит на одновременные загрузки в S3
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN возвращает строку подключения в формате key=value.
func (c *PGDBCfg) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type QdrantCfg struct {
	Enabled              bool
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // коллекция с визуальными векторами full/upper/lower
	UseTLS               bool
	VectorSize           uint64
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	SearchTTL   time.Duration // TTL кэша результатов поиска
	ProductTTL  time.Duration // TTL кэша карточек товаров
}

// MLServiceCfg — gRPC-сервис визуальных моделей (embed_image, сходство изображение-текст).
type MLServiceCfg struct {
	Addr          string
	MaxConcurrent int
	MaxRetries    int
	CallTimeout   time.Duration
}

// LLMCfg — OpenAI-совместимый провайдер текстовых эмбеддингов, генерации и описания изображений.
type LLMCfg struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	VisionModel    string
	MaxRetries     int
	CallTimeout    time.Duration
}

// SearchCfg — параметры гибридного поиска.
type SearchCfg struct {
	TextWeight      float64
	VisualWeight    float64
	TextDim         int
	VisualDim       int
	DefaultLimit    int
	MaxLimit        int
	SignalTimeout   time.Duration
	EvidenceTimeout time.Duration
	VisualBackend   string // pgvector | qdrant
	HealOnRead      bool
}

// ExternalCfg — внешний поиск изображений (Google Custom Search).
type ExternalCfg struct {
	Enabled         bool
	GoogleAPIKey    string
	GoogleCX        string
	DailyQuota      int
	ResultCount     int
	MaxParallel     int
	DownloadTimeout time.Duration
	MinImageSide    int
	ScoreThreshold  float64
	PortraitBonus   float64
	TopN            int
}

type IntentCfg struct {
	LexiconPath string // пустой путь — встроенный словарь
}

const (
	VisualBackendPgvector = "pgvector"
	VisualBackendQdrant   = "qdrant"
)

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
// Перед чтением окружения подгружается .env, если он есть.
func Load(log logger.Logger) (*Config, error) {
	if err := loadDotEnv(getEnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	llm, err := loadLLMCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	external, err := loadExternalCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		App:      loadAppCfg(),
		Minio:    minio,
		Http:     http,
		Grpc:     loadGRPCConfig(),
		Db:       db,
		Qdrant:   qdrant,
		Redis:    redis,
		Ml:       ml,
		Llm:      llm,
		Kafka:    kafka,
		Search:   search,
		External: external,
		Intent:   &IntentCfg{LexiconPath: getEnv("INTENT_LEXICON_PATH")},
	}, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func loadAppCfg() *AppCfg {
	return &AppCfg{
		Env:      getEnvOrDefault("APP_ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL"),
	}
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "product-heal"
		defaultGroupID           = "fashion-search-heal"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           splitList(brokerStr),
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL       = false
		defaultEndpoint     = "minio:9000"
		defaultBucket       = "product-images"
		defaultUploadsLimit = 4
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	uploadsLimit, err := parseIntEnv("MINIO_UPLOADS_LIMIT", defaultUploadsLimit)
	if err != nil {
		return nil, e.Wrap("MINIO_UPLOADS_LIMIT", err)
	}

	endpoint := getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint)
	bucket := getEnvOrDefault("BUCKET_NAME", defaultBucket)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		PublicBaseURL:     getEnvOrDefault("MINIO_PUBLIC_URL", fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)),
		UploadImagesLimit: uploadsLimit,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost     = "localhost"
		defaultPort     = "5432"
		defaultSSLMode  = "disable"
		defaultMaxConns = 20
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil {
		return nil, e.Wrap("POSTGRES_MAX_CONNS", err)
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns: int32(maxConns),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "512"
		defaultCollection     = "product_visuals"
	)

	port, err := strconv.Atoi(getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("QDRANT_VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_VECTOR_SIZE")
		return nil, err
	}

	host := getEnv("QDRANT_HOST")

	return &QdrantCfg{
		Enabled:              host != "",
		Host:                 host,
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultSearchTTL    = 10 * time.Minute
		defaultProductTTL   = time.Hour
	)

	db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB)))
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := strconv.Atoi(getEnvOrDefault("MAX_RETRIES", strconv.Itoa(defaultMaxRetries)))
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	searchTTL, err := parseDurationEnv("SEARCH_CACHE_TTL", defaultSearchTTL)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_CACHE_TTL")
		return nil, err
	}

	productTTL, err := parseDurationEnv("PRODUCT_CACHE_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_CACHE_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		SearchTTL:   searchTTL,
		ProductTTL:  productTTL,
	}, nil
}

func loadMLServiceCfg() (*MLServiceCfg, error) {
	const (
		defaultHost          = "ml-service"
		defaultPort          = "50051"
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultCallTimeout   = 10 * time.Second
	)

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	callTimeout, err := parseDurationEnv("ML_CALL_TIMEOUT", defaultCallTimeout)
	if err != nil {
		return nil, e.Wrap("ML_CALL_TIMEOUT", err)
	}

	return &MLServiceCfg{
		Addr:          getEnvOrDefault("ML_HOST", defaultHost) + ":" + getEnvOrDefault("ML_PORT", defaultPort),
		MaxConcurrent: defaultMaxConcurrent,
		MaxRetries:    maxRetries,
		CallTimeout:   callTimeout,
	}, nil
}

func loadLLMCfg() (*LLMCfg, error) {
	const (
		defaultBaseURL        = "https://api.openai.com/v1"
		defaultEmbeddingModel = "text-embedding-3-small"
		defaultChatModel      = "gpt-4o-mini"
		defaultMaxRetries     = 3
		defaultCallTimeout    = 15 * time.Second
	)

	maxRetries, err := parseIntEnv("LLM_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("LLM_MAX_RETRIES", err)
	}

	callTimeout, err := parseDurationEnv("LLM_CALL_TIMEOUT", defaultCallTimeout)
	if err != nil {
		return nil, e.Wrap("LLM_CALL_TIMEOUT", err)
	}

	chatModel := getEnvOrDefault("LLM_CHAT_MODEL", defaultChatModel)

	return &LLMCfg{
		APIKey:         getEnv("LLM_API_KEY"),
		BaseURL:        getEnvOrDefault("LLM_BASE_URL", defaultBaseURL),
		EmbeddingModel: getEnvOrDefault("LLM_EMBEDDING_MODEL", defaultEmbeddingModel),
		ChatModel:      chatModel,
		VisionModel:    getEnvOrDefault("LLM_VISION_MODEL", chatModel),
		MaxRetries:     maxRetries,
		CallTimeout:    callTimeout,
	}, nil
}

func loadSearchCfg(log logger.Logger) (*SearchCfg, error) {
	const (
		defaultTextWeight      = 0.1
		defaultVisualWeight    = 0.9
		defaultTextDim         = 768
		defaultVisualDim       = 512
		defaultLimit           = 10
		defaultMaxLimit        = 50
		defaultSignalTimeout   = 8 * time.Second
		defaultEvidenceTimeout = 25 * time.Second
	)

	textWeight, err := parseFloatEnv("SEARCH_TEXT_WEIGHT", defaultTextWeight)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_TEXT_WEIGHT")
		return nil, err
	}

	visualWeight, err := parseFloatEnv("SEARCH_VISUAL_WEIGHT", defaultVisualWeight)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_VISUAL_WEIGHT")
		return nil, err
	}

	if textWeight < 0 || visualWeight < 0 || textWeight+visualWeight == 0 {
		return nil, e.ErrInvalidSearchWeights
	}

	limit, err := parseIntEnv("SEARCH_DEFAULT_LIMIT", defaultLimit)
	if err != nil {
		return nil, e.Wrap("SEARCH_DEFAULT_LIMIT", err)
	}

	maxLimit, err := parseIntEnv("SEARCH_MAX_LIMIT", defaultMaxLimit)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_LIMIT", err)
	}

	signalTimeout, err := parseDurationEnv("SEARCH_SIGNAL_TIMEOUT", defaultSignalTimeout)
	if err != nil {
		return nil, e.Wrap("SEARCH_SIGNAL_TIMEOUT", err)
	}

	evidenceTimeout, err := parseDurationEnv("SEARCH_EVIDENCE_TIMEOUT", defaultEvidenceTimeout)
	if err != nil {
		return nil, e.Wrap("SEARCH_EVIDENCE_TIMEOUT", err)
	}

	backend := strings.ToLower(getEnvOrDefault("SEARCH_VISUAL_BACKEND", VisualBackendPgvector))
	if backend != VisualBackendPgvector && backend != VisualBackendQdrant {
		return nil, fmt.Errorf("SEARCH_VISUAL_BACKEND: unknown backend %q", backend)
	}

	healOnRead, err := strconv.ParseBool(getEnvOrDefault("SEARCH_HEAL_ON_READ", "true"))
	if err != nil {
		return nil, e.Wrap("SEARCH_HEAL_ON_READ", err)
	}

	return &SearchCfg{
		TextWeight:      textWeight,
		VisualWeight:    visualWeight,
		TextDim:         defaultTextDim,
		VisualDim:       defaultVisualDim,
		DefaultLimit:    limit,
		MaxLimit:        maxLimit,
		SignalTimeout:   signalTimeout,
		EvidenceTimeout: evidenceTimeout,
		VisualBackend:   backend,
		HealOnRead:      healOnRead,
	}, nil
}

func loadExternalCfg() (*ExternalCfg, error) {
	const (
		defaultDailyQuota      = 90
		defaultResultCount     = 10
		defaultMaxParallel     = 5
		defaultDownloadTimeout = 4 * time.Second
		defaultMinImageSide    = 250
		defaultScoreThreshold  = 0.18
		defaultPortraitBonus   = 0.05
		defaultTopN            = 4
	)

	quota, err := parseIntEnv("EXTERNAL_DAILY_QUOTA", defaultDailyQuota)
	if err != nil {
		return nil, e.Wrap("EXTERNAL_DAILY_QUOTA", err)
	}

	resultCount, err := parseIntEnv("EXTERNAL_RESULT_COUNT", defaultResultCount)
	if err != nil {
		return nil, e.Wrap("EXTERNAL_RESULT_COUNT", err)
	}

	downloadTimeout, err := parseDurationEnv("EXTERNAL_DOWNLOAD_TIMEOUT", defaultDownloadTimeout)
	if err != nil {
		return nil, e.Wrap("EXTERNAL_DOWNLOAD_TIMEOUT", err)
	}

	threshold, err := parseFloatEnv("EXTERNAL_SCORE_THRESHOLD", defaultScoreThreshold)
	if err != nil {
		return nil, e.Wrap("EXTERNAL_SCORE_THRESHOLD", err)
	}

	apiKey := getEnv("GOOGLE_API_KEY")
	cx := getEnv("GOOGLE_CX")

	return &ExternalCfg{
		Enabled:         apiKey != "" && cx != "",
		GoogleAPIKey:    apiKey,
		GoogleCX:        cx,
		DailyQuota:      quota,
		ResultCount:     resultCount,
		MaxParallel:     defaultMaxParallel,
		DownloadTimeout: downloadTimeout,
		MinImageSide:    defaultMinImageSide,
		ScoreThreshold:  threshold,
		PortraitBonus:   defaultPortraitBonus,
		TopN:            defaultTopN,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return f, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
