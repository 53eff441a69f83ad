package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
)

type Config struct {
	Http    *HTTPConfig
	Db      *PGDBCfg
	Qdrant  *QdrantCfg
	Redis   *RedisCfg
	Minio   *MinIOCfg
	Kafka   *KafkaCfg
	Encoder *EncoderCfg
	Search  *SearchCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Host           string
	Port           int
	ApiKey         string
	CollectionName string // имя коллекции с embedding-векторами каталога
	UseTLS         bool
	VectorSize     uint64
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ItemTTL     time.Duration
}

type MinIOCfg struct {
	MinioEndpoint     string
	BucketName        string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	UploadImagesLimit int // лимит одновременных загрузок в S3
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	RelayInterval     time.Duration
	RelayBatchSize    int
}

// EncoderCfg — настройки клиента CLIP-сервиса векторизации.
type EncoderCfg struct {
	Addr           string
	MaxConcurrent  int
	MaxRetries     int
	RequestTimeout time.Duration
}

// SearchCfg — параметры поискового сервиса.
// Веса модальностей применяются к нормализованным [0,1] скору,
// сумма весов не обязана равняться единице.
type SearchCfg struct {
	MaxLimit        uint64
	OverfetchFactor uint64
	TextWeight      float64
	ImageWeight     float64
	MinScore        float64 // 0 — порог отключен
	StoreTimeout    time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
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

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	encoder, err := loadEncoderCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:    http,
		Db:      db,
		Qdrant:  qdrant,
		Redis:   redis,
		Minio:   minio,
		Kafka:   kafka,
		Encoder: encoder,
		Search:  search,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

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
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
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

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "768" // размерность CLIP-эмбеддингов
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:           getEnv("QDRANT_HOST"),
		Port:           port,
		ApiKey:         getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionName: getEnvOrDefault("COLLECTION_NAME", "fashion_items"),
		UseTLS:         useTLS,
		VectorSize:     vectorSize,
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
		defaultItemTTL      = 3 * time.Minute
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
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

	itemTTL, err := parseDurationEnv("ITEM_TTL", defaultItemTTL)
	if err != nil {
		log.Errorf(err, "invalid ITEM_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        addr,
		Password:    password,
		User:        user,
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		ItemTTL:     itemTTL,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnv("BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: 10,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultRelayInterval     = 2 * time.Second
		defaultRelayBatchSize    = 100
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	relayInterval, err := parseDurationEnv("OUTBOX_RELAY_INTERVAL", defaultRelayInterval)
	if err != nil {
		return nil, e.Wrap("OUTBOX_RELAY_INTERVAL", err)
	}

	relayBatchSize, err := parseIntEnv("OUTBOX_RELAY_BATCH_SIZE", defaultRelayBatchSize)
	if err != nil {
		return nil, e.Wrap("OUTBOX_RELAY_BATCH_SIZE", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		RelayInterval:     relayInterval,
		RelayBatchSize:    relayBatchSize,
	}, nil
}

func loadEncoderCfg(log logger.Logger) (*EncoderCfg, error) {
	const (
		defaultAddr           = "http://encoder:8000"
		defaultMaxConcurrent  = 8
		defaultMaxRetries     = 3
		defaultRequestTimeout = 20 * time.Second
	)

	maxConcurrent, err := parseIntEnv("ENCODER_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		log.Errorf(err, "invalid ENCODER_MAX_CONCURRENT")
		return nil, err
	}

	maxRetries, err := parseIntEnv("ENCODER_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid ENCODER_MAX_RETRIES")
		return nil, err
	}

	requestTimeout, err := parseDurationEnv("REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		log.Errorf(err, "invalid REQUEST_TIMEOUT")
		return nil, err
	}

	return &EncoderCfg{
		Addr:           getEnvOrDefault("ENCODER_ADDR", defaultAddr),
		MaxConcurrent:  maxConcurrent,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
	}, nil
}

func loadSearchCfg(log logger.Logger) (*SearchCfg, error) {
	const (
		defaultMaxLimit        = "50"
		defaultOverfetchFactor = "3"
		defaultTextWeight      = "0.5"
		defaultImageWeight     = "0.5"
		defaultMinScore        = "0"
		defaultStoreTimeout    = 5 * time.Second
	)

	maxLimit, err := strconv.ParseUint(getEnvOrDefault("SEARCH_MAX_LIMIT", defaultMaxLimit), 10, 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_MAX_LIMIT")
		return nil, err
	}

	overfetch, err := strconv.ParseUint(getEnvOrDefault("SEARCH_OVERFETCH", defaultOverfetchFactor), 10, 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_OVERFETCH")
		return nil, err
	}

	textWeight, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_TEXT_WEIGHT", defaultTextWeight), 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_TEXT_WEIGHT")
		return nil, err
	}

	imageWeight, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_IMAGE_WEIGHT", defaultImageWeight), 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_IMAGE_WEIGHT")
		return nil, err
	}

	if textWeight < 0 || imageWeight < 0 {
		err := fmt.Errorf("fusion weights must be non-negative")
		log.Errorf(err, "invalid fusion weights")
		return nil, err
	}

	minScore, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_MIN_SCORE", defaultMinScore), 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_MIN_SCORE")
		return nil, err
	}

	storeTimeout, err := parseDurationEnv("SEARCH_STORE_TIMEOUT", defaultStoreTimeout)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_STORE_TIMEOUT")
		return nil, err
	}

	return &SearchCfg{
		MaxLimit:        maxLimit,
		OverfetchFactor: overfetch,
		TextWeight:      textWeight,
		ImageWeight:     imageWeight,
		MinScore:        minScore,
		StoreTimeout:    storeTimeout,
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
