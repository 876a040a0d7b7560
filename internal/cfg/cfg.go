package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Model    *ModelCfg
	Fetch    *FetchCfg
	Extract  *ExtractCfg
	Minio    *MinIOCfg
	Http     *HTTPConfig
	Grpc     *GRPCConfig
	Db       *PGDBCfg
	Qdrant   *QdrantCfg
	Redis    *RedisCfg
	Kafka    *KafkaCfg
	Shutdown time.Duration
}

type ModelCfg struct {
	Path              string // путь к файлу модели; отсутствие файла не ошибка конфигурации
	SharedLibraryPath string // путь к libonnxruntime
	InputSize         int    // сторона квадратного входа модели
	IntraOpThreads    int
	Version           string // версия модели в отпечатках и индексе
}

type FetchCfg struct {
	Timeout    time.Duration
	MaxBytes   int64
	RatePerSec float64
	Burst      int
	UserAgent  string
}

type ExtractCfg struct {
	MaxConcurrent   int           // параллельность батча
	Timeout         time.Duration // дедлайн обработчика на одно извлечение
	MaxUploadBytes  int64         // лимит размера одного файла в multipart
	MaxBatchImages  int
	InferenceRetry  int // число попыток извлечения при ErrInference в сценарии регистрации
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	CleanupAttempts int // попытки удаления осиротевших оригиналов
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название бакета с оригиналами изображений
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	OriginalsPrefix   string // Префикс ключей оригиналов
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
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции отпечатков в Qdrant
	UseTLS               bool
	VectorSize           uint64
}

type RedisCfg struct {
	Addr           string
	Password       string
	User           string
	DB             int
	MaxRetries     int
	DialTimeout    time.Duration
	Timeout        time.Duration
	FingerprintTTL time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	model, err := loadModelCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	fetch, err := loadFetchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	extract, err := loadExtractCfg()
	if err != nil {
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

	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, e.Wrap("SHUTDOWN_TIMEOUT", err)
	}

	return &Config{
		Model:    model,
		Fetch:    fetch,
		Extract:  extract,
		Minio:    minio,
		Http:     http,
		Grpc:     loadGRPCConfig(),
		Db:       db,
		Qdrant:   qdrant,
		Redis:    redis,
		Kafka:    kafka,
		Shutdown: shutdown,
	}, nil
}

func loadModelCfg() (*ModelCfg, error) {
	const (
		defaultPath      = "/models/feature_extractor.onnx"
		defaultInputSize = 224
		defaultVersion   = "feature-extractor-v1"
	)

	inputSize, err := parseIntEnv("MODEL_INPUT_SIZE", defaultInputSize)
	if err != nil || inputSize <= 0 {
		return nil, e.Wrap("MODEL_INPUT_SIZE", e.ErrIncorrectEnvVariable)
	}

	threads, err := parseIntEnv("MODEL_INTRA_OP_THREADS", 0)
	if err != nil || threads < 0 {
		return nil, e.Wrap("MODEL_INTRA_OP_THREADS", e.ErrIncorrectEnvVariable)
	}

	return &ModelCfg{
		Path:              getEnvOrDefault("MODEL_PATH", defaultPath),
		SharedLibraryPath: getEnv("ONNXRUNTIME_LIB_PATH"),
		InputSize:         inputSize,
		IntraOpThreads:    threads,
		Version:           getEnvOrDefault("MODEL_VERSION", defaultVersion),
	}, nil
}

func loadFetchCfg() (*FetchCfg, error) {
	const (
		defaultTimeout   = 8 * time.Second
		defaultMaxBytes  = 10 << 20
		defaultBurst     = 5
		defaultUserAgent = "image-fingerprint/1.0"
	)

	timeout, err := parseDurationEnv("FETCH_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("FETCH_TIMEOUT", err)
	}

	maxBytes, err := parseIntEnv("FETCH_MAX_BYTES", defaultMaxBytes)
	if err != nil || maxBytes <= 0 {
		return nil, e.Wrap("FETCH_MAX_BYTES", e.ErrIncorrectEnvVariable)
	}

	rate, err := strconv.ParseFloat(getEnvOrDefault("FETCH_RATE_PER_SEC", "0"), 64)
	if err != nil || rate < 0 {
		return nil, e.Wrap("FETCH_RATE_PER_SEC", e.ErrIncorrectEnvVariable)
	}

	burst, err := parseIntEnv("FETCH_BURST", defaultBurst)
	if err != nil {
		return nil, e.Wrap("FETCH_BURST", err)
	}

	return &FetchCfg{
		Timeout:    timeout,
		MaxBytes:   int64(maxBytes),
		RatePerSec: rate,
		Burst:      burst,
		UserAgent:  getEnvOrDefault("FETCH_USER_AGENT", defaultUserAgent),
	}, nil
}

func loadExtractCfg() (*ExtractCfg, error) {
	const (
		defaultMaxConcurrent  = 4
		defaultTimeout        = 30 * time.Second
		defaultMaxUploadBytes = 10 << 20
		defaultMaxBatchImages = 16
		defaultRetries        = 3
		defaultRetryBase      = 200 * time.Millisecond
		defaultRetryMax       = 5 * time.Second
		defaultCleanup        = 3
	)

	maxConcurrent, err := parseIntEnv("EXTRACT_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("EXTRACT_MAX_CONCURRENT", err)
	}

	timeout, err := parseDurationEnv("EXTRACT_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("EXTRACT_TIMEOUT", err)
	}

	maxUpload, err := parseIntEnv("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, e.Wrap("MAX_UPLOAD_BYTES", err)
	}

	maxBatch, err := parseIntEnv("MAX_BATCH_IMAGES", defaultMaxBatchImages)
	if err != nil {
		return nil, e.Wrap("MAX_BATCH_IMAGES", err)
	}

	retries, err := parseIntEnv("INFERENCE_MAX_RETRIES", defaultRetries)
	if err != nil {
		return nil, e.Wrap("INFERENCE_MAX_RETRIES", err)
	}

	retryBase, err := parseDurationEnv("INFERENCE_RETRY_BASE", defaultRetryBase)
	if err != nil {
		return nil, e.Wrap("INFERENCE_RETRY_BASE", err)
	}

	retryMax, err := parseDurationEnv("INFERENCE_RETRY_MAX", defaultRetryMax)
	if err != nil {
		return nil, e.Wrap("INFERENCE_RETRY_MAX", err)
	}

	cleanup, err := parseIntEnv("CLEANUP_ATTEMPTS", defaultCleanup)
	if err != nil {
		return nil, e.Wrap("CLEANUP_ATTEMPTS", err)
	}

	return &ExtractCfg{
		MaxConcurrent:   maxConcurrent,
		Timeout:         timeout,
		MaxUploadBytes:  int64(maxUpload),
		MaxBatchImages:  maxBatch,
		InferenceRetry:  retries,
		RetryBaseDelay:  retryBase,
		RetryMaxDelay:   retryMax,
		CleanupAttempts: cleanup,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	topic := getEnvOrDefault("KAFKA_TOPIC", "image-fingerprints")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
		defaultBucket   = "fingerprints"
		defaultPrefix   = "originals"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		OriginalsPrefix:   getEnvOrDefault("MINIO_ORIGINALS_PREFIX", defaultPrefix),
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 15 * time.Second
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
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	required := map[string]string{
		"POSTGRES_USER":     getEnv("POSTGRES_USER"),
		"POSTGRES_PASSWORD": getEnv("POSTGRES_PASSWORD"),
		"POSTGRES_DB":       getEnv("POSTGRES_DB"),
	}
	for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		if required[key] == "" {
			err := fmt.Errorf("%s is required", key)
			log.Errorf(err, "missing %s", key)
			return nil, err
		}
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     required["POSTGRES_USER"],
		Password: required["POSTGRES_PASSWORD"],
		DBName:   required["POSTGRES_DB"],
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultHost           = "qdrant"
		defaultCollection     = "image_fingerprints"
		// Размерность отпечатка фиксирована и не настраивается
		vectorSize = 256
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", defaultHost),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr           = "localhost:6379"
		defaultDB             = 0
		defaultMaxRetries     = 3
		defaultDialTimeout    = 5 * time.Second
		defaultReadTimeout    = 3 * time.Second
		defaultWriteTimeout   = 3 * time.Second
		defaultFingerprintTTL = 24 * time.Hour
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
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

	ttl, err := parseDurationEnv("FINGERPRINT_TTL", defaultFingerprintTTL)
	if err != nil {
		log.Errorf(err, "invalid FINGERPRINT_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:           getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:       getEnv("REDIS_PASSWORD"),
		User:           getEnv("REDIS_USER"),
		DB:             db,
		MaxRetries:     maxRetries,
		DialTimeout:    dialTimeout,
		Timeout:        max(readTimeout, writeTimeout),
		FingerprintTTL: ttl,
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
