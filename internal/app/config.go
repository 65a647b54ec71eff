package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/secondbrain-backend/internal/data/db"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/embedding"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/chromem"
	"github.com/yungbote/secondbrain-backend/internal/platform/doclock"
	"github.com/yungbote/secondbrain-backend/internal/platform/envutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/openai"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
	"github.com/yungbote/secondbrain-backend/internal/platform/qdrant"
)

const defaultServiceName = "secondbrain-backend"

type Config struct {
	Env             string
	Port            string
	GinMode         string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	DB db.Config
	// SagaSQLitePath holds the saga step log when DB.Driver is sqlite, so the
	// log can be written while the document transaction holds the writer.
	SagaSQLitePath string

	VectorProvider  VectorProvider
	VectorNamespace string
	Pinecone        pinecone.Config
	PineconeStore   pinecone.StoreConfig
	Qdrant          qdrant.Config
	Chromem         chromem.Config

	OpenAI openai.Config

	MaxChunkTokens int
	Tunables       rag.Tunables
	Embedding      embedding.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Lock          doclock.Config

	Otel           observability.OtelConfig
	MetricsEnabled bool

	SagaReconcileGrace    time.Duration
	SagaReconcileInterval time.Duration
}

// fileConfig is the optional YAML file at CONFIG_FILE. Only the pipeline
// tunables live there; everything else is environment-only.
type fileConfig struct {
	RAG struct {
		MaxChunkTokens       int     `yaml:"max_chunk_tokens"`
		TopKDefault          int     `yaml:"topk_default"`
		ContextMaxChars      int     `yaml:"context_max_chars"`
		ContextFallbackChars int     `yaml:"context_fallback_chars"`
		PreviewMaxChars      int     `yaml:"preview_max_chars"`
		EmbedConcurrency     int     `yaml:"embed_concurrency"`
		EmbedRatePerSec      float64 `yaml:"embed_rate_per_sec"`
		EmbedRateBurst       int     `yaml:"embed_rate_burst"`
	} `yaml:"rag"`
}

func defaultConfig() Config {
	return Config{
		Env:             "development",
		Port:            "8080",
		GinMode:         "debug",
		ShutdownTimeout: 15 * time.Second,
		AccessTokenTTL:  24 * time.Hour,
		DB: db.Config{
			Driver:     db.DriverPostgres,
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "secondbrain",
			SSLMode:    "disable",
			SQLitePath: "secondbrain.db",
		},
		VectorProvider: VectorProviderPinecone,
		MaxChunkTokens: 500,
		Tunables: rag.Tunables{
			TopKDefault:          5,
			ContextMaxChars:      7000,
			ContextFallbackChars: 1200,
			PreviewMaxChars:      400,
		},
		Embedding: embedding.Config{
			Concurrency: 4,
			RatePerSec:  10,
			RateBurst:   10,
		},
		Lock: doclock.Config{
			TTL:  2 * time.Minute,
			Wait: 5 * time.Second,
		},
		Otel: observability.OtelConfig{
			ServiceName: defaultServiceName,
			SampleRatio: 1,
		},
		MetricsEnabled:     true,
		SagaReconcileGrace: 10 * time.Minute,
	}
}

// LoadConfig reads .env (never overriding the real environment), then the
// YAML file named by CONFIG_FILE, then the environment, each layer winning
// over the previous one.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg)

	provider, err := ParseVectorProvider(envutil.String("VECTOR_PROVIDER", string(cfg.VectorProvider)))
	if err != nil {
		return Config{}, err
	}
	cfg.VectorProvider = provider
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	r := fc.RAG
	setInt(&cfg.MaxChunkTokens, r.MaxChunkTokens)
	setInt(&cfg.Tunables.TopKDefault, r.TopKDefault)
	setInt(&cfg.Tunables.ContextMaxChars, r.ContextMaxChars)
	setInt(&cfg.Tunables.ContextFallbackChars, r.ContextFallbackChars)
	setInt(&cfg.Tunables.PreviewMaxChars, r.PreviewMaxChars)
	setInt(&cfg.Embedding.Concurrency, r.EmbedConcurrency)
	setInt(&cfg.Embedding.RateBurst, r.EmbedRateBurst)
	if r.EmbedRatePerSec > 0 {
		cfg.Embedding.RatePerSec = r.EmbedRatePerSec
	}
	return nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func applyEnv(cfg *Config) {
	cfg.Env = strings.ToLower(envutil.String("APP_ENV", cfg.Env))
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.GinMode = envutil.String("GIN_MODE", cfg.GinMode)
	cfg.CORSOrigins = envutil.List("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)

	cfg.DB.Driver = strings.ToLower(envutil.String("DB_DRIVER", cfg.DB.Driver))
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)
	cfg.SagaSQLitePath = envutil.String("SAGA_SQLITE_PATH", sagaPathFor(cfg.DB.SQLitePath))

	cfg.VectorNamespace = envutil.String("VECTOR_NAMESPACE", cfg.VectorNamespace)
	cfg.Pinecone = pinecone.Config{
		APIKey:     envutil.String("PINECONE_API_KEY", ""),
		APIVersion: envutil.String("PINECONE_API_VERSION", ""),
		BaseURL:    envutil.String("PINECONE_BASE_URL", ""),
		Timeout:    envutil.Duration("PINECONE_TIMEOUT", 30*time.Second),
	}
	cfg.PineconeStore = pinecone.StoreConfig{
		IndexName:       envutil.String("PINECONE_INDEX_NAME", "secondbrain"),
		IndexHost:       envutil.String("PINECONE_INDEX_HOST", ""),
		NamespacePrefix: envutil.String("PINECONE_NAMESPACE_PREFIX", "sb"),
		Cloud:           envutil.String("PINECONE_CLOUD", "aws"),
		Region:          envutil.String("PINECONE_REGION", "us-east-1"),
		ReadyTimeout:    envutil.Duration("PINECONE_READY_TIMEOUT", 2*time.Minute),
	}
	cfg.Qdrant = qdrant.Config{
		URL:             envutil.String("QDRANT_URL", ""),
		APIKey:          envutil.String("QDRANT_API_KEY", ""),
		Collection:      envutil.String("QDRANT_COLLECTION", "secondbrain"),
		NamespacePrefix: envutil.String("QDRANT_NAMESPACE_PREFIX", "sb"),
		Timeout:         envutil.Duration("QDRANT_TIMEOUT", 30*time.Second),
	}
	cfg.Chromem = chromem.Config{
		Path:            envutil.String("CHROMEM_PATH", ""),
		Compress:        envutil.Bool("CHROMEM_COMPRESS", false),
		NamespacePrefix: envutil.String("CHROMEM_NAMESPACE_PREFIX", "sb"),
		Concurrency:     envutil.Int("CHROMEM_CONCURRENCY", 0),
	}

	cfg.OpenAI = openai.Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", ""),
		EmbedModel: envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		Model:      envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:    envutil.Duration("OPENAI_TIMEOUT", 60*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 2),
	}
	if raw := envutil.String("OPENAI_TEMPERATURE", ""); raw != "" {
		t := envutil.Float("OPENAI_TEMPERATURE", 0.2)
		cfg.OpenAI.Temperature = &t
	}

	cfg.MaxChunkTokens = envutil.Int("MAX_CHUNK_TOKENS", cfg.MaxChunkTokens)
	cfg.Tunables.TopKDefault = envutil.Int("TOPK_DEFAULT", cfg.Tunables.TopKDefault)
	cfg.Tunables.ContextMaxChars = envutil.Int("CONTEXT_MAX_CHARS", cfg.Tunables.ContextMaxChars)
	cfg.Tunables.ContextFallbackChars = envutil.Int("CONTEXT_FALLBACK_CHARS", cfg.Tunables.ContextFallbackChars)
	cfg.Tunables.PreviewMaxChars = envutil.Int("PREVIEW_MAX_CHARS", cfg.Tunables.PreviewMaxChars)
	cfg.Embedding.Concurrency = envutil.Int("EMBED_CONCURRENCY", cfg.Embedding.Concurrency)
	cfg.Embedding.RatePerSec = envutil.Float("EMBED_RATE_PER_SEC", cfg.Embedding.RatePerSec)
	cfg.Embedding.RateBurst = envutil.Int("EMBED_RATE_BURST", cfg.Embedding.RateBurst)

	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envutil.Int("REDIS_DB", cfg.RedisDB)
	cfg.Lock.TTL = envutil.Duration("DOC_LOCK_TTL", cfg.Lock.TTL)
	cfg.Lock.Wait = envutil.Duration("DOC_LOCK_WAIT", cfg.Lock.Wait)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Env)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""))
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.SagaReconcileGrace = envutil.Duration("SAGA_RECONCILE_GRACE", cfg.SagaReconcileGrace)
	cfg.SagaReconcileInterval = envutil.Duration("SAGA_RECONCILE_INTERVAL", cfg.SagaReconcileInterval)
}

func sagaPathFor(sqlitePath string) string {
	p := strings.TrimSpace(sqlitePath)
	if p == "" || strings.HasPrefix(p, ":memory:") {
		return ":memory:saga"
	}
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + "-saga" + ext
}

func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every missing mandatory value at once.
func (c Config) Validate() error {
	var errs []error
	if c.IsProduction() && (c.JWTSecretKey == "" || c.JWTSecretKey == "defaultsecret") {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required in production"))
	}
	switch c.DB.Driver {
	case db.DriverPostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("POSTGRES_HOST and POSTGRES_NAME are required"))
		}
	case db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	switch c.VectorProvider {
	case VectorProviderPinecone:
		if c.Pinecone.APIKey == "" {
			errs = append(errs, errors.New("PINECONE_API_KEY is required for VECTOR_PROVIDER=pinecone"))
		}
		if c.PineconeStore.IndexName == "" {
			errs = append(errs, errors.New("PINECONE_INDEX_NAME is required for VECTOR_PROVIDER=pinecone"))
		}
	case VectorProviderQdrant:
		if _, err := c.Qdrant.Normalize(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unsupported GIN_MODE %q", c.GinMode))
	}
	if c.MaxChunkTokens <= 0 {
		errs = append(errs, errors.New("MAX_CHUNK_TOKENS must be > 0"))
	}
	if c.Tunables.ContextMaxChars <= 0 {
		errs = append(errs, errors.New("CONTEXT_MAX_CHARS must be > 0"))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
