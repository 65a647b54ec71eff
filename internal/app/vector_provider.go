package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/chromem"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/platform/pinecone"
	"github.com/yungbote/secondbrain-backend/internal/platform/qdrant"
)

var (
	newPineconeClient      = pinecone.New
	newPineconeVectorStore = pinecone.NewVectorStore
	newQdrantVectorStore   = qdrant.NewVectorStore
	newChromemVectorStore  = chromem.NewVectorStore
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider    VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingAPIKey      VectorProviderBootstrapErrorCode = "missing_pinecone_api_key"
	VectorProviderBootstrapErrorMissingQdrantURL   VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL   VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl  VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorQdrantConfigFailed VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed      VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore builds the configured provider and wraps it with
// per-operation metrics. The index itself is not touched until Bootstrap.
func resolveVectorStore(log *logger.Logger, cfg Config) (pinecone.VectorStore, error) {
	provider := string(cfg.VectorProvider)
	metrics := observability.Current()
	metrics.SetVectorStoreProviderActive(provider)

	fail := func(err error) (pinecone.VectorStore, error) {
		classified := classifyVectorProviderBootstrapError(provider, err)
		code := vectorProviderBootstrapErrorCode(classified)
		metrics.ObserveVectorStoreProviderBootstrap(provider, "error", string(code))
		log.Error("Vector store provider bootstrap failed",
			"provider", provider,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}

	var (
		vs  pinecone.VectorStore
		err error
	)
	switch cfg.VectorProvider {
	case VectorProviderPinecone:
		log.Info("Selecting vector store provider",
			"provider", provider,
			"index_name", cfg.PineconeStore.IndexName,
			"namespace_prefix", cfg.PineconeStore.NamespacePrefix,
		)
		if strings.TrimSpace(cfg.Pinecone.APIKey) == "" {
			return fail(&VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorMissingAPIKey,
				Provider: provider,
				Cause:    errors.New("PINECONE_API_KEY is required"),
			})
		}
		pc, perr := newPineconeClient(log, cfg.Pinecone)
		if perr != nil {
			return fail(perr)
		}
		vs, err = newPineconeVectorStore(log, pc, cfg.PineconeStore)

	case VectorProviderQdrant:
		log.Info("Selecting vector store provider",
			"provider", provider,
			"qdrant_url", cfg.Qdrant.URL,
			"qdrant_collection", cfg.Qdrant.Collection,
			"qdrant_namespace_prefix", cfg.Qdrant.NamespacePrefix,
		)
		vs, err = newQdrantVectorStore(log, cfg.Qdrant)

	case VectorProviderChromem:
		log.Info("Selecting vector store provider",
			"provider", provider,
			"chromem_path", cfg.Chromem.Path,
			"persistent", cfg.Chromem.Path != "",
		)
		vs, err = newChromemVectorStore(log, cfg.Chromem)

	default:
		return fail(&VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		})
	}
	if err != nil {
		return fail(err)
	}
	metrics.ObserveVectorStoreProviderBootstrap(provider, "success", "none")
	return instrumentVectorStore(provider, vs), nil
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
