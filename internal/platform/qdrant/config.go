package qdrant

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	URL             string
	APIKey          string
	Collection      string
	NamespacePrefix string
	Timeout         time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorMissingCollection:
		return "QDRANT_COLLECTION is required"
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Normalize fills defaults and validates cfg.
func (c Config) Normalize() (Config, error) {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	c.Collection = strings.TrimSpace(c.Collection)
	c.NamespacePrefix = strings.TrimSpace(c.NamespacePrefix)
	if c.NamespacePrefix == "" {
		c.NamespacePrefix = "sb"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.URL == "" {
		return Config{}, &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Config{}, &ConfigError{Code: ConfigErrorInvalidURL, Value: c.URL, Cause: err}
	}
	if c.Collection == "" {
		return Config{}, &ConfigError{Code: ConfigErrorMissingCollection}
	}
	return c, nil
}
