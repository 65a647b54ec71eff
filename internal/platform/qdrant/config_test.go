package qdrant

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg, err := Config{URL: " http://qdrant:6333/ ", Collection: "chunks"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.URL != "http://qdrant:6333" {
		t.Fatalf("url: want trimmed got=%q", cfg.URL)
	}
	if cfg.NamespacePrefix != "sb" {
		t.Fatalf("prefix: want=sb got=%q", cfg.NamespacePrefix)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout: want=10s got=%s", cfg.Timeout)
	}
}

func TestNormalizeRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{"missing url", Config{Collection: "c"}, ConfigErrorMissingURL},
		{"relative url", Config{URL: "qdrant:6333", Collection: "c"}, ConfigErrorInvalidURL},
		{"missing collection", Config{URL: "http://q:6333"}, ConfigErrorMissingCollection},
	}
	for _, tc := range cases {
		_, err := tc.cfg.Normalize()
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: want ConfigError got=%v", tc.name, err)
		}
		if ce.Code != tc.code {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.code, ce.Code)
		}
	}
}
