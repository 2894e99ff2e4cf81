package config

import (
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if got := DBPath(); got != defaultDBPath {
		t.Errorf("DBPath() = %q, want %q", got, defaultDBPath)
	}
	if got := EmbeddingProvider(); got != defaultEmbeddingProvider {
		t.Errorf("EmbeddingProvider() = %q, want %q", got, defaultEmbeddingProvider)
	}
	if got := MinConfidenceThreshold(); got != defaultMinConfidence {
		t.Errorf("MinConfidenceThreshold() = %v, want %v", got, defaultMinConfidence)
	}
}

func TestEnvVarOverridesDefault(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("MIN_CONFIDENCE_THRESHOLD", "0.75")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if got := LLMProvider(); got != "ollama" {
		t.Errorf("LLMProvider() = %q, want %q", got, "ollama")
	}
	if got := MinConfidenceThreshold(); got != 0.75 {
		t.Errorf("MinConfidenceThreshold() = %v, want %v", got, 0.75)
	}

	os.Unsetenv("LLM_PROVIDER")
	os.Unsetenv("MIN_CONFIDENCE_THRESHOLD")
}
