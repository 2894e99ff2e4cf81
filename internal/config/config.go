// Package config loads the engine's environment-variable surface through a viper
// singleton, with an Initialize()/GetString() entry point.
package config

import (
	"fmt"
	"strings"

	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath           = "memory.db"
	defaultEmbeddingProvider = "openai"
	defaultLLMProvider       = "anthropic"
	defaultMinConfidence     = 0.5
)

var v *viper.Viper

// Initialize sets up the viper singleton. Every key binds directly to an environment
// variable of the same name in upper case (no BD_-style prefix). No config file is read
// here; LoadTOMLFile and LoadYAMLFile merge one in when a caller asks for it.
func Initialize() error {
	v = viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("memory_db_path", defaultDBPath)
	v.SetDefault("embedding_provider", defaultEmbeddingProvider)
	v.SetDefault("llm_provider", defaultLLMProvider)
	v.SetDefault("bedrock_embedding_model", "")
	v.SetDefault("bedrock_llm_model", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("aws_profile", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("firecrawl_api_key", "")
	v.SetDefault("min_confidence_threshold", defaultMinConfidence)

	for _, key := range []string{
		"memory_db_path", "embedding_provider", "llm_provider",
		"bedrock_embedding_model", "bedrock_llm_model", "aws_region", "aws_profile",
		"openai_api_key", "anthropic_api_key", "firecrawl_api_key", "min_confidence_threshold",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return err
		}
	}
	return nil
}

func ensure() *viper.Viper {
	if v == nil {
		_ = Initialize()
	}
	return v
}

func DBPath() string              { return ensure().GetString("memory_db_path") }
func EmbeddingProvider() string   { return ensure().GetString("embedding_provider") }
func LLMProvider() string         { return ensure().GetString("llm_provider") }
func BedrockEmbeddingModel() string { return ensure().GetString("bedrock_embedding_model") }
func BedrockLLMModel() string     { return ensure().GetString("bedrock_llm_model") }
func AWSRegion() string           { return ensure().GetString("aws_region") }
func AWSProfile() string          { return ensure().GetString("aws_profile") }
func OpenAIAPIKey() string        { return ensure().GetString("openai_api_key") }
func AnthropicAPIKey() string     { return ensure().GetString("anthropic_api_key") }
func FirecrawlAPIKey() string     { return ensure().GetString("firecrawl_api_key") }
func MinConfidenceThreshold() float64 { return ensure().GetFloat64("min_confidence_threshold") }

// Override sets key directly, outranking both the env var and the default. cmd/memoryctl
// uses this to apply cobra flags directly, rather than through viper's own BindPFlag.
func Override(key, value string) {
	ensure().Set(key, value)
}

// LoadTOMLFile merges a TOML document's top-level keys into the config, for
// cmd/memoryctl's --config-format=toml. Keys present in the file outrank defaults but are
// themselves outranked by a set env var and by an Override call.
func LoadTOMLFile(path string) error {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return ensure().MergeConfigMap(raw)
}

// LoadYAMLFile merges a memory.yaml document's top-level keys into the config, for
// cmd/memoryctl's --config-format=yaml. Same precedence rules as LoadTOMLFile.
func LoadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return ensure().MergeConfigMap(raw)
}
