package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "BEATWATCH_CONFIG"
	databaseURLEnv = "DATABASE_URL"
	llmAPIKeyEnv   = "LLM_API_KEY"
	envEnv         = "ENV"
)

// Config holds the ambient settings the core reads directly. Everything
// else (routing, CORS, OpenAPI, auth) is out of scope per spec.md §1.
type Config struct {
	DatabaseURL string       `yaml:"-"`
	LLMAPIKey   string       `yaml:"-"`
	Env         string       `yaml:"-"`
	LLM         LLMConfig    `yaml:"llm"`
	HTTPAddr    string       `yaml:"httpAddr"`
	Sources     []SourceSpec `yaml:"sources"`
}

// LLMConfig carries the enrichment provider's non-secret settings; the key
// itself only ever comes from LLM_API_KEY.
type LLMConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	PromptVersion string `yaml:"promptVersion"`
}

// SourceSpec is the reference shape spec.md §6 describes for the opaque
// config provider: a sequence of records with these exact fields.
type SourceSpec struct {
	AgencyName   string `yaml:"agency_name"`
	Jurisdiction string `yaml:"jurisdiction"`
	RegionLabel  string `yaml:"region_label"`
	SourceType   string `yaml:"source_type"`
	BaseURL      string `yaml:"base_url"`
	ParserID     string `yaml:"parser_id"`
	Active       bool   `yaml:"active"`
	UseBrowser   bool   `yaml:"use_browser"`
}

// Load reads an optional YAML file (mirroring the teacher's own
// config.Load merge-then-override shape) and applies the three
// environment variables spec.md §6 names. On-disk config loading beyond
// this opaque source list is explicitly out of scope; Load never fails
// the process on a missing or malformed file, it just falls back to
// defaults and logs.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLMAPIKey = v
	}
	if v := os.Getenv(envEnv); v != "" {
		c.Env = v
	}
}

// DebugEnabled reports whether ENV=dev, which spec.md §6 ties to the two
// debug endpoints.
func (c Config) DebugEnabled() bool {
	return c.Env == "dev"
}

func mergeConfig(base, override Config) Config {
	if override.HTTPAddr != "" {
		base.HTTPAddr = override.HTTPAddr
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.PromptVersion != "" {
		base.LLM.PromptVersion = override.LLM.PromptVersion
	}
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	return base
}

func defaultConfig() Config {
	return Config{
		HTTPAddr: ":8080",
		Env:      "production",
		LLM: LLMConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			PromptVersion: "incident_v1",
		},
	}
}
