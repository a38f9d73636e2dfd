package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/civicgrid/veridoc/internal/ai"
)

// Specification is the full runtime configuration. Precedence, lowest to
// highest: defaults < .env file < YAML < environment < flags.
type Specification struct {
	Providers      string `yaml:"providers" split_words:"true"`
	GeminiAPIKey   string `yaml:"geminiApiKey" envconfig:"GEMINI_API_KEY"`
	GeminiModel    string `yaml:"geminiModel" envconfig:"GEMINI_MODEL"`
	OpenAIAPIKey   string `yaml:"openaiApiKey" envconfig:"OPENAI_API_KEY"`
	OpenAIEndpoint string `yaml:"openaiEndpoint" envconfig:"OPENAI_ENDPOINT"`
	OpenAIModel    string `yaml:"openaiModel" envconfig:"OPENAI_MODEL"`
	EmbedModel     string `yaml:"embedModel" split_words:"true"`
	Dim            int    `yaml:"embedDim" envconfig:"EMBED_DIM"`

	Database     string `yaml:"database" envconfig:"DB_URL"`
	DocumentsDir string `yaml:"documentsDir" split_words:"true"`

	ChunkSize    int `yaml:"chunkSize" split_words:"true"`
	ChunkOverlap int `yaml:"chunkOverlap" split_words:"true"`

	TranslatorKey      string `yaml:"translatorKey" split_words:"true"`
	TranslatorRegion   string `yaml:"translatorRegion" split_words:"true"`
	TranslatorEndpoint string `yaml:"translatorEndpoint" split_words:"true"`

	LogLevel string `yaml:"logLevel" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`

	Auth AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

// AuthSpecification configures bearer-token auth on mutating endpoints.
type AuthSpecification struct {
	Enabled   bool   `yaml:"enabled"`
	JwtSecret string `yaml:"jwtSecret" split_words:"true"`
}

const envPrefix = "VERIDOC"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// ChainSettings maps the provider-related fields into the shape the ai
// package assembles a provider chain from.
func (s *Specification) ChainSettings() ai.ChainSettings {
	return ai.ChainSettings{
		Providers:      s.ProviderList(),
		GeminiAPIKey:   s.GeminiAPIKey,
		GeminiModel:    s.GeminiModel,
		OpenAIAPIKey:   s.OpenAIAPIKey,
		OpenAIEndpoint: s.OpenAIEndpoint,
		OpenAIModel:    s.OpenAIModel,
		EmbedModel:     s.EmbedModel,
		Dim:            s.Dim,
	}
}

// ProviderList splits the comma-separated provider preference order.
func (s *Specification) ProviderList() []string {
	var out []string
	for _, p := range strings.Split(s.Providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load builds the Specification. configPath may be ""; candidates are then
// auto-discovered.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// .env is the lowest file layer; absence is not an error
	_ = godotenv.Load()

	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/veridoc.yaml",
				"config/config.yaml",
				"./veridoc.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return Specification{}, fmt.Errorf("chunk overlap %d must be non-negative and smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if len(cfg.ProviderList()) == 0 {
		cfg.Providers = "stub"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("providers", c.Providers, "Comma-separated provider preference (gemini,openai,stub)")
	fs.String("gemini-api-key", c.GeminiAPIKey, "Gemini API key")
	fs.String("gemini-model", c.GeminiModel, "Gemini chat model")
	fs.String("openai-api-key", c.OpenAIAPIKey, "OpenAI (or Azure OpenAI) API key")
	fs.String("openai-endpoint", c.OpenAIEndpoint, "Azure OpenAI endpoint; empty for api.openai.com")
	fs.String("openai-model", c.OpenAIModel, "OpenAI chat model or Azure deployment name")
	fs.String("embed-model", c.EmbedModel, "Embedding model override")
	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("db-url", c.Database, "Database URL (DSN); empty selects in-memory stores")
	fs.String("documents-dir", c.DocumentsDir, "Directory of source documents to ingest")

	fs.Int("chunk-size", c.ChunkSize, "Chunk size in characters")
	fs.Int("chunk-overlap", c.ChunkOverlap, "Chunk overlap in characters")

	fs.String("translator-key", c.TranslatorKey, "Azure Translator key; empty disables translation")
	fs.String("translator-region", c.TranslatorRegion, "Azure Translator region")
	fs.String("translator-endpoint", c.TranslatorEndpoint, "Azure Translator endpoint")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require bearer tokens on mutating endpoints")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("providers", &c.Providers)
	setStr("gemini-api-key", &c.GeminiAPIKey)
	setStr("gemini-model", &c.GeminiModel)
	setStr("openai-api-key", &c.OpenAIAPIKey)
	setStr("openai-endpoint", &c.OpenAIEndpoint)
	setStr("openai-model", &c.OpenAIModel)
	setStr("embed-model", &c.EmbedModel)
	setInt("embed-dim", &c.Dim)

	setStr("db-url", &c.Database)
	setStr("documents-dir", &c.DocumentsDir)

	setInt("chunk-size", &c.ChunkSize)
	setInt("chunk-overlap", &c.ChunkOverlap)

	setStr("translator-key", &c.TranslatorKey)
	setStr("translator-region", &c.TranslatorRegion)
	setStr("translator-endpoint", &c.TranslatorEndpoint)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Providers = "gemini,openai"
	c.Database = ""
	c.DocumentsDir = "documents"
	c.ChunkSize = 500
	c.ChunkOverlap = 50
	c.Dim = 0
	c.Port = 8080
	c.Auth.Enabled = false
}
