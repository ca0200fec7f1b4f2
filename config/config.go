package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging      LoggingConfig  `yaml:"logging"`
	Mongo        MongoConfig    `yaml:"mongo"`
	Redis        RedisConfig    `yaml:"redis"`
	Gemini       GeminiConfig   `yaml:"gemini"`
	Pipeline     PipelineConfig `yaml:"pipeline"`
	Ingest       IngestConfig   `yaml:"ingest"`
	Sources      []SourceConfig `yaml:"sources"`
	SummaryQuota QuotaConfig    `yaml:"summary_quota"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTLSeconds bounds staleness of cached read-side responses.
	TTLSeconds int `yaml:"ttl_seconds"`
}

type GeminiConfig struct {
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	// EmbeddingDim is the requested output dimensionality of embedding vectors.
	EmbeddingDim int `yaml:"embedding_dim"`
	// InputCharBudget truncates text sent to the LLM.
	InputCharBudget int `yaml:"input_char_budget"`
}

// PipelineConfig holds the per-stage processing policy.
type PipelineConfig struct {
	MaxRetriesExtract   int `yaml:"max_retries_extract"`
	MaxRetriesSummarize int `yaml:"max_retries_summarize"`
	MaxRetriesEmbed     int `yaml:"max_retries_embed"`

	// MinContentLength is the extraction quality gate, in runes.
	MinContentLength int `yaml:"min_content_length"`

	// AllowedLanguages are ISO 639-3 codes accepted by the extraction
	// language gate. Empty means any language passes.
	AllowedLanguages []string `yaml:"allowed_languages"`

	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
}

// StageTimeout returns the external-call timeout for a single stage run.
func (p PipelineConfig) StageTimeout() time.Duration {
	if p.StageTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.StageTimeoutSeconds) * time.Second
}

type IngestConfig struct {
	// FeedItemLimit caps items taken from a single feed per run. 0 means all.
	FeedItemLimit int `yaml:"feed_item_limit"`
}

// SourceConfig is a single configured content source.
type SourceConfig struct {
	Name string `yaml:"name"`
	// Type is one of: feed, channel, page.
	Type     string `yaml:"type"`
	Endpoint string `yaml:"endpoint"`
}

// QuotaConfig bounds LLM call rates for the summarize stage.
// Zero or negative values disable the corresponding limit.
type QuotaConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	// load configuration file
	data, err := os.ReadFile(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}

	var c AppConfig
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		panic(err)
	}
	applyDefaults(&c)
	config = &c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

// GeminiAPIKey comes from the environment only, never from config.yaml.
func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func applyDefaults(c *AppConfig) {
	if c.Mongo.Database == "" {
		c.Mongo.Database = "newspipeline"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.EmbeddingModel == "" {
		c.Gemini.EmbeddingModel = "gemini-embedding-001"
	}
	if c.Gemini.EmbeddingDim <= 0 {
		c.Gemini.EmbeddingDim = 768
	}
	if c.Gemini.InputCharBudget <= 0 {
		c.Gemini.InputCharBudget = 24000
	}
	if c.Pipeline.MaxRetriesExtract <= 0 {
		c.Pipeline.MaxRetriesExtract = 3
	}
	if c.Pipeline.MaxRetriesSummarize <= 0 {
		c.Pipeline.MaxRetriesSummarize = 3
	}
	if c.Pipeline.MaxRetriesEmbed <= 0 {
		c.Pipeline.MaxRetriesEmbed = 2
	}
	if c.Pipeline.MinContentLength <= 0 {
		c.Pipeline.MinContentLength = 100
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 60
	}
	if c.Ingest.FeedItemLimit < 0 {
		c.Ingest.FeedItemLimit = 0
	}
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
