package config

import (
	"fmt"
	"time"
)

// Config is the process-wide configuration, assembled from environment
// variables. Every section carries its own defaults and validation;
// out-of-range fusion or dedup knobs are rejected here, never at call
// time.
type Config struct {
	Logger        LoggerConfig
	Embedder      EmbedderConfig
	VectorStore   VectorStoreConfig
	DocumentStore DocumentStoreConfig
	LLM           LLMConfig
	Fusion        FusionConfig
	Dedup         DedupConfig
	Enrichment    EnrichmentConfig
	Pipeline      PipelineConfig
	Indexer       IndexerConfig
	Server        ServerConfig
}

// LoggerConfig controls slog setup.
type LoggerConfig struct {
	Level  string
	Format string
}

// EmbedderConfig configures the embedding provider (text to dense vector).
type EmbedderConfig struct {
	Provider    string // "openai" or "ollama"
	BaseURL     string
	APIKey      string
	Model       string
	Dimension   int
	Timeout     time.Duration
	CacheSize   int
	ChunkSize   int
	MaxInFlight int
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimension == 0 {
		c.Dimension = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1024
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 16
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 4
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("embedder chunk size must be positive")
	}
	return nil
}

// VectorStoreConfig configures the Qdrant adapter.
type VectorStoreConfig struct {
	Host      string
	Port      int
	APIKey    string
	UseTLS    bool
	Dimension int
	// Enhanced selects the single-collection named-vector layout instead
	// of one collection per space.
	Enhanced           bool
	EnhancedCollection string
	CollectionPrefix   string
	// PointIDNamespace seeds the deterministic record-to-point UUID
	// mapping. Changing it between indexer and reader is a reindex.
	PointIDNamespace string
	SearchTimeout    time.Duration
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Dimension == 0 {
		c.Dimension = 1024
	}
	if c.EnhancedCollection == "" {
		c.EnhancedCollection = "tools_enhanced"
	}
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = "tools"
	}
	if c.PointIDNamespace == "" {
		c.PointIDNamespace = "tooldex.points.v1"
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 5 * time.Second
	}
}

func (c *VectorStoreConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive")
	}
	if c.PointIDNamespace == "" {
		return fmt.Errorf("point ID namespace cannot be empty")
	}
	return nil
}

// DocumentStoreConfig configures the SQL catalog adapter.
type DocumentStoreConfig struct {
	Driver  string // "postgres" or "sqlite"
	DSN     string
	Table   string
	Timeout time.Duration
}

func (c *DocumentStoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && (c.Driver == "sqlite" || c.Driver == "sqlite3") {
		c.DSN = "./tooldex.db"
	}
	if c.Table == "" {
		c.Table = "tools"
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
}

func (c *DocumentStoreConfig) Validate() error {
	switch c.Driver {
	case "postgres", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid document store driver %q (valid: postgres, sqlite)", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("document store DSN is required")
	}
	return nil
}

// LLMConfig configures the chat provider used by the intent extractor and
// the query planner.
type LLMConfig struct {
	Provider    string // "openai" or "ollama"
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 8 * time.Second
	}
}

func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("LLM model is required")
	}
	return nil
}

// FusionConfig holds the merge-engine knobs.
type FusionConfig struct {
	KValue        int
	MaxResults    int
	SourceWeights map[string]float64
}

func (c *FusionConfig) SetDefaults() {
	if c.KValue == 0 {
		c.KValue = 60
	}
	if c.MaxResults == 0 {
		c.MaxResults = 50
	}
	if c.SourceWeights == nil {
		c.SourceWeights = map[string]float64{
			"semantic":    1.0,
			"traditional": 0.9,
			"hybrid":      0.95,
			"fulltext":    0.8,
		}
	}
}

func (c *FusionConfig) Validate() error {
	if c.KValue <= 0 || c.KValue > 1000 {
		return fmt.Errorf("fusion K value %d out of range (0, 1000]", c.KValue)
	}
	if c.MaxResults <= 0 || c.MaxResults > 10000 {
		return fmt.Errorf("fusion max results %d out of range (0, 10000]", c.MaxResults)
	}
	for source, w := range c.SourceWeights {
		if w < 0 {
			return fmt.Errorf("negative weight %v for source %q", w, source)
		}
	}
	return nil
}

// DedupConfig holds the duplicate-detector knobs.
type DedupConfig struct {
	Threshold          float64
	ContentThreshold   float64
	VersionThreshold   float64
	FuzzyThreshold     float64
	CombinedThreshold  float64
	MaxComparisonItems int
	CacheSize          int
	Workers            int
	// CombinedWeightSum selects the weight-sum reading of the COMBINED
	// strategy; false makes it OR-aggregate the partial signals.
	CombinedWeightSum bool
}

func (c *DedupConfig) SetDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 0.8
	}
	if c.ContentThreshold == 0 {
		c.ContentThreshold = 0.8
	}
	if c.VersionThreshold == 0 {
		c.VersionThreshold = 0.85
	}
	if c.FuzzyThreshold == 0 {
		c.FuzzyThreshold = 0.7
	}
	if c.CombinedThreshold == 0 {
		c.CombinedThreshold = 0.75
	}
	if c.MaxComparisonItems == 0 {
		c.MaxComparisonItems = 1000
	}
	if c.CacheSize == 0 {
		c.CacheSize = 10000
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	c.CombinedWeightSum = true
}

func (c *DedupConfig) Validate() error {
	thresholds := map[string]float64{
		"threshold":          c.Threshold,
		"content threshold":  c.ContentThreshold,
		"version threshold":  c.VersionThreshold,
		"fuzzy threshold":    c.FuzzyThreshold,
		"combined threshold": c.CombinedThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("dedup %s %v out of [0,1]", name, v)
		}
	}
	if c.MaxComparisonItems <= 0 {
		return fmt.Errorf("dedup max comparison items must be positive")
	}
	return nil
}

// EnrichmentConfig holds the context-enrichment knobs.
type EnrichmentConfig struct {
	MaxEntitiesPerQuery int
	MinOccurrence       float64
	CacheTTL            time.Duration
	CacheSize           int
}

func (c *EnrichmentConfig) SetDefaults() {
	if c.MaxEntitiesPerQuery == 0 {
		c.MaxEntitiesPerQuery = 5
	}
	if c.MinOccurrence == 0 {
		c.MinOccurrence = 0.1
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 300 * time.Second
	}
	if c.CacheSize == 0 {
		c.CacheSize = 256
	}
}

func (c *EnrichmentConfig) Validate() error {
	if c.MinOccurrence < 0 || c.MinOccurrence > 1 {
		return fmt.Errorf("enrichment min occurrence %v out of [0,1]", c.MinOccurrence)
	}
	return nil
}

// PipelineConfig holds request-level orchestration knobs.
type PipelineConfig struct {
	RequestTimeout   time.Duration
	PerSourceTimeout time.Duration
	MaxQueryLength   int
}

func (c *PipelineConfig) SetDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.PerSourceTimeout == 0 {
		c.PerSourceTimeout = 5 * time.Second
	}
	if c.MaxQueryLength == 0 {
		c.MaxQueryLength = 500
	}
}

func (c *PipelineConfig) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// IndexerConfig holds the seeder knobs.
type IndexerConfig struct {
	BatchSize int
}

func (c *IndexerConfig) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 25
	}
}

func (c *IndexerConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("indexer batch size must be positive")
	}
	return nil
}

// ServerConfig holds the HTTP surface knobs.
type ServerConfig struct {
	Host string
	Port int
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Port)
	}
	return nil
}

// Load assembles the configuration from the environment, applies defaults
// and validates every section.
func Load() (*Config, error) {
	cfg := &Config{
		Logger: LoggerConfig{
			Level:  envString("TOOLDEX_LOG_LEVEL", "info"),
			Format: envString("TOOLDEX_LOG_FORMAT", "simple"),
		},
		Embedder: EmbedderConfig{
			Provider:  envString("EMBEDDING_PROVIDER", ""),
			BaseURL:   envString("EMBEDDING_BASE_URL", ""),
			APIKey:    envString("EMBEDDING_API_KEY", ""),
			Model:     envString("EMBEDDING_MODEL", ""),
			Dimension: envInt("EMBEDDING_DIMENSION", 0),
			Timeout:   envDuration("EMBEDDING_TIMEOUT", 0),
			CacheSize: envInt("EMBEDDING_CACHE_SIZE", 0),
		},
		VectorStore: VectorStoreConfig{
			Host:               envString("QDRANT_HOST", ""),
			Port:               envInt("QDRANT_PORT", 0),
			APIKey:             envString("QDRANT_API_KEY", ""),
			UseTLS:             envBool("QDRANT_USE_TLS", false),
			Enhanced:           envBool("USE_ENHANCED_COLLECTION", false),
			EnhancedCollection: envString("QDRANT_ENHANCED_COLLECTION", ""),
			CollectionPrefix:   envString("QDRANT_COLLECTION_PREFIX", ""),
			PointIDNamespace:   envString("POINT_ID_NAMESPACE", ""),
			SearchTimeout:      envDuration("QDRANT_SEARCH_TIMEOUT", 0),
		},
		DocumentStore: DocumentStoreConfig{
			Driver:  envString("CATALOG_DRIVER", ""),
			DSN:     envString("CATALOG_DSN", ""),
			Table:   envString("CATALOG_TABLE", ""),
			Timeout: envDuration("CATALOG_TIMEOUT", 0),
		},
		LLM: LLMConfig{
			Provider:    envString("LLM_PROVIDER", ""),
			BaseURL:     envString("LLM_BASE_URL", ""),
			APIKey:      envString("LLM_API_KEY", ""),
			Model:       envString("LLM_MODEL", ""),
			Temperature: envFloat("LLM_TEMPERATURE", 0),
			MaxTokens:   envInt("LLM_MAX_TOKENS", 0),
			Timeout:     envDuration("LLM_TIMEOUT", 0),
		},
		Fusion: FusionConfig{
			KValue:     envInt("FUSION_K_VALUE", 0),
			MaxResults: envInt("FUSION_MAX_RESULTS", 0),
		},
		Dedup: DedupConfig{
			Threshold: envFloat("DEDUP_THRESHOLD", 0),
			CacheSize: envInt("DEDUP_CACHE_SIZE", 0),
			Workers:   envInt("DEDUP_WORKERS", 0),
		},
		Enrichment: EnrichmentConfig{
			MaxEntitiesPerQuery: envInt("ENRICHMENT_MAX_ENTITIES", 0),
			CacheTTL:            envDuration("ENRICHMENT_CACHE_TTL", 0),
			CacheSize:           envInt("ENRICHMENT_CACHE_SIZE", 0),
		},
		Pipeline: PipelineConfig{
			RequestTimeout:   envDuration("REQUEST_TIMEOUT", 0),
			PerSourceTimeout: envDuration("SOURCE_TIMEOUT", 0),
		},
		Indexer: IndexerConfig{
			BatchSize: envInt("SEED_BATCH_SIZE", 0),
		},
		Server: ServerConfig{
			Host: envString("SERVER_HOST", ""),
			Port: envInt("SERVER_PORT", 0),
		},
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	c.DocumentStore.SetDefaults()
	c.LLM.SetDefaults()
	c.Fusion.SetDefaults()
	c.Dedup.SetDefaults()
	c.Enrichment.SetDefaults()
	c.Pipeline.SetDefaults()
	c.Indexer.SetDefaults()
	c.Server.SetDefaults()

	// Indexer and readers must agree on the vector dimension.
	if c.VectorStore.Dimension != c.Embedder.Dimension {
		c.VectorStore.Dimension = c.Embedder.Dimension
	}
}

// Validate checks every section and wraps the first failure.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"embedder", c.Embedder.Validate},
		{"vector store", c.VectorStore.Validate},
		{"document store", c.DocumentStore.Validate},
		{"llm", c.LLM.Validate},
		{"fusion", c.Fusion.Validate},
		{"dedup", c.Dedup.Validate},
		{"enrichment", c.Enrichment.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"indexer", c.Indexer.Validate},
		{"server", c.Server.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config: %s: %w", s.name, err)
		}
	}
	return nil
}
