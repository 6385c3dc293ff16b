// Package config loads the immutable set of tunables the retrieval pipeline
// is built from. All values are read once at startup into a single struct;
// nothing downstream mutates global state or re-reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	// Corpus / chunking.
	CorpusDir     string
	ChunkSize     int
	ChunkOverlap  int

	// Index artifacts.
	DenseIndexPath  string
	SparseIndexPath string

	// Classifier K table.
	KSimple     int
	KMedia      int
	KCompleja   int
	KExhaustiva int

	// Fusion.
	AlphaDefault float64
	AlphaLexical float64
	RRFConstant  int

	// Closed vocabulary driving force-lexical routing. NameVocabulary holds
	// identity/question words ("nombre", "quien", "guardianes", ...) and
	// corpus proper names ("azoes", "alaniso", ...);
	// CollectiveNames holds the closed set of proper names that get their
	// own supplementary per-name lookup when a query asks for the group.
	NameVocabulary  []string
	CollectiveNames []string

	// Deadlines.
	EmbeddingTimeout time.Duration
	GenerationTimeout time.Duration
	TotalTimeout      time.Duration

	// External model routing.
	GCPProject        string
	VertexAILocation  string
	VertexAIModel     string
	EmbeddingLocation string
	EmbeddingModel    string
	EmbeddingDimensions int

	// Prompt contract.
	PromptsDir string

	// Cache.
	QueryCacheTTL     time.Duration
	EmbeddingCacheSize int
	RedisAddr         string

	// HTTP.
	FrontendURL string
}

// Load reads configuration from environment variables. GOOGLE_CLOUD_PROJECT
// is required; everything else has a default grounded in the defaults the
// classifier and retriever are specified against.
func Load() (*Config, error) {
	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		CorpusDir:    envStr("CORPUS_DIR", "./corpus"),
		ChunkSize:    envInt("CHUNK_SIZE", 800),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 150),

		DenseIndexPath:  envStr("DENSE_INDEX_PATH", "./data/dense"),
		SparseIndexPath: envStr("SPARSE_INDEX_PATH", "./data/sparse"),

		KSimple:     envInt("K_SIMPLE", 150),
		KMedia:      envInt("K_MEDIA", 165),
		KCompleja:   envInt("K_COMPLEJA", 180),
		KExhaustiva: envInt("K_EXHAUSTIVA", 200),

		AlphaDefault: envFloat("ALPHA_DEFAULT", 0.7),
		AlphaLexical: envFloat("ALPHA_LEXICAL", 0.05),
		RRFConstant:  envInt("RRF_CONSTANT", 60),

		NameVocabulary:  envList("NAME_VOCABULARY", defaultNameVocabulary),
		CollectiveNames: envList("COLLECTIVE_NAMES", defaultCollectiveNames),

		EmbeddingTimeout:  envDuration("EMBEDDING_TIMEOUT", 5*time.Second),
		GenerationTimeout: envDuration("GENERATION_TIMEOUT", 30*time.Second),
		TotalTimeout:      envDuration("TOTAL_TIMEOUT", 45*time.Second),

		GCPProject:          gcpProject,
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:       envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),

		PromptsDir: envStr("PROMPTS_DIR", "./internal/promptcontract/prompts"),

		QueryCacheTTL:      envDuration("QUERY_CACHE_TTL", 10*time.Minute),
		EmbeddingCacheSize: envInt("EMBEDDING_CACHE_SIZE", 1024),
		RedisAddr:          envStr("REDIS_ADDR", ""),

		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg, nil
}

// defaultNameVocabulary is the closed set of identity/question words and
// corpus proper names that trigger lexical-only routing regardless of
// capitalization.
var defaultNameVocabulary = []string{
	"nombre", "nombres", "quien", "quienes",
	"guardianes", "guardian", "maestro", "maestros",
	"azoes", "azen", "aviatar", "alaniso", "alan", "axel",
	"adiestro", "adiel", "aladim", "aliestro", "trey", "totero",
	"ra", "thor", "arcangel",
}

// defaultCollectiveNames is the nine-name roster that gets a supplementary
// per-name BM25 lookup when a query asks about "guardianes" or "maestros"
// collectively.
var defaultCollectiveNames = []string{
	"alaniso", "axel", "alan", "azen", "aviatar", "aladim", "adiel", "azoes", "aliestro",
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
