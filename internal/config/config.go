package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
// It is built once at start-up and read-only afterwards.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Dataset store.
	DataDir              string
	DatasetPattern       string
	StoreCacheSize       int
	StoreRefreshInterval time.Duration // 0 disables periodic cache purges

	// Analysis.
	ReferencePeriod domain.ReferencePeriod
	RegionsFile     string
	Regions         *domain.Catalog

	// Evaluation graph.
	ComputeWorkers   int
	ComputeChunkRows int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	period, err := parseReferencePeriod(sharedcfg.EnvOrDefault("REFERENCE_PERIOD", "1991-2020"))
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("COMPUTE_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}
	chunkRows, err := parsePositiveInt("COMPUTE_CHUNK_ROWS", 16)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("STORE_CACHE_SIZE", 32)
	if err != nil {
		return nil, err
	}
	refresh, err := parseInterval("STORE_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "analysis-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "temperature-anomalies"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "temperature-anomaly-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DataDir:              sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		DatasetPattern:       sharedcfg.EnvOrDefault("DATASET_PATTERN", "{source}.nc"),
		StoreCacheSize:       cacheSize,
		StoreRefreshInterval: refresh,

		ReferencePeriod: period,
		RegionsFile:     os.Getenv("REGIONS_FILE"),

		ComputeWorkers:   workers,
		ComputeChunkRows: chunkRows,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if !strings.Contains(cfg.DatasetPattern, "{source}") {
		return nil, errors.New("invalid DATASET_PATTERN: must contain {source}")
	}

	regions := domain.DefaultRegions()
	if cfg.RegionsFile != "" {
		if regions, err = LoadRegions(cfg.RegionsFile); err != nil {
			return nil, fmt.Errorf("REGIONS_FILE: %w", err)
		}
	}
	if cfg.Regions, err = domain.NewCatalog(regions); err != nil {
		return nil, fmt.Errorf("region catalog: %w", err)
	}

	return cfg, nil
}

// parseReferencePeriod accepts "YYYY-YYYY".
func parseReferencePeriod(s string) (domain.ReferencePeriod, error) {
	first, last, ok := strings.Cut(s, "-")
	if !ok {
		return domain.ReferencePeriod{}, errors.New("invalid REFERENCE_PERIOD: want YYYY-YYYY")
	}
	y0, err0 := strconv.Atoi(strings.TrimSpace(first))
	y1, err1 := strconv.Atoi(strings.TrimSpace(last))
	if err0 != nil || err1 != nil {
		return domain.ReferencePeriod{}, errors.New("invalid REFERENCE_PERIOD: want YYYY-YYYY")
	}
	p, err := domain.ReferenceYears(y0, y1)
	if err != nil {
		return domain.ReferencePeriod{}, fmt.Errorf("invalid REFERENCE_PERIOD: %w", err)
	}
	return p, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseInterval reads a non-negative duration; "0" is allowed.
func parseInterval(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative duration", key)
	}
	return d, nil
}
