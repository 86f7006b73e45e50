// Package config loads engine settings from YAML with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/krisalay/ops-engine/eviction"
	"github.com/krisalay/ops-engine/expiration"
	"github.com/krisalay/ops-engine/schedule"
	"github.com/krisalay/ops-engine/writepolicy"
)

// EnvPrefix prefixes every environment override, e.g. OPSENGINE_MAX_CACHE_SIZE.
const EnvPrefix = "OPSENGINE_"

// Config is everything an Engine needs to be built.
type Config struct {
	MaxCacheSize  int           `yaml:"maxCacheSize"`
	DefaultTTL    time.Duration `yaml:"defaultTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Shards        int           `yaml:"shards"`
	Eviction      string        `yaml:"eviction"`
	Expiration    string        `yaml:"expiration"`

	ParallelProcessing bool   `yaml:"parallelProcessing"`
	ParallelThreshold  int    `yaml:"parallelThreshold"`
	ChunkCount         int    `yaml:"chunkCount"`
	SchedulingMode     string `yaml:"schedulingMode"`

	WritePolicy     string `yaml:"writePolicy"`
	WriteBackBuffer int    `yaml:"writeBackBuffer"`

	MetricsNamespace string `yaml:"metricsNamespace"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxCacheSize:       10000,
		DefaultTTL:         time.Hour,
		SweepInterval:      5 * time.Minute,
		Shards:             1,
		Eviction:           string(eviction.LowestHits),
		Expiration:         string(expiration.AfterWrite),
		ParallelProcessing: true,
		ParallelThreshold:  schedule.DefaultParallelThreshold,
		ChunkCount:         schedule.DefaultChunkCount,
		SchedulingMode:     string(schedule.ModePreview),
		WritePolicy:        string(writepolicy.None),
		WriteBackBuffer:    256,
		MetricsNamespace:   "opsengine",
	}
}

// Load reads path on top of Default, applies OPSENGINE_* overrides and validates the
// result. An empty path falls back to $OPSENGINE_CONFIG, and to defaults alone when
// that is unset too.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Source = path
		log.WithField("path", path).Debug("config loaded")
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected; an empty document is not.
func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables looked up through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errList []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	num("MAX_CACHE_SIZE", &c.MaxCacheSize)
	dur("DEFAULT_TTL", &c.DefaultTTL)
	dur("SWEEP_INTERVAL", &c.SweepInterval)
	num("SHARDS", &c.Shards)
	str("EVICTION", &c.Eviction)
	str("EXPIRATION", &c.Expiration)
	flag("PARALLEL_PROCESSING", &c.ParallelProcessing)
	num("PARALLEL_THRESHOLD", &c.ParallelThreshold)
	num("CHUNK_COUNT", &c.ChunkCount)
	str("SCHEDULING_MODE", &c.SchedulingMode)
	str("WRITE_POLICY", &c.WritePolicy)
	num("WRITE_BACK_BUFFER", &c.WriteBackBuffer)
	str("METRICS_NAMESPACE", &c.MetricsNamespace)

	return errors.Join(errList...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errList []error
	bad := func(format string, args ...any) {
		errList = append(errList, fmt.Errorf(format, args...))
	}

	if c.MaxCacheSize <= 0 {
		bad("maxCacheSize must be > 0, got %d", c.MaxCacheSize)
	}
	if c.DefaultTTL <= 0 {
		bad("defaultTTL must be > 0, got %s", c.DefaultTTL)
	}
	if c.SweepInterval == 0 {
		bad("sweepInterval must be set; use a negative value to disable sweeping")
	}
	if c.Shards <= 0 {
		bad("shards must be > 0, got %d", c.Shards)
	} else if c.MaxCacheSize > 0 && c.Shards > c.MaxCacheSize {
		bad("shards (%d) must not exceed maxCacheSize (%d)", c.Shards, c.MaxCacheSize)
	}
	if _, err := eviction.ParsePolicyType(c.Eviction); err != nil {
		errList = append(errList, err)
	}
	if _, err := expiration.New(expiration.Type(c.Expiration)); err != nil {
		errList = append(errList, err)
	}
	if c.ParallelThreshold <= 0 {
		bad("parallelThreshold must be > 0, got %d", c.ParallelThreshold)
	}
	if c.ChunkCount <= 0 {
		bad("chunkCount must be > 0, got %d", c.ChunkCount)
	}
	if _, err := schedule.ParseMode(c.SchedulingMode); err != nil {
		errList = append(errList, err)
	}
	if _, err := writepolicy.ParseType(c.WritePolicy); err != nil {
		errList = append(errList, err)
	}
	if c.WriteBackBuffer < 0 {
		bad("writeBackBuffer must be >= 0, got %d", c.WriteBackBuffer)
	}

	if err := errors.Join(errList...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
