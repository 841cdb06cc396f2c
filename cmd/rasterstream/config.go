package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robert-malhotra/go-rasterstream/raster"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// envPrefix prefixes environment overrides, e.g. RASTERSTREAM_BLOCK_SIZE.
const envPrefix = "RASTERSTREAM"

// Config is the engine configuration shared by every command.
type Config struct {
	Log         LogConfig   `mapstructure:"log"`
	Block       BlockConfig `mapstructure:"block"`
	Producers   int         `mapstructure:"producers"`
	Consumers   int         `mapstructure:"consumers"`
	Capacity    int         `mapstructure:"capacity"`
	Writers     int         `mapstructure:"writers"`
	Bands       string      `mapstructure:"bands"`
	Interleave  string      `mapstructure:"interleave"`
	Format      string      `mapstructure:"format"`
	MemoryLimit string      `mapstructure:"memory_limit"`
	MetricsAddr string      `mapstructure:"metrics_addr"`
	Progress    bool        `mapstructure:"progress"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type BlockConfig struct {
	Size  int    `mapstructure:"size"`
	Shape string `mapstructure:"shape"`
}

// flagKeys maps persistent flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-json":     "log.json",
	"block-size":   "block.size",
	"block-shape":  "block.shape",
	"producers":    "producers",
	"consumers":    "consumers",
	"capacity":     "capacity",
	"writers":      "writers",
	"bands":        "bands",
	"interleave":   "interleave",
	"format":       "format",
	"memory-limit": "memory_limit",
	"metrics-addr": "metrics_addr",
	"progress":     "progress",
}

func addEngineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "log in JSON")
	fs.Int("block-size", raster.DefaultBlockSize, "block side, or strip height, in pixels")
	fs.String("block-shape", "square", "block shape: square or strip")
	fs.Int("producers", raster.DefaultProducers, "reading goroutines")
	fs.Int("consumers", 0, "computing goroutines (0 uses every CPU)")
	fs.Int("capacity", 0, "blocks held by each queue (0 is twice the consumers)")
	fs.Int("writers", raster.DefaultWriters, "writing goroutines")
	fs.String("bands", "", "comma separated 1-based bands, all when empty")
	fs.String("interleave", "bsq", "in-memory block layout: bsq, bil or bip")
	fs.String("format", raster.DefaultFormat, "output format")
	fs.String("memory-limit", "", "block pool memory limit, e.g. 512MiB")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Bool("progress", false, "show a progress bar on stderr")
}

// loadConfig merges defaults, the config file, the environment and fs into
// a Config.
func loadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// newLogger builds the command logger.
func (c *Config) newLogger(w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	if c.Log.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	level := c.Log.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

// options converts the configuration into raster options.
func (c *Config) options() ([]raster.Option, error) {
	opts := []raster.Option{
		raster.WithProducers(c.Producers),
		raster.WithWriters(c.Writers),
	}
	if c.Block.Size != 0 {
		opts = append(opts, raster.WithBlockSize(c.Block.Size))
	}
	if c.Block.Shape != "" {
		shape, err := raster.ParseBlockShape(c.Block.Shape)
		if err != nil {
			return nil, err
		}
		opts = append(opts, raster.WithBlockShape(shape))
	}
	if c.Consumers != 0 {
		opts = append(opts, raster.WithConsumers(c.Consumers))
	}
	if c.Capacity != 0 {
		opts = append(opts, raster.WithQueueCapacity(c.Capacity))
	}
	if c.Bands != "" {
		bands, err := parseBands(c.Bands)
		if err != nil {
			return nil, err
		}
		opts = append(opts, raster.WithBands(bands...))
	}
	if c.Interleave != "" {
		il, err := rasterio.ParseInterleave(c.Interleave)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", raster.ErrInvalidOption, err)
		}
		opts = append(opts, raster.WithInterleave(il))
	}
	if c.Format != "" {
		opts = append(opts, raster.WithFormat(c.Format))
	}
	if c.MemoryLimit != "" {
		n, err := humanize.ParseBytes(c.MemoryLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: memory limit: %w", raster.ErrInvalidOption, err)
		}
		opts = append(opts, raster.WithMemoryLimit(n))
	}
	return opts, nil
}

func parseBands(s string) ([]int, error) {
	var bands []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		b, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: band %q", raster.ErrInvalidOption, f)
		}
		bands = append(bands, b)
	}
	return bands, nil
}
