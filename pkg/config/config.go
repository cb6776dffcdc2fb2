//Package config loads the service configuration with viper: code defaults,
//an optional YAML file, then SOCCERHUD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

//ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

//EnvPrefix prefixes every environment override, e.g. SOCCERHUD_SERVER_PORT.
const EnvPrefix = "SOCCERHUD"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Model     ModelConfig     `mapstructure:"model"`
	Detection DetectionConfig `mapstructure:"detection"`
	Ball      BallConfig      `mapstructure:"ball"`
	BallOwner BallOwnerConfig `mapstructure:"ball_owner"`
	Teams     TeamsConfig     `mapstructure:"teams"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	MaxFrameBytes int64    `mapstructure:"max_frame_bytes"` //one inbound websocket message
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ModelConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Backend   string `mapstructure:"backend"` //cpu | cuda | opencl
	InputSize int    `mapstructure:"input_size"`
}

type DetectionConfig struct {
	Confidence  float64 `mapstructure:"confidence"`
	IoU         float64 `mapstructure:"iou"`
	PersonClass int     `mapstructure:"person_class"`
}

//BallConfig tunes the second, ball-only detector pass. Defaults under-detect
//small fast balls, so its confidence floor sits well below the person pass.
type BallConfig struct {
	Class      int     `mapstructure:"class"`
	Confidence float64 `mapstructure:"confidence"`
	IoU        float64 `mapstructure:"iou"`
}

type BallOwnerConfig struct {
	MaxDistance float64 `mapstructure:"max_distance"`
}

type TeamsConfig struct {
	Count           int   `mapstructure:"count"`
	Seed            int64 `mapstructure:"seed"`
	Restarts        int   `mapstructure:"restarts"`
	StabilizeLabels bool  `mapstructure:"stabilize_labels"`
}

type TrackingConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	Associator         string         `mapstructure:"associator"` //iou | deepsort
	MaxAge             int            `mapstructure:"max_age"`
	NInit              int            `mapstructure:"n_init"`
	MaxIoUDistance     float64        `mapstructure:"max_iou_distance"`
	CameraCutThreshold float64        `mapstructure:"camera_cut_threshold"`
	DeepSort           DeepSortConfig `mapstructure:"deepsort"`
}

type DeepSortConfig struct {
	Python   string `mapstructure:"python"`
	Script   string `mapstructure:"script"`
	Embedder string `mapstructure:"embedder"`
}

type SnapshotConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Quality int  `mapstructure:"quality"`
}

//Addr is the listen address built from host and port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_frame_bytes", 8<<20)

	v.SetDefault("log.level", "info")

	v.SetDefault("model.enabled", true)
	v.SetDefault("model.path", "yolov8s.onnx")
	v.SetDefault("model.backend", "cpu")
	v.SetDefault("model.input_size", 640)

	v.SetDefault("detection.confidence", 0.5)
	v.SetDefault("detection.iou", 0.4)
	v.SetDefault("detection.person_class", 0)

	v.SetDefault("ball.class", 32)
	v.SetDefault("ball.confidence", 0.1)
	v.SetDefault("ball.iou", 0.4)

	v.SetDefault("ball_owner.max_distance", 50.0)

	v.SetDefault("teams.count", 2)
	v.SetDefault("teams.seed", 42)
	v.SetDefault("teams.restarts", 10)
	v.SetDefault("teams.stabilize_labels", false)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.associator", "iou")
	v.SetDefault("tracking.max_age", 30)
	v.SetDefault("tracking.n_init", 3)
	v.SetDefault("tracking.max_iou_distance", 0.7)
	v.SetDefault("tracking.camera_cut_threshold", 0.5)
	v.SetDefault("tracking.deepsort.python", "python3")
	v.SetDefault("tracking.deepsort.script", "scripts/deepsort_bridge.py")
	v.SetDefault("tracking.deepsort.embedder", "mobilenet")

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.quality", 70)
}

//Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: bad defaults: %v", err))
	}
	return cfg
}

//Load reads configuration. With an empty path, config.yaml is looked up in the
//working directory and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0:
		return fmt.Errorf("%w: server.port must be positive", ErrInvalidConfig)
	case c.Server.MaxFrameBytes <= 0:
		return fmt.Errorf("%w: server.max_frame_bytes must be positive", ErrInvalidConfig)
	case c.BallOwner.MaxDistance <= 0:
		return fmt.Errorf("%w: ball_owner.max_distance must be positive", ErrInvalidConfig)
	case c.Teams.Count < 1:
		return fmt.Errorf("%w: teams.count must be at least 1", ErrInvalidConfig)
	case c.Tracking.CameraCutThreshold < 0:
		return fmt.Errorf("%w: tracking.camera_cut_threshold must not be negative", ErrInvalidConfig)
	case c.Model.Enabled && c.Model.Path == "":
		return fmt.Errorf("%w: model.path is required when the model is enabled", ErrInvalidConfig)
	}
	switch c.Tracking.Associator {
	case "iou", "deepsort":
	default:
		return fmt.Errorf("%w: unknown tracking.associator %q", ErrInvalidConfig, c.Tracking.Associator)
	}
	return nil
}
