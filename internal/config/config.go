package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	NATS    NATSConfig    `yaml:"nats"`
	Storage StorageConfig `yaml:"storage"`
	Params  ParamsConfig  `yaml:"params"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP video-feed/WebSocket adapter's
// listening port.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CameraConfig seeds the capture device index/resolution. The
// brightness/contrast/saturation/exposure/auto-exposure/ISO fields are
// parsed and defaulted but not applied anywhere; the property values
// pushed to the device come from the parameter store.
type CameraConfig struct {
	DeviceIndex   int  `yaml:"device_index"`
	FrameWidth    int  `yaml:"frame_width"`
	FrameHeight   int  `yaml:"frame_height"`
	Brightness    int  `yaml:"brightness"`
	Contrast      int  `yaml:"contrast"`
	Saturation    int  `yaml:"saturation"`
	Exposure      int  `yaml:"exposure"`
	AutoExposure  int  `yaml:"auto_exposure"`
	ISOSpeed      int  `yaml:"iso_speed"`
	UseSmallEdges bool `yaml:"use_small_edges"`
	RecordingFPS  int  `yaml:"recording_fps"`
}

// NATSConfig configures the message-bus adapter's connection and
// command subject.
type NATSConfig struct {
	URL          string `yaml:"url"`
	ArenaSubject string `yaml:"arena_subject"`
}

// StorageConfig configures two optional persistence features:
// position history and recorded-clip storage. Leaving a section's
// fields zero-valued disables that feature rather than failing
// startup — neither store is required for the locator to run.
type StorageConfig struct {
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

// ParamsConfig points at the persisted parameter JSON file that the
// tuning store loads from on startup and saves to on shutdown.
type ParamsConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable
// overrides. A missing file is not fatal: defaults alone are enough to
// start the service (a capture device must still open at index 0 unless
// ARENA_CAMERA_INDEX says otherwise).
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// setDefaults fills in the camera/bus/storage plumbing defaults.
// Feature-size and scale defaults (CAMERA_SCALE, MIN/MAX_BOT_AREA, …)
// live in the parameter store itself, not here.
func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Camera.FrameWidth == 0 {
		cfg.Camera.FrameWidth = 1920
	}
	if cfg.Camera.FrameHeight == 0 {
		cfg.Camera.FrameHeight = 1080
	}
	if cfg.Camera.Contrast == 0 {
		cfg.Camera.Brightness = 4
		cfg.Camera.Contrast = 100
		cfg.Camera.Saturation = 16
		cfg.Camera.Exposure = 32
		cfg.Camera.ISOSpeed = 2
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.ArenaSubject == "" {
		cfg.NATS.ArenaSubject = "pixelbot/arena"
	}
	if cfg.Storage.Database.Port == 0 {
		cfg.Storage.Database.Port = 5432
	}
	if cfg.Storage.Database.MaxConns == 0 {
		cfg.Storage.Database.MaxConns = 10
	}
	if cfg.Params.Path == "" {
		cfg.Params.Path = "Settings.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARENA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ARENA_CAMERA_INDEX"); v != "" {
		if idx, err := strconv.Atoi(v); err == nil {
			cfg.Camera.DeviceIndex = idx
		}
	}
	if v := os.Getenv("ARENA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ARENA_DB_HOST"); v != "" {
		cfg.Storage.Database.Host = v
	}
	if v := os.Getenv("ARENA_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Database.Port = port
		}
	}
	if v := os.Getenv("ARENA_DB_NAME"); v != "" {
		cfg.Storage.Database.Name = v
	}
	if v := os.Getenv("ARENA_DB_USER"); v != "" {
		cfg.Storage.Database.User = v
	}
	if v := os.Getenv("ARENA_DB_PASSWORD"); v != "" {
		cfg.Storage.Database.Password = v
	}
	if v := os.Getenv("ARENA_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.MinIO.Endpoint = v
	}
	if v := os.Getenv("ARENA_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.MinIO.AccessKey = v
	}
	if v := os.Getenv("ARENA_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinIO.SecretKey = v
	}
	if v := os.Getenv("ARENA_MINIO_BUCKET"); v != "" {
		cfg.Storage.MinIO.Bucket = v
	}
	if v := os.Getenv("ARENA_PARAMS_PATH"); v != "" {
		cfg.Params.Path = v
	}
}
