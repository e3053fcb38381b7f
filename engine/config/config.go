package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/tundra/engine/core"
)

const (
	DefaultMaxInstanceCount uint32 = 1024
	DefaultAssetsDir               = "assets"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Validation bool `toml:"validation"`
	// Forces FIFO presentation even when mailbox is available.
	VSync            bool   `toml:"vsync"`
	MaxInstanceCount uint32 `toml:"max_instance_count"`
	// 0 waits forever.
	FrameTimeoutMS uint64 `toml:"frame_timeout_ms"`
}

type AssetsConfig struct {
	Dir       string `toml:"dir"`
	HotReload bool   `toml:"hot_reload"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Logging     LoggingConfig     `toml:"logging"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "Tundra",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			Validation:       true,
			MaxInstanceCount: DefaultMaxInstanceCount,
		},
		Assets: AssetsConfig{
			Dir: DefaultAssetsDir,
		},
	}
}

// Load reads a toml file on top of the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open config file %s", path)
	}
	defer f.Close()

	cfg := Default()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var details *toml.StrictMissingError
		if errors.As(err, &details) {
			return nil, errors.Newf("config file %s has unknown fields:\n%s", path, details.String())
		}
		return nil, errors.Wrapf(err, "could not decode config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Name == "" {
		return errors.New("application name must not be empty")
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return errors.Newf("window size %dx%d is invalid", c.Application.StartWidth, c.Application.StartHeight)
	}
	if _, err := core.ParseLogLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(err, "logging level %q", c.Logging.Level)
	}
	if c.Renderer.MaxInstanceCount == 0 {
		return errors.New("renderer max_instance_count must be greater than 0")
	}
	if c.Assets.Dir == "" {
		return errors.New("assets dir must not be empty")
	}
	return nil
}

func (c *Config) LogLevel() core.LogLevel {
	lvl, err := core.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return core.InfoLevel
	}
	return lvl
}
