// Package config loads wlsurfd's configuration with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Output  OutputConfig  `mapstructure:"output"`
	Surface SurfaceConfig `mapstructure:"surface"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	// Socket is the name of the Wayland socket. Relative names are
	// placed in $XDG_RUNTIME_DIR, and an empty name picks the first
	// free wayland-N.
	Socket string `mapstructure:"socket"`
}

type OutputConfig struct {
	Width    int  `mapstructure:"width"`
	Height   int  `mapstructure:"height"`
	Refresh  int  `mapstructure:"refresh"`
	Portrait bool `mapstructure:"portrait"`
}

type SurfaceConfig struct {
	PoolWarnThreshold int  `mapstructure:"pool_warn_threshold"`
	DeferOpaqueRegion bool `mapstructure:"defer_opaque_region"`
}

var Default = Config{
	Log: LogConfig{
		Level: "info",
	},
	Output: OutputConfig{
		Width:   1280,
		Height:  720,
		Refresh: 60,
	},
	Surface: SurfaceConfig{
		PoolWarnThreshold: 3,
	},
}

// New returns a viper instance with wlsurfd's defaults, config file
// search path and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("wlsurf")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "wlsurf"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("WLSURF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", Default.Log.Level)
	v.SetDefault("server.socket", Default.Server.Socket)
	v.SetDefault("output.width", Default.Output.Width)
	v.SetDefault("output.height", Default.Output.Height)
	v.SetDefault("output.refresh", Default.Output.Refresh)
	v.SetDefault("output.portrait", Default.Output.Portrait)
	v.SetDefault("surface.pool_warn_threshold", Default.Surface.PoolWarnThreshold)
	v.SetDefault("surface.defer_opaque_region", Default.Surface.DeferOpaqueRegion)

	return v
}

// Load reads the config file, if there is one, and decodes the result.
// If path is not empty, it is used instead of searching for a file and
// must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if (path != "") || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if (cfg.Output.Width <= 0) || (cfg.Output.Height <= 0) {
		return fmt.Errorf("invalid output size %vx%v", cfg.Output.Width, cfg.Output.Height)
	}
	if cfg.Output.Refresh <= 0 {
		return fmt.Errorf("invalid refresh rate %v", cfg.Output.Refresh)
	}
	if cfg.Surface.PoolWarnThreshold < 0 {
		return fmt.Errorf("invalid pool warning threshold %v", cfg.Surface.PoolWarnThreshold)
	}
	return nil
}
