package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/jcdickinson/refdoc/internal/autodoc"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Override replaces the display of an opaque type name. Overrides are a
// list rather than a table because viper lowercases table keys.
type Override struct {
	Name string `mapstructure:"name"`
	Text string `mapstructure:"text"`
}

type AutodocConfig struct {
	Dir        string     `mapstructure:"dir"`
	LinkPrefix string     `mapstructure:"link_prefix"`
	Overrides  []Override `mapstructure:"overrides"`
}

type BuildConfig struct {
	OutputDir     string `mapstructure:"output_dir"`
	Workers       int    `mapstructure:"workers"`
	FrontMatter   bool   `mapstructure:"front_matter"`
	IncludeHidden bool   `mapstructure:"include_hidden"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type Config struct {
	Autodoc AutodocConfig `mapstructure:"autodoc"`
	Build   BuildConfig   `mapstructure:"build"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
}

// RendererOptions returns the autodoc options described by the config.
func (c *Config) RendererOptions() autodoc.Options {
	opts := autodoc.Options{LinkPrefix: c.Autodoc.LinkPrefix}
	if len(c.Autodoc.Overrides) > 0 {
		opts.Overrides = make(map[string]string, len(c.Autodoc.Overrides))
		for _, o := range c.Autodoc.Overrides {
			opts.Overrides[o.Name] = o.Text
		}
	}
	return opts
}

// cacheBase returns the base cache directory for refdoc.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/refdoc as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "refdoc")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "refdoc")
	}
	return filepath.Join(os.TempDir(), "refdoc")
}

// DBPath returns the path to the DuckDB catalog.
func DBPath() string {
	return filepath.Join(cacheBase(), "catalog.db")
}

// CASDir returns the path to the rendered page store.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "refdoc", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "refdoc", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "refdoc"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "refdoc"))
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("REFDOC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("autodoc.dir", "autodoc")
	v.SetDefault("autodoc.link_prefix", autodoc.DefaultLinkPrefix)
	var overrides []map[string]interface{}
	for name, text := range autodoc.DefaultOverrides {
		overrides = append(overrides, map[string]interface{}{"name": name, "text": text})
	}
	v.SetDefault("autodoc.overrides", overrides)
	v.SetDefault("build.output_dir", "reference")
	v.SetDefault("build.workers", runtime.NumCPU())
	v.SetDefault("build.front_matter", true)
	v.SetDefault("build.include_hidden", false)
	v.SetDefault("daemon.expiration_seconds", 600)
}

// stringToOverridesHookFunc accepts overrides written as
// "Name=Text;Other=Text", the only shape an environment variable can carry.
func stringToOverridesHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf([]Override{}) || f.Kind() != reflect.String {
			return data, nil
		}
		return ParseOverrides(data.(string))
	}
}

// ParseOverrides parses "Name=Text;Other=Text".
func ParseOverrides(s string) ([]Override, error) {
	var out []Override
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, text, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid override %q: want Name=Text", pair)
		}
		out = append(out, Override{Name: strings.TrimSpace(name), Text: strings.TrimSpace(text)})
	}
	return out, nil
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.GetViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToOverridesHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveDir(&config.Autodoc.Dir); err != nil {
		return nil, fmt.Errorf("failed to resolve autodoc dir: %w", err)
	}
	if config.Build.Workers <= 0 {
		config.Build.Workers = 1
	}
	return &config, nil
}

// resolveDir expands a leading ~/ in a configured path.
func resolveDir(dir *string) error {
	if !strings.HasPrefix(*dir, "~/") {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	*dir = filepath.Join(home, (*dir)[2:])
	return nil
}
