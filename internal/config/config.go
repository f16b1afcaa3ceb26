package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Classroom/internal/adapters/rtc"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Storage    StorageConfig    `mapstructure:"storage"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Preload    PreloadConfig    `mapstructure:"preload"`
	Room       RoomConfig       `mapstructure:"room"`
	RTC        RTCConfig        `mapstructure:"rtc"`
	Identity   IdentityConfig   `mapstructure:"identity"`
}

type StorageConfig struct {
	SlidesDir     string        `mapstructure:"slides_dir"`
	UploadsDir    string        `mapstructure:"uploads_dir"`
	ResourcesDir  string        `mapstructure:"resources_dir"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

type ConversionConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	MaxWidth      int           `mapstructure:"max_width"`
	MaxHeight     int           `mapstructure:"max_height"`
	Quality       int           `mapstructure:"quality"`
	OfficeTimeout time.Duration `mapstructure:"office_timeout"`
	OfficeBin     string        `mapstructure:"office_bin"`
	RendererBin   string        `mapstructure:"renderer_bin"`
	RenderDPI     int           `mapstructure:"render_dpi"`
}

type PreloadConfig struct {
	Window    int           `mapstructure:"window"`
	Delay     time.Duration `mapstructure:"delay"`
	WarmFirst bool          `mapstructure:"warm_first"`
}

type RoomConfig struct {
	Default          string        `mapstructure:"default"`
	ChatMaxLen       int           `mapstructure:"chat_max_len"`
	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`
	AuthorityPolicy  string        `mapstructure:"authority_policy"`
	SendBuffer       int           `mapstructure:"send_buffer"`
}

type RTCConfig struct {
	ICEServers []rtc.ICEServer `mapstructure:"ice_servers"`
}

type User struct {
	Username string `mapstructure:"username"`
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"`
}

type IdentityConfig struct {
	AllowGuests bool   `mapstructure:"allow_guests"`
	Users       []User `mapstructure:"users"`
}

// Identities converts configured users for the identity directory.
func (c IdentityConfig) Identities() []domain.Identity {
	out := make([]domain.Identity, 0, len(c.Users))
	for _, u := range c.Users {
		out = append(out, domain.Identity{Username: u.Username, DisplayName: u.Name, Role: domain.Role(u.Role)})
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("storage.slides_dir", "./data/slides")
	v.SetDefault("storage.uploads_dir", "./data/uploads")
	v.SetDefault("storage.resources_dir", "./data/resources")
	v.SetDefault("storage.max_upload_size", 50<<20)
	v.SetDefault("storage.sweep_interval", "1h")
	v.SetDefault("storage.max_age", "24h")

	v.SetDefault("conversion.batch_size", 3)
	v.SetDefault("conversion.max_width", 1024)
	v.SetDefault("conversion.max_height", 768)
	v.SetDefault("conversion.quality", 75)
	v.SetDefault("conversion.office_timeout", "30s")
	v.SetDefault("conversion.office_bin", "soffice")
	v.SetDefault("conversion.renderer_bin", "pdftoppm")
	v.SetDefault("conversion.render_dpi", 110)

	v.SetDefault("preload.window", 3)
	v.SetDefault("preload.delay", "100ms")
	v.SetDefault("preload.warm_first", true)

	v.SetDefault("room.default", "main")
	v.SetDefault("room.chat_max_len", 500)
	v.SetDefault("room.chat_rate_limit", 5)
	v.SetDefault("room.chat_rate_interval", "10s")
	v.SetDefault("room.authority_policy", "shared")
	v.SetDefault("room.send_buffer", 64)

	v.SetDefault("identity.allow_guests", true)
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing file is not an error; defaults and CLASSROOM_* env apply.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("CLASSROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Conversion.BatchSize <= 0 {
		errs = append(errs, errors.New("conversion.batch_size must be positive"))
	}
	if c.Conversion.Quality <= 0 || c.Conversion.Quality > 100 {
		errs = append(errs, fmt.Errorf("conversion.quality %d out of range (1-100)", c.Conversion.Quality))
	}
	if c.Preload.Window <= 0 {
		errs = append(errs, errors.New("preload.window must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// ApplyLogLevel sets the global zerolog level; unknown levels are ignored.
func ApplyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("module", "config").Str("level", level).Msg("ignoring unknown log level")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// Watch loads the config and re-applies log_level whenever the file
// changes. Other keys need a restart.
func Watch(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("log_level")
		log.Info().Str("module", "config").Str("file", e.Name).Str("log_level", level).Msg("config changed")
		ApplyLogLevel(level)
	})
	if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
		v.WatchConfig()
	}
	return cfg, nil
}
