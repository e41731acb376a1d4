package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	MediaDir     string `mapstructure:"MEDIA_DIR"`
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL"`

	DedupRadiusM       float64       `mapstructure:"DEDUP_RADIUS_M"`
	DedupMaxCandidates int           `mapstructure:"DEDUP_MAX_CANDIDATES"`
	DedupCellLock      bool          `mapstructure:"DEDUP_CELL_LOCK"`
	ClassifierURL      string        `mapstructure:"CLASSIFIER_URL"`
	ClassifierAPIKey   string        `mapstructure:"CLASSIFIER_API_KEY"`
	ClassifierModel    string        `mapstructure:"CLASSIFIER_MODEL"`
	ClassifierTimeout  time.Duration `mapstructure:"CLASSIFIER_TIMEOUT"`

	DeptClassifyURL string `mapstructure:"DEPT_CLASSIFY_URL"`
	GeocodeBaseURL  string `mapstructure:"GEOCODE_BASE_URL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("MEDIA_BASE_URL", "/media")
	v.SetDefault("DEDUP_RADIUS_M", 100)
	v.SetDefault("DEDUP_MAX_CANDIDATES", 25)
	v.SetDefault("DEDUP_CELL_LOCK", false)
	v.SetDefault("CLASSIFIER_MODEL", "gemini-2.5-flash")
	v.SetDefault("CLASSIFIER_TIMEOUT", "5s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
