package config

import "time"

type HTTP struct {
	Port    uint32 `env:"HTTP_PORT" envDefault:"8000"`
	Swagger bool   `env:"HTTP_SWAGGER" envDefault:"true"`

	// MaxUploadBytes caps image uploads and CSV imports.
	MaxUploadBytes int64 `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"16777216"`

	UploadRateLimit  int           `env:"HTTP_UPLOAD_RATE_LIMIT" envDefault:"30"`
	UploadRateWindow time.Duration `env:"HTTP_UPLOAD_RATE_WINDOW" envDefault:"1m"`

	AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	DevMode        bool     `env:"HTTP_DEV_MODE" envDefault:"false"`
}
