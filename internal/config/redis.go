package config

import "time"

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	SummaryTTL time.Duration `env:"REDIS_SUMMARY_TTL" envDefault:"5m"`
}

// Enabled reports whether a Redis server was configured.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}
