package config

type Web struct {
	// Version overrides the asset hash used for cache busting.
	Version string `env:"APP_VERSION"`
}
