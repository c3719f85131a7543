package config

import (
	"fmt"
	"strings"
)

type ImageStore struct {
	Backend ImageStoreBackend `env:"IMAGE_STORE_BACKEND" envDefault:"local"`
	Bucket  string            `env:"IMAGE_STORE_BUCKET" envDefault:"Controle de Estoque"`

	// PlaceholderPrefixes are external URLs that are never deleted from the store.
	PlaceholderPrefixes []string `env:"IMAGE_STORE_PLACEHOLDER_PREFIXES" envSeparator:"," envDefault:"https://source.unsplash.com,http://source.unsplash.com"`

	LocalDir string `env:"IMAGE_STORE_LOCAL_DIR" envDefault:"static/uploads"`

	S3Endpoint   string `env:"IMAGE_STORE_S3_ENDPOINT"`
	S3AccessKey  string `env:"IMAGE_STORE_S3_ACCESS_KEY"`
	S3SecretKey  string `env:"IMAGE_STORE_S3_SECRET_KEY"`
	S3Region     string `env:"IMAGE_STORE_S3_REGION" envDefault:"us-west-2"`
	S3PublicBase string `env:"IMAGE_STORE_S3_PUBLIC_BASE"`

	RESTURL string `env:"IMAGE_STORE_REST_URL"`
	RESTKey string `env:"IMAGE_STORE_REST_KEY"`
}

// ImageStoreBackend selects the image store implementation.
type ImageStoreBackend uint8

const (
	ImageStoreLocal ImageStoreBackend = iota
	ImageStoreS3
	ImageStoreREST
)

// String returns the string representation of the backend.
func (b ImageStoreBackend) String() string {
	switch b {
	case ImageStoreS3:
		return "s3"
	case ImageStoreREST:
		return "rest"
	default:
		return "local"
	}
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (b *ImageStoreBackend) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "local", "":
		*b = ImageStoreLocal
	case "s3":
		*b = ImageStoreS3
	case "rest":
		*b = ImageStoreREST
	default:
		return fmt.Errorf("unknown image store backend: %s", text)
	}
	return nil
}

func (b ImageStoreBackend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
