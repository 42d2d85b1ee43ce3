package config

import (
	"time"
)

const devJWTSecret = "your-secret-key-change-this-in-production"

// JWTConfig holds access-token signing settings.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
	Issuer     string        `yaml:"issuer"`
}

// SecretBytes returns the HMAC key.
func (c JWTConfig) SecretBytes() []byte {
	return []byte(c.Secret)
}

func defaultJWT() JWTConfig {
	return JWTConfig{
		Secret:     devJWTSecret,
		Expiration: 24 * time.Hour,
		Issuer:     "consultancy-cms",
	}
}
