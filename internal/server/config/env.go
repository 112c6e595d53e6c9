package config

import "github.com/kelseyhightower/envconfig"

// EnvPrefix namespaces the environment variables read by parseEnv. Each
// variable is also accepted without the prefix, e.g. JWT_SECRET_KEY.
const EnvPrefix = "KEYAUTH"

// parseEnv overlays fields whose environment variable is set. Unset variables
// leave the current value alone. Malformed values panic, like the other
// loaders.
func parseEnv(config *Config) {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		panic(err)
	}
}
