package config

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether env is staging or production. Both get
// the strict configuration checks.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
