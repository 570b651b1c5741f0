package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ftahirops/queryguard/model"
)

// SecretResolver implements collect.SecretResolver from the loaded
// configuration. The environment always wins over the config file, so
// a DSN never needs to live on disk: QUERYGUARD_DSN_<INSTANCE> (upper
// case, non-alphanumerics mapped to underscores) overrides the
// instance's yaml dsn field.
type SecretResolver struct {
	byInstance map[string]string
}

// NewSecretResolver indexes the config's per-instance connection
// strings for lookup.
func NewSecretResolver(cfg Config) *SecretResolver {
	byInstance := make(map[string]string, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		byInstance[inst.Name] = inst.DSN
	}
	return &SecretResolver{byInstance: byInstance}
}

// GetConnectionString resolves the connection string for target's
// instance, environment first, config file second.
func (r *SecretResolver) GetConnectionString(target model.Target) (string, error) {
	if dsn := os.Getenv(envKeyFor(target.InstanceName)); dsn != "" {
		return dsn, nil
	}
	if dsn := r.byInstance[target.InstanceName]; dsn != "" {
		return dsn, nil
	}
	return "", fmt.Errorf("no connection string for instance %s (set %s or the instance dsn field)",
		target.InstanceName, envKeyFor(target.InstanceName))
}

func envKeyFor(instanceName string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, instanceName)
	return "QUERYGUARD_DSN_" + mapped
}
