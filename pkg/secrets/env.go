package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is prepended to environment variable names.
const DefaultEnvPrefix = "ADJUDICATOR_SECRET_"

// EnvProvider reads secrets from environment variables. The secret
// "catalog-git-token" is read from ADJUDICATOR_SECRET_CATALOG_GIT_TOKEN.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider. An empty prefix uses
// DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{Prefix: prefix}
}

// Get returns the value of the variable for name. Empty variables count as
// unset.
func (p *EnvProvider) Get(ctx context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w: %s (env var %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
