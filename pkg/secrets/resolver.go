package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"mercator-hq/adjudicator/pkg/config"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up in a chain of providers and remembers the
// values it found.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver trying providers in order.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		logger:    logger.With("component", "secrets"),
		cache:     make(map[string]string),
	}
}

// FromConfig builds the resolver described by cfg: the environment
// provider first, then the secrets directory when one is set.
func FromConfig(cfg config.SecretsConfig, logger *slog.Logger) (*Resolver, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewResolver(logger, providers...), nil
}

// Get returns the first value any provider has for name.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	v, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	for _, p := range r.providers {
		v, err := p.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("secret %q from %s: %w", name, p.Name(), err)
		}

		r.logger.Debug("secret resolved", "name", redactName(name), "provider", p.Name())
		r.mu.Lock()
		r.cache[name] = v
		r.mu.Unlock()
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every ${secret:NAME} in s. Unresolvable references are
// left in place and reported together.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, err := r.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return v
	})
	return out, errors.Join(errs...)
}

// ResolveConfig resolves the credential fields of cfg in place: the git
// token and SSH key passphrase, and the OTLP headers.
func (r *Resolver) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	var errs []error
	resolve := func(field string, s *string) {
		if !refPattern.MatchString(*s) {
			return
		}
		v, err := r.Resolve(ctx, *s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*s = v
	}

	auth := &cfg.Catalog.Git.Auth
	resolve("catalog.git.auth.token", &auth.Token)
	resolve("catalog.git.auth.ssh_key_passphrase", &auth.SSHKeyPassphrase)
	for k, v := range cfg.Telemetry.Tracing.OTLP.Headers {
		resolve("telemetry.tracing.otlp.headers."+k, &v)
		cfg.Telemetry.Tracing.OTLP.Headers[k] = v
	}
	return errors.Join(errs...)
}

func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
