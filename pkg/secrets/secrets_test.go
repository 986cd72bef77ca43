package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/adjudicator/pkg/config"
)

// createSecretDir writes secrets into a temp dir with the given mode.
func createSecretDir(t *testing.T, mode os.FileMode, secrets map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, value := range secrets {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(value), mode); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatalf("Chmod() error = %v", err)
		}
	}
	return dir
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("ADJUDICATOR_SECRET_CATALOG_GIT_TOKEN", "ghp_123")

	p := NewEnvProvider("")
	got, err := p.Get(context.Background(), "catalog-git-token")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "ghp_123" {
		t.Errorf("Get() = %q, want ghp_123", got)
	}

	_, err = p.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEnvProviderPrefix(t *testing.T) {
	t.Setenv("MY_OTLP_KEY", "k")

	got, err := NewEnvProvider("MY_").Get(context.Background(), "otlp.key")
	if err != nil || got != "k" {
		t.Errorf("Get() = %q, %v, want k, nil", got, err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := createSecretDir(t, 0o600, map[string]string{"token": "  s3cret\n"})
	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v, want nil", err)
	}

	got, err := p.Get(context.Background(), "token")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != "s3cret" {
		t.Errorf("Get() = %q, want trimmed s3cret", got)
	}

	if _, err := p.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
	}
}

func TestFileProviderRejects(t *testing.T) {
	dir := createSecretDir(t, 0o644, map[string]string{"open": "x"})
	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"insecure mode", "open", "insecure permissions"},
		{"traversal", "../etc/passwd", "invalid secret name"},
		{"dot dot", "..", "invalid secret name"},
		{"empty", "", "invalid secret name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Get(context.Background(), tt.secret)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Get(%q) error = %v, want %q", tt.secret, err, tt.want)
			}
			if errors.Is(err, ErrNotFound) {
				t.Errorf("Get(%q) error is ErrNotFound, want a hard failure", tt.secret)
			}
		})
	}
}

func TestNewFileProviderNotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(file); err == nil {
		t.Error("NewFileProvider(file) should return error")
	}
	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewFileProvider(missing) should return error")
	}
}

// countingProvider records lookups.
type countingProvider struct {
	values map[string]string
	calls  int
}

func (p *countingProvider) Get(ctx context.Context, name string) (string, error) {
	p.calls++
	if v, ok := p.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (p *countingProvider) Name() string { return "counting" }

func TestResolverOrderAndCache(t *testing.T) {
	first := &countingProvider{values: map[string]string{"a": "from-first"}}
	second := &countingProvider{values: map[string]string{"a": "from-second", "b": "b-value"}}
	r := NewResolver(nil, first, second)

	for i := 0; i < 3; i++ {
		got, err := r.Get(context.Background(), "a")
		if err != nil || got != "from-first" {
			t.Fatalf("Get(a) = %q, %v, want from-first", got, err)
		}
	}
	if first.calls != 1 {
		t.Errorf("first provider called %d times, want 1 (cached)", first.calls)
	}

	got, err := r.Get(context.Background(), "b")
	if err != nil || got != "b-value" {
		t.Errorf("Get(b) = %q, %v, want fallback to second provider", got, err)
	}

	if _, err := r.Get(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(c) error = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(nil, &countingProvider{values: map[string]string{"user": "alice", "pass": "pw"}})

	got, err := r.Resolve(context.Background(), "https://${secret:user}:${secret:pass}@example.org")
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if got != "https://alice:pw@example.org" {
		t.Errorf("Resolve() = %q", got)
	}

	got, err = r.Resolve(context.Background(), "x ${secret:nope} y")
	if err == nil {
		t.Error("Resolve() with unknown secret should return error")
	}
	if got != "x ${secret:nope} y" {
		t.Errorf("Resolve() = %q, want reference kept", got)
	}

	if got, err := r.Resolve(context.Background(), "plain"); err != nil || got != "plain" {
		t.Errorf("Resolve(plain) = %q, %v", got, err)
	}
}

func TestResolveConfig(t *testing.T) {
	t.Setenv("ADJUDICATOR_SECRET_GIT_TOKEN", "tok")
	t.Setenv("ADJUDICATOR_SECRET_COLLECTOR_KEY", "key")

	cfg := config.Default()
	cfg.Catalog.Git.Auth.Token = "${secret:git-token}"
	cfg.Catalog.Git.Auth.SSHKeyPassphrase = "literal"
	cfg.Telemetry.Tracing.OTLP.Headers = map[string]string{"x-api-key": "${secret:collector-key}"}

	r, err := FromConfig(cfg.Secrets, nil)
	if err != nil {
		t.Fatalf("FromConfig() error = %v, want nil", err)
	}
	if err := r.ResolveConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ResolveConfig() error = %v, want nil", err)
	}

	if cfg.Catalog.Git.Auth.Token != "tok" {
		t.Errorf("Token = %q, want tok", cfg.Catalog.Git.Auth.Token)
	}
	if cfg.Catalog.Git.Auth.SSHKeyPassphrase != "literal" {
		t.Errorf("SSHKeyPassphrase = %q, want unchanged", cfg.Catalog.Git.Auth.SSHKeyPassphrase)
	}
	if cfg.Telemetry.Tracing.OTLP.Headers["x-api-key"] != "key" {
		t.Errorf("Headers = %v", cfg.Telemetry.Tracing.OTLP.Headers)
	}
}

func TestResolveConfigMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Git.Auth.Token = "${secret:definitely-unset-secret}"

	r := NewResolver(nil, NewEnvProvider(""))
	err := r.ResolveConfig(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "catalog.git.auth.token") {
		t.Errorf("ResolveConfig() error = %v, want field name", err)
	}
}

func TestFromConfigWithDir(t *testing.T) {
	dir := createSecretDir(t, 0o400, map[string]string{"git-token": "file-tok"})

	r, err := FromConfig(config.SecretsConfig{Dir: dir}, nil)
	if err != nil {
		t.Fatalf("FromConfig() error = %v, want nil", err)
	}
	got, err := r.Get(context.Background(), "git-token")
	if err != nil || got != "file-tok" {
		t.Errorf("Get() = %q, %v, want file-tok", got, err)
	}

	if _, err := FromConfig(config.SecretsConfig{Dir: filepath.Join(dir, "missing")}, nil); err == nil {
		t.Error("FromConfig() with missing dir should return error")
	}
}
