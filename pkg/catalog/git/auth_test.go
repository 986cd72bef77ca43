package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"mercator-hq/adjudicator/pkg/config"
)

func TestNewAuthProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.GitAuthConfig
		wantType string
		wantErr  bool
	}{
		{name: "nil", cfg: nil, wantErr: true},
		{name: "none", cfg: &config.GitAuthConfig{Type: "none"}, wantType: AuthNone},
		{name: "empty type", cfg: &config.GitAuthConfig{}, wantType: AuthNone},
		{name: "token", cfg: &config.GitAuthConfig{Type: "token", Token: "abc"}, wantType: AuthToken},
		{name: "token missing", cfg: &config.GitAuthConfig{Type: "token"}, wantErr: true},
		{name: "unresolved secret", cfg: &config.GitAuthConfig{Type: "token", Token: "${secret:GIT_TOKEN}"}, wantErr: true},
		{name: "ssh", cfg: &config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/tmp/key"}, wantType: AuthSSH},
		{name: "ssh missing path", cfg: &config.GitAuthConfig{Type: "ssh"}, wantErr: true},
		{name: "unknown", cfg: &config.GitAuthConfig{Type: "kerberos"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAuthProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAuthProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Type() != tt.wantType {
				t.Errorf("Type() = %v, want %v", p.Type(), tt.wantType)
			}
		})
	}
}

func TestTokenAuth(t *testing.T) {
	p, err := NewAuthProvider(&config.GitAuthConfig{Type: AuthToken, Token: "ghp_validtoken123"})
	if err != nil {
		t.Fatalf("NewAuthProvider() error = %v, want nil", err)
	}
	method, err := p.Auth()
	if err != nil {
		t.Fatalf("Auth() error = %v, want nil", err)
	}
	basic, ok := method.(*http.BasicAuth)
	if !ok {
		t.Fatalf("Auth() = %T, want *http.BasicAuth", method)
	}
	if basic.Password != "ghp_validtoken123" {
		t.Error("token not used as password")
	}
}

func TestSSHAuth_Permissions(t *testing.T) {
	dir := t.TempDir()
	openKey := filepath.Join(dir, "open_key")
	if err := os.WriteFile(openKey, []byte("not a key"), 0644); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	closedKey := filepath.Join(dir, "closed_key")
	if err := os.WriteFile(closedKey, []byte("not a key"), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	for _, tc := range []struct {
		name string
		path string
	}{
		{"group readable", openKey},
		{"missing", filepath.Join(dir, "missing")},
		{"unparseable", closedKey},
	} {
		p, err := NewAuthProvider(&config.GitAuthConfig{Type: AuthSSH, SSHKeyPath: tc.path})
		if err != nil {
			t.Fatalf("%s: NewAuthProvider() error = %v, want nil", tc.name, err)
		}
		if _, err := p.Auth(); err == nil {
			t.Errorf("%s: Auth() should error", tc.name)
		}
	}
}

func TestNoAuth(t *testing.T) {
	p, err := NewAuthProvider(&config.GitAuthConfig{})
	if err != nil {
		t.Fatalf("NewAuthProvider() error = %v, want nil", err)
	}
	auth, err := p.Auth()
	if err != nil {
		t.Fatalf("Auth() error = %v, want nil", err)
	}
	if auth != nil {
		t.Errorf("Auth() = %v, want nil", auth)
	}
}
