package git

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/adjudicator/pkg/config"
)

// Auth types accepted in catalog.git.auth.type.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// AuthProvider supplies Git transport credentials.
type AuthProvider interface {
	// Auth returns the transport authentication method, or nil for anonymous access.
	Auth() (transport.AuthMethod, error)

	// Type is one of AuthNone, AuthToken or AuthSSH.
	Type() string
}

// credentials is the AuthProvider built from catalog.git.auth.
type credentials struct {
	kind       string
	token      string
	keyPath    string
	passphrase string
}

// NewAuthProvider checks cfg and returns the provider it describes. Secret
// references must already be resolved; a token still holding one is
// rejected rather than sent to the remote.
func NewAuthProvider(cfg *config.GitAuthConfig) (AuthProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config cannot be nil")
	}

	c := &credentials{kind: cfg.Type}
	switch cfg.Type {
	case AuthNone, "":
		c.kind = AuthNone
	case AuthToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		if strings.Contains(cfg.Token, "${secret:") {
			return nil, fmt.Errorf("token auth has an unresolved secret reference")
		}
		c.token = cfg.Token
	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		c.keyPath, c.passphrase = cfg.SSHKeyPath, cfg.SSHKeyPassphrase
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
	return c, nil
}

func (c *credentials) Type() string { return c.kind }

// Auth builds the transport method. Token auth is HTTP basic auth with the
// token as password. SSH keys are read on every call so a rotated key is
// picked up by the next pull, and must not be readable by group or others.
func (c *credentials) Auth() (transport.AuthMethod, error) {
	switch c.kind {
	case AuthToken:
		return &http.BasicAuth{Username: "git", Password: c.token}, nil
	case AuthSSH:
		info, err := os.Stat(c.keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", c.keyPath, c.passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil
	default:
		return nil, nil
	}
}
