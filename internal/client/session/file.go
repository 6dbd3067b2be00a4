package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// Persisted is what survives between CLI invocations.
type Persisted struct {
	Token string         `yaml:"token"`
	User  *PersistedUser `yaml:"user,omitempty"`
}

type PersistedUser struct {
	ID        string    `yaml:"id"`
	Email     string    `yaml:"email"`
	Name      string    `yaml:"name"`
	Role      string    `yaml:"role"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func persistUser(u *domain.User) *PersistedUser {
	if u == nil {
		return nil
	}
	return &PersistedUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (p *PersistedUser) user() *domain.User {
	if p == nil {
		return nil
	}
	return &domain.User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      domain.Role(p.Role),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// Persister stores the session between runs.
type Persister interface {
	// Load returns an empty Persisted when nothing is stored.
	Load() (Persisted, error)
	Save(Persisted) error
	Clear() error
}

// FilePath returns the session file location. CRM_SESSION_FILE wins, then
// $XDG_CONFIG_HOME/crm/session.yaml, then ~/.config/crm/session.yaml.
func FilePath() string {
	if p := os.Getenv("CRM_SESSION_FILE"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "crm-session.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "crm", "session.yaml")
}

// File persists the session as YAML. The file holds a bearer token, so it
// is written owner-only.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load() (Persisted, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Persisted{}, nil
		}
		return Persisted{}, fmt.Errorf("reading session file %s: %w", f.path, err)
	}

	var p Persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("parsing session file %s: %w", f.path, err)
	}
	return p, nil
}

func (f *File) Save(p Persisted) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}

	// CreateTemp opens the file 0600, and the rename replaces any existing
	// file along with its mode.
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file %s: %w", f.path, err)
	}
	return nil
}
