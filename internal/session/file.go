package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/example/vaxsched/internal/account"
	"github.com/example/vaxsched/internal/logger"
)

const cookieName = "vaxsched_session"

// payload is what gets sealed into the session file.
type payload struct {
	ID       string
	Role     string
	Username string
	IssuedAt int64
}

// FileStore persists the session between CLI invocations in a file sealed
// with securecookie. A file that fails to decode reads as logged out.
type FileStore struct {
	path string
	sc   *securecookie.SecureCookie
}

func NewFileStore(path string, hashKey, blockKey []byte, maxAge time.Duration) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session: file path required")
	}
	if len(hashKey) == 0 {
		return nil, errors.New("session: SESSION_HASH_KEY is required for file sessions (see `vaxsched keys`)")
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("session: SESSION_BLOCK_KEY must decode to 16, 24 or 32 bytes (got %d)", len(blockKey))
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	return &FileStore{path: path, sc: sc}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Current() (Session, bool) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.LogWarn("session: read %s: %v", f.path, err)
		}
		return Session{}, false
	}
	var p payload
	if err := f.sc.Decode(cookieName, strings.TrimSpace(string(b)), &p); err != nil {
		logger.LogDebug("session: discard %s: %v", f.path, err)
		return Session{}, false
	}
	role, err := account.ParseRole(p.Role)
	if err != nil {
		return Session{}, false
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Session{}, false
	}
	ident := account.IdentityOf(role, p.Username)
	if !ident.Authenticated() {
		return Session{}, false
	}
	return Session{ID: id, Identity: ident, IssuedAt: time.Unix(p.IssuedAt, 0).UTC()}, true
}

func (f *FileStore) Login(ident account.Identity) (Session, error) {
	if !ident.Authenticated() {
		return Session{}, errors.New("session: anonymous identity")
	}
	if _, ok := f.Current(); ok {
		return Session{}, ErrAlreadyLoggedIn
	}
	s := newSession(ident)
	encoded, err := f.sc.Encode(cookieName, payload{
		ID:       s.ID.String(),
		Role:     ident.Role().String(),
		Username: ident.Username(),
		IssuedAt: s.IssuedAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: encode: %w", err)
	}
	if err := writeFileAtomic(f.path, []byte(encoded+"\n")); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (f *FileStore) Logout() error {
	if _, ok := f.Current(); !ok {
		// drop whatever undecodable leftovers are there
		_ = os.Remove(f.path)
		return ErrNotLoggedIn
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
