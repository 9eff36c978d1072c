package keystore

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/util"
)

// ReloadMode controls when the key file is re-read.
type ReloadMode string

const (
	// ReloadWatch reloads when the file changes on disk.
	ReloadWatch ReloadMode = "watch"
	// ReloadPerRequest reloads before every authorization.
	ReloadPerRequest ReloadMode = "per_request"
	// ReloadManual reloads only when Reload is called.
	ReloadManual ReloadMode = "manual"
)

// generatedKeyBytes is the entropy of a first-run key.
const generatedKeyBytes = 32

// Config configures the key store.
type Config struct {
	File   string     `yaml:"file" mapstructure:"file" validate:"required"`
	Header string     `yaml:"header" mapstructure:"header" validate:"required"`
	Reload ReloadMode `yaml:"reload" mapstructure:"reload" validate:"omitempty,oneof=watch per_request manual"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.File == "" {
		c.File = "keys.txt"
	}
	if c.Header == "" {
		c.Header = "X-API-Key"
	}
	if c.Reload == "" {
		c.Reload = ReloadWatch
	}
}

type keySet map[string]struct{}

// Store is a hot-reloadable set of API keys.
type Store struct {
	path string
	mode ReloadMode
	log  *logger.Logger

	keys     atomic.Pointer[keySet]
	reloadMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithReloadMode sets the reload cadence.
func WithReloadMode(mode ReloadMode) Option {
	return func(s *Store) { s.mode = mode }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a store for the key file at path. No keys are loaded until
// Reload is called.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, mode: ReloadManual}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Get("keystore")
	}
	return s
}

// Path returns the key file path.
func (s *Store) Path() string { return s.path }

// Mode returns the reload cadence.
func (s *Store) Mode() ReloadMode { return s.mode }

// Load reads the key file without installing it. A missing file is created
// with one freshly generated key. A file with no non-blank lines yields
// EmptyKeyStore.
func (s *Store) Load() (map[string]struct{}, error) {
	data, err := os.ReadFile(s.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		key, genErr := s.generate()
		if genErr != nil {
			return nil, genErr
		}
		return map[string]struct{}{key: {}}, nil
	}
	if err != nil {
		return nil, errors.InternalIO("read key file", err)
	}

	keys := parseKeys(data)
	if len(keys) == 0 {
		return nil, errors.EmptyKeyStore(s.path)
	}
	return keys, nil
}

// Reload loads the key file and swaps it in. On failure the previous set
// stays active. It returns the number of keys now active.
func (s *Store) Reload() (int, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	keys, err := s.Load()
	if err != nil {
		return s.Count(), err
	}
	set := keySet(keys)
	s.keys.Store(&set)
	s.log.Debug("key set reloaded", logger.Fields("count", len(set)))
	return len(set), nil
}

// Verify reports whether candidate is exactly a member of the active set.
// Padding is not stripped.
func (s *Store) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	p := s.keys.Load()
	if p == nil {
		return false
	}
	for k := range *p {
		if len(k) == len(candidate) && subtle.ConstantTimeCompare([]byte(k), []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}

// Authorize checks candidate and returns Unauthenticated when it is blank
// or Forbidden when it is unknown. In per-request mode the key file is
// reloaded first; a failed reload keeps the previous set.
func (s *Store) Authorize(candidate string) error {
	if strings.TrimSpace(candidate) == "" {
		return errors.Unauthenticated("")
	}
	if s.mode == ReloadPerRequest {
		if _, err := s.Reload(); err != nil {
			s.log.Warn("key reload failed, keeping previous keys", logger.ErrorFields("reload", err))
		}
	}
	if !s.Verify(candidate) {
		s.log.Debug("rejected api key", logger.Fields("key", util.MaskSecret(candidate, 4)))
		return errors.Forbidden("")
	}
	return nil
}

// Count returns the number of active keys.
func (s *Store) Count() int {
	p := s.keys.Load()
	if p == nil {
		return 0
	}
	return len(*p)
}

// NewKey returns a fresh hex-encoded random key.
func NewKey() (string, error) {
	buf := make([]byte, generatedKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Internal(fmt.Errorf("generate api key: %w", err))
	}
	return hex.EncodeToString(buf), nil
}

// Append adds key to the key file, creating it if needed. The active set
// is unchanged until the next reload.
func (s *Store) Append(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "\r\n") {
		return errors.InvalidParameter("key", "key must be a single non-blank line")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.InternalIO("create key directory", err)
		}
	}

	existing, err := os.ReadFile(s.path)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.InternalIO("read key file", err)
	}
	line := key + "\n"
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		line = "\n" + line
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return errors.InternalIO("open key file", err)
	}
	_, werr := f.WriteString(line)
	if err := stderrors.Join(werr, f.Close()); err != nil {
		return errors.InternalIO("write key file", err)
	}
	return nil
}

func (s *Store) generate() (string, error) {
	key, err := NewKey()
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", errors.InternalIO("create key directory", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(key+"\n"), 0o600); err != nil {
		return "", errors.InternalIO("write key file", err)
	}
	s.log.Warn("key file not found, generated a new API key", logger.Fields(
		logger.FieldPath, s.path,
		"key", util.MaskSecret(key, 4),
	))
	return key, nil
}

func parseKeys(data []byte) map[string]struct{} {
	keys := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}
