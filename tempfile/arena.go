// Package tempfile allocates per-request temporary audio paths and
// guarantees their removal.
package tempfile

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/asrgate/logger"
)

const namePrefix = "asrgate-"

// Handle is a temporary path owned by an Arena.
type Handle struct {
	Path string
	// Converted marks output produced by audio conversion rather than the
	// original upload.
	Converted bool

	released bool
}

// Arena tracks the handles allocated for one request. It only ever deletes
// paths it allocated itself.
type Arena struct {
	dir string
	log *logger.Logger

	mu       sync.Mutex
	handles  []*Handle
	released int
}

// NewArena creates an arena rooted at dir. An empty dir uses os.TempDir.
func NewArena(dir string, log *logger.Logger) *Arena {
	if dir == "" {
		dir = os.TempDir()
	}
	if log == nil {
		log = logger.Get("tempfile")
	}
	return &Arena{dir: dir, log: log}
}

// Acquire reserves a unique path ending in suffix. The file is not created.
func (a *Arena) Acquire(suffix string) (*Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := namePrefix + uuid.NewString() + SafeSuffix(suffix)
	h := &Handle{Path: filepath.Join(a.dir, name)}
	if _, err := os.Lstat(h.Path); err == nil {
		return nil, fmt.Errorf("tempfile: path collision %s", h.Path)
	}
	a.handles = append(a.handles, h)
	return h, nil
}

// Release deletes h's file. Handles from other arenas and handles already
// released are ignored. Missing files are not an error; other failures are
// logged and swallowed.
func (a *Arena) Release(h *Handle) {
	if h == nil {
		return
	}
	a.mu.Lock()
	owned := a.owns(h)
	if !owned || h.released {
		a.mu.Unlock()
		return
	}
	h.released = true
	a.released++
	a.mu.Unlock()

	if err := os.Remove(h.Path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		a.log.Warn("failed to remove temp file", logger.MergeWithError(logger.Fields(logger.FieldPath, h.Path), err))
	}
}

// ReleaseAll releases every outstanding handle. Safe to call repeatedly.
func (a *Arena) ReleaseAll() {
	a.mu.Lock()
	pending := make([]*Handle, 0, len(a.handles))
	for _, h := range a.handles {
		if !h.released {
			pending = append(pending, h)
		}
	}
	a.mu.Unlock()

	for _, h := range pending {
		a.Release(h)
	}
}

// Outstanding returns the number of handles not yet released.
func (a *Arena) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles) - a.released
}

// Released returns the number of handles released so far.
func (a *Arena) Released() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Handles returns a snapshot of every handle allocated.
func (a *Arena) Handles() []*Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Handle, len(a.handles))
	copy(out, a.handles)
	return out
}

func (a *Arena) owns(h *Handle) bool {
	for _, o := range a.handles {
		if o == h {
			return true
		}
	}
	return false
}

// Scope runs fn with a fresh arena and releases every handle afterwards,
// including when fn panics. The panic is re-raised after cleanup.
func Scope(dir string, log *logger.Logger, fn func(*Arena) error) error {
	a := NewArena(dir, log)
	defer a.ReleaseAll()
	return fn(a)
}

// SafeSuffix reduces an upload filename or extension to a short lowercase
// extension such as ".mp3". Anything unusable becomes "".
func SafeSuffix(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" && strings.HasPrefix(name, ".") {
		ext = strings.ToLower(name)
	}
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
