package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harun/casegen/internal/tracing"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// FileStore keeps all sessions in memory and mirrors them to a single
// human-readable JSON snapshot file.
type FileStore struct {
	path string
	opts options

	mu       sync.RWMutex
	sessions map[string]Session
}

// OpenFileStore loads the snapshot at path, or starts empty when it does not exist
func OpenFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	fs := &FileStore{
		path:     path,
		opts:     buildOptions(opts),
		sessions: make(map[string]Session),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	fs.opts.logger.Info().
		Str("path", path).
		Int("sessions", len(fs.sessions)).
		Msg("Session snapshot loaded")
	if fs.opts.metrics != nil {
		fs.opts.metrics.SessionsStored.Set(float64(len(fs.sessions)))
	}

	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session snapshot: %w", err)
	}

	sessions, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	fs.sessions = sessions
	return nil
}

// decodeSnapshot validates data against SnapshotSchema and decodes it
func decodeSnapshot(data []byte) (map[string]Session, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformedSnapshot)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(SnapshotSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedSnapshot, strings.Join(msgs, "; "))
	}

	sessions := make(map[string]Session)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return sessions, nil
}

// Get returns the session stored under id
func (fs *FileStore) Get(_ context.Context, id string) (Session, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	s, ok := fs.sessions[id]
	return s, ok, nil
}

// Put stores s under id and rewrites the snapshot. If the rewrite fails the
// previous in-memory state is restored and the error is returned.
func (fs *FileStore) Put(ctx context.Context, id string, s Session) (err error) {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	_, span := tracing.StartSpan(ctx, "casegen.session", "session.put",
		attribute.String("session_id", id),
	)
	defer func() { tracing.EndSpan(span, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, existed := fs.sessions[id]
	fs.sessions[id] = s

	started := time.Now()
	if err := fs.persistLocked(); err != nil {
		if existed {
			fs.sessions[id] = prev
		} else {
			delete(fs.sessions, id)
		}
		return err
	}
	fs.opts.metrics.ObserveSnapshotWrite(started, len(fs.sessions))

	fs.opts.logger.Debug().
		Str("session_id", id).
		Int("sessions", len(fs.sessions)).
		Msg("Session snapshot written")

	return nil
}

// persistLocked writes the full mapping to a temp file and renames it over
// the snapshot. Caller must hold fs.mu.
func (fs *FileStore) persistLocked() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fs.sessions); err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fs.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync session snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close session snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session snapshot: %w", err)
	}

	return nil
}

// Len returns the number of stored sessions
func (fs *FileStore) Len(_ context.Context) (int, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.sessions), nil
}

// Path returns the snapshot file path
func (fs *FileStore) Path() string {
	return fs.path
}

// Close is a no-op; every Put is already durable
func (fs *FileStore) Close() error {
	return nil
}
