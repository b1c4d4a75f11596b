package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	applogger "QuantGate/pkg/logger"
)

// FileEvidenceStore is an append-only, content-addressed artifact store
// on the local filesystem. Artifacts live under objects/<digest> and are
// never rewritten; refs/<key> is an append-only log of digests, one per
// commit. Writers to the same key are serialized by a per-key lock.
type FileEvidenceStore struct {
	root string
	l    *applogger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileEvidenceStore(root string) (*FileEvidenceStore, error) {
	for _, d := range []string{filepath.Join(root, "objects"), filepath.Join(root, "refs")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init evidence store: %w", err)
		}
	}
	return &FileEvidenceStore{root: root, locks: map[string]*sync.Mutex{}}, nil
}

// SetLogger injects a structured logger.
func (s *FileEvidenceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FileEvidenceStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[key] = m
	return m
}

// refPath maps a key like "run-1/fold-3" onto refs/. Path separators in
// the key become subdirectories.
func (s *FileEvidenceStore) refPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid evidence key %q", key)
	}
	return filepath.Join(s.root, "refs", filepath.FromSlash(key)), nil
}

// Append commits one artifact under the key and returns its digest. The
// artifact is serialized to canonical JSON before hashing, so identical
// content always lands on the same object.
func (s *FileEvidenceStore) Append(ctx context.Context, key string, artifact any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := s.refPath(key)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	objPath := filepath.Join(s.root, "objects", digest)
	if _, err := os.Stat(objPath); os.IsNotExist(err) {
		tmp := objPath + ".tmp"
		if err := os.WriteFile(tmp, raw, 0o644); err != nil {
			return "", fmt.Errorf("write object: %w", err)
		}
		if err := os.Rename(tmp, objPath); err != nil {
			return "", fmt.Errorf("commit object: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(ref), 0o755); err != nil {
		return "", fmt.Errorf("ref dir: %w", err)
	}
	f, err := os.OpenFile(ref, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open ref log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(digest + "\n"); err != nil {
		return "", fmt.Errorf("append ref: %w", err)
	}

	if s.l != nil {
		s.l.Debug("evidence appended",
			applogger.String("key", key),
			applogger.String("digest", digest),
			applogger.Int("bytes", len(raw)),
		)
	}
	return digest, nil
}

// Get loads the artifact for a digest into dest.
func (s *FileEvidenceStore) Get(ctx context.Context, digest string, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(digest) != 64 || strings.ContainsAny(digest, "/.") {
		return fmt.Errorf("invalid digest %q", digest)
	}
	raw, err := os.ReadFile(filepath.Join(s.root, "objects", digest))
	if err != nil {
		return fmt.Errorf("read object %s: %w", digest, err)
	}

	// tamper check: the object must still hash to its address
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != digest {
		return fmt.Errorf("object %s failed digest verification", digest)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode object %s: %w", digest, err)
	}
	return nil
}

// History returns every digest ever committed under the key, oldest
// first.
func (s *FileEvidenceStore) History(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := s.refPath(key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(ref)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ref log: %w", err)
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
