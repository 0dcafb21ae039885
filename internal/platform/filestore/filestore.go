// Package filestore stores generated documents (receipt PDFs, member card
// PNGs) by flat, sanitized name and serves them back over HTTP.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// MaxFileSize bounds a single stored document (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// Store saves and reads documents addressed by basename only.
type Store interface {
	// Save writes data under name and returns the URL clients fetch it from.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// SanitizeName rejects empty names, path separators, ".." and control
// characters. Names are never rewritten, only accepted or refused.
func SanitizeName(name string) (string, error) {
	if name == "" || name == "." || len(name) > 255 {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidName
		}
	}
	return name, nil
}

// OrgName prefixes name with the owning organization so downloads can be
// checked against the caller's tenant.
func OrgName(orgID uuid.UUID, name string) string {
	return orgID.String() + "_" + name
}

// OwnedBy reports whether name was produced by OrgName for orgID.
func OwnedBy(name string, orgID uuid.UUID) bool {
	return strings.HasPrefix(name, orgID.String()+"_")
}

// ContentType infers a MIME type from the extension of a stored name.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func fileURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + name
}

// LocalStore writes files into a single directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create file store dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	if len(data) > MaxFileSize {
		return "", ErrFileTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// write to a temp file first so readers never observe a partial document
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return fileURL(s.baseURL, name), nil
}

func (s *LocalStore) Read(_ context.Context, name string) ([]byte, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// MemoryStore is a thread-safe Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	files   map[string][]byte
	baseURL string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte), baseURL: baseURL}
}

func (s *MemoryStore) Save(_ context.Context, name string, data []byte) (string, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	if len(data) > MaxFileSize {
		return "", ErrFileTooLarge
	}
	s.mu.Lock()
	s.files[name] = append([]byte(nil), data...)
	s.mu.Unlock()
	return fileURL(s.baseURL, name), nil
}

func (s *MemoryStore) Read(_ context.Context, name string) ([]byte, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	return append([]byte(nil), data...), nil
}

// Names lists stored names; used by tests.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, name)
	}
	return out
}
