// Package session persists chat sessions as one JSON file per session
// under a per-user subdirectory. Writes publish through an atomic rename
// so readers never observe a partially written record.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	tombstonePrefix = "deleted_"
	fileExt         = ".json"

	deleteRetries = 10
	deleteBackoff = 200 * time.Millisecond
)

var ErrSessionExists = errors.New("session already exists")

// Message is one conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Info is the listing view of a session.
type Info struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// record is the on-disk layout of a session file.
type record struct {
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
}

// Store is a file-backed session store. One session id maps to one file;
// the rename of a sibling temp file is the sole publication point.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir failed: %w", err)
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// lockFor returns the per-session mutex, creating it on first use. It
// serializes in-process writers on the same session; concurrent processes
// still race last-writer-wins at whole-file granularity.
func (s *Store) lockFor(username, id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := username + "/" + id
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// safeName rejects names that could escape the store directory or collide
// with tombstones. Invalid names behave as not-found everywhere.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return !strings.HasPrefix(name, tombstonePrefix)
}

func (s *Store) userDir(username string) (string, error) {
	dir := filepath.Join(s.root, username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user sessions dir failed: %w", err)
	}
	return dir, nil
}

func (s *Store) sessionPath(username, id string) (string, error) {
	dir, err := s.userDir(username)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+fileExt), nil
}

// Create makes a new empty session and returns its id, derived from the
// title and the creation time. The timestamp granularity makes collisions
// practically impossible; a genuine collision is ErrSessionExists.
func (s *Store) Create(username, title string) (string, error) {
	if !safeName(username) {
		return "", fmt.Errorf("invalid username")
	}
	now := time.Now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Chat"
	}
	id := slugify(title) + "_" + now.Format("20060102_150405")

	path, err := s.sessionPath(username, id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", ErrSessionExists
	}

	rec := record{
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
		Username:  username,
	}
	if err := s.writeRecord(path, rec); err != nil {
		return "", err
	}
	return id, nil
}

// List returns the user's sessions ordered by updated_at descending.
// Tombstoned, corrupt and foreign-owned files are skipped, never errors:
// listing stays available even when a single file is damaged.
func (s *Store) List(username string) ([]Info, error) {
	if !safeName(username) {
		return []Info{}, nil
	}
	dir, err := s.userDir(username)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir failed: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if strings.HasPrefix(name, tombstonePrefix) {
			continue
		}
		rec, err := s.readRecord(filepath.Join(dir, name))
		if err != nil || rec.Username != username {
			continue
		}
		infos = append(infos, Info{
			ID:           strings.TrimSuffix(name, fileExt),
			Title:        rec.Title,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
			MessageCount: len(rec.Messages),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Messages returns the session's messages in order. A session that does
// not exist, is corrupt, or belongs to another user yields an empty slice
// rather than an error, so callers cannot probe for foreign sessions.
func (s *Store) Messages(id, username string) ([]Message, error) {
	if !safeName(id) || !safeName(username) {
		return []Message{}, nil
	}
	path, err := s.sessionPath(username, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.readRecord(path)
	if err != nil || rec.Username != username {
		return []Message{}, nil
	}
	if rec.Messages == nil {
		return []Message{}, nil
	}
	return rec.Messages, nil
}

// SaveMessages replaces the session's message sequence. The on-disk owner
// is re-verified first; a mismatch is silently ignored. A missing record
// is created with the caller as owner. Title, when non-empty, is updated.
func (s *Store) SaveMessages(id string, messages []Message, username, title string) error {
	if !safeName(id) || !safeName(username) {
		return nil
	}
	lock := s.lockFor(username, id)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.sessionPath(username, id)
	if err != nil {
		return err
	}

	now := time.Now()
	rec, err := s.readRecord(path)
	switch {
	case err == nil:
		if rec.Username != username {
			return nil
		}
	case os.IsNotExist(err):
		rec = record{CreatedAt: now, Username: username, Title: id}
	default:
		// Corrupt record: recreate it rather than fail the write.
		rec = record{CreatedAt: now, Username: username, Title: id}
	}

	if messages == nil {
		messages = []Message{}
	}
	rec.Messages = messages
	rec.UpdatedAt = now
	if title != "" {
		rec.Title = title
	}
	return s.writeRecord(path, rec)
}

// Delete removes a session after verifying ownership. Removal contending
// with an open handle is retried with a fixed backoff; once the budget is
// spent the file is renamed to a tombstone that listings never surface,
// and the tombstone itself is unlinked best-effort. Returns true as long
// as the session is invisible to future reads.
func (s *Store) Delete(id, username string) (bool, error) {
	if !safeName(id) || !safeName(username) {
		return false, nil
	}
	lock := s.lockFor(username, id)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.sessionPath(username, id)
	if err != nil {
		return false, err
	}
	rec, err := s.readRecord(path)
	if err != nil || rec.Username != username {
		return false, nil
	}

	var lastErr error
	for attempt := 0; attempt < deleteRetries; attempt++ {
		if err := os.Remove(path); err == nil {
			return true, nil
		} else if os.IsNotExist(err) {
			return true, nil
		} else {
			lastErr = err
		}
		if attempt < deleteRetries-1 {
			time.Sleep(deleteBackoff)
			// Nudge the runtime to finalize and release lingering
			// file handles before the next attempt.
			runtime.GC()
		}
	}

	dir := filepath.Dir(path)
	tombstone := filepath.Join(dir, tombstonePrefix+shortID()+"_"+id+fileExt)
	if err := os.Rename(path, tombstone); err != nil {
		return false, fmt.Errorf("delete session failed: %w", lastErr)
	}
	// Best effort; the tombstone is already invisible to listings.
	_ = os.Remove(tombstone)
	return true, nil
}

func (s *Store) readRecord(path string) (record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("decode session record failed: %w", err)
	}
	return rec, nil
}

// writeRecord serializes to a sibling temp file and renames it over the
// target. A crash mid-write orphans the temp file; the committed version
// stays intact.
func (s *Store) writeRecord(path string, rec record) error {
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session record failed: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create session temp file failed: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write session temp file failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync session temp file failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close session temp file failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish session record failed: %w", err)
	}
	return nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
