// Package profilestore manages per-profile directories on disk, each one
// holding its own topicstore.FileStore, grounded on the original system's
// ProfileFileSystem: a profile's subdirectory layout is exactly a topic
// store rooted at profilesRoot/<profileName>.
package profilestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/AAAlex-123/Yamca/internal/topicstore"
	"github.com/AAAlex-123/Yamca/internal/wire"
)

// ErrNoCurrentProfile is returned by operations that require a profile to
// have been created or loaded first.
var ErrNoCurrentProfile = errors.New("profilestore: no profile loaded")

// ErrUnknownProfile is returned by LoadProfile for a name with no matching
// subdirectory.
var ErrUnknownProfile = errors.New("profilestore: unknown profile")

// Store manages every Profile subdirectory under one root directory and
// tracks which one is "current": the one new topic/post operations apply
// to, mirroring the single-user client process this store backs.
type Store struct {
	root string

	mu      sync.Mutex
	stores  map[string]*topicstore.FileStore
	current string
}

// Open constructs a Store rooted at dir, which must already exist, and
// discovers every existing profile subdirectory.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("profilestore: root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profilestore: root %q is not a directory", dir)
	}

	s := &Store{root: dir, stores: make(map[string]*topicstore.FileStore)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("profilestore: listing %q: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fs, err := topicstore.NewFileStore(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		s.stores[e.Name()] = fs
	}

	return s, nil
}

// ProfileNames returns every profile this store has discovered so far.
func (s *Store) ProfileNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	return names
}

// CreateNewProfile creates a new, empty profile directory and makes it the
// current profile.
func (s *Store) CreateNewProfile(name string) error {
	dir := filepath.Join(s.root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("profilestore: create profile %q: %w", name, err)
	}

	fs, err := topicstore.NewFileStore(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stores[name] = fs
	s.current = name
	s.mu.Unlock()
	return nil
}

// LoadProfile makes an existing profile current and returns every topic
// already persisted for it.
func (s *Store) LoadProfile(name string) ([]topicstore.Topic, error) {
	s.mu.Lock()
	_, ok := s.stores[name]
	if ok {
		s.current = name
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	return s.currentStore().ReadAllTopics()
}

// CreateTopic creates a topic under the current profile.
func (s *Store) CreateTopic(name string) error {
	fs := s.currentStore()
	if fs == nil {
		return ErrNoCurrentProfile
	}
	return fs.CreateTopic(name)
}

// DeleteTopic deletes a topic from the current profile.
func (s *Store) DeleteTopic(name string) error {
	fs := s.currentStore()
	if fs == nil {
		return ErrNoCurrentProfile
	}
	return fs.DeleteTopic(name)
}

// SavePost persists a post under the current profile's copy of topicName.
func (s *Store) SavePost(post wire.Post, topicName string) error {
	fs := s.currentStore()
	if fs == nil {
		return ErrNoCurrentProfile
	}
	return fs.WritePost(post, topicName)
}

// CurrentProfile returns the name of the profile currently loaded, or "" if
// none has been created or loaded yet.
func (s *Store) CurrentProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) currentStore() *topicstore.FileStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return nil
	}
	return s.stores[s.current]
}
