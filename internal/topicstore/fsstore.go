package topicstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/AAAlex-123/Yamca/internal/wire"
)

// ErrBadFilename is returned when a post file inside a topic directory does
// not match the "{id}-{posterName}.{ext}" naming convention.
var ErrBadFilename = errors.New("topicstore: bad filename")

var filenamePattern = regexp.MustCompile(`^(-?\d+)-(\w+)\.(.*)$`)

const (
	headFile      = "HEAD"
	metaExtension = ".meta"
)

// FileStore is the reference Store: one directory per topic, containing a
// HEAD pointer to the most recently written post and, for every post, a data
// file plus a ".meta" sidecar linking back to the post that was HEAD when it
// was written. Reading a topic walks that singly-linked list from HEAD back
// to the oldest post, then reverses it.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at dir, which must already exist.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("topicstore: root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("topicstore: root %q is not a directory", dir)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) topicDir(name string) string { return filepath.Join(s.root, name) }
func (s *FileStore) headPath(name string) string { return filepath.Join(s.topicDir(name), headFile) }

func (s *FileStore) CreateTopic(name string) error {
	dir := s.topicDir(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("topicstore: create topic %q: %w", name, err)
	}
	if err := os.WriteFile(s.headPath(name), nil, 0o644); err != nil {
		return fmt.Errorf("topicstore: create topic %q: %w", name, err)
	}
	return nil
}

func (s *FileStore) DeleteTopic(name string) error {
	dir := s.topicDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("topicstore: delete topic %q: %w", name, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("topicstore: delete topic %q: %w", name, err)
		}
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("topicstore: delete topic %q: %w", name, err)
	}
	return nil
}

func (s *FileStore) WritePost(post wire.Post, topicName string) error {
	fileName := postFileName(post.Info)
	dir := s.topicDir(topicName)
	postPath := filepath.Join(dir, fileName)

	if err := os.WriteFile(postPath, post.Data, 0o644); err != nil {
		return fmt.Errorf("topicstore: write post %q: %w", fileName, err)
	}

	prevHead, err := os.ReadFile(s.headPath(topicName))
	if err != nil {
		return fmt.Errorf("topicstore: write post %q: %w", fileName, err)
	}

	metaPath := filepath.Join(dir, fileName+metaExtension)
	if err := os.WriteFile(metaPath, prevHead, 0o644); err != nil {
		return fmt.Errorf("topicstore: write post %q: %w", fileName, err)
	}

	if err := os.WriteFile(s.headPath(topicName), []byte(fileName), 0o644); err != nil {
		return fmt.Errorf("topicstore: write post %q: %w", fileName, err)
	}

	return nil
}

func (s *FileStore) ReadAllTopics() ([]Topic, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("topicstore: read all topics: %w", err)
	}

	var topics []Topic
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		topic, err := s.readTopic(e.Name())
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func (s *FileStore) readTopic(name string) (Topic, error) {
	var posts []wire.Post

	fileName, err := s.firstPostFile(name)
	if err != nil {
		return Topic{}, err
	}

	for fileName != "" {
		info, err := postInfoFromFileName(fileName)
		if err != nil {
			return Topic{}, fmt.Errorf("topicstore: loading topic %q: %w", name, err)
		}

		data, err := os.ReadFile(filepath.Join(s.topicDir(name), fileName))
		if err != nil {
			return Topic{}, fmt.Errorf("topicstore: loading topic %q: %w", name, err)
		}

		posts = append(posts, wire.Post{Info: info, Data: data})

		fileName, err = s.nextFile(name, fileName)
		if err != nil {
			return Topic{}, err
		}
	}

	// posts were read newest-to-oldest; reverse to earliest-to-latest.
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}

	return Topic{Name: name, Posts: posts}, nil
}

// firstPostFile returns the HEAD file name, or "" if the topic has no posts.
func (s *FileStore) firstPostFile(topicName string) (string, error) {
	contents, err := os.ReadFile(s.headPath(topicName))
	if err != nil {
		return "", fmt.Errorf("topicstore: reading HEAD of %q: %w", topicName, err)
	}
	return string(contents), nil
}

// nextFile returns the file name the given post's .meta sidecar points to,
// or "" if it was the oldest post.
func (s *FileStore) nextFile(topicName, fileName string) (string, error) {
	metaPath := filepath.Join(s.topicDir(topicName), fileName+metaExtension)
	contents, err := os.ReadFile(metaPath)
	if err != nil {
		return "", fmt.Errorf("topicstore: reading link for %q: %w", fileName, err)
	}
	return string(contents), nil
}

func postFileName(info wire.PostInfo) string {
	return fmt.Sprintf("%d-%s.%s", info.ID, info.PosterName, info.FileExtension)
}

func postInfoFromFileName(fileName string) (wire.PostInfo, error) {
	m := filenamePattern.FindStringSubmatch(fileName)
	if m == nil {
		return wire.PostInfo{}, fmt.Errorf("%w: %q", ErrBadFilename, fileName)
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return wire.PostInfo{}, fmt.Errorf("%w: %q", ErrBadFilename, fileName)
	}

	return wire.PostInfo{ID: id, PosterName: m[2], FileExtension: m[3]}, nil
}
