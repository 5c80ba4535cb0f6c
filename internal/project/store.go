// Package project provides read/write access to the assistant project's
// configuration files and trained model archives.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound     = errors.New("file not found")
	ErrInvalidPath  = errors.New("path escapes the project directory")
	ErrEmptyContent = errors.New("file content cannot be empty")
	ErrInvalidYAML  = errors.New("invalid YAML")
	ErrNoModels     = errors.New("no trained models available")
)

// Model describes one trained model archive.
type Model struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Created   time.Time `json:"created"`
}

// Store is rooted at the project directory. All relative paths are resolved
// inside it; traversal outside the root is rejected.
type Store struct {
	root      string
	modelsDir string
}

// NewStore creates a Store for the project at root, with trained models
// under modelsDir. An empty modelsDir defaults to root/models.
func NewStore(root, modelsDir string) *Store {
	if modelsDir == "" {
		modelsDir = filepath.Join(root, "models")
	}

	return &Store{root: root, modelsDir: modelsDir}
}

// Root returns the project directory.
func (s *Store) Root() string {
	return s.root
}

// ModelsDir returns the trained models directory.
func (s *Store) ModelsDir() string {
	return s.modelsDir
}

// resolve validates a request-supplied path and returns it cleaned, still
// relative to the root. I/O goes through os.Root afterwards, which also
// refuses symlinks that point outside the project directory.
func (s *Store) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}

	cleaned := filepath.Clean(rel)

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return cleaned, nil
}

func (s *Store) openRoot() (*os.Root, error) {
	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, fmt.Errorf("open project root: %w", err)
	}

	return root, nil
}

// ListFiles returns the project's editable YAML files, relative to the root,
// sorted. Model archives and the assistant's cache directory are excluded.
func (s *Store) ListFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == s.modelsDir || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if ext := filepath.Ext(d.Name()); ext != ".yml" && ext != ".yaml" {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project files: %w", err)
	}

	sort.Strings(files)

	return files, nil
}

// ReadFile returns the content of the file at rel.
func (s *Store) ReadFile(rel string) (string, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}

	root, err := s.openRoot()
	if err != nil {
		return "", err
	}
	defer root.Close()

	content, err := root.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
		}

		return "", err
	}

	return string(content), nil
}

// WriteFile saves content to the file at rel, creating parent directories as
// needed. Empty content is rejected, and YAML files must parse so a typo in
// the editor cannot leave the project untrainable.
func (s *Store) WriteFile(rel, content string) error {
	path, err := s.resolve(rel)
	if err != nil {
		return err
	}

	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	if ext := filepath.Ext(rel); ext == ".yml" || ext == ".yaml" {
		var doc any
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidYAML, err)
		}
	}

	root, err := s.openRoot()
	if err != nil {
		return err
	}
	defer root.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directories: %w", err)
		}
	}

	if err := root.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Models returns the trained model archives, newest first.
func (s *Store) Models() ([]Model, error) {
	matches, err := filepath.Glob(filepath.Join(s.modelsDir, "*.tar.gz"))
	if err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(matches))

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			// Deleted between glob and stat; skip it.
			continue
		}

		models = append(models, Model{
			Name:      filepath.Base(path),
			Path:      path,
			SizeBytes: info.Size(),
			Created:   info.ModTime(),
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Created.After(models[j].Created)
	})

	return models, nil
}

// NewestModel returns the most recently trained model, or ErrNoModels.
func (s *Store) NewestModel() (Model, error) {
	models, err := s.Models()
	if err != nil {
		return Model{}, err
	}

	if len(models) == 0 {
		return Model{}, ErrNoModels
	}

	return models[0], nil
}

// DeleteModel removes the named model archive. The name must be a bare file
// name, not a path.
func (s *Store) DeleteModel(name string) error {
	if name == "" || name != filepath.Base(name) {
		return ErrInvalidPath
	}

	path := filepath.Join(s.modelsDir, name)

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return err
	}

	return nil
}
