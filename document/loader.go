package document

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/nodeflow/errors"
)

// Loader loads documents by name.
type Loader interface {
	Load(name string) (*Document, error)
}

// FileLoader loads documents from files on disk.
type FileLoader struct {
	dirs []string
}

var extensions = []string{".yaml", ".yml", ".json"}

// NewFileLoader creates a loader that searches dirs for {name}.yaml,
// {name}.yml or {name}.json, first directly and then one directory down.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

// Load returns the first document named name.
func (l *FileLoader) Load(name string) (*Document, error) {
	for _, dir := range l.dirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadFile(path)
			}

			// Search subdirectories
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			if len(matches) > 0 {
				return LoadFile(matches[0])
			}
		}
	}
	return nil, errors.NotFound("document", name)
}

// LoadFile reads and parses the document at path. A document without a
// name is named after its file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NotFound("document", path).WithCause(err)
	}
	doc, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Save writes doc to path in the format implied by its extension.
func Save(path string, doc *Document) error {
	data, err := Marshal(doc, FormatOf(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Storage("save document", err)
	}
	return nil
}
