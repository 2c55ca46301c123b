// Package pbxproj loads and saves Xcode project manifests (project.pbxproj).
//
// The store decodes the property list into a manifest.Manifest and keeps the
// raw document next to it. Save folds the manifest back into that document,
// so objects the run did not touch keep their identifiers, attributes and
// order.
package pbxproj

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/fulmenhq/pbxmend/pkg/logger"
	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/safeio"
)

// ManifestFile is the manifest inside an .xcodeproj bundle.
const ManifestFile = "project.pbxproj"

// Store reads and writes manifests on a billy filesystem.
type Store struct {
	fs     billy.Filesystem
	loaded map[*manifest.Manifest]*document
}

// NewStore returns a store rooted at fs.
func NewStore(fs billy.Filesystem) *Store {
	return &Store{fs: fs, loaded: make(map[*manifest.Manifest]*document)}
}

// Resolve maps a location to the manifest file: an .xcodeproj bundle (or any
// directory) resolves to the project.pbxproj inside it.
func (s *Store) Resolve(location string) (string, error) {
	loc := filepath.ToSlash(location)
	st, err := s.fs.Stat(loc)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", location, err)
	}
	if st.IsDir() {
		loc = path.Join(loc, ManifestFile)
	}
	return loc, nil
}

// Load reads and decodes the manifest at location. Undecodable content is
// reported as *ParseError; filesystem failures are returned as they are.
func (s *Store) Load(location string) (*manifest.Manifest, error) {
	loc, err := s.Resolve(location)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(s.fs, loc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	m, doc, err := decode(loc, data)
	if err != nil {
		return nil, &ParseError{Location: loc, Err: err}
	}
	s.loaded[m] = doc
	logger.Debug("Loaded manifest",
		logger.String("location", loc),
		logger.Int("objects", doc.objects.Len()),
		logger.Int("targets", len(m.Targets)))
	return m, nil
}

// Save writes m back to the location it was loaded from, replacing the file
// atomically. Structural problems are reported as *SerializationError and
// leave the file untouched.
func (s *Store) Save(m *manifest.Manifest) error {
	doc, ok := s.loaded[m]
	if !ok {
		return &SerializationError{Err: errors.New("manifest was not loaded by this store")}
	}
	if err := doc.apply(m); err != nil {
		return &SerializationError{Location: doc.location, Err: err}
	}
	data, err := doc.encode()
	if err != nil {
		return &SerializationError{Location: doc.location, Err: err}
	}
	if err := safeio.WriteFileAtomic(s.fs, doc.location, data); err != nil {
		return fmt.Errorf("write %s: %w", doc.location, err)
	}
	logger.Debug("Saved manifest", logger.String("location", doc.location), logger.Int("bytes", len(data)))
	return nil
}

// Render returns the bytes Save would write, without writing them. Dry runs
// call it so a manifest that could not be saved fails the same way Save
// would. The document is left unchanged when validation fails.
func (s *Store) Render(m *manifest.Manifest) ([]byte, error) {
	doc, ok := s.loaded[m]
	if !ok {
		return nil, &SerializationError{Err: errors.New("manifest was not loaded by this store")}
	}
	if err := doc.apply(m); err != nil {
		return nil, &SerializationError{Location: doc.location, Err: err}
	}
	data, err := doc.encode()
	if err != nil {
		return nil, &SerializationError{Location: doc.location, Err: err}
	}
	return data, nil
}

// IsNotExist reports whether err comes from a missing manifest location.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
