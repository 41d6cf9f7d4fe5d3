package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdev12/faceoff/internal/tournament"
)

// DirStore keeps uploaded entrant artifacts as files in a local directory.
// References are bare file names; they never escape the root directory.
type DirStore struct {
	root string
}

// NewDirStore creates the directory if needed and returns a store over it.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DirStore{root: root}, nil
}

var _ tournament.BlobStore = (*DirStore)(nil)

// List returns the references of all stored artifacts.
func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}
	var refs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		refs = append(refs, entry.Name())
	}
	return refs, nil
}

// Delete removes a single stored artifact. Deleting an already-absent
// reference is not an error.
func (s *DirStore) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact %s: %w", ref, err)
	}
	return nil
}

// Put stores artifact bytes under the given reference.
func (s *DirStore) Put(ref string, data []byte) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", ref, err)
	}
	return nil
}

func (s *DirStore) resolve(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, `/\`) || ref == ".." {
		return "", fmt.Errorf("invalid artifact reference %q", ref)
	}
	return filepath.Join(s.root, ref), nil
}
