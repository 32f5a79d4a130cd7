package dataset

import (
	"io"
	"os"
	"path"

	billy "github.com/go-git/go-billy/v5"
)

// Opener abstracts the tree a dataset is read from and written to. Keeping
// the filesystem behind this interface enables in-memory testing and remote
// backends without touching the loader.
type Opener interface {
	// List returns the names of the entries under a directory.
	List(root, rel string) ([]string, error)
	// Read opens the named file for reading.
	Read(root, rel string, kind Kind, binary bool) (io.ReadCloser, error)
	// Write opens the named file for writing, creating missing parent
	// directories.
	Write(root, rel string, kind Kind, binary bool) (io.WriteCloser, error)
}

// FS is an Opener backed by a billy.Filesystem. Use osfs for on-disk
// datasets and memfs for tests.
type FS struct {
	fs billy.Filesystem
}

// NewFS wraps a billy filesystem in an Opener.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

func (o *FS) join(root, rel string) string {
	p := o.fs.Join(root, rel)
	if p == "" {
		p = "."
	}
	return p
}

// List implements Opener.
func (o *FS) List(root, rel string) ([]string, error) {
	infos, err := o.fs.ReadDir(o.join(root, rel))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// Read implements Opener.
func (o *FS) Read(root, rel string, kind Kind, binary bool) (io.ReadCloser, error) {
	return o.fs.Open(o.join(root, rel))
}

// Write implements Opener.
func (o *FS) Write(root, rel string, kind Kind, binary bool) (io.WriteCloser, error) {
	p := o.join(root, rel)
	if dir := path.Dir(p); dir != "." {
		if err := o.fs.MkdirAll(dir, os.FileMode(0o755)); err != nil {
			return nil, err
		}
	}
	return o.fs.Create(p)
}
