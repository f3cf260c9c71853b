package router

import (
	"io/fs"
	"path"
)

// noListingFS hides directories that have no index.html, so the file server
// answers 404 instead of rendering a listing.
type noListingFS struct {
	fsys fs.FS
}

func (n noListingFS) Open(name string) (fs.File, error) {
	file, err := n.fsys.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !info.IsDir() {
		return file, nil
	}

	index, err := n.fsys.Open(path.Join(name, "index.html"))
	if err != nil {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	_ = index.Close()
	return file, nil
}
