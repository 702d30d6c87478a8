// Package filetree provides fast lookup of items arranged in POSIX-style
// file hierarchies.
package filetree

import (
	"errors"
	"path"
	"sort"
	"time"
)

var (
	ErrNotExist = errors.New("file does not exist")
	ErrExist    = errors.New("file already exists")
	ErrNotDir   = errors.New("not a directory")
	ErrNotEmpty = errors.New("directory not empty")
)

// A Tree is the root of a file hierarchy. It must be created
// by a call to New. A Tree is not safe for concurrent use.
type Tree struct {
	index map[string]*Entry
}

// An Entry represents a single item in a file hierarchy.
type Entry struct {
	// The absolute path of this item
	FullName string

	Dir   bool
	Data  []byte
	Mtime time.Time
}

// Name returns the last element of the entry's path.
func (e *Entry) Name() string {
	return path.Base(e.FullName)
}

// New creates a new Tree holding only the root directory.
func New() *Tree {
	return &Tree{index: map[string]*Entry{
		"/": {FullName: "/", Dir: true},
	}}
}

// Clean returns the absolute, cleaned form of a path.
func Clean(filename string) string {
	return path.Clean("/" + filename)
}

// Put stores a file in the hierarchy, replacing any file of the
// same name. If any directories in the path are missing, they are
// created as needed.
func (tree *Tree) Put(name string, data []byte) *Entry {
	name = Clean(name)
	tree.mkdirAll(path.Dir(name))
	e := &Entry{FullName: name, Data: data, Mtime: time.Now()}
	tree.index[name] = e
	return e
}

func (tree *Tree) mkdirAll(dir string) {
	for ; ; dir = path.Dir(dir) {
		if _, ok := tree.index[dir]; ok {
			return
		}
		tree.index[dir] = &Entry{FullName: dir, Dir: true, Mtime: time.Now()}
		if dir == "/" {
			return
		}
	}
}

// Create adds an empty file or directory to an existing directory.
func (tree *Tree) Create(dir, name string, isDir bool) (*Entry, error) {
	dir = Clean(dir)
	parent, ok := tree.index[dir]
	if !ok {
		return nil, ErrNotExist
	}
	if !parent.Dir {
		return nil, ErrNotDir
	}
	full := path.Join(dir, name)
	if _, ok := tree.index[full]; ok {
		return nil, ErrExist
	}
	e := &Entry{FullName: full, Dir: isDir, Mtime: time.Now()}
	tree.index[full] = e
	return e, nil
}

// Get retrieves the item present at the path given by name. The
// returned Entry is valid if and only if the second return value is true.
func (tree *Tree) Get(name string) (*Entry, bool) {
	entry, ok := tree.index[Clean(name)]
	return entry, ok
}

// Children returns the entries directly inside dir, sorted by name.
func (tree *Tree) Children(dir string) []*Entry {
	dir = Clean(dir)
	var kids []*Entry
	for name, e := range tree.index {
		if name != "/" && path.Dir(name) == dir {
			kids = append(kids, e)
		}
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i].FullName < kids[j].FullName })
	return kids
}

// Remove deletes a file or an empty directory.
func (tree *Tree) Remove(name string) error {
	name = Clean(name)
	e, ok := tree.index[name]
	if !ok || name == "/" {
		return ErrNotExist
	}
	if e.Dir && len(tree.Children(name)) > 0 {
		return ErrNotEmpty
	}
	delete(tree.index, name)
	return nil
}

// Rename gives a file a new name within the same directory.
func (tree *Tree) Rename(name, newname string) (*Entry, error) {
	name = Clean(name)
	e, ok := tree.index[name]
	if !ok || name == "/" {
		return nil, ErrNotExist
	}
	if e.Dir && len(tree.Children(name)) > 0 {
		return nil, ErrNotEmpty
	}
	full := path.Join(path.Dir(name), newname)
	if _, ok := tree.index[full]; ok {
		return nil, ErrExist
	}
	delete(tree.index, name)
	e.FullName = full
	tree.index[full] = e
	return e, nil
}
