package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Item is a node of a DirectoryStructure. It is either a *Directory or a *File.
type Item interface {
	// Key returns the object-storage key of the item. Directory keys end with "/".
	Key() string
	item()
}

// Directory is a key prefix with nested items.
type Directory struct {
	BucketKey string
	Children  DirectoryStructure
}

// File is a single stored object.
type File struct {
	BucketKey string
}

// DirectoryStructure maps a path segment name to the item stored under it.
type DirectoryStructure map[string]Item

// Key implements Item.
func (d *Directory) Key() string { return d.BucketKey }

// Key implements Item.
func (f *File) Key() string { return f.BucketKey }

func (*Directory) item() {}
func (*File) item()      {}

// ChildNames returns the names of the directory's children in ascending order.
func (d *Directory) ChildNames() []string {
	names := make([]string, 0, len(d.Children))
	for name := range d.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates a DirectoryStructure from a flat list of object keys.
//
// A key ending with "/" marks its last segment as a directory even when no
// objects are stored below it. Building is additive, so a structure built from
// a superset of keys only gains nodes.
func Build(paths []string) DirectoryStructure {
	structure := DirectoryStructure{}
	for _, path := range paths {
		structure.Add(path)
	}
	return structure
}

// Add inserts a single object key into the structure.
//
// When a segment that has to be a directory is already occupied by a file,
// the file is kept and the deeper segments are dropped. Lookups through that
// position report ErrMalformedTree instead of hiding the conflict.
func (s DirectoryStructure) Add(path string) {
	if path == "" {
		return
	}
	segments := splitPath(path)
	current := s
	prefix := ""

	for i, segment := range segments {
		isDir := strings.HasSuffix(segment, "/")
		name := strings.TrimSuffix(segment, "/")
		terminal := i == len(segments)-1

		if terminal && !isDir {
			if _, exists := current[name]; !exists {
				current[name] = &File{BucketKey: prefix + name}
			}
			return
		}

		prefix += name + "/"
		existing, exists := current[name]
		if !exists {
			dir := &Directory{BucketKey: prefix, Children: DirectoryStructure{}}
			current[name] = dir
			current = dir.Children
			continue
		}

		dir, ok := existing.(*Directory)
		if !ok {
			return
		}
		current = dir.Children
	}
}

// splitPath splits an object key on "/" and folds a trailing empty segment
// into the one before it, so "a/b/" yields ["a", "b/"].
func splitPath(path string) []string {
	segments := strings.Split(path, "/")
	if n := len(segments); n > 1 && segments[n-1] == "" {
		segments = segments[:n-1]
		segments[n-2] += "/"
	}
	return segments
}

// AddressDirectory returns the directory holding all stages of an Airnode.
// It returns nil when the address has never been deployed to this bucket.
func AddressDirectory(structure DirectoryStructure, airnodeAddress string) (*Directory, error) {
	return lookupDirectory(structure, airnodeAddress)
}

// StageDirectory returns the directory holding all versions of one stage.
// It returns nil when nothing is stored under <address>/<stage>/.
func StageDirectory(structure DirectoryStructure, airnodeAddress, stage string) (*Directory, error) {
	addressDir, err := AddressDirectory(structure, airnodeAddress)
	if err != nil || addressDir == nil {
		return nil, err
	}
	return lookupDirectory(addressDir.Children, stage)
}

func lookupDirectory(structure DirectoryStructure, name string) (*Directory, error) {
	item, ok := structure[name]
	if !ok {
		return nil, nil
	}

	dir, ok := item.(*Directory)
	if !ok {
		return nil, MalformedTreeError(fmt.Sprintf("%s is a file, expected a directory", item.Key()))
	}
	if len(dir.Children) == 0 {
		return nil, MalformedTreeError(fmt.Sprintf("directory %s is empty", dir.BucketKey))
	}
	return dir, nil
}

// Keys returns the key of the item and of every item below it.
// Directory keys are included so that explicit directory marker objects are
// removed together with their contents.
func Keys(item Item) []string {
	var keys []string
	collectKeys(item, &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(item Item, keys *[]string) {
	*keys = append(*keys, item.Key())
	dir, ok := item.(*Directory)
	if !ok {
		return
	}
	for _, child := range dir.Children {
		collectKeys(child, keys)
	}
}

// FileKeys returns the keys of all files below the item, excluding directory keys.
func FileKeys(item Item) []string {
	var keys []string
	for _, key := range Keys(item) {
		if !strings.HasSuffix(key, "/") {
			keys = append(keys, key)
		}
	}
	return keys
}
