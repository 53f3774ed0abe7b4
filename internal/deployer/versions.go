package deployer

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/api3dao/airnode-deployer/internal/storage"
	"github.com/api3dao/airnode-deployer/internal/util/naming"
)

// VersionOrdering decides which version directory of a stage is the latest.
type VersionOrdering int

const (
	// LexicographicOrder compares version names as strings. Millisecond
	// timestamps have the same width until the year 2286, so this matches
	// numeric order for every deployment made so far.
	LexicographicOrder VersionOrdering = iota

	// NumericOrder compares names that parse as integers by value and sorts
	// them after any other names.
	NumericOrder
)

// sortVersions returns the version names of a stage directory, oldest first.
func sortVersions(stage *storage.Directory, ordering VersionOrdering) []string {
	names := stage.ChildNames()
	if ordering != NumericOrder {
		return names
	}

	slices.SortStableFunc(names, func(a, b string) int {
		na, errA := strconv.ParseInt(a, 10, 64)
		nb, errB := strconv.ParseInt(b, 10, 64)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return -1
		case errB != nil:
			return 1
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	})
	return names
}

// latestVersion returns the name and directory of the latest version of a
// stage. The version must be a directory holding a config.json.
func latestVersion(stage *storage.Directory, ordering VersionOrdering) (string, *storage.Directory, error) {
	versions := sortVersions(stage, ordering)
	if len(versions) == 0 {
		return "", nil, storage.MalformedTreeError(fmt.Sprintf("directory %s is empty", stage.BucketKey))
	}

	name := versions[len(versions)-1]
	dir, ok := stage.Children[name].(*storage.Directory)
	if !ok {
		return "", nil, storage.MalformedTreeError(fmt.Sprintf("%s is a file, expected a version directory", stage.Children[name].Key()))
	}
	if _, ok := dir.Children[naming.ConfigFile].(*storage.File); !ok {
		return "", nil, storage.MalformedTreeError(fmt.Sprintf("version directory %s has no %s", dir.BucketKey, naming.ConfigFile))
	}
	return name, dir, nil
}
