package store

import (
	"fmt"
	"strings"
)

// Join builds a path from its segments. Document paths have an even number of
// segments, collection paths an odd number.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection and the id of a document path.
func Split(path string) (collection, id string, err error) {
	if err := validatePath(path); err != nil {
		return "", "", err
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

func validateCollection(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if strings.Count(path, "/")%2 != 0 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, s := range strings.Split(path, "/") {
		if s == "" || strings.HasPrefix(s, "_") || strings.ContainsAny(s, ".$") {
			return fmt.Errorf("%w: bad segment in %q", ErrInvalidPath, path)
		}
	}
	return nil
}
