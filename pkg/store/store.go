// Package store persists project configurations as flat JSON files.
//
// Layout under the database root:
//
//	<root>/projects/<name>.json
//
// The store never interprets the text it holds; validation happens before a
// write reaches it, and parsing happens in the cache after a read.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Common errors
var (
	ErrNotFound      = errors.New("project not found")
	ErrAlreadyExists = errors.New("project already exists")
	ErrInvalidName   = errors.New("invalid project name")
	ErrReadOnly      = errors.New("store is read-only")
)

// ProjectsDir is the directory below the database root holding project files.
const ProjectsDir = "projects"

// Ext is the file extension of a stored project.
const Ext = ".json"

const maxNameLen = 128

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName reports whether name can be used as a project name. Names are
// limited to letters, digits, '.', '_' and '-', must not start with a
// punctuation character and must not contain "..".
func ValidateName(name string) error {
	if len(name) > maxNameLen || !namePattern.MatchString(name) || containsDotDot(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func containsDotDot(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '.' && s[i+1] == '.' {
			return true
		}
	}
	return false
}

// Store holds raw project configuration text keyed by project name.
type Store interface {
	// Exists reports whether the project has a stored configuration.
	Exists(ctx context.Context, name string) (bool, error)
	// ReadRaw returns the stored text, or ErrNotFound.
	ReadRaw(ctx context.Context, name string) (string, error)
	// WriteRaw stores text unconditionally.
	WriteRaw(ctx context.Context, name, text string) error
	// Create stores text for a new project, or fails with ErrAlreadyExists.
	Create(ctx context.Context, name, text string) error
	// Replace overwrites an existing project, or fails with ErrNotFound.
	Replace(ctx context.Context, name, text string) error
	// List returns the names of stored projects matching a glob pattern, in
	// lexical order. An empty pattern matches every project.
	List(ctx context.Context, pattern string) ([]string, error)
}
