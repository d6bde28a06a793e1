package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/getmockd/mockapi/pkg/cli/internal/output"
	"github.com/getmockd/mockapi/pkg/project"
	"github.com/getmockd/mockapi/pkg/store"
)

// ValidationResult is the outcome for one project file.
type ValidationResult struct {
	Path       string `json:"path"`
	Valid      bool   `json:"valid"`
	Endpoints  int    `json:"endpoints,omitempty"`
	Conditions int    `json:"conditions,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newValidateCommand(g *globalFlags) *cobra.Command {
	var dbRoot string

	cmd := &cobra.Command{
		Use:   "validate [path|glob ...]",
		Short: "Validate project files without starting the server",
		Long: `Validate project files with the same parser the server uses.

Arguments are file paths or doublestar globs ("mocks/**/*.json"). Files ending
in .yaml or .yml are read as YAML. With no arguments every project stored under
the database root is checked.

Exits with status 2 if any file is invalid.`,
		Example: `  mockapi validate
  mockapi validate ./database/projects/shop.json
  mockapi validate 'mocks/**/*.{json,yaml}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				results []ValidationResult
				err     error
			)
			if len(args) == 0 {
				root := dbRoot
				if !cmd.Flags().Changed("db-root") {
					cfg, lerr := loadSettings(g)
					if lerr != nil {
						return lerr
					}
					root = cfg.DBRoot
				}
				results, err = validateStore(cmd.Context(), store.NewFileStore(root, store.WithReadOnly()))
			} else {
				results, err = validatePaths(args)
			}
			if err != nil {
				return err
			}

			if err := printResults(cmd, g, results); err != nil {
				return err
			}
			for _, r := range results {
				if !r.Valid {
					return errInvalid
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbRoot, "db-root", "", "Database root to validate when no paths are given")
	return cmd
}

// validatePaths expands each pattern and validates every file it names. A
// pattern without matches is an error, unless it is a plain path, which is
// reported as an invalid result.
func validatePaths(patterns []string) ([]ValidationResult, error) {
	var results []ValidationResult
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			if hasMeta(pattern) {
				return nil, fmt.Errorf("no files match %q", pattern)
			}
			matches = []string{pattern}
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true
			results = append(results, validateFile(path))
		}
	}
	return results, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func validateFile(path string) ValidationResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ValidationResult{Path: path, Error: "file not found"}
		}
		return ValidationResult{Path: path, Error: err.Error()}
	}

	var cfg *project.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = project.ParseYAML(data)
	default:
		cfg, err = project.Parse(data)
	}
	return result(path, cfg, err)
}

func validateStore(ctx context.Context, s *store.FileStore) ([]ValidationResult, error) {
	names, err := s.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	results := make([]ValidationResult, 0, len(names))
	for _, name := range names {
		path, _ := s.Path(name)
		text, err := s.ReadRaw(ctx, name)
		if err != nil {
			results = append(results, ValidationResult{Path: path, Error: err.Error()})
			continue
		}
		cfg, err := project.ParseString(text)
		results = append(results, result(path, cfg, err))
	}
	return results, nil
}

func result(path string, cfg *project.Config, err error) ValidationResult {
	if err != nil {
		return ValidationResult{Path: path, Error: err.Error()}
	}
	r := ValidationResult{Path: path, Valid: true, Endpoints: len(cfg.Endpoints)}
	for _, ep := range cfg.Endpoints {
		if ep != nil {
			r.Conditions += len(ep.Conditions())
		}
	}
	return r
}

func printResults(cmd *cobra.Command, g *globalFlags, results []ValidationResult) error {
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		if results == nil {
			results = []ValidationResult{}
		}
		return output.JSON(out, results)
	}

	if len(results) == 0 {
		output.Warn(cmd.ErrOrStderr(), "no projects found")
		return nil
	}

	tw := output.Table(out)
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(tw, "ok\t%s\t%d endpoints, %d conditions\n", r.Path, r.Endpoints, r.Conditions)
		} else {
			fmt.Fprintf(tw, "FAIL\t%s\t%s\n", r.Path, strings.Join(strings.Fields(r.Error), " "))
		}
	}
	return tw.Flush()
}
