package safety

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathResult describes whether a path may be used inside a sandbox root.
type PathResult struct {
	IsSafe         bool   `json:"is_safe"`
	NormalizedPath string `json:"normalized_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ValidatePath resolves path against workingDir and reports whether the
// result stays inside workingDir. Absolute paths override workingDir before
// the containment check, so they are only safe when they point inside it.
func (g *Guard) ValidatePath(path, workingDir string) PathResult {
	if !g.settings.ValidateFilePaths {
		return PathResult{IsSafe: true, NormalizedPath: path}
	}

	root, err := filepath.Abs(workingDir)
	if err != nil {
		return PathResult{Error: fmt.Sprintf("invalid working directory %q: %v", workingDir, err)}
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(root, path)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return PathResult{Error: fmt.Sprintf("invalid path %q: %v", path, err)}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return PathResult{Error: fmt.Sprintf("path %q escapes the permitted working directory", path)}
	}

	slashRel := filepath.ToSlash(rel)
	for _, pattern := range g.settings.DeniedPathGlobs {
		ok, err := doublestar.Match(pattern, slashRel)
		if err != nil {
			return PathResult{Error: fmt.Sprintf("invalid denied path pattern %q: %v", pattern, err)}
		}
		if ok {
			return PathResult{Error: fmt.Sprintf("path %q matches denied pattern %q", path, pattern)}
		}
	}

	return PathResult{IsSafe: true, NormalizedPath: target}
}

// IsPathSafe is ValidatePath reduced to its verdict.
func (g *Guard) IsPathSafe(path, workingDir string) bool {
	return g.ValidatePath(path, workingDir).IsSafe
}
