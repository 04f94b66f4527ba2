package vault

import (
	"errors"

	"github.com/aidanlsb/ferry/internal/paths"
)

// WalkResult is one markdown file visited by WalkMarkdownFiles.
type WalkResult struct {
	Path         string
	RelativePath string
	Content      string
	Error        error
}

// ErrStopWalk may be returned by a handler to end the walk early without
// reporting an error.
var ErrStopWalk = errors.New("stop walk")

// WalkMarkdownFiles visits every indexed markdown file in enumeration order.
// Read failures, and paths that cannot be checked against the root, are
// delivered to the handler through WalkResult.Error so the caller decides
// whether to continue. Files outside the vault root are skipped.
func WalkMarkdownFiles(fsys FileSystem, idx *Index, handler func(WalkResult) error) error {
	for _, file := range idx.MarkdownFiles() {
		result := WalkResult{Path: file, RelativePath: idx.Rel(file)}
		switch err := paths.ValidateWithinVault(idx.Root, file); {
		case errors.Is(err, paths.ErrPathOutsideVault):
			continue
		case err != nil:
			result.Error = err
		default:
			result.Content, result.Error = fsys.ReadFile(file)
		}

		if err := handler(result); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}
