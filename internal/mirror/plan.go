package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// ErrLocalRoot is returned when the local root is missing or is not a
// directory. It is reported before any connection is made.
var ErrLocalRoot = errors.New("local root is not a directory")

// Entry is one local file to upload.
type Entry struct {
	LocalPath string
	// RelPath is relative to the local root and always uses "/".
	RelPath string
	Dirs    []string
	Name    string
	Size    int64
}

// Plan lists the files under a local root in upload order.
type Plan struct {
	LocalRoot string
	Entries   []Entry
	Skipped   int
}

func (p *Plan) TotalSize() int64 {
	var total int64
	for _, entry := range p.Entries {
		total += entry.Size
	}
	return total
}

// BuildPlan walks root and returns every regular file beneath it, sorted by
// path segments. Directories are never planned. Symlinks to regular files
// are planned with the target's size. Symlinked directories, devices and
// entries matched by an exclude pattern are skipped.
func BuildPlan(fsys afero.Fs, root string, exclude []string) (*Plan, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLocalRoot, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrLocalRoot, root)
	}

	excludes, err := compileExcludes(exclude)
	if err != nil {
		return nil, err
	}

	plan := &Plan{LocalRoot: root}
	err = afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if excludes.match(rel) {
			slog.Debug("Excluded", "path", rel)
			if info.IsDir() {
				return filepath.SkipDir
			}
			plan.Skipped++
			return nil
		}

		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fsys.Stat(p)
			if err != nil {
				slog.Debug("Skipping dangling symlink", "path", rel, "error", err)
				plan.Skipped++
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			slog.Debug("Skipping irregular file", "path", rel, "mode", info.Mode().String())
			plan.Skipped++
			return nil
		}

		segments := strings.Split(rel, "/")
		plan.Entries = append(plan.Entries, Entry{
			LocalPath: p,
			RelPath:   rel,
			Dirs:      segments[:len(segments)-1],
			Name:      segments[len(segments)-1],
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.SliceStable(plan.Entries, func(i, j int) bool {
		return comparePaths(plan.Entries[i].RelPath, plan.Entries[j].RelPath) < 0
	})

	return plan, nil
}

// comparePaths orders slash-separated paths segment by segment, so "a/b"
// sorts before "a-b/c" even though '-' sorts before '/'.
func comparePaths(a, b string) int {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

type excludeSet []glob.Glob

func compileExcludes(patterns []string) (excludeSet, error) {
	var set excludeSet
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		set = append(set, g)
	}
	return set, nil
}

// match tests the relative path and its base name, so a bare pattern such
// as ".DS_Store" matches at any depth.
func (s excludeSet) match(rel string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, g := range s {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
