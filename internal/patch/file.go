package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// #region file-applier
// FileApplier applies diff-match-patch patch text to files under a root
// directory and restores the previous content on revert.
type FileApplier struct {
	root string

	mu        sync.Mutex
	snapshots map[Ref]snapshot
}

type snapshot struct {
	path    string
	content []byte
	mode    fs.FileMode
	existed bool
}

// NewFileApplier creates an applier confined to root.
func NewFileApplier(root string) (*FileApplier, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	return &FileApplier{root: abs, snapshots: map[Ref]snapshot{}}, nil
}

// Apply patches target with change. Either every hunk applies or nothing is written.
func (a *FileApplier) Apply(ctx context.Context, target, change string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(change) == "" {
		return "", fmt.Errorf("apply %s: %w", target, ErrEmptyChange)
	}
	path, err := a.resolve(target)
	if err != nil {
		return "", err
	}

	snap := snapshot{path: path, mode: 0o644}
	old, err := os.ReadFile(path)
	switch {
	case err == nil:
		snap.existed = true
		snap.content = old
		if info, statErr := os.Stat(path); statErr == nil {
			snap.mode = info.Mode().Perm()
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", fmt.Errorf("read %s: %w", target, err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(change)
	if err != nil {
		return "", fmt.Errorf("parse change for %s: %w", target, err)
	}
	patched, results := dmp.PatchApply(patches, string(old))
	for i, ok := range results {
		if !ok {
			return "", fmt.Errorf("apply %s: %w: hunk %d", target, ErrHunkFailed, i+1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", target, err)
	}
	if err := os.WriteFile(path, []byte(patched), snap.mode); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}

	ref := Ref(uuid.NewString())
	a.mu.Lock()
	a.snapshots[ref] = snap
	a.mu.Unlock()
	return ref, nil
}

// Revert restores the content captured before ref was applied.
func (a *FileApplier) Revert(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	snap, ok := a.snapshots[ref]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("revert %s: %w", ref, ErrUnknownRef)
	}

	if snap.existed {
		if err := os.WriteFile(snap.path, snap.content, snap.mode); err != nil {
			return fmt.Errorf("restore %s: %w", snap.path, err)
		}
	} else if err := os.Remove(snap.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", snap.path, err)
	}

	a.mu.Lock()
	delete(a.snapshots, ref)
	a.mu.Unlock()
	return nil
}

func (a *FileApplier) resolve(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("resolve target: %w: empty", ErrTargetOutsideRoot)
	}
	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(a.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resolve %s: %w", target, ErrTargetOutsideRoot)
	}
	return path, nil
}

// #endregion file-applier

// #region make-change
// MakeChange renders the patch text that turns before into after.
func MakeChange(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

// #endregion make-change
