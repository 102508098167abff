package patch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrTargetOutsideRoot is returned for targets resolving outside the applier root.
	ErrTargetOutsideRoot = errors.New("target outside root")
	// ErrHunkFailed is returned when any patch hunk does not apply.
	ErrHunkFailed = errors.New("patch hunk failed")
	// ErrEmptyChange is returned when there is nothing to apply.
	ErrEmptyChange = errors.New("empty change")
	// ErrUnknownRef is returned when reverting a ref the applier never issued.
	ErrUnknownRef = errors.New("unknown applied ref")
)

// #region applier
// Ref identifies one applied change so it can be reverted.
type Ref string

// Applier applies opaque changes to target resources and reverts them.
type Applier interface {
	Apply(ctx context.Context, target, change string) (Ref, error)
	Revert(ctx context.Context, ref Ref) error
}

// #endregion applier

// #region dry-run
// Application is one change recorded by DryRun.
type Application struct {
	Ref    Ref
	Target string
	Change string
}

// DryRun records applies and reverts without touching anything.
// ApplyErr and RevertErr, when set, are returned instead.
type DryRun struct {
	ApplyErr  error
	RevertErr error

	mu       sync.Mutex
	applied  []Application
	reverted []Ref
}

// Apply records the change and returns a sequential ref.
func (d *DryRun) Apply(_ context.Context, target, change string) (Ref, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ApplyErr != nil {
		return "", d.ApplyErr
	}
	ref := Ref(fmt.Sprintf("dry-%d", len(d.applied)+1))
	d.applied = append(d.applied, Application{Ref: ref, Target: target, Change: change})
	return ref, nil
}

// Revert records the revert of ref.
func (d *DryRun) Revert(_ context.Context, ref Ref) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RevertErr != nil {
		return d.RevertErr
	}
	for _, a := range d.applied {
		if a.Ref == ref {
			d.reverted = append(d.reverted, ref)
			return nil
		}
	}
	return fmt.Errorf("revert %s: %w", ref, ErrUnknownRef)
}

// Applied returns every recorded application.
func (d *DryRun) Applied() []Application {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Application(nil), d.applied...)
}

// Reverted returns every reverted ref.
func (d *DryRun) Reverted() []Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Ref(nil), d.reverted...)
}

// #endregion dry-run
