package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

// memWorld is an in-memory persistence double holding projects and
// properties. Deleting a project drops its properties.
type memWorld struct {
	mu         sync.Mutex
	projects   map[int64]*models.Project
	properties map[int64]*models.Property
}

func newWorld() *memWorld {
	return &memWorld{
		projects:   map[int64]*models.Project{},
		properties: map[int64]*models.Property{},
	}
}

func (w *memWorld) FindRecord(_ context.Context, ref models.Ref) (models.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch ref.Kind {
	case models.KindProject:
		if p, ok := w.projects[ref.ID]; ok {
			cp := *p
			return &cp, nil
		}
	case models.KindProperty:
		if p, ok := w.properties[ref.ID]; ok {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", ref, apperr.ErrNotFound)
}

type projectRepo struct{ w *memWorld }

func (r projectRepo) Find(_ context.Context, id int64) (*models.Project, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.projects[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r projectRepo) SetDeletedAt(_ context.Context, id int64, at *time.Time) (*models.Project, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.projects[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	p.DeletedAt = at
	cp := *p
	return &cp, nil
}

func (r projectRepo) Delete(_ context.Context, id int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	delete(r.w.projects, id)
	for pid, prop := range r.w.properties {
		if prop.ProjectID == id {
			delete(r.w.properties, pid)
		}
	}
	return nil
}

type propertyRepo struct{ w *memWorld }

func (r propertyRepo) Find(_ context.Context, id int64) (*models.Property, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.properties[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r propertyRepo) SetDeletedAt(_ context.Context, id int64, at *time.Time) (*models.Property, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.properties[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	p.DeletedAt = at
	cp := *p
	return &cp, nil
}

func (r propertyRepo) Delete(_ context.Context, id int64) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	delete(r.w.properties, id)
	return nil
}

func seed(t *testing.T) (*memWorld, *Machine[*models.Project], *Machine[*models.Property]) {
	t.Helper()
	w := newWorld()
	w.projects[1] = &models.Project{ID: 1, Name: "Marina Heights"}
	w.properties[10] = &models.Property{ID: 10, ProjectID: 1, Title: "Unit 10"}
	return w, New[*models.Project](models.KindProject, projectRepo{w}), New[*models.Property](models.KindProperty, propertyRepo{w})
}

func TestBinSetsDeletedAt(t *testing.T) {
	_, projects, _ := seed(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New[*models.Project](models.KindProject, projects.repo, WithClock(func() time.Time { return fixed }))

	p, err := m.Bin(context.Background(), 1)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if p.DeletedAt == nil || !p.DeletedAt.Equal(fixed) {
		t.Fatalf("deleted_at = %v, want %v", p.DeletedAt, fixed)
	}
	if StateOf(p) != Binned {
		t.Errorf("state = %s, want binned", StateOf(p))
	}
}

func TestBinExplicitTimestamp(t *testing.T) {
	_, projects, _ := seed(t)
	at := time.Date(2025, 12, 24, 8, 30, 0, 0, time.UTC)
	p, err := projects.Bin(context.Background(), 1, at)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if !p.DeletedAt.Equal(at) {
		t.Errorf("deleted_at = %v, want %v", p.DeletedAt, at)
	}
}

func TestRestoreClearsDeletedAt(t *testing.T) {
	_, projects, _ := seed(t)
	ctx := context.Background()
	if _, err := projects.Bin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	p, err := projects.Restore(ctx, 1)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if p.DeletedAt != nil {
		t.Errorf("deleted_at = %v, want nil", p.DeletedAt)
	}
}

func TestNotFound(t *testing.T) {
	_, projects, _ := seed(t)
	ctx := context.Background()
	if _, err := projects.Bin(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Bin missing: err = %v", err)
	}
	if _, err := projects.Restore(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Restore missing: err = %v", err)
	}
	if err := projects.Purge(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Purge missing: err = %v", err)
	}
}

func TestIdempotentPolicy(t *testing.T) {
	_, projects, _ := seed(t)
	ctx := context.Background()

	var events []Transition
	m := New[*models.Project](models.KindProject, projects.repo, WithObserver(func(_ context.Context, tr Transition) {
		events = append(events, tr)
	}))

	// Restore on an active entity is a no-op.
	p, err := m.Restore(ctx, 1)
	if err != nil || p.DeletedAt != nil {
		t.Fatalf("restore active: p=%+v err=%v", p, err)
	}

	first, err := m.Bin(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Bin(ctx, 1, first.DeletedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Bin: %v", err)
	}
	if !second.DeletedAt.Equal(*first.DeletedAt) {
		t.Errorf("second bin moved deleted_at from %v to %v", first.DeletedAt, second.DeletedAt)
	}
	if len(events) != 1 || events[0].Op != OpBin {
		t.Errorf("events = %+v, want a single bin", events)
	}
}

func TestStrictPolicyRejects(t *testing.T) {
	_, projects, _ := seed(t)
	ctx := context.Background()
	m := New[*models.Project](models.KindProject, projects.repo, WithPolicy(Strict))

	if _, err := m.Restore(ctx, 1); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("restore active: err = %v, want precondition", err)
	}
	if _, err := m.Bin(ctx, 1); err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if _, err := m.Bin(ctx, 1); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("bin binned: err = %v, want precondition", err)
	}
	if _, err := m.Restore(ctx, 1); err != nil {
		t.Errorf("restore binned: %v", err)
	}
}

func TestPurgeCascadesAndNotifies(t *testing.T) {
	w, _, _ := seed(t)
	ctx := context.Background()

	var got []Transition
	projects := New[*models.Project](models.KindProject, projectRepo{w}, WithObserver(func(_ context.Context, tr Transition) {
		got = append(got, tr)
	}))
	if err := projects.Purge(ctx, 1); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := w.FindRecord(ctx, models.Ref{Kind: models.KindProject, ID: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("project still present: %v", err)
	}
	if _, err := w.FindRecord(ctx, models.Ref{Kind: models.KindProperty, ID: 10}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("owned property survived purge: %v", err)
	}
	if len(got) != 1 || got[0].Op != OpPurge || got[0].Ref.ID != 1 {
		t.Errorf("transitions = %+v", got)
	}
}

func TestPurgeActiveDirectly(t *testing.T) {
	_, _, properties := seed(t)
	if err := properties.Purge(context.Background(), 10); err != nil {
		t.Fatalf("purge active: %v", err)
	}
	if _, err := properties.Bin(context.Background(), 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("bin after purge: err = %v", err)
	}
}

func TestEffectiveActivityFollowsParent(t *testing.T) {
	w, projects, _ := seed(t)
	ctx := context.Background()

	active := func() bool {
		t.Helper()
		rec, err := w.FindRecord(ctx, models.Ref{Kind: models.KindProperty, ID: 10})
		if err != nil {
			t.Fatal(err)
		}
		ok, err := EffectivelyActive(ctx, w, rec)
		if err != nil {
			t.Fatal(err)
		}
		return ok
	}

	if !active() {
		t.Fatal("property should start effectively active")
	}
	if _, err := projects.Bin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if w.properties[10].DeletedAt != nil {
		t.Error("binning the project must not touch the property's own deleted_at")
	}
	if active() {
		t.Error("property should be inactive while its project is binned")
	}
	if _, err := projects.Restore(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if !active() {
		t.Error("property should be active again after project restore")
	}
}

func TestRestoreChildUnderBinnedParent(t *testing.T) {
	w, projects, properties := seed(t)
	ctx := context.Background()

	if _, err := properties.Bin(ctx, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := projects.Bin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	prop, err := properties.Restore(ctx, 10)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if prop.DeletedAt != nil {
		t.Errorf("own deleted_at = %v, want nil", prop.DeletedAt)
	}
	ok, err := EffectivelyActive(ctx, w, prop)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("restored child under binned parent must stay inactive")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Idempotent, "idempotent": Idempotent, "strict": Strict} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("lenient"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
