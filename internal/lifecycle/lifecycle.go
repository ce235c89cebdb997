// Package lifecycle implements the soft-delete state machine shared by every
// binnable entity kind.
//
// An entity is Active while its deletedAt is nil and Binned once it is set.
// Bin and Restore flip that timestamp; Purge removes the record for good and
// leaves the cascade of strictly-owned children to the persistence layer.
// Transitions never touch a child's own deletedAt: a child of a binned parent
// keeps its state but is no longer effectively active.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

// State is the lifecycle position of an entity.
type State int

const (
	Active State = iota
	Binned
	Purged
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Binned:
		return "binned"
	case Purged:
		return "purged"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateOf reports whether rec is active or binned.
func StateOf(rec models.Record) State {
	if rec.Binned() != nil {
		return Binned
	}
	return Active
}

// Op names a transition.
type Op string

const (
	OpBin     Op = "bin"
	OpRestore Op = "restore"
	OpPurge   Op = "purge"
)

// Policy decides what Bin on a binned entity and Restore on an active one do.
type Policy int

const (
	// Idempotent returns the entity unchanged and emits no transition.
	Idempotent Policy = iota
	// Strict fails with apperr.ErrPrecondition.
	Strict
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "idempotent":
		return Idempotent, nil
	case "strict":
		return Strict, nil
	}
	return Idempotent, fmt.Errorf("lifecycle: unknown policy %q", s)
}

// Repo is the per-kind persistence capability the machine drives.
// Find and SetDeletedAt must wrap apperr.ErrNotFound for a missing id.
type Repo[T models.Record] interface {
	Find(ctx context.Context, id int64) (T, error)
	SetDeletedAt(ctx context.Context, id int64, at *time.Time) (T, error)
	Delete(ctx context.Context, id int64) error
}

// Finder loads any record by reference; used to walk ancestor chains.
type Finder interface {
	FindRecord(ctx context.Context, ref models.Ref) (models.Record, error)
}

// Transition describes a committed state change.
type Transition struct {
	Ref models.Ref
	Op  Op
	At  time.Time
}

// Observer is notified after the persistence write of a transition succeeded.
// It runs synchronously with the ctx of the call that caused the transition.
type Observer func(context.Context, Transition)

type config struct {
	policy    Policy
	now       func() time.Time
	observers []Observer
}

// Option configures a Machine.
type Option func(*config)

// WithPolicy sets the policy for repeated transitions.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// Machine applies lifecycle transitions to one entity kind.
type Machine[T models.Record] struct {
	kind models.Kind
	repo Repo[T]
	cfg  config
}

// New creates a Machine for kind backed by repo.
func New[T models.Record](kind models.Kind, repo Repo[T], opts ...Option) *Machine[T] {
	cfg := config{policy: Idempotent, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Machine[T]{kind: kind, repo: repo, cfg: cfg}
}

// Kind returns the entity kind this machine handles.
func (m *Machine[T]) Kind() models.Kind { return m.kind }

// Bin moves an active entity to the bin. The timestamp defaults to the clock;
// a non-zero at overrides it.
func (m *Machine[T]) Bin(ctx context.Context, id int64, at ...time.Time) (T, error) {
	rec, err := m.repo.Find(ctx, id)
	if err != nil {
		return rec, err
	}
	if StateOf(rec) == Binned {
		if m.cfg.policy == Strict {
			var zero T
			return zero, fmt.Errorf("%s %d is already binned: %w", m.kind, id, apperr.ErrPrecondition)
		}
		return rec, nil
	}

	ts := m.cfg.now()
	if len(at) > 0 && !at[0].IsZero() {
		ts = at[0]
	}
	ts = ts.UTC().Truncate(time.Millisecond)

	out, err := m.repo.SetDeletedAt(ctx, id, &ts)
	if err != nil {
		return out, err
	}
	m.notify(ctx, Transition{Ref: rec.Ref(), Op: OpBin, At: ts})
	return out, nil
}

// Restore brings a binned entity back to active.
func (m *Machine[T]) Restore(ctx context.Context, id int64) (T, error) {
	rec, err := m.repo.Find(ctx, id)
	if err != nil {
		return rec, err
	}
	if StateOf(rec) == Active {
		if m.cfg.policy == Strict {
			var zero T
			return zero, fmt.Errorf("%s %d is not binned: %w", m.kind, id, apperr.ErrPrecondition)
		}
		return rec, nil
	}

	out, err := m.repo.SetDeletedAt(ctx, id, nil)
	if err != nil {
		return out, err
	}
	m.notify(ctx, Transition{Ref: rec.Ref(), Op: OpRestore, At: m.cfg.now().UTC()})
	return out, nil
}

// Purge permanently removes an entity, binned or not.
func (m *Machine[T]) Purge(ctx context.Context, id int64) error {
	rec, err := m.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.notify(ctx, Transition{Ref: rec.Ref(), Op: OpPurge, At: m.cfg.now().UTC()})
	return nil
}

func (m *Machine[T]) notify(ctx context.Context, t Transition) {
	for _, o := range m.cfg.observers {
		o(ctx, t)
	}
}

// EffectivelyActive reports whether rec and every ancestor are active.
func EffectivelyActive(ctx context.Context, f Finder, rec models.Record) (bool, error) {
	for {
		if rec.Binned() != nil {
			return false, nil
		}
		parent, ok := rec.ParentRef()
		if !ok {
			return true, nil
		}
		next, err := f.FindRecord(ctx, parent)
		if err != nil {
			return false, fmt.Errorf("lifecycle: load %s: %w", parent, err)
		}
		rec = next
	}
}
