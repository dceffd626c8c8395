package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/apperrors"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
)

var (
	// ErrNoMatch is returned by Match when no active endpoint serves the request.
	ErrNoMatch = errors.New("no matching endpoint")
	// ErrAmbiguousMatch means two active endpoints matched with equal
	// specificity. Collision checks on write keep this from happening.
	ErrAmbiguousMatch = errors.New("ambiguous endpoint match")
)

// Store persists endpoint definitions. The registry calls it while holding its
// writer lock, before the change becomes visible to Match.
type Store interface {
	Create(ctx context.Context, def *models.EndpointDefinition) error
	Update(ctx context.Context, def *models.EndpointDefinition) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

// Match is the result of a successful lookup.
type Match struct {
	Endpoint   *models.EndpointDefinition
	PathValues map[string]string
}

type entry struct {
	def     *models.EndpointDefinition
	pattern Pattern
}

type shapeKey struct {
	method   string
	segments int
}

// Registry holds the endpoint definitions of one project and resolves requests
// to them. Any number of Match calls run concurrently; writers are serialized
// and swap in a fully built entry under a short exclusive lock, so readers see
// a definition either before or after a write.
type Registry struct {
	writeMu sync.Mutex // serializes Register, Update, Remove and Load
	mu      sync.RWMutex
	store   Store
	now     func() time.Time

	byID   map[uuid.UUID]*entry
	active map[shapeKey][]*entry
}

// NewRegistry creates an empty registry. store may be nil for a registry that
// lives only in memory.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		now:    time.Now,
		byID:   make(map[uuid.UUID]*entry),
		active: make(map[shapeKey][]*entry),
	}
}

// Load replaces the registry contents with defs. Definitions that fail to parse
// or that collide with an earlier active definition are kept out of matching
// and reported in the returned error; everything else is installed.
func (r *Registry) Load(defs []*models.EndpointDefinition) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	byID := make(map[uuid.UUID]*entry, len(defs))
	active := make(map[shapeKey][]*entry)
	var errs []error

	for _, def := range defs {
		pattern, err := ParsePattern(def.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", def.ID, err))
			continue
		}
		e := &entry{def: def.Clone(), pattern: pattern}
		byID[def.ID] = e

		if !def.IsActive {
			continue
		}
		if existing := findCollision(active, e, uuid.Nil); existing != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", def.ID, collisionError(e, existing)))
			continue
		}
		key := keyFor(e)
		active[key] = append(active[key], e)
	}

	r.mu.Lock()
	r.byID = byID
	r.active = active
	r.mu.Unlock()

	return errors.Join(errs...)
}

// Register adds a new definition and returns it with its generated id and
// timestamps. An active definition that collides with another active one is
// rejected with a *apperrors.CollisionError and nothing changes.
func (r *Registry) Register(ctx context.Context, def *models.EndpointDefinition) (*models.EndpointDefinition, error) {
	pattern, err := ParsePattern(def.Path)
	if err != nil {
		return nil, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored := def.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if _, exists := r.byID[stored.ID]; exists {
		return nil, fmt.Errorf("endpoint %s already registered: %w", stored.ID, apperrors.ErrConflict)
	}
	stored.Method = strings.ToUpper(stored.Method)
	stored.Path = pattern.String()
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	e := &entry{def: stored, pattern: pattern}
	if stored.IsActive {
		if existing := findCollision(r.active, e, uuid.Nil); existing != nil {
			return nil, collisionError(e, existing)
		}
	}

	if r.store != nil {
		if err := r.store.Create(ctx, stored); err != nil {
			return nil, fmt.Errorf("persist endpoint: %w", err)
		}
	}

	r.mu.Lock()
	r.byID[stored.ID] = e
	if stored.IsActive {
		key := keyFor(e)
		r.active[key] = append(r.active[key], e)
	}
	r.mu.Unlock()

	return stored.Clone(), nil
}

// Update replaces the definition with the given id. The id and creation time
// are preserved.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, def *models.EndpointDefinition) (*models.EndpointDefinition, error) {
	pattern, err := ParsePattern(def.Path)
	if err != nil {
		return nil, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	previous, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("endpoint %s: %w", id, apperrors.ErrNotFound)
	}

	stored := def.Clone()
	stored.ID = id
	stored.ProjectID = previous.def.ProjectID
	stored.Method = strings.ToUpper(stored.Method)
	stored.Path = pattern.String()
	stored.CreatedAt = previous.def.CreatedAt
	stored.UpdatedAt = r.now()

	e := &entry{def: stored, pattern: pattern}
	if stored.IsActive {
		if existing := findCollision(r.active, e, id); existing != nil {
			return nil, collisionError(e, existing)
		}
	}

	if r.store != nil {
		if err := r.store.Update(ctx, stored); err != nil {
			return nil, fmt.Errorf("persist endpoint: %w", err)
		}
	}

	r.mu.Lock()
	r.removeActiveLocked(previous)
	r.byID[id] = e
	if stored.IsActive {
		key := keyFor(e)
		r.active[key] = append(r.active[key], e)
	}
	r.mu.Unlock()

	return stored.Clone(), nil
}

// Remove deletes the definition with the given id.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	previous, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("endpoint %s: %w", id, apperrors.ErrNotFound)
	}

	if r.store != nil {
		if err := r.store.Delete(ctx, previous.def.ProjectID, id); err != nil {
			return fmt.Errorf("delete endpoint: %w", err)
		}
	}

	r.mu.Lock()
	r.removeActiveLocked(previous)
	delete(r.byID, id)
	r.mu.Unlock()

	return nil
}

// Get returns a copy of the definition with the given id.
func (r *Registry) Get(id uuid.UUID) (*models.EndpointDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("endpoint %s: %w", id, apperrors.ErrNotFound)
	}
	return e.def.Clone(), nil
}

// List returns copies of all definitions, ordered by path then method.
func (r *Registry) List() []*models.EndpointDefinition {
	r.mu.RLock()
	defs := make([]*models.EndpointDefinition, 0, len(r.byID))
	for _, e := range r.byID {
		defs = append(defs, e.def.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Path != defs[j].Path {
			return defs[i].Path < defs[j].Path
		}
		if defs[i].Method != defs[j].Method {
			return defs[i].Method < defs[j].Method
		}
		return defs[i].ID.String() < defs[j].ID.String()
	})
	return defs
}

// Match resolves a request to the most specific active definition. A path with
// a trailing slash is first matched as-is, then without the slash.
func (r *Registry) Match(method, rawPath string) (*Match, error) {
	method = strings.ToUpper(method)
	parts := splitPath(rawPath)

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, err := r.matchLocked(method, parts)
	if errors.Is(err, ErrNoMatch) && len(parts) > 0 && parts[len(parts)-1] == "" {
		m, err = r.matchLocked(method, parts[:len(parts)-1])
	}
	return m, err
}

func (r *Registry) matchLocked(method string, parts []string) (*Match, error) {
	var (
		best       *entry
		bestValues map[string]string
		tied       bool
	)

	for _, e := range r.active[shapeKey{method: method, segments: len(parts)}] {
		values, ok := e.pattern.match(parts)
		if !ok {
			continue
		}
		switch {
		case best == nil || e.pattern.Placeholders() < best.pattern.Placeholders():
			best, bestValues, tied = e, values, false
		case e.pattern.Placeholders() == best.pattern.Placeholders():
			tied = true
		}
	}

	if best == nil {
		return nil, ErrNoMatch
	}
	if tied {
		return nil, fmt.Errorf("%w: %s %s", ErrAmbiguousMatch, method, best.pattern)
	}
	return &Match{Endpoint: best.def.Clone(), PathValues: bestValues}, nil
}

// removeActiveLocked drops e from the active index. Caller holds r.mu.
func (r *Registry) removeActiveLocked(e *entry) {
	key := keyFor(e)
	list := r.active[key]
	for i, candidate := range list {
		if candidate == e {
			next := make([]*entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(r.active, key)
			} else {
				r.active[key] = next
			}
			return
		}
	}
}

func findCollision(active map[shapeKey][]*entry, e *entry, ignore uuid.UUID) *entry {
	for _, candidate := range active[keyFor(e)] {
		if candidate.def.ID == ignore {
			continue
		}
		if candidate.pattern.overlaps(e.pattern) {
			return candidate
		}
	}
	return nil
}

func collisionError(e, existing *entry) *apperrors.CollisionError {
	return &apperrors.CollisionError{
		Method:     e.def.Method,
		Path:       e.pattern.String(),
		ExistingID: existing.def.ID.String(),
	}
}

func keyFor(e *entry) shapeKey {
	return shapeKey{method: strings.ToUpper(e.def.Method), segments: len(e.pattern.segments)}
}
