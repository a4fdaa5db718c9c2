package locker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides locker management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-updating CRUD operations. Message-path lookups (by topic, by
// door) are served from the cache without touching SQLite.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Locker // Cached lockers by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new locker registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Locker),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all lockers from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	lockers, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading lockers: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Locker, len(lockers))
	for i := range lockers {
		l := lockers[i]
		r.cache[l.ID] = l.DeepCopy()
	}

	r.logger.Info("locker cache refreshed", "count", len(lockers))
	return nil
}

// GetLocker retrieves a locker by ID.
// Returns ErrLockerNotFound if the locker does not exist.
// The returned locker is a deep copy; callers can safely modify it.
func (r *Registry) GetLocker(ctx context.Context, id string) (*Locker, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new locker not yet cached)
	l, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = l.DeepCopy()
	r.cacheMu.Unlock()

	return l, nil
}

// GetLockerByName retrieves a locker by its unique name.
// The returned locker is a deep copy; callers can safely modify it.
func (r *Registry) GetLockerByName(ctx context.Context, name string) (*Locker, error) {
	r.cacheMu.RLock()
	for _, l := range r.cache {
		if l.Name == name {
			cpy := l.DeepCopy()
			r.cacheMu.RUnlock()
			return cpy, nil
		}
	}
	r.cacheMu.RUnlock()

	return r.repo.GetByName(ctx, name)
}

// ListLockers retrieves all lockers.
// The returned lockers are deep copies; callers can safely modify them.
func (r *Registry) ListLockers(ctx context.Context) ([]Locker, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		lockers := make([]Locker, 0, len(r.cache))
		for _, l := range r.cache {
			lockers = append(lockers, *l.DeepCopy())
		}
		return lockers, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// ListByStatus retrieves all lockers with the given status.
// The returned lockers are deep copies; callers can safely modify them.
func (r *Registry) ListByStatus(ctx context.Context, status Status) ([]Locker, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var lockers []Locker
		for _, l := range r.cache {
			if l.Status == status {
				lockers = append(lockers, *l.DeepCopy())
			}
		}
		return lockers, nil
	}

	return r.repo.ListByStatus(ctx, status)
}

// FindByTopic retrieves all lockers registered on the given base topic.
// A controller base topic resolves to up to two compartments. Served
// from the cache; this sits on the hot message path.
func (r *Registry) FindByTopic(baseTopic string) []Locker {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var lockers []Locker
	for _, l := range r.cache {
		if l.Topic == baseTopic {
			lockers = append(lockers, *l.DeepCopy())
		}
	}
	return lockers
}

// FindByDoor retrieves all lockers whose name matches a scanned door
// reference (exact compartment or whole bank). Served from the cache.
func (r *Registry) FindByDoor(ref DoorRef) []Locker {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var lockers []Locker
	for _, l := range r.cache {
		if ref.Matches(l.Name) {
			lockers = append(lockers, *l.DeepCopy())
		}
	}
	return lockers
}

// CreateLocker inserts a new locker and caches it.
func (r *Registry) CreateLocker(ctx context.Context, l *Locker) error {
	if err := r.repo.Create(ctx, l); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[l.ID] = l.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("locker created", "locker_id", l.ID, "name", l.Name)
	return nil
}

// UpdateLocker modifies an existing locker and updates the cache.
func (r *Registry) UpdateLocker(ctx context.Context, l *Locker) error {
	if err := r.repo.Update(ctx, l); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[l.ID] = l.DeepCopy()
	r.cacheMu.Unlock()

	return nil
}

// DeleteLocker removes a locker and evicts it from the cache.
func (r *Registry) DeleteLocker(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Debug("locker deleted", "locker_id", id)
	return nil
}

// RecordHeartbeat refreshes liveness fields from a controller heartbeat
// and keeps the cache in sync.
func (r *Registry) RecordHeartbeat(ctx context.Context, id, ipAddress string, uptimeSeconds int64, at time.Time) error {
	if err := r.repo.UpdateHeartbeat(ctx, id, ipAddress, uptimeSeconds, at); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.IPAddress = ipAddress
		cached.UptimeSeconds = uptimeSeconds
		cached.Online = true
		hb := at.UTC()
		cached.LastHeartbeatAt = &hb
		cached.UpdatedAt = time.Now().UTC()
	}
	r.cacheMu.Unlock()

	return nil
}

// SetOnline flips a locker's online flag and keeps the cache in sync.
func (r *Registry) SetOnline(ctx context.Context, id string, online bool) error {
	if err := r.repo.SetOnline(ctx, id, online); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.Online = online
		cached.UpdatedAt = time.Now().UTC()
	}
	r.cacheMu.Unlock()

	return nil
}
