package projector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/cache"
	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/eventstore"
	"example.com/backstage/services/livestock/internal/models"
	"example.com/backstage/services/livestock/internal/repositories"
)

// snapshotCacheTTL bounds staleness if an invalidation is ever missed
const snapshotCacheTTL = 10 * time.Minute

// Projector folds an animal's ordered event stream into its current-state
// snapshot. It is the only writer of snapshot rows.
type Projector struct {
	store     eventstore.EventStore
	snapshots *repositories.SnapshotRepository
	cache     *cache.RedisCache
	locks     *KeyLocks
}

// NewProjector creates a new snapshot projector. The cache may be nil.
func NewProjector(store eventstore.EventStore, snapshots *repositories.SnapshotRepository, redisCache *cache.RedisCache) *Projector {
	return &Projector{
		store:     store,
		snapshots: snapshots,
		cache:     redisCache,
		locks:     NewKeyLocks(),
	}
}

// ResolveIdentity resolves the snapshot identifier for an animal from its
// event history: the most recent event carrying a registration id wins, and
// animals with no registration row get a stable synthetic negative id. All
// callers resolve identity through this one path.
func ResolveIdentity(events []models.Event, animalNumber string, companyID int64) int64 {
	if id := latestEventIdentity(events); id != 0 {
		return id
	}
	return domain.SyntheticAnimalID(animalNumber, companyID)
}

// latestEventIdentity returns the registration id carried by the most recent
// event, or zero when no event in the slice carries one
func latestEventIdentity(events []models.Event) int64 {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].AnimalID != nil {
			return *events[i].AnimalID
		}
	}
	return 0
}

// Project folds all unapplied events for an animal into its snapshot. If a
// prior snapshot exists only events past its (last_event_time, last_event_id)
// marker are fetched and folded on top (incremental path); otherwise the full
// sequence is folded from an empty state. Both paths are algorithmically
// equivalent. With zero new events the existing snapshot is returned
// unchanged, without a write.
func (p *Projector) Project(ctx context.Context, companyID int64, animalNumber string) (*models.AnimalSnapshot, error) {
	number := domain.NormalizeAnimalNumber(animalNumber)

	unlock := p.locks.Lock(companyID, number)
	defer unlock()

	snap, err := p.snapshots.GetByNumber(ctx, companyID, number)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	if snap != nil {
		return p.projectIncremental(ctx, companyID, number, snap)
	}
	return p.projectFull(ctx, companyID, number)
}

// ProjectByID projects the snapshot for a known animal id
func (p *Projector) ProjectByID(ctx context.Context, companyID, animalID int64) (*models.AnimalSnapshot, error) {
	snap, err := p.snapshots.GetByID(ctx, companyID, animalID)
	if err != nil {
		return nil, err
	}
	return p.Project(ctx, companyID, snap.AnimalNumber)
}

// GetByNumber reads a snapshot without projecting, going through the cache
// when available
func (p *Projector) GetByNumber(ctx context.Context, companyID int64, animalNumber string) (*models.AnimalSnapshot, error) {
	number := domain.NormalizeAnimalNumber(animalNumber)

	if p.cache.Enabled() {
		var cached models.AnimalSnapshot
		if err := p.cache.Get(ctx, cache.GetSnapshotCacheKey(companyID, number), &cached); err == nil {
			return &cached, nil
		}
	}

	snap, err := p.snapshots.GetByNumber(ctx, companyID, number)
	if err != nil {
		return nil, err
	}

	p.cacheSnapshot(ctx, snap)
	return snap, nil
}

// GetByID reads a snapshot by animal id without projecting
func (p *Projector) GetByID(ctx context.Context, companyID, animalID int64) (*models.AnimalSnapshot, error) {
	return p.snapshots.GetByID(ctx, companyID, animalID)
}

// List returns snapshots for a company ordered by animal number
func (p *Projector) List(ctx context.Context, companyID int64, status string, limit, offset int) ([]models.AnimalSnapshot, error) {
	return p.snapshots.List(ctx, companyID, status, limit, offset)
}

func (p *Projector) projectIncremental(ctx context.Context, companyID int64, number string, snap *models.AnimalSnapshot) (*models.AnimalSnapshot, error) {
	events, err := p.store.EventsForAnimalAfter(ctx, companyID, number, snap.LastEventTime, snap.LastEventID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		// Nothing new: no write, no version bump
		return snap, nil
	}

	// A registration arriving after the snapshot was first built under a
	// synthetic id re-keys the row to the registration id, matching what a
	// full rebuild would resolve. animal_id is part of the primary key, so
	// the stale row is replaced rather than updated in place.
	rekeyed := false
	if id := latestEventIdentity(events); id != 0 && id != snap.AnimalID {
		if err := p.snapshots.Delete(ctx, companyID, snap.AnimalID); err != nil {
			return nil, err
		}
		snap.AnimalID = id
		rekeyed = true
	}

	for _, event := range events {
		if err := domain.Fold(snap, event); err != nil {
			return nil, err
		}
	}

	snap.SnapshotVersion++
	snap.UpdatedAt = time.Now().UTC()
	if rekeyed {
		err = p.snapshots.Create(ctx, snap)
	} else {
		err = p.snapshots.Save(ctx, snap)
	}
	if err != nil {
		return nil, err
	}

	if snap.AnimalNumber != number {
		// The fold renamed the animal; the entry under the old number is stale
		p.invalidateCached(ctx, companyID, number)
	}

	log.Info().
		Str("animalNumber", snap.AnimalNumber).
		Int64("companyID", companyID).
		Int64("animalID", snap.AnimalID).
		Int("events", len(events)).
		Uint("lastEventID", snap.LastEventID).
		Msg("Snapshot updated incrementally")

	p.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (p *Projector) projectFull(ctx context.Context, companyID int64, number string) (*models.AnimalSnapshot, error) {
	events, err := p.store.EventsForAnimal(ctx, companyID, number)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, apperrors.ErrNotFound
	}

	snap := &models.AnimalSnapshot{
		AnimalID:     ResolveIdentity(events, number, companyID),
		CompanyID:    companyID,
		AnimalNumber: number,
	}

	for _, event := range events {
		if err := domain.Fold(snap, event); err != nil {
			return nil, err
		}
	}

	snap.SnapshotVersion = 1
	snap.UpdatedAt = time.Now().UTC()
	if err := p.snapshots.Create(ctx, snap); err != nil {
		return nil, err
	}

	if snap.AnimalNumber != number {
		p.invalidateCached(ctx, companyID, number)
	}

	log.Info().
		Str("animalNumber", number).
		Int64("companyID", companyID).
		Int64("animalID", snap.AnimalID).
		Int("events", len(events)).
		Msg("Snapshot rebuilt from full event sequence")

	p.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (p *Projector) cacheSnapshot(ctx context.Context, snap *models.AnimalSnapshot) {
	if !p.cache.Enabled() {
		return
	}
	key := cache.GetSnapshotCacheKey(snap.CompanyID, snap.AnimalNumber)
	if err := p.cache.Set(ctx, key, snap, snapshotCacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache snapshot")
	}
}

func (p *Projector) invalidateCached(ctx context.Context, companyID int64, number string) {
	if !p.cache.Enabled() {
		return
	}
	key := cache.GetSnapshotCacheKey(companyID, number)
	if err := p.cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate cached snapshot")
	}
}
