package claims

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ChangeListener receives document changes after a write commits, the way a database trigger would.
type ChangeListener func(ctx context.Context, change DocumentChange)

// MemoryRepository is an in-memory UserStore intended for local development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	store    map[string]UserRecord
	listener ChangeListener
	now      func() time.Time
	seq      int
}

// NewMemoryRepository returns an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		store: make(map[string]UserRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers a listener invoked synchronously after every committed write.
func (r *MemoryRepository) OnChange(listener ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
}

// Put writes a raw record as an external actor would, bypassing derived-field bookkeeping.
func (r *MemoryRepository) Put(ctx context.Context, record UserRecord) {
	r.write(ctx, record.ID, func(UserRecord, bool) (UserRecord, bool) {
		record.UpdatedAt = r.now()
		return record, true
	})
}

func (r *MemoryRepository) GetUser(_ context.Context, id string) (UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.store[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return record, nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, record UserRecord) error {
	r.write(ctx, record.ID, func(UserRecord, bool) (UserRecord, bool) {
		now := r.now()
		record = withRole(record, record.Role)
		record.CreatedAt = now
		record.UpdatedAt = now
		return record, true
	})
	return nil
}

func (r *MemoryRepository) UpdateRole(ctx context.Context, id string, role Role) error {
	return r.update(ctx, id, func(record UserRecord) (UserRecord, error) {
		record = withRole(record, role)
		record.ClaimsUpdated = true
		return record, nil
	})
}

func (r *MemoryRepository) MarkClaimsUpdated(ctx context.Context, id string, role Role) error {
	return r.update(ctx, id, func(record UserRecord) (UserRecord, error) {
		if record.Role != role {
			return record, ErrRoleChanged
		}
		record = withRole(record, role)
		record.ClaimsUpdated = true
		return record, nil
	})
}

func (r *MemoryRepository) ListUnsynced(_ context.Context, after string, limit int) ([]UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []UserRecord
	for _, record := range r.store {
		if !record.ClaimsUpdated && record.Role.Valid() && record.ID > after {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// update mutates an existing record; a mutate error aborts the write.
func (r *MemoryRepository) update(ctx context.Context, id string, mutate func(UserRecord) (UserRecord, error)) error {
	var failure error
	r.write(ctx, id, func(existing UserRecord, ok bool) (UserRecord, bool) {
		if !ok {
			failure = ErrUserNotFound
			return existing, false
		}
		updated, err := mutate(existing)
		if err != nil {
			failure = err
			return existing, false
		}
		updated.UpdatedAt = r.now()
		return updated, true
	})
	return failure
}

// write applies mutate under the lock and notifies the listener outside it.
// Nothing is stored when mutate declines the write.
func (r *MemoryRepository) write(ctx context.Context, id string, mutate func(existing UserRecord, ok bool) (UserRecord, bool)) {
	r.mu.Lock()
	existing, ok := r.store[id]
	next, commit := mutate(existing, ok)
	if !commit {
		r.mu.Unlock()
		return
	}
	next.ID = id
	r.store[id] = next
	r.seq++
	seq := r.seq
	listener := r.listener
	r.mu.Unlock()

	if listener == nil {
		return
	}

	change := DocumentChange{
		EventID: "memory-" + strconv.Itoa(seq),
		Key:     id,
		After:   Snapshot{Role: next.Role, ClaimsUpdated: next.ClaimsUpdated},
	}
	if ok {
		change.Before = &Snapshot{Role: existing.Role, ClaimsUpdated: existing.ClaimsUpdated}
	}
	listener(ctx, change)
}

func withRole(record UserRecord, role Role) UserRecord {
	claims := ClaimsForRole(role)
	record.Role = role
	record.IsSubmitter = claims.IsSubmitter
	record.IsVerifier = claims.IsVerifier
	record.IsFunder = claims.IsFunder
	record.IsAdmin = claims.IsAdmin
	return record
}
