// Package inmemory provides an in-memory implementation of the RecoveryRepository
// interface. It stores all execution and token state in maps within memory, suitable
// for testing and drill scenarios where durable persistence is not required.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
)

// sharedState holds the maps behind one repository instance. Transaction views share
// it with the root repository.
type sharedState struct {
	executions map[string]*model.RecoveryExecution
	tokens     map[string]*model.CallbackToken
	mu         sync.RWMutex // Mutex to protect concurrent access to maps.
}

// InMemoryRecoveryRepository is an in-memory implementation of the RecoveryRepository
// interface. The optimistic-concurrency contract matches the SQL implementation: an
// update only commits when the stored version equals the expected version.
type InMemoryRecoveryRepository struct {
	state *sharedState
	// inTx marks a view handed to a Transactional callback. Such a view already holds
	// the write lock, so its operations must not lock again.
	inTx bool
}

// NewInMemoryRecoveryRepository creates and initializes a new instance of InMemoryRecoveryRepository.
func NewInMemoryRecoveryRepository() *InMemoryRecoveryRepository {
	return &InMemoryRecoveryRepository{
		state: &sharedState{
			executions: make(map[string]*model.RecoveryExecution),
			tokens:     make(map[string]*model.CallbackToken),
		},
	}
}

func cloneExecution(re *model.RecoveryExecution) *model.RecoveryExecution {
	if re == nil {
		return nil
	}
	cloned := *re
	cloned.Failures = append(model.FailureList(nil), re.Failures...)
	cloned.Waves = make([]*model.WaveExecution, len(re.Waves))
	for i, w := range re.Waves {
		cw := *w
		cw.ServerIDs = append(model.ServerIDList(nil), w.ServerIDs...)
		cw.ServerStatuses = append(model.ServerStatusList(nil), w.ServerStatuses...)
		cloned.Waves[i] = &cw
	}
	return &cloned
}

func cloneToken(t *model.CallbackToken) *model.CallbackToken {
	if t == nil {
		return nil
	}
	cloned := *t
	if t.ConsumedAt != nil {
		ts := *t.ConsumedAt
		cloned.ConsumedAt = &ts
	}
	return &cloned
}

func (r *InMemoryRecoveryRepository) lock() {
	if !r.inTx {
		r.state.mu.Lock()
	}
}

func (r *InMemoryRecoveryRepository) unlock() {
	if !r.inTx {
		r.state.mu.Unlock()
	}
}

func (r *InMemoryRecoveryRepository) rlock() {
	if !r.inTx {
		r.state.mu.RLock()
	}
}

func (r *InMemoryRecoveryRepository) runlock() {
	if !r.inTx {
		r.state.mu.RUnlock()
	}
}

// --- RecoveryExecution implementation ---

// SaveExecution persists a new RecoveryExecution.
// It returns an error if an execution with the same ID already exists.
func (r *InMemoryRecoveryRepository) SaveExecution(ctx context.Context, execution *model.RecoveryExecution) error {
	r.lock()
	defer r.unlock()

	if _, exists := r.state.executions[execution.ID]; exists {
		return fmt.Errorf("RecoveryExecution with ID %s already exists", execution.ID)
	}
	r.state.executions[execution.ID] = cloneExecution(execution)
	return nil
}

// UpdateExecution conditionally updates an existing RecoveryExecution.
func (r *InMemoryRecoveryRepository) UpdateExecution(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int) error {
	r.lock()
	defer r.unlock()

	stored, exists := r.state.executions[execution.ID]
	if !exists {
		return repository.ErrExecutionNotFound
	}
	if stored.Version != expectedVersion {
		return exception.NewVersionConflictError("repository", fmt.Sprintf("RecoveryExecution (ID: %s) with version %d not found for update", execution.ID, expectedVersion), nil)
	}

	execution.Version = expectedVersion + 1
	execution.LastUpdated = time.Now()
	r.state.executions[execution.ID] = cloneExecution(execution)
	return nil
}

// FindExecutionByID finds a RecoveryExecution by its ID, waves included.
func (r *InMemoryRecoveryRepository) FindExecutionByID(ctx context.Context, executionID string) (*model.RecoveryExecution, error) {
	r.rlock()
	defer r.runlock()

	execution, ok := r.state.executions[executionID]
	if !ok {
		return nil, repository.ErrExecutionNotFound
	}

	// Deep copy to prevent external modification of internal state.
	cloned := cloneExecution(execution)
	sort.Slice(cloned.Waves, func(i, j int) bool {
		return cloned.Waves[i].WaveNumber < cloned.Waves[j].WaveNumber
	})
	return cloned, nil
}

// ListActiveExecutions returns every execution that has not reached a terminal status,
// ordered by creation time.
func (r *InMemoryRecoveryRepository) ListActiveExecutions(ctx context.Context) ([]*model.RecoveryExecution, error) {
	r.rlock()
	defer r.runlock()

	active := make([]*model.RecoveryExecution, 0)
	for _, execution := range r.state.executions {
		if !execution.Status.IsFinished() {
			active = append(active, cloneExecution(execution))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreateTime.Before(active[j].CreateTime)
	})
	return active, nil
}

// --- CallbackToken implementation ---

// SaveToken persists a new CallbackToken.
func (r *InMemoryRecoveryRepository) SaveToken(ctx context.Context, token *model.CallbackToken) error {
	r.lock()
	defer r.unlock()

	if _, exists := r.state.tokens[token.Token]; exists {
		return fmt.Errorf("CallbackToken %s already exists", token.Token)
	}
	r.state.tokens[token.Token] = cloneToken(token)
	return nil
}

// FindTokenByValue finds a CallbackToken by its opaque value.
func (r *InMemoryRecoveryRepository) FindTokenByValue(ctx context.Context, token string) (*model.CallbackToken, error) {
	r.rlock()
	defer r.runlock()

	stored, ok := r.state.tokens[token]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return cloneToken(stored), nil
}

// MarkTokenConsumed flips consumed from false to true exactly once.
func (r *InMemoryRecoveryRepository) MarkTokenConsumed(ctx context.Context, token string, consumedAt time.Time) error {
	r.lock()
	defer r.unlock()

	stored, ok := r.state.tokens[token]
	if !ok {
		return repository.ErrTokenNotFound
	}
	if stored.Consumed {
		return exception.NewRecoveryError("InMemoryRecoveryRepository.MarkTokenConsumed", "CallbackToken already consumed", exception.ErrTokenConsumed, false)
	}
	stored.Consumed = true
	ts := consumedAt
	stored.ConsumedAt = &ts
	return nil
}

// ListExpiredUnconsumedTokens finds every unconsumed token expired at the given instant.
func (r *InMemoryRecoveryRepository) ListExpiredUnconsumedTokens(ctx context.Context, now time.Time) ([]*model.CallbackToken, error) {
	r.rlock()
	defer r.runlock()

	var expired []*model.CallbackToken
	for _, t := range r.state.tokens {
		if !t.Consumed && t.IsExpired(now) {
			expired = append(expired, cloneToken(t))
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

// --- Transaction support ---

// Transactional runs fn atomically. The write lock is held for the duration of fn, and
// on error the maps are restored from a snapshot taken at entry, so partial writes are
// never observed.
func (r *InMemoryRecoveryRepository) Transactional(ctx context.Context, fn func(ctx context.Context, repo repository.RecoveryRepository) error) error {
	if r.inTx {
		// Already inside a transaction: reuse it.
		return fn(ctx, r)
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	snapshotExecutions := make(map[string]*model.RecoveryExecution, len(r.state.executions))
	for id, e := range r.state.executions {
		snapshotExecutions[id] = cloneExecution(e)
	}
	snapshotTokens := make(map[string]*model.CallbackToken, len(r.state.tokens))
	for v, t := range r.state.tokens {
		snapshotTokens[v] = cloneToken(t)
	}

	txRepo := &InMemoryRecoveryRepository{state: r.state, inTx: true}
	if err := fn(ctx, txRepo); err != nil {
		r.state.executions = snapshotExecutions
		r.state.tokens = snapshotTokens
		return err
	}
	return nil
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryRecoveryRepository) Close() error {
	return nil
}

var _ repository.RecoveryRepository = (*InMemoryRecoveryRepository)(nil)
