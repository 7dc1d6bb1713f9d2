package session

import (
	"context"
	"sync"
	"time"

	"Nova-Assistant/internal/agent"
	xerrors "Nova-Assistant/internal/errors"
)

// MemoryStore 以内存方式保存会话，是单机部署的默认实现。
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	leases   map[string]chan struct{}
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		leases:   make(map[string]chan struct{}),
	}
}

// GetOrCreate 实现 Store 接口。
func (m *MemoryStore) GetOrCreate(_ context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "用户 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		now := time.Now()
		sess = &Session{
			UserID:      userID,
			CreatedAt:   now,
			LastUpdated: now,
		}
		m.sessions[userID] = sess
	}
	return sess.Clone(), nil
}

// Get 实现 Store 接口。
func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Save 实现 Store 接口。
func (m *MemoryStore) Save(_ context.Context, userID string, state *agent.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.State = state.Clone()
	sess.LastUpdated = time.Now()
	return nil
}

// MarkPending 实现 Store 接口。
func (m *MemoryStore) MarkPending(_ context.Context, userID string, pending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.ConfirmationPending = pending
	sess.LastUpdated = time.Now()
	return nil
}

// Acquire 实现 Store 接口。租约是容量为 1 的信号量，按用户隔离。
func (m *MemoryStore) Acquire(ctx context.Context, userID string) error {
	m.mu.Lock()
	lease, ok := m.leases[userID]
	if !ok {
		lease = make(chan struct{}, 1)
		m.leases[userID] = lease
	}
	m.mu.Unlock()

	select {
	case lease <- struct{}{}:
		return nil
	case <-ctx.Done():
		return xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "获取会话租约超时")
	}
}

// Release 实现 Store 接口。
func (m *MemoryStore) Release(userID string) {
	m.mu.Lock()
	lease, ok := m.leases[userID]
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-lease:
	default:
	}
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
