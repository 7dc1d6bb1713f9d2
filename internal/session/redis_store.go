package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Nova-Assistant/internal/agent"
	xerrors "Nova-Assistant/internal/errors"
)

// RedisStoreConfig 描述 Redis 会话存储的连接参数。
type RedisStoreConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// SessionTTL 是会话键的过期时间，0 表示不过期。
	SessionTTL time.Duration
	// LockTTL 是租约键的过期时间，防止持有方崩溃后永久占用。
	LockTTL time.Duration
}

// RedisStore 把会话以 JSON 形式存放在 Redis 中，租约用 SET NX 实现。
// 多副本部署时靠它保证同一用户同一时刻只有一个编排过程在写。
type RedisStore struct {
	client     *redis.Client
	prefix     string
	sessionTTL time.Duration
	lockTTL    time.Duration
}

// NewRedisStore 创建 Redis 会话存储并验证连通性。
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "nova:session"
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		sessionTTL: cfg.SessionTTL,
		lockTTL:    lockTTL,
	}, nil
}

func (r *RedisStore) sessionKey(userID string) string {
	return r.prefix + ":" + userID
}

func (r *RedisStore) lockKey(userID string) string {
	return r.prefix + ":lock:" + userID
}

func (r *RedisStore) load(ctx context.Context, userID string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话失败")
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话数据失败")
	}
	return &sess, nil
}

func (r *RedisStore) persist(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话失败")
	}
	if err := r.client.Set(ctx, r.sessionKey(sess.UserID), raw, r.sessionTTL).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话失败")
	}
	return nil
}

// GetOrCreate 实现 Store 接口。
func (r *RedisStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "用户 ID 不能为空")
	}
	sess, err := r.load(ctx, userID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	now := time.Now()
	sess = &Session{
		UserID:      userID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := r.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get 实现 Store 接口。
func (r *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	return r.load(ctx, userID)
}

// Save 实现 Store 接口。
func (r *RedisStore) Save(ctx context.Context, userID string, state *agent.State) error {
	sess, err := r.load(ctx, userID)
	if err != nil {
		return err
	}
	sess.State = state
	sess.LastUpdated = time.Now()
	return r.persist(ctx, sess)
}

// MarkPending 实现 Store 接口。
func (r *RedisStore) MarkPending(ctx context.Context, userID string, pending bool) error {
	sess, err := r.load(ctx, userID)
	if err != nil {
		return err
	}
	sess.ConfirmationPending = pending
	sess.LastUpdated = time.Now()
	return r.persist(ctx, sess)
}

// Acquire 实现 Store 接口。SET NX 拿不到时轮询等待，直到成功或 ctx 取消。
func (r *RedisStore) Acquire(ctx context.Context, userID string) error {
	key := r.lockKey(userID)
	for {
		ok, err := r.client.SetNX(ctx, key, "1", r.lockTTL).Result()
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取会话租约失败")
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "获取会话租约超时")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release 实现 Store 接口。
func (r *RedisStore) Release(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = r.client.Del(ctx, r.lockKey(userID)).Err()
}

// Close 关闭 Redis 连接。
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
