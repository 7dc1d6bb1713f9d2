package memory

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "Nova-Assistant/internal/errors"
)

// FileRepository 把全部记忆保存在内存中，并在每次写入后整体落盘到
// 单个 JSON 文件，是单机部署的默认实现。文件不存在时从空库启动。
type FileRepository struct {
	mu      sync.RWMutex
	path    string
	data    fileSnapshot
	maxKeep int
}

type fileSnapshot struct {
	Memories []MemoryRecord `json:"memories"`
	Actions  []ActionRecord `json:"actions"`
}

// defaultActionKeep 是落盘文件中保留的动作历史上限，防止文件无界增长。
const defaultActionKeep = 1000

// NewFileRepository 创建文件仓库。path 为空时数据只存在于内存中。
func NewFileRepository(path string) (*FileRepository, error) {
	repo := &FileRepository{path: path, maxKeep: defaultActionKeep}
	if path == "" {
		return repo, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repo, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取记忆文件失败")
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &repo.data); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析记忆文件失败")
		}
	}
	return repo, nil
}

// flushLocked 将当前快照写入磁盘。调用方必须持有写锁。
func (r *FileRepository) flushLocked() error {
	if r.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化记忆失败")
	}
	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建记忆目录失败")
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入记忆文件失败")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "替换记忆文件失败")
	}
	return nil
}

// SaveAction 实现 Repository 接口。
func (r *FileRepository) SaveAction(_ context.Context, record ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.data.Actions = append(r.data.Actions, record)
	if len(r.data.Actions) > r.maxKeep {
		r.data.Actions = r.data.Actions[len(r.data.Actions)-r.maxKeep:]
	}
	return r.flushLocked()
}

// RecentActions 实现 Repository 接口。userID 为空时返回全部用户的历史。
func (r *FileRepository) RecentActions(_ context.Context, userID string, limit int) ([]ActionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	results := make([]ActionRecord, 0, limit)
	for i := len(r.data.Actions) - 1; i >= 0 && len(results) < limit; i-- {
		record := r.data.Actions[i]
		if userID != "" && record.UserID != userID {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// UpsertMemory 实现 Repository 接口。
func (r *FileRepository) UpsertMemory(_ context.Context, record MemoryRecord) error {
	if record.Category == "" || record.Key == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记忆的 category 和 key 不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	record.UpdatedAt = time.Now()
	for i, existing := range r.data.Memories {
		if existing.Category == record.Category && existing.Key == record.Key {
			r.data.Memories[i] = record
			return r.flushLocked()
		}
	}
	r.data.Memories = append(r.data.Memories, record)
	return r.flushLocked()
}

// GetMemory 实现 Repository 接口。
func (r *FileRepository) GetMemory(_ context.Context, category, key string) (*MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.data.Memories {
		if record.Category == category && record.Key == key {
			clone := record
			return &clone, nil
		}
	}
	return nil, nil
}

// ListCategory 实现 Repository 接口。
func (r *FileRepository) ListCategory(_ context.Context, category string, limit int) ([]MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 25
	}
	results := make([]MemoryRecord, 0, limit)
	for _, record := range r.data.Memories {
		if record.Category == category {
			results = append(results, record)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close 对文件仓库无需操作。
func (r *FileRepository) Close() error {
	return nil
}

var _ Repository = (*FileRepository)(nil)
