// Package mysql 提供基于 MySQL 的记忆仓库实现，供多副本部署共享记忆。
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"Nova-Assistant/deploy/migrations"
	xerrors "Nova-Assistant/internal/errors"
	"Nova-Assistant/internal/memory"
)

// Repository 使用 MySQL 保存键值记忆与动作历史。
type Repository struct {
	db *sql.DB
}

// NewRepository 创建 MySQL 记忆仓库并初始化表结构。
func NewRepository(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	repo := &Repository{db: db}
	if err := repo.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// initSchema 按文件名顺序执行内嵌的迁移脚本。脚本都是幂等的
// CREATE TABLE IF NOT EXISTS，重复启动不会破坏已有数据。
func (r *Repository) initSchema() error {
	entries, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "枚举迁移脚本失败")
	}
	sort.Strings(entries)

	for _, name := range entries {
		script, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移脚本失败: "+name)
		}
		if _, err := r.db.Exec(string(script)); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行迁移脚本失败: "+name)
		}
	}
	return nil
}

// SaveAction 实现 memory.Repository 接口。
func (r *Repository) SaveAction(ctx context.Context, record memory.ActionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	const stmt = `INSERT INTO actions (id, user_id, user_input, intent, result_summary, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, stmt,
		record.ID,
		record.UserID,
		record.UserInput,
		record.Intent,
		record.ResultSummary,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict, "动作记录已存在")
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入动作历史失败")
	}
	return nil
}

// RecentActions 实现 memory.Repository 接口。
func (r *Repository) RecentActions(ctx context.Context, userID string, limit int) ([]memory.ActionRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, user_id, user_input, intent, result_summary, created_at
        FROM actions ORDER BY created_at DESC, id DESC LIMIT ?`
	args := []any{limit}
	if userID != "" {
		query = `SELECT id, user_id, user_input, intent, result_summary, created_at
        FROM actions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
		args = []any{userID, limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询动作历史失败")
	}
	defer rows.Close()

	results := make([]memory.ActionRecord, 0, limit)
	for rows.Next() {
		var record memory.ActionRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.UserInput, &record.Intent, &record.ResultSummary, &createdAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取动作历史失败")
		}
		record.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历动作历史失败")
	}
	return results, nil
}

// UpsertMemory 实现 memory.Repository 接口。
func (r *Repository) UpsertMemory(ctx context.Context, record memory.MemoryRecord) error {
	if record.Category == "" || record.Key == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记忆的 category 和 key 不能为空")
	}
	payload, err := json.Marshal(record.Value)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码记忆内容失败")
	}

	const stmt = `INSERT INTO memories (category, mem_key, value, updated_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	if _, err := r.db.ExecContext(ctx, stmt, record.Category, record.Key, string(payload), time.Now().Unix()); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入记忆失败")
	}
	return nil
}

// GetMemory 实现 memory.Repository 接口。
func (r *Repository) GetMemory(ctx context.Context, category, key string) (*memory.MemoryRecord, error) {
	const query = `SELECT category, mem_key, value, updated_at FROM memories WHERE category = ? AND mem_key = ?`

	var record memory.MemoryRecord
	var payload string
	var updatedAt int64
	err := r.db.QueryRowContext(ctx, query, category, key).Scan(&record.Category, &record.Key, &payload, &updatedAt)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询记忆失败")
	}
	if err := json.Unmarshal([]byte(payload), &record.Value); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析记忆内容失败")
	}
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return &record, nil
}

// ListCategory 实现 memory.Repository 接口。
func (r *Repository) ListCategory(ctx context.Context, category string, limit int) ([]memory.MemoryRecord, error) {
	if limit <= 0 {
		limit = 25
	}

	const query = `SELECT category, mem_key, value, updated_at FROM memories
        WHERE category = ? ORDER BY updated_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, category, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询记忆分类失败")
	}
	defer rows.Close()

	results := make([]memory.MemoryRecord, 0, limit)
	for rows.Next() {
		var record memory.MemoryRecord
		var payload string
		var updatedAt int64
		if err := rows.Scan(&record.Category, &record.Key, &payload, &updatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取记忆失败")
		}
		if err := json.Unmarshal([]byte(payload), &record.Value); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析记忆内容失败")
		}
		record.UpdatedAt = time.Unix(updatedAt, 0)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历记忆失败")
	}
	return results, nil
}

// Close 关闭数据库连接。
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var _ memory.Repository = (*Repository)(nil)
