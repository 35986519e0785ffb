// Package storage 提供插件使用的持久化键值存储，值以 JSON 保存。
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iabetor/feedbot/internal/database"
)

// KV 是按命名空间隔离的键值存储，每次 Set 立即落库。
type KV struct {
	db        *database.DB
	namespace string
}

// NewKV 创建键值存储。db 需已完成 Migrate。
func NewKV(db *database.DB, namespace string) *KV {
	return &KV{db: db, namespace: namespace}
}

// Get 读取 key 并解码到 v。key 不存在时返回 (false, nil)，v 保持不变，由调用方决定默认值。
func (s *KV) Get(key string, v interface{}) (bool, error) {
	var raw string
	err := s.db.QueryRow(
		s.db.Rebind("SELECT value FROM plugin_store WHERE namespace = ? AND key = ?"),
		s.namespace, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取 %s/%s 失败: %w", s.namespace, key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("解析 %s/%s 失败: %w", s.namespace, key, err)
	}
	return true, nil
}

// Set 序列化 v 并写入 key（存在则覆盖）。
func (s *KV) Set(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化 %s/%s 失败: %w", s.namespace, key, err)
	}
	_, err = s.db.Exec(s.db.Rebind(`INSERT INTO plugin_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`),
		s.namespace, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("写入 %s/%s 失败: %w", s.namespace, key, err)
	}
	return nil
}
