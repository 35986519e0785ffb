package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iabetor/feedbot/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB 是插件存储使用的数据库连接。
// SQLite 和 PostgreSQL 共用同一套表结构，占位符由 Rebind 统一转换。
type DB struct {
	*sql.DB
	driver string
}

// Open 按驱动打开数据库。
// sqlite: source 是数据库文件路径；postgres: source 是连接串。
func Open(driver, source string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(source)
	case DriverPostgres:
		return openPostgres(source)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}
}

func openSQLite(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("SQLite 数据库路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// SQLite 单写者，串行化连接避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, driver: DriverSQLite}, nil
}

func openPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接 PostgreSQL 失败: %w", err)
	}

	logger.Info("[database] PostgreSQL 已连接")
	return &DB{DB: db, driver: DriverPostgres}, nil
}

// Driver 返回驱动名。
func (db *DB) Driver() string {
	return db.driver
}

// Rebind 把 ? 占位符转换为当前驱动的格式（PostgreSQL 使用 $1, $2...）。
func (db *DB) Rebind(query string) string {
	if db.Driver() != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 插件键值存储，value 为 JSON
		`CREATE TABLE IF NOT EXISTS plugin_store (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	logger.Info("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
