package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/iabetor/feedbot/internal/database"
)

func newTestDB(t *testing.T, dir string) *database.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(dir, "feedbot.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestKVGetMissing(t *testing.T) {
	db := newTestDB(t, t.TempDir())
	defer db.Close()
	kv := NewKV(db, "rss")

	m := map[string]string{"keep": "me"}
	found, err := kv.Get("subscription_names", &m)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Fatal("不存在的 key 应返回 found=false")
	}
	if m["keep"] != "me" {
		t.Error("未找到时不应修改目标值")
	}
}

func TestKVSetAndGet(t *testing.T) {
	db := newTestDB(t, t.TempDir())
	defer db.Close()
	kv := NewKV(db, "rss")

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := kv.Set("subscriptions_last_ts", map[string]time.Time{"tech": ts}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got map[string]time.Time
	found, err := kv.Get("subscriptions_last_ts", &got)
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if !got["tech"].Equal(ts) {
		t.Errorf("时间不匹配: %v", got["tech"])
	}

	// 覆盖写入
	if err := kv.Set("subscriptions_last_ts", map[string]time.Time{}); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	got = nil
	if _, err := kv.Get("subscriptions_last_ts", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("覆盖后应为空，得到 %v", got)
	}
}

func TestKVNamespaceIsolation(t *testing.T) {
	db := newTestDB(t, t.TempDir())
	defer db.Close()

	a := NewKV(db, "a")
	b := NewKV(db, "b")
	if err := a.Set("k", "from-a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v string
	found, err := b.Get("k", &v)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Fatal("不同命名空间不应共享 key")
	}
}

func TestKVPersistence(t *testing.T) {
	dir := t.TempDir()

	db1 := newTestDB(t, dir)
	_ = NewKV(db1, "rss").Set("subscription_names", map[string]string{"tech": "https://example.com/feed"})
	db1.Close()

	db2 := newTestDB(t, dir)
	defer db2.Close()
	var got map[string]string
	found, err := NewKV(db2, "rss").Get("subscription_names", &got)
	if err != nil || !found {
		t.Fatalf("重新打开后应能读到数据: found=%v err=%v", found, err)
	}
	if got["tech"] != "https://example.com/feed" {
		t.Errorf("数据不匹配: %v", got)
	}
}
