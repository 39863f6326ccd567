package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestGormWriterLogsThroughLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	gormWriter{logg: logg}.Printf("SLOW SQL >= %v", "500ms")

	if !strings.Contains(buf.String(), `"component":"gorm"`) || !strings.Contains(buf.String(), "SLOW SQL >= 500ms") {
		t.Fatalf("expected gorm warning in log, got %s", buf.String())
	}
}

func TestNewOpensSQLiteForLocalRuns(t *testing.T) {
	cfg := config.DBConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "stagecall.db"),
		MaxOpenConns: 1,
	}
	client, err := New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()
	if err := client.DB().AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestFromConnWrapsHandle(t *testing.T) {
	db := newTestDB(t)
	client := FromConn(db)
	if client.DB() != db {
		t.Fatal("expected wrapped connection")
	}
	if err := client.DB().Create(&testModel{Name: "x"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestPing(t *testing.T) {
	client := FromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	sqliteErr := errors.New("UNIQUE constraint failed: notification_preferences.user_id, notification_preferences.community_id")
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatal("expected sqlite unique failure to be detected")
	}
	pgErr := errors.New(`ERROR: duplicate key value violates unique constraint "notification_preferences_user_community_key"`)
	if !IsUniqueViolation(pgErr, "notification_preferences_user_community_key") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(pgErr, "user_devices_token_key") {
		t.Fatal("unexpected match on a different constraint")
	}
}
