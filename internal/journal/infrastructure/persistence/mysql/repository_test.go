package mysql

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"github.com/dhet13/finnote/pkg/db"
)

// dryRunDB 只构建 SQL 不执行，捕获仓储生成的查询语句
func dryRunDB(t *testing.T) (*db.DB, *[]string) {
	t.Helper()
	gdb, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	var captured []string
	err = gdb.Callback().Query().After("gorm:query").Register("capture_sql", func(tx *gorm.DB) {
		captured = append(captured, tx.Statement.SQL.String())
	})
	if err != nil {
		t.Fatalf("register capture callback: %v", err)
	}
	return &db.DB{DB: gdb}, &captured
}

func TestJournalLookupLocksRowForUpdate(t *testing.T) {
	database, captured := dryRunDB(t)
	repo := NewJournalRepository(database)
	ctx := context.Background()

	if _, err := repo.GetOrCreate(ctx, "u1", "005930"); err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if _, err := repo.GetByID(ctx, 1); err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}

	if len(*captured) != 2 {
		t.Fatalf("captured %d statements, want 2", len(*captured))
	}
	for _, stmt := range *captured {
		if !strings.Contains(stmt, "FOR UPDATE") {
			t.Errorf("journal lookup not locked: %s", stmt)
		}
	}
}

func TestTradeListingDoesNotLock(t *testing.T) {
	database, captured := dryRunDB(t)
	repo := NewTradeRepository(database)

	if _, err := repo.ListByUserChronological(context.Background(), "u1"); err != nil {
		t.Fatalf("ListByUserChronological() error: %v", err)
	}

	if len(*captured) != 1 {
		t.Fatalf("captured %d statements, want 1", len(*captured))
	}
	if strings.Contains((*captured)[0], "FOR UPDATE") {
		t.Errorf("read-only listing took a row lock: %s", (*captured)[0])
	}
}
