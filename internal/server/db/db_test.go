package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	d, err := New(Config{Dialect: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	return d
}

func TestNewInvalidDialect(t *testing.T) {
	_, err := New(Config{Dialect: "oracle", DSN: "x"})
	if err == nil {
		t.Fatal("New() error = nil, want invalid dialect error")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d := newTestDB(t)

	// New already migrated once; a second run must not fail.
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	amount := decimal.RequireFromString("1234.5600")

	query, args := d.Builder().
		Insert("approvals").
		Columns("guid", "requester_guid", "title", "kind", "amount", "status", "created_at", "updated_at").
		Values("apr-1", "u-1", "New laptop", "expense", amount, "pending", now, now).
		Query()

	if _, err := d.Exec(ctx, query, args...); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	sel := d.Builder().
		Select("requester_guid", "amount", "created_at").
		From(entsql.Table("approvals")).
		Where(entsql.EQ("guid", "apr-1"))

	var (
		requester string
		got       decimal.Decimal
		createdAt time.Time
	)

	if err := d.QueryRow(ctx, sel).Scan(&requester, &got, &createdAt); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if requester != "u-1" {
		t.Errorf("requester_guid = %q, want %q", requester, "u-1")
	}

	if !got.Equal(amount) {
		t.Errorf("amount = %s, want %s", got, amount)
	}

	if !createdAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", createdAt, now)
	}
}

func TestUniqueConstraints(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func() error {
		query, args := d.Builder().
			Insert("grants").
			Columns("subject_guid", "relation", "object_guid", "created_at").
			Values("u-1", "supervises", "u-2", now).
			Query()

		_, err := d.Exec(ctx, query, args...)

		return err
	}

	if err := insert(); err != nil {
		t.Fatalf("first insert error = %v", err)
	}

	if err := insert(); err == nil {
		t.Fatal("duplicate grant insert succeeded, want unique violation")
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := d.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO system_settings (name, value, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			"secret_key", "v", time.Now().UTC(), time.Now().UTC())
		if err != nil {
			return err
		}

		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("InTx() error = %v, want %v", err, errBoom)
	}

	var count int

	sel := d.Builder().Select(entsql.Count("*")).From(entsql.Table("system_settings"))
	if err := d.QueryRow(ctx, sel).Scan(&count); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if count != 0 {
		t.Errorf("system_settings rows = %d, want 0 after rollback", count)
	}
}
