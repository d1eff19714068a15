package postgres_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/artpar/tablegate/adapters/postgres"
	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dsnEnv = "TABLEGATE_TEST_POSTGRES_DSN"

func openTestDB(t *testing.T) *postgres.DB {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	db, err := postgres.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func uniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, err := postgres.Open("  "); err == nil {
		t.Error("expected error for empty dsn")
	}
}

func TestSchemaStore_ApplyAndList(t *testing.T) {
	db := openTestDB(t)
	store := postgres.NewSchemaStore(db, zerolog.Nop())
	ctx := context.Background()

	name := uniqueName("Post")
	def := entity.Definition{Name: name, Fields: entity.Fields{{Name: "title", Type: "TEXT"}}}
	t.Cleanup(func() { db.Exec("DROP TABLE IF EXISTS " + def.TableName()) })

	stmt, err := store.ApplyDefinition(ctx, def)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.HasPrefix(stmt, "CREATE TABLE "+def.TableName()+" (\n") {
		t.Errorf("statement = %q", stmt)
	}

	names, err := store.ListEntityNames(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var found, foundMigrations bool
	for _, n := range names {
		if n == def.TableName() {
			found = true
		}
		if n == "schema_migrations" {
			foundMigrations = true
		}
	}
	if !found {
		t.Errorf("%s not listed in %v", def.TableName(), names)
	}
	if foundMigrations {
		t.Error("schema_migrations must not be listed")
	}

	if _, err := store.ApplyDefinition(ctx, def); !errors.Is(err, ports.ErrStore) {
		t.Errorf("duplicate apply err = %v, want ErrStore", err)
	}
}

func TestUserStore_CRUD(t *testing.T) {
	db := openTestDB(t)
	store := postgres.NewUserStore(db)
	ctx := context.Background()

	id := uuid.New().String()
	username := uniqueName("user")
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", id) })

	if err := store.Create(ctx, ports.User{ID: id, Username: username, PasswordHash: []byte("x")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, ports.User{ID: uuid.New().String(), Username: username, PasswordHash: []byte("y")}); !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("duplicate create err = %v, want ErrDuplicate", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != username {
		t.Errorf("Username = %s, want %s", got.Username, username)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}
