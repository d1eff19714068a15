package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/artpar/tablegate/adapters/sqlite"
	"github.com/artpar/tablegate/domain/entity"
	"github.com/artpar/tablegate/ports"
	"github.com/rs/zerolog"
)

func openTestDB(t *testing.T, migrate bool) *sqlite.DB {
	t.Helper()

	f, err := os.CreateTemp("", "tablegate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if migrate {
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			os.Remove(path)
			t.Fatalf("migrate: %v", err)
		}
	}

	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	})

	return db
}

// -----------------------------------------------------------------------------
// SchemaStore Tests
// -----------------------------------------------------------------------------

func TestSchemaStore_EmptyCatalog(t *testing.T) {
	db := openTestDB(t, false)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())

	names, err := store.ListEntityNames(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("names = %v, want none", names)
	}
}

func TestSchemaStore_ApplyThenList(t *testing.T) {
	db := openTestDB(t, false)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		def := entity.Definition{
			Name:   fmt.Sprintf("Entity%d", i),
			Fields: entity.Fields{{Name: "title", Type: "TEXT"}},
		}
		if _, err := store.ApplyDefinition(ctx, def); err != nil {
			t.Fatalf("apply %s: %v", def.Name, err)
		}
	}

	names, err := store.ListEntityNames(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != n {
		t.Fatalf("got %d names, want %d: %v", len(names), n, names)
	}

	sort.Strings(names)
	for i, name := range names {
		want := fmt.Sprintf("entity%d", i)
		if name != want {
			t.Errorf("names[%d] = %q, want %q", i, name, want)
		}
	}
}

func TestSchemaStore_ApplyReturnsStatement(t *testing.T) {
	db := openTestDB(t, false)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())

	def := entity.Definition{
		Name:   "Post",
		Fields: entity.Fields{{Name: "title", Type: "TEXT"}, {Name: "body", Type: "TEXT"}},
	}

	stmt, err := store.ApplyDefinition(context.Background(), def)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stmt != "CREATE TABLE post (\ntitle\tTEXT,\nbody\tTEXT\n)" {
		t.Errorf("statement = %q", stmt)
	}

	// Table accepts rows with the declared columns.
	if _, err := db.Exec(`INSERT INTO post (title, body) VALUES ('a', 'b')`); err != nil {
		t.Errorf("insert into created table: %v", err)
	}
}

func TestSchemaStore_DuplicateFails(t *testing.T) {
	db := openTestDB(t, false)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())
	ctx := context.Background()

	def := entity.Definition{Name: "post", Fields: entity.Fields{{Name: "title", Type: "TEXT"}}}
	if _, err := store.ApplyDefinition(ctx, def); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	stmt, err := store.ApplyDefinition(ctx, def)
	if err == nil {
		t.Fatal("expected error on duplicate entity")
	}
	if !errors.Is(err, ports.ErrStore) {
		t.Errorf("error %v does not wrap ports.ErrStore", err)
	}
	if !strings.HasPrefix(stmt, "CREATE TABLE post") {
		t.Errorf("statement not returned on failure: %q", stmt)
	}
}

func TestSchemaStore_HidesMigrationsTable(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())

	names, err := store.ListEntityNames(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "users" {
		t.Errorf("names = %v, want [users]", names)
	}
}

func TestSchemaStore_ListOnClosedDB(t *testing.T) {
	db := openTestDB(t, false)
	store := sqlite.NewSchemaStore(db, zerolog.Nop())
	db.Close()

	_, err := store.ListEntityNames(context.Background())
	if !errors.Is(err, ports.ErrStore) {
		t.Errorf("err = %v, want ports.ErrStore", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t, true)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestOpen_MemorySharesOneDatabase(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// A second pooled connection would see an empty database.
	names, err := sqlite.NewSchemaStore(db, zerolog.Nop()).ListEntityNames(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "users" {
		t.Errorf("names = %v, want [users]", names)
	}
}

// -----------------------------------------------------------------------------
// UserStore Tests
// -----------------------------------------------------------------------------

func TestUserStore_CreateAndGet(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewUserStore(db)
	ctx := context.Background()

	user := ports.User{ID: "user-1", Username: "alice", PasswordHash: []byte("hash")}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %s, want alice", got.Username)
	}
	if string(got.PasswordHash) != "hash" {
		t.Errorf("PasswordHash = %s, want hash", got.PasswordHash)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewUserStore(db)
	ctx := context.Background()

	if err := store.Create(ctx, ports.User{ID: "u1", Username: "bob", PasswordHash: []byte("x")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, ports.User{ID: "u2", Username: "bob", PasswordHash: []byte("y")})
	if !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserStore_GetMissing(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewUserStore(db)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserStore_UpdateAndDelete(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewUserStore(db)
	ctx := context.Background()

	user := ports.User{ID: "u1", Username: "carol", PasswordHash: []byte("x")}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	user.Username = "caroline"
	if err := store.Update(ctx, user); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "caroline" {
		t.Errorf("Username = %s, want caroline", got.Username)
	}

	if err := store.Update(ctx, ports.User{ID: "missing", Username: "x"}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestUserStore_List(t *testing.T) {
	db := openTestDB(t, true)
	store := sqlite.NewUserStore(db)
	ctx := context.Background()

	users, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("empty list = %#v, want empty non-nil slice", users)
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, ports.User{ID: "id-" + name, Username: name, PasswordHash: []byte("x")}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	users, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("got %d users, want 3", len(users))
	}
}
