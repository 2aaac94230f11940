package repo_test

import (
	"context"
	"errors"
	"testing"

	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/events"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func TestUserRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)

	if _, err := r.ReadUser(ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	u := domain.User{Email: "pm@example.com", Name: "Pat"}
	if err := r.WriteUser(ctx, u); err != nil {
		t.Fatalf("write user: %v", err)
	}
	got, err := r.ReadUser(ctx)
	if err != nil || got != u {
		t.Fatalf("read user: %v %+v", err, got)
	}
	// login again overwrites, never duplicates
	u2 := domain.User{Email: "other@example.com", Name: "Ona"}
	if err := r.WriteUser(ctx, u2); err != nil {
		t.Fatal(err)
	}
	got, _ = r.ReadUser(ctx)
	if got != u2 {
		t.Fatalf("user = %+v", got)
	}
	if err := r.ClearUser(ctx); err != nil {
		t.Fatalf("clear user: %v", err)
	}
	if _, err := r.ReadUser(ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestEventFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	w := events.Writer{DB: r.DB}

	if err := w.Append(ctx, "report.save", "report", "db-1", "pm@example.com", nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, "report.delete", "report", "db-1", "pm@example.com", nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, "user.login", "user", "pm@example.com", "pm@example.com", nil); err != nil {
		t.Fatal(err)
	}

	all, err := r.LatestEvents(ctx, 10, "", "", "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events", len(all))
	}
	// newest first
	if all[0].Type != "user.login" {
		t.Fatalf("order = %v", all[0].Type)
	}

	saves, err := r.LatestEvents(ctx, 10, "report.save", "", "")
	if err != nil || len(saves) != 1 {
		t.Fatalf("type filter: %v %d", err, len(saves))
	}
	reports, err := r.LatestEvents(ctx, 10, "", "report", "db-1")
	if err != nil || len(reports) != 2 {
		t.Fatalf("entity filter: %v %d", err, len(reports))
	}
	limited, err := r.LatestEvents(ctx, 1, "", "", "")
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %v %d", err, len(limited))
	}
}

func TestAPIKeyLookup(t *testing.T) {
	r, ctx := newTestRepo(t)

	key := domain.APIKey{ID: "key-1", Name: "ci", KeyHash: repo.HashAPIKey("s3cret")}
	if err := r.InsertAPIKey(ctx, key); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("s3cret"))
	if err != nil || got.ID != "key-1" {
		t.Fatalf("lookup: %v %+v", err, got)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("wrong")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys, err := r.ListAPIKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("list: %v %d", err, len(keys))
	}
	if err := r.DeleteAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys, _ = r.ListAPIKeys(ctx)
	if len(keys) != 0 {
		t.Fatalf("keys remain: %+v", keys)
	}
}

func TestHashAPIKeyTrimsAndIsStable(t *testing.T) {
	a := repo.HashAPIKey("  token  ")
	b := repo.HashAPIKey("token")
	if a != b {
		t.Fatalf("whitespace changes hash: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d", len(a))
	}
}
