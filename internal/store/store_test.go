package store_test

import (
	"context"
	"testing"

	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
	"pulseboard/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, repo.Repo, context.Context) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	st, err := store.Open(ctx, r)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st, r, ctx
}

func report(id, title string) domain.Report {
	return domain.Report{
		ID:            id,
		Title:         title,
		OverallStatus: domain.StatusOnTrack,
		Highlights:    []string{},
		UpcomingWork:  []string{},
		Risks:         []domain.RiskEntry{},
		ActionItems:   []domain.ActionEntry{},
		Workload:      []domain.WorkloadEntry{},
		Dependencies:  []domain.DependencyEntry{},
	}
}

func TestUpsertPrependsAndReplaces(t *testing.T) {
	st, _, ctx := newTestStore(t)

	if err := st.Upsert(ctx, report("db-1", "first")); err != nil {
		t.Fatal(err)
	}
	if err := st.Upsert(ctx, report("db-2", "second")); err != nil {
		t.Fatal(err)
	}
	got := st.List()
	if len(got) != 2 || got[0].ID != "db-2" || got[1].ID != "db-1" {
		t.Fatalf("order = %v", ids(got))
	}

	// re-saving db-1 moves it to the front and keeps a single copy
	if err := st.Upsert(ctx, report("db-1", "first, edited")); err != nil {
		t.Fatal(err)
	}
	got = st.List()
	if len(got) != 2 || got[0].ID != "db-1" || got[0].Title != "first, edited" {
		t.Fatalf("after re-save: %v", ids(got))
	}
	count := 0
	for _, r := range got {
		if r.ID == "db-1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("db-1 appears %d times", count)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	st, _, ctx := newTestStore(t)
	if err := st.Upsert(ctx, report("db-1", "only")); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "db-404"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if st.Len() != 1 {
		t.Fatalf("len = %d", st.Len())
	}
	if err := st.Delete(ctx, "db-1"); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 0 {
		t.Fatalf("len = %d", st.Len())
	}
}

func TestReloadSurvivesRestart(t *testing.T) {
	st, r, ctx := newTestStore(t)
	if err := st.Upsert(ctx, report("db-1", "persisted")); err != nil {
		t.Fatal(err)
	}

	st2, err := store.Open(ctx, r)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := st2.Get("db-1")
	if !ok || got.Title != "persisted" {
		t.Fatalf("got = %+v ok = %v", got, ok)
	}
}

func TestCorruptBlobReadsAsEmpty(t *testing.T) {
	st, r, ctx := newTestStore(t)
	if err := st.Upsert(ctx, report("db-1", "doomed")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DB.ExecContext(ctx, `UPDATE kv SET value='{{{not json' WHERE key='reports'`); err != nil {
		t.Fatal(err)
	}
	st2, err := store.Open(ctx, r)
	if err != nil {
		t.Fatalf("open over corrupt blob: %v", err)
	}
	if st2.Len() != 0 {
		t.Fatalf("len = %d", st2.Len())
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	st, _, ctx := newTestStore(t)
	saved := report("db-1", "original")
	saved.Highlights = []string{"keep me"}
	if err := st.Upsert(ctx, saved); err != nil {
		t.Fatal(err)
	}
	got, ok := st.Get("db-1")
	if !ok {
		t.Fatal("missing record")
	}
	got.Highlights[0] = "mutated by caller"
	again, _ := st.Get("db-1")
	if again.Highlights[0] != "keep me" {
		t.Fatalf("stored record mutated: %v", again.Highlights)
	}
}

func ids(reports []domain.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}
