package storages

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	store, err := OpenRunStore(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Now().Truncate(time.Millisecond)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, RunRecord{
			ID:              id,
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
			Query:           "q-" + id,
			ControllerModel: "ctl",
			DelegateModel:   "dlg",
			Features:        []string{"structured_jobs"},
			Status:          "success",
			Answer:          "42",
			HasAnswer:       true,
			Steps:           i + 1,
			ControllerIn:    100,
			Elapsed:         1500 * time.Millisecond,
		}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d", len(runs))
	}
	if runs[0].ID != "c" {
		t.Fatalf("got %s", runs[0].ID)
	}

	runs, err = store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d", len(runs))
	}

	run, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if run.Query != "q-b" || run.Steps != 2 || !run.HasAnswer {
		t.Fatalf("got %+v", run)
	}
	if run.Elapsed != 1500*time.Millisecond {
		t.Fatalf("got %v", run.Elapsed)
	}
	if !run.CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("got %v", run.CreatedAt)
	}
	if len(run.Features) != 1 || run.Features[0] != "structured_jobs" {
		t.Fatalf("got %v", run.Features)
	}
}

func TestRunStoreNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestRunStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	run := RunRecord{ID: "x", Status: "failed"}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, run); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := OpenRunStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, RunRecord{ID: "x", Status: "success"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = OpenRunStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d", len(runs))
	}
}

func TestWithTxRollback(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	e := errors.New("foo")
	err := WithTx(ctx, store.db, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO runs (id, created_at, query, controller_model, delegate_model, status) VALUES ('r', 0, '', '', '', 'success')`); err != nil {
			return err
		}
		return e
	})
	if !errors.Is(err, e) {
		t.Fatalf("got %v", err)
	}
	if _, err := store.Get(ctx, "r"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("got %v", err)
	}
}
