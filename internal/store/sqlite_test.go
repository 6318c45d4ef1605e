package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/botfactory/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "botfactory.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id string, created time.Time) *domain.CreationRecord {
	return &domain.CreationRecord{
		ID:             id,
		ChatID:         10,
		UserID:         20,
		Name:           "Bot " + id,
		Username:       "famegifter" + id + "bot",
		TokenHint:      "123:****wxyz",
		DescriptionSet: true,
		CreatedAt:      created,
	}
}

func TestRecordAndGetCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.RecordCreation(ctx, record("a1", created)); err != nil {
		t.Fatalf("RecordCreation: %v", err)
	}

	got, err := s.GetCreation(ctx, "a1")
	if err != nil {
		t.Fatalf("GetCreation: %v", err)
	}
	if got.Username != "famegiftera1bot" || got.TokenHint != "123:****wxyz" || !got.DescriptionSet {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Avatar != domain.AvatarPending {
		t.Fatalf("avatar = %q, want pending", got.Avatar)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}

	if _, err := s.GetCreation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAvatarStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordCreation(ctx, record("b1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateAvatarStatus(ctx, "b1", domain.AvatarSet); err != nil {
		t.Fatalf("UpdateAvatarStatus: %v", err)
	}
	got, err := s.GetCreation(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Avatar != domain.AvatarSet {
		t.Fatalf("avatar = %q, want set", got.Avatar)
	}

	if err := s.UpdateAvatarStatus(ctx, "nope", domain.AvatarSet); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndCountCreations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := s.RecordCreation(ctx, record(fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.CountCreations(ctx)
	if err != nil || n != 5 {
		t.Fatalf("CountCreations = %d, %v", n, err)
	}

	list, err := s.ListCreations(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d records, want 3", len(list))
	}
	if list[0].ID != "c4" || list[2].ID != "c2" {
		t.Fatalf("unexpected order: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestRecordCreationUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record("d1", time.Now())
	if err := s.RecordCreation(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.DescriptionSet = false
	rec.Avatar = domain.AvatarSkipped
	if err := s.RecordCreation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	n, _ := s.CountCreations(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, _ := s.GetCreation(ctx, "d1")
	if got.DescriptionSet || got.Avatar != domain.AvatarSkipped {
		t.Fatalf("upsert not applied: %+v", got)
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.RecordCreation(ctx, record(fmt.Sprintf("e%d", i), time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write failed: %v", err)
		}
	}
	if n, _ := s.CountCreations(ctx); n != 20 {
		t.Fatalf("count = %d, want 20", n)
	}
}

func TestWithBusyRetry(t *testing.T) {
	calls := 0
	err := withBusyRetry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}

	calls = 0
	permanent := errors.New("constraint failed")
	err = withBusyRetry(context.Background(), "test", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("non-conflict errors must not retry: err=%v calls=%d", err, calls)
	}

	err = withBusyRetry(context.Background(), "test", func() error {
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || !isConflictError(err) {
		t.Fatalf("expected wrapped conflict after retries, got %v", err)
	}
}

func TestNewSQLiteRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botfactory.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	s, err := NewSQLite(path)
	if err == nil {
		_ = s.Close()
		t.Fatal("expected error for a corrupt database file")
	}
	if s != nil {
		t.Fatal("failed open must not return a store")
	}

	// The failed open released its handle, so the path can be replaced and reused.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove corrupt file: %v", err)
	}
	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite after cleanup: %v", err)
	}
	_ = s.Close()
}
