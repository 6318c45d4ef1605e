package janitor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExpirer struct {
	calls atomic.Int32
	ttl   time.Duration
	n     int
}

func (f *fakeExpirer) Expire(ttl time.Duration) int {
	f.calls.Add(1)
	f.ttl = ttl
	return f.n
}

type fakeSweeper struct{ n int }

func (f fakeSweeper) Sweep() int { return f.n }

func TestRunOnceRemovesStaleAvatars(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	write := func(name string, mod time.Time) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
		return path
	}
	stale := write("avatar_1_abc.jpg", old)
	fresh := write("avatar_2_def.jpg", time.Now())
	other := write("notes.txt", old)

	exp := &fakeExpirer{n: 3}
	j := New(exp, fakeSweeper{n: 1}, dir, 30*time.Minute, time.Minute)

	r := j.RunOnce()
	if r.Sessions != 3 || r.Limiter != 1 || r.Files != 1 {
		t.Fatalf("report = %+v", r)
	}
	if exp.ttl != 30*time.Minute {
		t.Fatalf("Expire ttl = %v", exp.ttl)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale avatar not removed")
	}
	for _, keep := range []string{fresh, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s removed: %v", keep, err)
		}
	}
}

func TestRunOnceMissingTempDir(t *testing.T) {
	j := New(&fakeExpirer{}, nil, filepath.Join(t.TempDir(), "absent"), time.Minute, time.Minute)
	if r := j.RunOnce(); r.Files != 0 {
		t.Fatalf("report = %+v", r)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	exp := &fakeExpirer{}
	j := New(exp, nil, t.TempDir(), time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for exp.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if exp.calls.Load() < 2 {
		t.Fatalf("janitor ran %d times", exp.calls.Load())
	}
}
