package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/harrisonrobin/tasksheet/pkg/ledger"
	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
)

type stubRepo struct {
	loadFn    func(ctx context.Context) (repo.Snapshot, error)
	replaceFn func(ctx context.Context, tasks []model.Task, expected string) (string, error)
}

func (s *stubRepo) Load(ctx context.Context) (repo.Snapshot, error) {
	if s.loadFn == nil {
		return repo.Snapshot{}, errors.New("unexpected Load call")
	}
	return s.loadFn(ctx)
}

func (s *stubRepo) ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error) {
	if s.replaceFn == nil {
		return "", errors.New("unexpected ReplaceAll call")
	}
	return s.replaceFn(ctx, tasks, expected)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoadMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	expected := []model.Task{{Title: "Write code", Priority: model.High, Status: model.Unstarted, Due: model.NewDate(2024, time.March, 3)}}

	var calls int
	c := New(&stubRepo{
		loadFn: func(ctx context.Context) (repo.Snapshot, error) {
			calls++
			return repo.Snapshot{Tasks: expected, Version: "v1"}, nil
		},
	}, client, "team", time.Minute)

	first, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if calls != 1 {
		t.Errorf("base Load called %d times, want 1", calls)
	}
	if second.Version != "v1" || len(second.Tasks) != 1 || second.Tasks[0] != first.Tasks[0] {
		t.Errorf("cached snapshot mismatch: %+v", second)
	}
	if !mr.Exists("ledger:team") {
		t.Errorf("snapshot not cached")
	}
}

func TestReplaceAllEvicts(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	var loads int
	c := New(&stubRepo{
		loadFn: func(ctx context.Context) (repo.Snapshot, error) {
			loads++
			return repo.Snapshot{Tasks: []model.Task{}, Version: "v1"}, nil
		},
		replaceFn: func(ctx context.Context, tasks []model.Task, expected string) (string, error) {
			if expected != "v1" {
				t.Errorf("expected version passed through, got %q", expected)
			}
			return "v2", nil
		},
	}, client, "team", time.Minute)

	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	version, err := c.ReplaceAll(ctx, []model.Task{{Title: "x"}}, "v1")
	if err != nil || version != "v2" {
		t.Fatalf("ReplaceAll = %q, %v", version, err)
	}
	if mr.Exists("ledger:team") {
		t.Errorf("cache not evicted after write")
	}
	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loads != 2 {
		t.Errorf("base Load called %d times, want 2", loads)
	}
}

func TestFailedWriteEvicts(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := New(&stubRepo{
		loadFn: func(ctx context.Context) (repo.Snapshot, error) {
			return repo.Snapshot{Tasks: []model.Task{}, Version: "v1"}, nil
		},
		replaceFn: func(ctx context.Context, tasks []model.Task, expected string) (string, error) {
			return "", &repo.StaleWriteError{Expected: expected, Current: "v9"}
		},
	}, client, "team", time.Minute)

	_, _ = c.Load(ctx)
	if !mr.Exists("ledger:team") {
		t.Fatal("snapshot not cached")
	}
	if _, err := c.ReplaceAll(ctx, nil, "v1"); !errors.Is(err, repo.ErrStaleWrite) {
		t.Fatalf("expected stale write, got %v", err)
	}
	if mr.Exists("ledger:team") {
		t.Errorf("stale snapshot still cached after a rejected write")
	}
}

// memStore is a version-checked in-memory store that can be edited behind
// the cache, like a sheet edited by hand.
type memStore struct {
	tasks []model.Task
}

func (m *memStore) Load(ctx context.Context) (repo.Snapshot, error) {
	tasks := append([]model.Task{}, m.tasks...)
	return repo.Snapshot{Tasks: tasks, Version: repo.Fingerprint(tasks)}, nil
}

func (m *memStore) ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error) {
	if err := repo.CheckVersion(m.tasks, expected); err != nil {
		return "", err
	}
	m.tasks = append([]model.Task{}, tasks...)
	return repo.Fingerprint(m.tasks), nil
}

func TestSessionRecoversFromStaleWriteAfterReload(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	store := &memStore{tasks: []model.Task{{Title: "A", Priority: model.Medium, Status: model.Unstarted}}}
	c := New(store, client, "team", 5*time.Minute)

	session, err := ledger.Open(ctx, c)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store.tasks = append(store.tasks, model.Task{Title: "Edited by hand", Priority: model.Medium, Status: model.Unstarted})

	if err := session.Submit(ctx, model.Task{Title: "Mine"}); !errors.Is(err, repo.ErrStaleWrite) {
		t.Fatalf("expected stale write, got %v", err)
	}
	if err := session.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if session.Len() != 2 {
		t.Fatalf("reload served a stale snapshot: session has %d tasks, store has %d", session.Len(), len(store.tasks))
	}
	if err := session.Submit(ctx, model.Task{Title: "Mine"}); err != nil {
		t.Fatalf("Submit after Reload failed: %v", err)
	}
	if len(store.tasks) != 3 || store.tasks[2].Title != "Mine" {
		t.Errorf("unexpected store contents: %+v", store.tasks)
	}
}

func TestRedisDownFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	c := New(&stubRepo{
		loadFn: func(ctx context.Context) (repo.Snapshot, error) {
			return repo.Snapshot{Tasks: []model.Task{{Title: "A"}}, Version: "v1"}, nil
		},
	}, client, "team", time.Minute)

	snap, err := c.Load(context.Background())
	if err != nil || len(snap.Tasks) != 1 {
		t.Errorf("expected fallback to base, got %+v, %v", snap, err)
	}
}

func TestLoadErrorNotCached(t *testing.T) {
	mr, client := newRedis(t)
	c := New(&stubRepo{
		loadFn: func(ctx context.Context) (repo.Snapshot, error) {
			return repo.Snapshot{Tasks: []model.Task{}}, errors.New("unreachable")
		},
	}, client, "team", time.Minute)

	if _, err := c.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if mr.Exists("ledger:team") {
		t.Errorf("failed load was cached")
	}
}
