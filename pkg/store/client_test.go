package store

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
}

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func nextSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return snap
	case err := <-sub.Errors():
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Snapshot{}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "test-project", client.Project())
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejects empty project", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "project identifier cannot be empty")
	})
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw     string
		want    Path
		wantErr bool
	}{
		{raw: "kpis", want: Path{Root: "kpis"}},
		{raw: "kpis/abc", want: Path{Root: "kpis", Child: "abc"}},
		{raw: "/board/", want: Path{Root: "board"}},
		{raw: "", wantErr: true},
		{raw: "a//b", wantErr: true},
		{raw: "a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePath(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathCovers(t *testing.T) {
	root := Path{Root: "kpis"}
	a := Path{Root: "kpis", Child: "a"}
	b := Path{Root: "kpis", Child: "b"}

	assert.True(t, root.Covers(a))
	assert.True(t, a.Covers(root))
	assert.True(t, a.Covers(a))
	assert.False(t, a.Covers(b))
	assert.False(t, root.Covers(Path{Root: "board"}))
}

func TestSetAndGet(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("missing path does not exist", func(t *testing.T) {
		snap, err := client.Get(ctx, "kpis")
		require.NoError(t, err)
		assert.False(t, snap.Exists)
		assert.JSONEq(t, "null", string(snap.Value))
	})

	t.Run("child write is visible at root and child", func(t *testing.T) {
		rec := record{Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"}
		require.NoError(t, client.Set(ctx, "kpis/1", rec))

		child, err := client.Get(ctx, "kpis/1")
		require.NoError(t, err)
		require.True(t, child.Exists)
		var got record
		require.NoError(t, child.Decode(&got))
		assert.Equal(t, rec, got)

		root, err := client.Get(ctx, "kpis")
		require.NoError(t, err)
		require.True(t, root.Exists)
		children, err := root.Children()
		require.NoError(t, err)
		assert.Contains(t, children, "1")
	})

	t.Run("root write replaces every child", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "kpis/stale", record{Name: "Stale"}))

		seed := map[string]record{
			"1": {Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"},
			"2": {Name: "Cement Feed", Value: 145, Target: 150, Unit: "t/h"},
		}
		require.NoError(t, client.Set(ctx, "kpis", seed))

		root, err := client.Get(ctx, "kpis")
		require.NoError(t, err)
		children, err := root.Children()
		require.NoError(t, err)

		keys := make([]string, 0, len(children))
		for k := range children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		assert.Equal(t, []string{"1", "2"}, keys)
	})

	t.Run("root write rejects non-object values", func(t *testing.T) {
		err := client.Set(ctx, "board", []string{"not", "an", "object"})
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("invalid path", func(t *testing.T) {
		err := client.Set(ctx, "a/b/c", record{})
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}

func TestHashToJSONIsDeterministic(t *testing.T) {
	hash := map[string]string{"b": `{"x":1}`, "a": `"text"`, "c": `[1,2]`}

	first, err := HashToJSON(hash)
	require.NoError(t, err)
	second, err := HashToJSON(hash)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, `{"a":"text","b":{"x":1},"c":[1,2]}`, string(first))

	_, err = HashToJSON(map[string]string{"a": "{broken"})
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("merges fields into a child", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "kpis/1", record{Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"}))
		require.NoError(t, client.Update(ctx, "kpis/1", map[string]any{"value": 395}))

		snap, err := client.Get(ctx, "kpis/1")
		require.NoError(t, err)
		var got record
		require.NoError(t, snap.Decode(&got))
		assert.Equal(t, 395.0, got.Value)
		assert.Equal(t, "Kiln Feed", got.Name)
	})

	t.Run("creates a missing child", func(t *testing.T) {
		require.NoError(t, client.Update(ctx, "kpis/new", map[string]any{"name": "Fresh"}))

		snap, err := client.Get(ctx, "kpis/new")
		require.NoError(t, err)
		assert.True(t, snap.Exists)
		assert.JSONEq(t, `{"name":"Fresh"}`, string(snap.Value))
	})

	t.Run("merges children into a root", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "board", map[string]any{"title": "Priorities", "date": "Mon"}))
		require.NoError(t, client.Update(ctx, "board", map[string]any{"date": "Tue"}))

		snap, err := client.Get(ctx, "board")
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"Priorities","date":"Tue"}`, string(snap.Value))
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		assert.NoError(t, client.Update(ctx, "kpis/1", nil))
	})
}

func TestDelete(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "kpis/1", record{Name: "A"}))
	require.NoError(t, client.Set(ctx, "kpis/2", record{Name: "B"}))

	require.NoError(t, client.Delete(ctx, "kpis/1"))
	snap, err := client.Get(ctx, "kpis/1")
	require.NoError(t, err)
	assert.False(t, snap.Exists)

	require.NoError(t, client.Delete(ctx, "kpis"))
	snap, err = client.Get(ctx, "kpis")
	require.NoError(t, err)
	assert.False(t, snap.Exists)

	// Deleting a missing path is fine
	assert.NoError(t, client.Delete(ctx, "kpis/never"))
}

func TestPushAndGenerateKey(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("keys are unique and ordered", func(t *testing.T) {
		seen := make(map[string]bool)
		prev := ""
		for i := 0; i < 100; i++ {
			k := client.GenerateKey()
			assert.Len(t, k, 26)
			assert.False(t, seen[k], "duplicate key %s", k)
			assert.Greater(t, k, prev)
			seen[k] = true
			prev = k
		}
	})

	t.Run("push stores under a generated key", func(t *testing.T) {
		id, err := client.Push(ctx, "kpis", record{Name: "Pushed"})
		require.NoError(t, err)

		snap, err := client.Get(ctx, Join("kpis", id))
		require.NoError(t, err)
		assert.True(t, snap.Exists)
	})

	t.Run("push rejects child targets", func(t *testing.T) {
		_, err := client.Push(ctx, "kpis/1", record{})
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}

func TestSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("delivers current state then changes in commit order", func(t *testing.T) {
		sub, err := client.Subscribe(ctx, "kpis")
		require.NoError(t, err)
		defer sub.Close()

		first := nextSnapshot(t, sub)
		assert.False(t, first.Exists)

		require.NoError(t, client.Set(ctx, "kpis/1", record{Name: "A"}))
		second := nextSnapshot(t, sub)
		require.True(t, second.Exists)
		children, err := second.Children()
		require.NoError(t, err)
		assert.Len(t, children, 1)

		require.NoError(t, client.Delete(ctx, "kpis/1"))
		third := nextSnapshot(t, sub)
		assert.False(t, third.Exists)
	})

	t.Run("child subscription ignores siblings", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "board/title", "Week 12"))

		sub, err := client.Subscribe(ctx, "board/title")
		require.NoError(t, err)
		defer sub.Close()

		first := nextSnapshot(t, sub)
		var title string
		require.NoError(t, first.Decode(&title))
		assert.Equal(t, "Week 12", title)

		require.NoError(t, client.Set(ctx, "board/date", "Monday"))
		require.NoError(t, client.Set(ctx, "board/title", "Week 13"))

		next := nextSnapshot(t, sub)
		require.NoError(t, next.Decode(&title))
		assert.Equal(t, "Week 13", title)
	})

	t.Run("identical states are coalesced", func(t *testing.T) {
		sub, err := client.Subscribe(ctx, "steady")
		require.NoError(t, err)
		defer sub.Close()

		nextSnapshot(t, sub)
		require.NoError(t, client.Set(ctx, "steady/x", 1))
		nextSnapshot(t, sub)
		require.NoError(t, client.Set(ctx, "steady/x", 1))
		require.NoError(t, client.Set(ctx, "steady/x", 2))

		snap := nextSnapshot(t, sub)
		assert.JSONEq(t, `{"x":2}`, string(snap.Value))
	})

	t.Run("close ends the stream", func(t *testing.T) {
		sub, err := client.Subscribe(ctx, "kpis")
		require.NoError(t, err)
		nextSnapshot(t, sub)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("events channel not closed")
		}
	})

	t.Run("rejects invalid path", func(t *testing.T) {
		_, err := client.Subscribe(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}

func TestSubscribeConnectionFailure(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(&redis.Options{Addr: addr, MaxRetries: -1}, "test-project")
	require.NoError(t, err)
	defer client.Close()

	sub, err := client.Subscribe(context.Background(), "kpis")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case err := <-sub.Errors():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to subscribe to kpis")
	case <-time.After(5 * time.Second):
		t.Fatal("expected a terminal error")
	}

	_, ok := <-sub.Events()
	assert.False(t, ok, "no snapshot follows a terminal error")
}

func TestSnapshotJSON(t *testing.T) {
	snap := Snapshot{Path: "kpis/1", Exists: true, Value: json.RawMessage(`{"name":"A"}`)}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"kpis/1","exists":true,"value":{"name":"A"}}`, string(data))
}
