package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC)
}

func TestSetGetRoundTrip(t *testing.T) {
	store := NewVariableStore()

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"string value", "greeting", "hello"},
		{"numeric value", "attempts", 3},
		{"nested value", "order", map[string]any{"id": "o-1", "total": 49.9}},
		{"array value", "tags", []any{"vip", "returning"}},
		{"nil value", "cleared", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.Set(tt.key, tt.value)
			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestGetAbsentKey(t *testing.T) {
	store := NewVariableStore()
	v, ok := store.Get("never.written")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.False(t, store.Has("never.written"))
}

func TestSystemVariablesSeededAtConstruction(t *testing.T) {
	store := NewVariableStoreWithClock(fixedClock)

	for key, want := range map[string]any{
		"date.today":       "2025-03-14",
		"date.weekday":     "Friday",
		"time.now":         "09:30:15",
		"current.date":     "2025-03-14",
		"current.time":     "09:30",
		"current.datetime": "2025-03-14T09:30:15Z",
	} {
		got, ok := store.Get(key)
		require.True(t, ok, "missing system key %s", key)
		assert.Equal(t, want, got, "key %s", key)
	}

	assert.True(t, store.Has("timestamp"))
	assert.True(t, store.Has("execution.startedAt"))
	assert.True(t, store.Has("execution.id"))
}

func TestGetAllReturnsIndependentSnapshot(t *testing.T) {
	store := NewVariableStore()
	store.Set("foo", "bar")

	snapshot := store.GetAll()
	snapshot["foo"] = "mutated"
	snapshot["injected"] = true

	got, _ := store.Get("foo")
	assert.Equal(t, "bar", got)
	assert.False(t, store.Has("injected"))
}

func TestGetFiltered(t *testing.T) {
	store := NewVariableStoreWithClock(fixedClock)
	store.Set("contact.name", "Ana")
	store.Set("message.content", "hi")
	store.Set("session.s1.counter", 2)
	store.Set("flow.step", "welcome")
	store.Set("counter", 2)
	store.Set("answers.color", "blue")
	store.Set("webhook.executed.n1", true)

	t.Run("no prefix excludes transient namespaces", func(t *testing.T) {
		got := store.GetFiltered("")
		assert.Contains(t, got, "counter")
		assert.Contains(t, got, "answers.color")
		assert.Contains(t, got, "webhook.executed.n1")
		assert.NotContains(t, got, "contact.name")
		assert.NotContains(t, got, "message.content")
		assert.NotContains(t, got, "session.s1.counter")
		assert.NotContains(t, got, "flow.step")
		assert.NotContains(t, got, "current.date")
	})

	t.Run("prefix narrows the durable set", func(t *testing.T) {
		got := store.GetFiltered("answers.")
		assert.Equal(t, map[string]any{"answers.color": "blue"}, got)
	})
}

func TestMergeSessionVariables(t *testing.T) {
	t.Run("plain keys are written twice", func(t *testing.T) {
		store := NewVariableStore()
		store.MergeSessionVariables(map[string]any{"counter": 3}, "sess1")

		got, ok := store.Get("session.sess1.counter")
		require.True(t, ok)
		assert.Equal(t, 3, got)

		got, ok = store.Get("counter")
		require.True(t, ok)
		assert.Equal(t, 3, got)
	})

	t.Run("last merged session wins the bare key", func(t *testing.T) {
		store := NewVariableStore()
		store.MergeSessionVariables(map[string]any{"counter": 3}, "sess1")
		store.MergeSessionVariables(map[string]any{"counter": 7}, "sess2")

		got, _ := store.Get("counter")
		assert.Equal(t, 7, got)
		got, _ = store.Get("session.sess1.counter")
		assert.Equal(t, 3, got)
		got, _ = store.Get("session.sess2.counter")
		assert.Equal(t, 7, got)
	})

	t.Run("globally visible namespaces import verbatim", func(t *testing.T) {
		store := NewVariableStore()
		store.MergeSessionVariables(map[string]any{
			"user.plan":       "pro",
			"contact.name":    "Ana",
			"flow.lastNode":   "n4",
			"message.content": "hello",
			"session.other":   "kept",
		}, "sess1")

		for _, key := range []string{"user.plan", "contact.name", "flow.lastNode", "message.content", "session.other"} {
			assert.True(t, store.Has(key), "expected %s imported verbatim", key)
			assert.False(t, store.Has("session.sess1."+key), "did not expect %s re-namespaced", key)
		}
	})

	t.Run("system keys are dropped", func(t *testing.T) {
		store := NewVariableStore()
		store.MergeSessionVariables(map[string]any{"system.locale": "pt-BR"}, "sess1")

		assert.False(t, store.Has("system.locale"))
		assert.False(t, store.Has("session.sess1.system.locale"))
	})
}

func TestClearUserVariables(t *testing.T) {
	store := NewVariableStoreWithClock(fixedClock)
	store.Set("foo", "bar")
	store.Set("answers.color", "blue")
	store.Set("webhook.executed.n1", true)
	store.Set("webhook.cachedResponse.n1", map[string]any{"status": 200})
	store.Set("http.executed.n2", true)
	store.Set("callAgent.executed.n3", true)
	store.Set("contactNotification.executed.n4", true)
	execID, _ := store.Get("execution.id")

	store.ClearUserVariables()

	assert.False(t, store.Has("foo"))
	assert.False(t, store.Has("answers.color"))

	for _, key := range []string{
		"webhook.executed.n1",
		"webhook.cachedResponse.n1",
		"http.executed.n2",
		"callAgent.executed.n3",
		"contactNotification.executed.n4",
	} {
		assert.True(t, store.Has(key), "expected durable key %s to survive the reset", key)
	}

	got, ok := store.Get("date.today")
	require.True(t, ok)
	assert.Equal(t, "2025-03-14", got)
	assert.True(t, store.Has("time.now"))

	gotID, _ := store.Get("execution.id")
	assert.Equal(t, execID, gotID, "run identity must be stable across resets")
}

func TestUpdateClock(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	store := NewVariableStoreWithClock(func() time.Time { return now })
	store.Set("foo", "bar")
	startedAt, _ := store.Get("execution.startedAt")

	now = now.Add(26 * time.Hour)
	store.UpdateClock()

	got, _ := store.Get("date.today")
	assert.Equal(t, "2025-03-15", got)
	got, _ = store.Get("time.now")
	assert.Equal(t, "11:30:00", got)

	got, _ = store.Get("foo")
	assert.Equal(t, "bar", got, "UpdateClock must not touch user variables")
	got, _ = store.Get("execution.startedAt")
	assert.Equal(t, startedAt, got, "UpdateClock must not touch execution keys")
}

func TestMergeSkipsProvenanceKeys(t *testing.T) {
	parent := NewVariableStoreWithClock(fixedClock)
	parentStarted, _ := parent.Get("execution.startedAt")

	child := NewVariableStoreWithClock(func() time.Time {
		return fixedClock().Add(time.Hour)
	})
	child.Set("sub.result", "ok")
	child.Set("counter", 9)

	parent.Merge(child)

	got, _ := parent.Get("sub.result")
	assert.Equal(t, "ok", got)
	got, _ = parent.Get("counter")
	assert.Equal(t, 9, got)

	got, _ = parent.Get("execution.startedAt")
	assert.Equal(t, parentStarted, got, "merging a sub-context must not clobber provenance")
	got, _ = parent.Get("time.now")
	assert.Equal(t, "09:30:15", got)
}

func TestCloneIsIndependent(t *testing.T) {
	store := NewVariableStore()
	store.Set("foo", "bar")

	clone := store.Clone()
	clone.Set("foo", "changed")
	clone.Set("extra", 1)
	clone.Delete("foo")

	got, ok := store.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", got)
	assert.False(t, store.Has("extra"))
	assert.Equal(t, store.StartedAt(), clone.StartedAt())
}
