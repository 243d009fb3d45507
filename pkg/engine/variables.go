package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namespace prefixes are the scoping contract of the store. They are
// enumerated here once; every operation that treats a namespace specially
// consults these sets rather than scattering string literals.
var (
	// transientPrefixes hold per-run contextual state. GetFiltered excludes
	// them so only durable, user-captured variables are exported for
	// persistence.
	transientPrefixes = []string{"current.", "flow.", "session.", "message.", "contact."}

	// durablePrefixes record irreversible external side effects. They survive
	// ClearUserVariables so a flow restart never replays a webhook, HTTP call,
	// outbound call, or contact notification.
	durablePrefixes = []string{"webhook.", "http.", "callAgent.", "contactNotification."}

	// globalPrefixes are imported verbatim by MergeSessionVariables; these
	// namespaces are intentionally visible across sessions.
	globalPrefixes = []string{"session.", "flow.", "user.", "contact.", "message."}

	// clockPrefixes are the system-derived keys recomputed by UpdateClock and
	// skipped by Merge so a sub-context never clobbers the parent's provenance.
	clockPrefixes = []string{"date.", "time.", "current.", "execution."}
)

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// VariableStore is the per-run key/value state for one flow execution.
// Keys are scoped by dotted namespace prefixes; values are arbitrary.
//
// A store is owned by exactly one run at a time and has no internal locking.
// The surrounding executor must not mutate the same store from two goroutines.
type VariableStore struct {
	vars        map[string]any
	startedAt   time.Time
	executionID string
	clock       func() time.Time
}

// NewVariableStore creates a store seeded with the system clock variables.
func NewVariableStore() *VariableStore {
	return NewVariableStoreWithClock(time.Now)
}

// NewVariableStoreWithClock creates a store using the given clock for all
// system time variables. Tests use this to pin "now".
func NewVariableStoreWithClock(clock func() time.Time) *VariableStore {
	s := &VariableStore{
		vars:  make(map[string]any),
		clock: clock,
	}
	s.startedAt = clock()
	s.executionID = uuid.NewString()
	s.seedSystemVariables()
	return s
}

// seedSystemVariables writes the clock keys plus the execution identity keys.
// The identity keys reflect the original run start, not the current moment,
// so they are stable across ClearUserVariables.
func (s *VariableStore) seedSystemVariables() {
	s.setClockVariables()
	s.vars["execution.startedAt"] = s.startedAt.Format(time.RFC3339)
	s.vars["execution.id"] = s.executionID
}

// setClockVariables writes the date/time keys for the invocation moment.
func (s *VariableStore) setClockVariables() {
	now := s.clock()
	s.vars["date.today"] = now.Format("2006-01-02")
	s.vars["date.weekday"] = now.Weekday().String()
	s.vars["time.now"] = now.Format("15:04:05")
	s.vars["timestamp"] = strconv.FormatInt(now.Unix(), 10)
	s.vars["current.date"] = now.Format("2006-01-02")
	s.vars["current.time"] = now.Format("15:04")
	s.vars["current.datetime"] = now.Format(time.RFC3339)
}

// StartedAt returns the creation time of the store. It never changes for the
// life of the store, including across ClearUserVariables.
func (s *VariableStore) StartedAt() time.Time {
	return s.startedAt
}

// Set stores a value under key, overwriting any previous value.
func (s *VariableStore) Set(key string, value any) {
	s.vars[key] = value
}

// Get returns the value for key and whether it is present. It never fails.
func (s *VariableStore) Get(key string) (any, bool) {
	v, ok := s.vars[key]
	return v, ok
}

// Has reports whether key is present.
func (s *VariableStore) Has(key string) bool {
	_, ok := s.vars[key]
	return ok
}

// Delete removes key from the store if present.
func (s *VariableStore) Delete(key string) {
	delete(s.vars, key)
}

// Len returns the number of variables currently stored.
func (s *VariableStore) Len() int {
	return len(s.vars)
}

// GetAll returns a snapshot copy of every variable. The caller may mutate the
// returned map freely; key bindings are independent of the store.
func (s *VariableStore) GetAll() map[string]any {
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// GetFiltered returns variables whose key starts with prefix (all keys when
// prefix is empty), excluding the transient contextual namespaces. The result
// is the durable, user-captured subset suitable for persistence, which
// includes the side-effect tracking namespaces.
func (s *VariableStore) GetFiltered(prefix string) map[string]any {
	out := make(map[string]any)
	for k, v := range s.vars {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if hasAnyPrefix(k, transientPrefixes) {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeSessionVariables imports variables captured from a prior session.
//
// Keys already under a globally visible namespace (session., flow., user.,
// contact., message.) are imported verbatim. Keys under system. are dropped;
// stale system state must never leak into a new run. Every other key is
// written twice: under session.<sessionID>.<key>, which is durable and
// collision-free across sessions, and under the bare key so in-flight
// templates referencing the short form keep working for the active session.
//
// The bare-key write is last-session-wins when several sessions are merged
// into one long-lived context. That trade is deliberate; callers needing
// strict isolation must reference the namespaced form.
func (s *VariableStore) MergeSessionVariables(sessionVars map[string]any, sessionID string) {
	for k, v := range sessionVars {
		switch {
		case hasAnyPrefix(k, globalPrefixes):
			s.vars[k] = v
		case strings.HasPrefix(k, "system."):
			// never import system state from a stale session
		default:
			s.vars["session."+sessionID+"."+k] = v
			s.vars[k] = v
		}
	}
}

// ClearUserVariables resets the store to a clean slate: freshly recomputed
// system variables plus every key under the side-effect tracking namespaces.
// Everything else is discarded. A flow restart must not replay side effects,
// so idempotency state survives even a full reset.
func (s *VariableStore) ClearUserVariables() {
	kept := make(map[string]any)
	for k, v := range s.vars {
		if hasAnyPrefix(k, durablePrefixes) {
			kept[k] = v
		}
	}
	s.vars = kept
	s.seedSystemVariables()
}

// UpdateClock recomputes the date/time variables to the invocation moment
// without touching anything else. Used when a long-suspended flow resumes and
// stale "now" values would be misleading. execution.* keys are not touched.
func (s *VariableStore) UpdateClock() {
	s.setClockVariables()
}

// Merge imports every variable from other except the system clock and
// execution keys, so merging a sub-context never clobbers this store's
// provenance.
func (s *VariableStore) Merge(other *VariableStore) {
	if other == nil {
		return
	}
	for k, v := range other.vars {
		if hasAnyPrefix(k, clockPrefixes) || k == "timestamp" {
			continue
		}
		s.vars[k] = v
	}
}

// Clone returns an independent store with the same bindings. Mutating the
// clone never affects the original; values themselves are not deep-copied.
func (s *VariableStore) Clone() *VariableStore {
	c := &VariableStore{
		vars:        make(map[string]any, len(s.vars)),
		startedAt:   s.startedAt,
		executionID: s.executionID,
		clock:       s.clock,
	}
	for k, v := range s.vars {
		c.vars[k] = v
	}
	return c
}
