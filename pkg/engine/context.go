package engine

import (
	"context"
	"log/slog"
	"time"
)

// ExecutionContext is the aggregate state for one flow run: the run's
// variables, the opaque per-node outputs collected by the surrounding
// executor, and the run start time.
//
// An ExecutionContext is owned by exactly one run at a time; it has no
// internal locking and performs no I/O. Independent contexts for concurrent
// conversations share nothing and may coexist in one process.
type ExecutionContext struct {
	vars        *VariableStore
	nodeOutputs map[string]any
	logger      *slog.Logger
}

// NewExecutionContext creates a context with a freshly seeded variable store.
func NewExecutionContext() *ExecutionContext {
	return NewExecutionContextWithClock(time.Now)
}

// NewExecutionContextWithClock creates a context whose system time variables
// come from the given clock.
func NewExecutionContextWithClock(clock func() time.Time) *ExecutionContext {
	return &ExecutionContext{
		vars:        NewVariableStoreWithClock(clock),
		nodeOutputs: make(map[string]any),
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger used for render and load diagnostics.
func (ec *ExecutionContext) WithLogger(logger *slog.Logger) *ExecutionContext {
	if logger != nil {
		ec.logger = logger
	}
	return ec
}

// Variables exposes the underlying store for the operations not wrapped here.
func (ec *ExecutionContext) Variables() *VariableStore {
	return ec.vars
}

// StartedAt returns the run start time. Immutable for the life of the context.
func (ec *ExecutionContext) StartedAt() time.Time {
	return ec.vars.StartedAt()
}

// Set stores a variable.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.vars.Set(key, value)
}

// Get returns a variable and whether it is present.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	return ec.vars.Get(key)
}

// Has reports whether a variable is present.
func (ec *ExecutionContext) Has(key string) bool {
	return ec.vars.Has(key)
}

// GetAll returns a snapshot copy of every variable.
func (ec *ExecutionContext) GetAll() map[string]any {
	return ec.vars.GetAll()
}

// GetFiltered returns the durable variables under prefix; see
// VariableStore.GetFiltered.
func (ec *ExecutionContext) GetFiltered(prefix string) map[string]any {
	return ec.vars.GetFiltered(prefix)
}

// Render substitutes {{path}} placeholders in tmpl from this context's
// variables. It never fails; see Render.
func (ec *ExecutionContext) Render(tmpl string) string {
	return Render(tmpl, ec.vars)
}

// Contact is the contact record loaded by the surrounding executor.
type Contact struct {
	ID         string
	Name       string
	Identifier string
	Phone      string
	Email      string
}

// SetContactVariables exposes the contact record under the contact namespace.
func (ec *ExecutionContext) SetContactVariables(c Contact) {
	ec.vars.Set("contact.id", c.ID)
	ec.vars.Set("contact.name", c.Name)
	ec.vars.Set("contact.identifier", c.Identifier)
	ec.vars.Set("contact.phone", c.Phone)
	ec.vars.Set("contact.email", c.Email)
}

// Message is an inbound or outbound message record.
type Message struct {
	ID        string
	Content   string
	Type      string
	Timestamp time.Time
	Direction string
	MediaURL  string
	Metadata  map[string]any
}

// SetMessageVariables exposes the message record under the message namespace.
func (ec *ExecutionContext) SetMessageVariables(m Message) {
	ec.vars.Set("message.id", m.ID)
	ec.vars.Set("message.content", m.Content)
	ec.vars.Set("message.type", m.Type)
	ec.vars.Set("message.direction", m.Direction)
	ec.vars.Set("message.mediaUrl", m.MediaURL)
	if !m.Timestamp.IsZero() {
		ec.vars.Set("message.timestamp", m.Timestamp.Format(time.RFC3339))
	}
	if m.Metadata != nil {
		ec.vars.Set("message.metadata", m.Metadata)
	}
}

// Conversation is the conversation record the run belongs to.
type Conversation struct {
	ID     string
	Status string
}

// SetConversationVariables exposes the conversation record under the current
// namespace; conversation identity is contextual state, not a user capture.
func (ec *ExecutionContext) SetConversationVariables(c Conversation) {
	ec.vars.Set("current.conversation.id", c.ID)
	ec.vars.Set("current.conversation.status", c.Status)
}

// SetAIResponse stores the latest AI completion payload.
func (ec *ExecutionContext) SetAIResponse(response any) {
	ec.vars.Set("ai.response", response)
}

// SetWebhookResponse stores the latest webhook response payload.
func (ec *ExecutionContext) SetWebhookResponse(response any) {
	ec.vars.Set("webhook.response", response)
}

// SetHTTPResponse stores the latest HTTP request response payload.
func (ec *ExecutionContext) SetHTTPResponse(response any) {
	ec.vars.Set("http.response", response)
}

// SetCallAgentResponse stores the latest outbound call result payload.
func (ec *ExecutionContext) SetCallAgentResponse(response any) {
	ec.vars.Set("callAgent.response", response)
}

// SetNodeOutput records the opaque output payload of a node. The payload is
// not interpreted here; the surrounding executor reads it back.
func (ec *ExecutionContext) SetNodeOutput(nodeID string, output any) {
	ec.nodeOutputs[nodeID] = output
}

// NodeOutput returns a node's recorded output and whether one exists.
func (ec *ExecutionContext) NodeOutput(nodeID string) (any, bool) {
	v, ok := ec.nodeOutputs[nodeID]
	return v, ok
}

// VariableLoader is the persistence collaborator that hydrates a context for
// a resumed session. Implementations live outside this package.
type VariableLoader interface {
	LoadVariables(ctx context.Context, sessionID, scope string) (map[string]any, error)
}

// LoadSessionVariables hydrates the context from persisted session variables.
// A load failure is logged and the context continues with the variables it
// already has; construction of a resumed run never fails on a persistence
// fault.
func (ec *ExecutionContext) LoadSessionVariables(ctx context.Context, loader VariableLoader, sessionID string) {
	vars, err := loader.LoadVariables(ctx, sessionID, "")
	if err != nil {
		ec.logger.Error("failed to load session variables, continuing without them",
			"sessionId", sessionID, "error", err)
		return
	}
	ec.vars.MergeSessionVariables(vars, sessionID)
}

// Merge imports another context's variables and node outputs. System clock
// and execution keys are never imported; see VariableStore.Merge.
func (ec *ExecutionContext) Merge(other *ExecutionContext) {
	if other == nil {
		return
	}
	ec.vars.Merge(other.vars)
	for id, out := range other.nodeOutputs {
		ec.nodeOutputs[id] = out
	}
}

// Clone returns an independent context for speculative or parallel branch
// evaluation. Mutating the clone never affects the original; values are
// shared, bindings are not.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	outputs := make(map[string]any, len(ec.nodeOutputs))
	for id, out := range ec.nodeOutputs {
		outputs[id] = out
	}
	return &ExecutionContext{
		vars:        ec.vars.Clone(),
		nodeOutputs: outputs,
		logger:      ec.logger,
	}
}

// Summary is an operator-facing snapshot of a run, for diagnostics only.
type Summary struct {
	StartedAt       time.Time      `json:"startedAt"`
	VariableCount   int            `json:"variableCount"`
	NodeOutputCount int            `json:"nodeOutputCount"`
	Variables       map[string]any `json:"variables"`
}

// Summary returns a diagnostic snapshot of the run.
func (ec *ExecutionContext) Summary() Summary {
	return Summary{
		StartedAt:       ec.vars.StartedAt(),
		VariableCount:   ec.vars.Len(),
		NodeOutputCount: len(ec.nodeOutputs),
		Variables:       ec.vars.GetAll(),
	}
}
