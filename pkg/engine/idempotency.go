package engine

import "time"

// Side-effect categories tracked for at-most-once execution. Each category
// writes under its own durable namespace, so distinct categories never
// collide and all of them survive ClearUserVariables.
const (
	categoryWebhook             = "webhook"
	categoryHTTP                = "http"
	categoryCallAgent           = "callAgent"
	categoryContactNotification = "contactNotification"
)

// nodeKey builds the storage discriminator for a tracked execution. When the
// same node is reachable through multiple concurrent branches of one flow,
// pathID keeps one branch's execution from being mistaken for another's.
func nodeKey(nodeID, pathID string) string {
	if pathID == "" {
		return nodeID
	}
	return nodeID + "." + pathID
}

// markExecuted records that a side-effecting node has run: an executed flag,
// the execution timestamp, and the response payload when one was supplied.
// Re-marking the same (node, path) overwrites all three; a retried node's
// cache reflects the latest attempt.
func (ec *ExecutionContext) markExecuted(category, nodeID, pathID string, response any) {
	key := nodeKey(nodeID, pathID)
	if ec.isExecuted(category, nodeID, pathID) {
		sideEffectRemarks.Inc()
	}
	ec.vars.Set(category+".executed."+key, true)
	ec.vars.Set(category+".executedAt."+key, ec.vars.clock().Format(time.RFC3339))
	if response != nil {
		ec.vars.Set(category+".cachedResponse."+key, response)
	}
}

// isExecuted reports whether the executed flag was previously written for
// exactly this (node, path) pair. The flag may have round-tripped through
// JSON persistence, so both the bool true and the string "true" count.
func (ec *ExecutionContext) isExecuted(category, nodeID, pathID string) bool {
	v, ok := ec.vars.Get(category + ".executed." + nodeKey(nodeID, pathID))
	if !ok {
		return false
	}
	switch f := v.(type) {
	case bool:
		return f
	case string:
		return f == "true"
	default:
		return false
	}
}

// cachedResponse returns the response recorded at mark time, or nil when the
// node never executed or executed without a response payload.
func (ec *ExecutionContext) cachedResponse(category, nodeID, pathID string) any {
	v, _ := ec.vars.Get(category + ".cachedResponse." + nodeKey(nodeID, pathID))
	return v
}

// MarkWebhookExecuted records that the webhook node has fired. The executor
// must consult IsWebhookExecuted before performing the real call and must
// persist the context before the process is considered safe to restart; a
// crash between the side effect and persistence can duplicate the effect on
// resume. That ordering is the caller's contract, not enforced here.
func (ec *ExecutionContext) MarkWebhookExecuted(nodeID, pathID string, response any) {
	ec.markExecuted(categoryWebhook, nodeID, pathID, response)
}

// IsWebhookExecuted reports whether the webhook node already fired for this
// run, including runs resumed from persisted variables.
func (ec *ExecutionContext) IsWebhookExecuted(nodeID, pathID string) bool {
	return ec.isExecuted(categoryWebhook, nodeID, pathID)
}

// WebhookCachedResponse returns the response cached when the webhook fired,
// or nil.
func (ec *ExecutionContext) WebhookCachedResponse(nodeID, pathID string) any {
	return ec.cachedResponse(categoryWebhook, nodeID, pathID)
}

// MarkHTTPExecuted records that the HTTP request node has fired.
func (ec *ExecutionContext) MarkHTTPExecuted(nodeID, pathID string, response any) {
	ec.markExecuted(categoryHTTP, nodeID, pathID, response)
}

// IsHTTPExecuted reports whether the HTTP request node already fired.
func (ec *ExecutionContext) IsHTTPExecuted(nodeID, pathID string) bool {
	return ec.isExecuted(categoryHTTP, nodeID, pathID)
}

// HTTPCachedResponse returns the response cached for the HTTP request node,
// or nil.
func (ec *ExecutionContext) HTTPCachedResponse(nodeID, pathID string) any {
	return ec.cachedResponse(categoryHTTP, nodeID, pathID)
}

// MarkCallAgentExecuted records that the outbound call node has fired.
func (ec *ExecutionContext) MarkCallAgentExecuted(nodeID, pathID string, response any) {
	ec.markExecuted(categoryCallAgent, nodeID, pathID, response)
}

// IsCallAgentExecuted reports whether the outbound call node already fired.
func (ec *ExecutionContext) IsCallAgentExecuted(nodeID, pathID string) bool {
	return ec.isExecuted(categoryCallAgent, nodeID, pathID)
}

// CallAgentCachedResponse returns the response cached for the outbound call
// node, or nil.
func (ec *ExecutionContext) CallAgentCachedResponse(nodeID, pathID string) any {
	return ec.cachedResponse(categoryCallAgent, nodeID, pathID)
}

// MarkContactNotificationExecuted records that the contact notification node
// has fired.
func (ec *ExecutionContext) MarkContactNotificationExecuted(nodeID, pathID string, response any) {
	ec.markExecuted(categoryContactNotification, nodeID, pathID, response)
}

// IsContactNotificationExecuted reports whether the contact notification node
// already fired.
func (ec *ExecutionContext) IsContactNotificationExecuted(nodeID, pathID string) bool {
	return ec.isExecuted(categoryContactNotification, nodeID, pathID)
}

// ContactNotificationCachedResponse returns the response cached for the
// contact notification node, or nil.
func (ec *ExecutionContext) ContactNotificationCachedResponse(nodeID, pathID string) any {
	return ec.cachedResponse(categoryContactNotification, nodeID, pathID)
}
