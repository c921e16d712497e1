package shared

import "fmt"

// NATS Subject patterns
const (
	// Base subject prefixes
	SubjectPrefix = "overwatch"

	// Dispatch subjects
	SubjectDispatch    = "overwatch.dispatch"
	SubjectDispatchAll = "overwatch.dispatch.>"
	SubjectDispatchFor = "overwatch.dispatch.%s" // session_id

	// Audit subjects
	SubjectAudit      = "overwatch.audit"
	SubjectAuditAll   = "overwatch.audit.>"
	SubjectAuditEvent = "overwatch.audit.%s.%s" // session_id, event type

	// System subjects
	SubjectSystemHealth = "overwatch.system.health"
)

// Stream names
const (
	StreamDispatch = "OVERWATCH_DISPATCH"
	StreamAudit    = "OVERWATCH_AUDIT"
)

// Consumer names
const (
	ConsumerDispatchProcessor = "dispatch-processor"
	ConsumerAuditProcessor    = "audit-processor"
)

// Helper functions to generate subjects
func DispatchSubject(sessionID string) string {
	return fmt.Sprintf(SubjectDispatchFor, sessionID)
}

func AuditSubject(sessionID, eventType string) string {
	return fmt.Sprintf(SubjectAuditEvent, sessionID, eventType)
}
