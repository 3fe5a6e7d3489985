package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionTaskStarted      = "task.started"
	ActionTaskCompleted    = "task.completed"
	ActionTaskFailed       = "task.failed"
	ActionStageInitiated   = "stage.initiated"
	ActionAttachRetrying   = "attach.retrying"
	ActionTokenRedeemed    = "token.redeemed"
	ActionCorrelationMiss  = "correlation.miss"
	ActionExecutionStarted = "execution.started"
	ActionDLQPushed        = "dlq.pushed"
)

// Audit event categories group related actions.
const (
	CategoryTask  = "volshift.task"
	CategoryEvent = "volshift.event"
	CategoryDLQ   = "volshift.dlq"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceTask        = "task"
	ResourceCorrelation = "correlation"
	ResourceExecution   = "execution"
	ResourceDLQEntry    = "dlq_entry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTaskStarted,
		ActionTaskCompleted,
		ActionTaskFailed,
		ActionStageInitiated,
		ActionAttachRetrying,
		ActionTokenRedeemed,
		ActionCorrelationMiss,
		ActionExecutionStarted,
		ActionDLQPushed,
	}
}
