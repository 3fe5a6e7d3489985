package resumer

// Outcome reports what handling an event did.
type Outcome string

const (
	// OutcomeRedeemed means a record was taken and its token settled.
	OutcomeRedeemed Outcome = "redeemed"
	// OutcomeIgnored means the event does not concern any run.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeMissed means the event should have matched a record but none
	// was live, or the orchestrator no longer knew the token.
	OutcomeMissed Outcome = "missed"
	// OutcomeStarted means an alarm started a new run.
	OutcomeStarted Outcome = "started"
)

func (o Outcome) String() string { return string(o) }
