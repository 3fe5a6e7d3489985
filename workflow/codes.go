package workflow

// Error codes a stage reports when it fails its orchestrator token. The
// state machine document matches on these.
const (
	ErrorExternalCall    = "volshift.ExternalCallFailed"
	ErrorMissingOutput   = "volshift.MissingOutput"
	ErrorInvalidState    = "volshift.InvalidState"
	ErrorAttachExhausted = "volshift.AttachExhausted"
	ErrorInternal        = "volshift.Internal"
)
