package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldRequestID = "request_id"

	// Pipeline fields
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldClipIndex = "clip_index"
	FieldTitle     = "title"
	FieldStrategy  = "strategy"
	FieldMode      = "mode"

	// Process fields
	FieldBinary   = "binary"
	FieldExitCode = "exit_code"
	FieldElapsed  = "elapsed"
	FieldStderr   = "stderr"

	// Path / URL fields
	FieldPath    = "path"
	FieldLocator = "locator"
)
