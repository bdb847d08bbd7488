package ir

// Version constants for the storage schema and tooling.
const (
	// SchemaVersion is the storage schema version recorded in user_version.
	SchemaVersion = 1

	// ToolVersion is the composite tool version.
	ToolVersion = "0.1.0"
)
