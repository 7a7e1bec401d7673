package ir

// Version constants for the value model and the engine.
const (
	// IRVersion is the value model schema version recorded in the journal.
	IRVersion = "1"

	// EngineVersion is the fxparams engine version.
	EngineVersion = "0.1.0"
)
