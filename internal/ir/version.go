package ir

// Version constants stamped on journal records.
const (
	// IRVersion is the version of the value and record encodings.
	IRVersion = "1"

	// BridgeVersion is the pixbridge version.
	BridgeVersion = "0.1.0"
)
