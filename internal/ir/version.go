package ir

// EngineVersion is the Trickle engine version.
const EngineVersion = "0.1.0"
