package meta

// Version is the pgscope release version, reported by the CLI and in the MCP
// server handshake.
const Version = "1.0.0"
