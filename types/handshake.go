package types

// ProtocolVersion is the single integer carried by the handshake.
const ProtocolVersion uint16 = 1

// Version is sent once by the engine right after the channel is
// established. It is advisory: the manager may ignore it.
type Version struct {
	Version uint16
	PID     uint32
	// Type names the engine implementation (e.g. "go", "python").
	Type string
}
