package entity

// TransportState is where a transport sits in the pool.
type TransportState string

const (
	TransportActive      TransportState = "active"
	TransportQuarantined TransportState = "quarantined"
)

// TransportStatus describes one pool member.
type TransportStatus struct {
	Name  string
	State TransportState
	// Started reports whether the transport holds a live connection.
	Started bool
	// Position is the rotation index for active transports, starting at 0
	// for the next one to be used, or the quarantine index otherwise.
	Position int
}
