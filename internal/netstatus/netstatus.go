// Package netstatus answers the two connectivity questions the update
// coordinator asks before touching the network.
package netstatus

import "net"

// Oracle reports current network conditions.
type Oracle interface {
	IsConnected() bool
	// IsMetered reports whether the active connection should only
	// carry traffic the user explicitly allowed.
	IsMetered() bool
}

// Probe is the default Oracle. It treats any up, non-loopback interface
// with an address as connectivity; metering is unknowable without OS
// support, so it reports unmetered.
type Probe struct{}

func (Probe) IsConnected() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

func (Probe) IsMetered() bool { return false }

// Static is a fixed Oracle for tests and forced policies.
type Static struct {
	Connected bool
	Metered   bool
}

func (s Static) IsConnected() bool { return s.Connected }
func (s Static) IsMetered() bool   { return s.Metered }
