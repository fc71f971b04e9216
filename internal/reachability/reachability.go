package reachability

import (
	"net"
	"strings"

	"trackpoint/location-agent/internal/model"
)

// Checker answers whether a usable network path exists right now, and what
// kind of transport carries it. The answer is advisory: a positive result
// does not guarantee the next request succeeds, it only lets the uploader
// skip a doomed attempt and go straight to durable storage.
type Checker interface {
	Reachable() bool
	NetworkType() model.NetworkStatus
}

// InterfaceChecker classifies the host's active network interfaces.
type InterfaceChecker struct{}

// New returns the default interface-based checker.
func New() *InterfaceChecker {
	return &InterfaceChecker{}
}

// Reachable reports whether any active interface carries a global unicast
// address.
func (c *InterfaceChecker) Reachable() bool {
	return c.NetworkType() != model.NetworkOffline
}

// NetworkType classifies the current transport. Wifi takes priority over
// cellular when both are active; no usable interface yields offline.
func (c *InterfaceChecker) NetworkType() model.NetworkStatus {
	ifaces, err := net.Interfaces()
	if err != nil {
		return model.NetworkOffline
	}

	status := model.NetworkOffline

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if !hasGlobalUnicast(iface) {
			continue
		}

		switch classifyName(iface.Name) {
		case model.NetworkWifi:
			return model.NetworkWifi
		case model.NetworkCellular:
			status = model.NetworkCellular
		default:
			if status == model.NetworkOffline {
				status = model.NetworkUnknown
			}
		}
	}

	return status
}

func hasGlobalUnicast(iface net.Interface) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

func classifyName(name string) model.NetworkStatus {
	lower := strings.ToLower(name)

	for _, prefix := range []string{"wl", "wifi", "ath"} {
		if strings.HasPrefix(lower, prefix) {
			return model.NetworkWifi
		}
	}
	for _, prefix := range []string{"wwan", "rmnet", "ppp", "ccmni"} {
		if strings.HasPrefix(lower, prefix) {
			return model.NetworkCellular
		}
	}

	return model.NetworkUnknown
}
