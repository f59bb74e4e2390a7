// Package deviceid resolves the node id used in MQTT topics: the
// configured device name if set, else the hardware-derived hex id.
package deviceid

import (
	"crypto/sha1"
	"encoding/hex"
	"net"
)

// HardwareID derives a stable hex id from the first non-loopback MAC
// address found, falling back to a fixed placeholder on platforms with no
// network interfaces (containers, CI). This mirrors the MCU-unique-id
// fallback the original firmware reads out of silicon.
func HardwareID() string {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) == 0 {
				continue
			}
			sum := sha1.Sum(iface.HardwareAddr)
			return hex.EncodeToString(sum[:6])
		}
	}
	return "000000000000"
}

// NodeID returns deviceName if non-empty, else HardwareID().
func NodeID(deviceName string) string {
	if deviceName != "" {
		return deviceName
	}
	return HardwareID()
}
