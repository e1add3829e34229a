package wifi

import (
	"net"
	"net/netip"
	"strconv"
)

// LinkStatus is the association state reported by the radio driver.
type LinkStatus uint8

const (
	StatusDisconnected LinkStatus = iota
	StatusConnecting
	StatusConnected
	// StatusRejected means the access point refused the credentials.
	StatusRejected
	// StatusNoHardware means the radio did not respond.
	StatusNoHardware
)

func (s LinkStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusRejected:
		return "rejected"
	case StatusNoHardware:
		return "no-hardware"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Security is the encryption kind advertised by a scanned network.
type Security uint8

const (
	SecurityAuto Security = iota
	SecurityOpen
	SecurityWEP
	SecurityWPA
	SecurityWPA2
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "Unsecured"
	case SecurityWEP:
		return "WEP"
	case SecurityWPA:
		return "WPA"
	case SecurityWPA2:
		return "WPA2"
	}
	return "Unknown security"
}

// Network is a scan result.
type Network struct {
	SSID     string
	RSSI     int // dBm
	Security Security
}

// Radio is the wireless driver boundary. Implementations do not block for
// longer than a single driver transaction; the Manager does the waiting.
type Radio interface {
	// Disconnect drops any association. Disconnecting while not associated is not an error.
	Disconnect() error
	// StationMode selects client (station) operation.
	StationMode() error
	// Connect starts associating with the network. Progress is observed through Status.
	Connect(ssid, secret string) error
	Status() LinkStatus
	// Addr returns the address assigned to the node once connected.
	Addr() netip.Addr
	HardwareAddr() (net.HardwareAddr, error)
	Scan() ([]Network, error)
}
