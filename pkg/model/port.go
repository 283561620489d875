package model

import "fmt"

// PortStatus is the administrative status of a port.
type PortStatus string

const (
	PortUp   PortStatus = "UP"
	PortDown PortStatus = "DOWN"
)

// Port is one switch-facing port and its fixed wiring into the backbone:
// PortSwitch is the interface on the lab switch itself, Backbone is the
// management address of the aggregation switch it is cabled to, and
// PortBackbone is the interface on that aggregation switch.
//
// SVLAN is non-nil exactly while the port participates in an active
// link; the authoritative pairing lives in the Link entity.
type Port struct {
	ID           int64      `json:"id"`
	SwitchID     int64      `json:"switch"`
	PortSwitch   string     `json:"port_switch"`
	Backbone     string     `json:"backbone"`
	PortBackbone string     `json:"port_backbone"`
	SVLAN        *int       `json:"svlan"`
	Status       PortStatus `json:"status"`
}

// Linked reports whether the port is currently part of a link.
func (p *Port) Linked() bool {
	return p.SVLAN != nil
}

func (p *Port) String() string {
	return fmt.Sprintf("port %d (%s via %s %s)", p.ID, p.PortSwitch, p.Backbone, p.PortBackbone)
}
