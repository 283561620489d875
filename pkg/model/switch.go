// Package model defines the entities managed by the reservation engine:
// lab switches, their backbone-facing ports, point-to-point links,
// reservations, and topology shares.
package model

// Switch is a physical lab switch wired into the backbone fabric.
// Identity for device operations is the management address; the numeric
// ID is the storage key.
type Switch struct {
	ID               int64  `json:"id"`
	MgmtIP           string `json:"mngt_ip"`
	Model            string `json:"model"`
	Console          string `json:"console"`
	PartNumber       string `json:"part_number"`
	HardwareRevision string `json:"hardware_revision"`
	SerialNumber     string `json:"serial_number"`
}

// Reachable reports whether the switch can be addressed for device
// operations. Catalog entries scraped before a management address is
// assigned carry the literal placeholder "Not available".
func (s *Switch) Reachable() bool {
	return s.MgmtIP != "" && s.MgmtIP != "Not available"
}

func (s *Switch) String() string {
	return s.Model + "_" + s.MgmtIP
}
