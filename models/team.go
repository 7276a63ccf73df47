package models

// Team is a competing robot team, including the stored network configuration
// the field controller uses to reach its robot on demand.
type Team struct {
	ID     int    `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`

	Hostname       string `json:"hostname"`
	CallPort       int    `json:"call_port"`
	LogPort        int    `json:"log_port"`
	UpdatePort     int    `json:"update_port"`
	MulticastGroup string `json:"multicast_group"`
}
