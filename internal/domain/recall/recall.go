// Package recall defines a manufacturer recall campaign entry.
package recall

// Recall is one campaign affecting a vehicle.
type Recall struct {
	CampaignNumber string `json:"campaign_number"`
	Manufacturer   string `json:"manufacturer"`
	Component      string `json:"component"`
	Summary        string `json:"summary"`
	Consequence    string `json:"consequence"`
	Remedy         string `json:"remedy"`
	Notes          string `json:"notes,omitempty"`
	ReportReceived string `json:"report_received,omitempty"`
}
