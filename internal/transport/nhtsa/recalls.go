package nhtsa

import (
	"context"
	"net/url"
	"strings"

	"github.com/defectscope/defectscope/internal/domain/recall"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

type recallsResponse struct {
	Count   int `json:"Count"`
	Results []struct {
		CampaignNumber flexString `json:"NHTSACampaignNumber"`
		Manufacturer   string     `json:"Manufacturer"`
		ReportReceived string     `json:"ReportReceivedDate"`
		Component      string     `json:"Component"`
		Summary        string     `json:"Summary"`
		Consequence    string     `json:"Consequence"`
		Remedy         string     `json:"Remedy"`
		Notes          string     `json:"Notes"`
	} `json:"results"`
}

// Recalls fetches recall campaigns for a vehicle. No campaigns is an empty slice.
func (c *Client) Recalls(ctx context.Context, v vehicle.Vehicle) ([]recall.Recall, error) {
	v = vehicle.New(v.Make, v.Model, v.Year)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("make", v.Make)
	q.Set("model", v.Model)
	q.Set("modelYear", v.Year)
	u := strings.TrimRight(c.recallsBase, "/") + "/recalls/recallsByVehicle?" + q.Encode()

	var resp recallsResponse
	if err := c.getJSON(ctx, "recalls", u, &resp); err != nil {
		return nil, err
	}

	out := make([]recall.Recall, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, recall.Recall{
			CampaignNumber: string(r.CampaignNumber),
			Manufacturer:   r.Manufacturer,
			Component:      r.Component,
			Summary:        r.Summary,
			Consequence:    r.Consequence,
			Remedy:         r.Remedy,
			Notes:          r.Notes,
			ReportReceived: r.ReportReceived,
		})
	}
	return out, nil
}
