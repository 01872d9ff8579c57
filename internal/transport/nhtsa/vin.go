package nhtsa

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
)

type vinResponse struct {
	Results []struct {
		Make      flexString `json:"Make"`
		Model     flexString `json:"Model"`
		ModelYear flexString `json:"ModelYear"`
	} `json:"Results"`
}

// DecodeVIN resolves a VIN to make, model and year. The result is never partial:
// if any of the three is missing the VIN is reported as not found.
func (c *Client) DecodeVIN(ctx context.Context, vin string) (vehicle.Vehicle, error) {
	vin, err := vehicle.NormalizeVIN(vin)
	if err != nil {
		return vehicle.Vehicle{}, err
	}

	u := fmt.Sprintf("%s/vehicles/decodevinvalues/%s?format=json", strings.TrimRight(c.vpicBase, "/"), url.PathEscape(vin))

	var resp vinResponse
	if err := c.getJSON(ctx, "vpic", u, &resp); err != nil {
		return vehicle.Vehicle{}, err
	}
	if len(resp.Results) == 0 {
		return vehicle.Vehicle{}, fmt.Errorf("%w: %s", domain.ErrVINNotFound, vin)
	}

	r := resp.Results[0]
	v := vehicle.New(string(r.Make), string(r.Model), string(r.ModelYear))
	if v.Validate() != nil {
		return vehicle.Vehicle{}, fmt.Errorf("%w: %s decoded incompletely", domain.ErrVINNotFound, vin)
	}
	return v, nil
}
