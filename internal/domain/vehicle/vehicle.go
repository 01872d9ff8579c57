// Package vehicle defines the make/model/year identity used to select complaints and recalls.
package vehicle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/defectscope/defectscope/internal/domain"
)

var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{11,17}$`)

// Vehicle identifies a make, model and model year. Make and model are upper-cased.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// New builds a normalized vehicle. It does not validate.
func New(mk, model, year string) Vehicle {
	return Vehicle{
		Make:  strings.ToUpper(strings.TrimSpace(mk)),
		Model: strings.ToUpper(strings.TrimSpace(model)),
		Year:  strings.TrimSpace(year),
	}
}

// Validate requires all three fields.
func (v Vehicle) Validate() error {
	switch {
	case v.Make == "":
		return fmt.Errorf("%w: make is required", domain.ErrInvalidVehicle)
	case v.Model == "":
		return fmt.Errorf("%w: model is required", domain.ErrInvalidVehicle)
	case v.Year == "":
		return fmt.Errorf("%w: year is required", domain.ErrInvalidVehicle)
	}
	return nil
}

// Key is the exact-match lookup key into the complaint snapshot.
func (v Vehicle) Key() string {
	return v.Make + "|" + v.Model + "|" + v.Year
}

func (v Vehicle) String() string {
	return v.Year + " " + v.Make + " " + v.Model
}

// NormalizeVIN upper-cases a VIN and checks its alphabet and length.
// Partial VINs of 11 or more characters are accepted by the decoder.
func NormalizeVIN(vin string) (string, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !vinPattern.MatchString(vin) {
		return "", fmt.Errorf("%w: malformed vin %q", domain.ErrInvalidVehicle, vin)
	}
	return vin, nil
}
