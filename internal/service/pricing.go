package service

import (
	"strings"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

var seatTypePriceCents = map[string]uint32{
	model.SeatTypeStandard: 1500,
	model.SeatTypePremium:  2000,
	model.SeatTypeVIP:      2600,
}

// SeatPriceCents returns the flat price of a seat type. Unknown types are
// priced as STANDARD.
func SeatPriceCents(seatType string) uint32 {
	if p, ok := seatTypePriceCents[strings.ToUpper(seatType)]; ok {
		return p
	}
	return seatTypePriceCents[model.SeatTypeStandard]
}
