package model

import "time"

// Auditorium is a screening room. SeatMapID points at the layout
// descriptor used to render the room; it is nil until inventory has been
// provisioned.
type Auditorium struct {
	ID        uint64    // auditoriums.id
	TheaterID *uint64   // auditoriums.theater_id (nullable)
	Name      string    // auditoriums.name
	SeatMapID *uint64   // auditoriums.seat_map_id (nullable)
	CreatedAt time.Time // auditoriums.created_at
}

// SeatMap stores the layout descriptor of an auditorium as JSON.
type SeatMap struct {
	ID         uint64    // seat_maps.id
	Name       string    // seat_maps.name
	LayoutJSON string    // seat_maps.layout_json
	CreatedAt  time.Time // seat_maps.created_at
}

// SeatLayout is the decoded form of SeatMap.LayoutJSON.
type SeatLayout struct {
	Rows           []string `json:"rows"`
	SeatsPerRow    int      `json:"seats_per_row"`
	AislesAfter    []int    `json:"aisles_after"`
	ScreenPosition string   `json:"screen_position"`
}
