package server

import (
	"context"
	"log/slog"

	"github.com/guessucla/campusguess/internal/campusguess"
)

var demoLocations = []campusguess.Location{
	{Name: "Royce Hall", Address: "10745 Dickson Plaza", Coord: campusguess.Coord{Lat: 34.07296, Lon: -118.44219}},
	{Name: "Powell Library", Address: "10740 Dickson Plaza", Coord: campusguess.Coord{Lat: 34.07161, Lon: -118.44220}},
	{Name: "Janss Steps", Address: "Janss Steps", Coord: campusguess.Coord{Lat: 34.07222, Lon: -118.44386}},
	{Name: "Pauley Pavilion", Address: "301 Westwood Plaza", Coord: campusguess.Coord{Lat: 34.07040, Lon: -118.44687}},
	{Name: "Ackerman Union", Address: "308 Westwood Plaza", Coord: campusguess.Coord{Lat: 34.07047, Lon: -118.44393}},
	{Name: "Bruin Bear", Address: "Bruin Plaza", Coord: campusguess.Coord{Lat: 34.07101, Lon: -118.44503}},
	{Name: "Inverted Fountain", Address: "Inverted Fountain", Coord: campusguess.Coord{Lat: 34.06948, Lon: -118.44193}},
	{Name: "Hedrick Hall", Address: "250 De Neve Drive", Coord: campusguess.Coord{Lat: 34.07318, Lon: -118.45232}},
}

// SeedDemo inserts a handful of campus landmarks when the location table
// is empty. Idempotent: does nothing once any location exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, store *DocStore) error {
	n, err := store.LocationCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	for _, loc := range demoLocations {
		if _, err := store.UpsertLocation(ctx, loc); err != nil {
			return err
		}
	}

	logger.Info("demo locations seeded", "count", len(demoLocations))
	return nil
}
