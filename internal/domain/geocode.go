package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding attaches label coordinates to every region of an
// assessment. If geocoder is nil the assessment is returned unchanged; a
// failed lookup marks only that region (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, a Assessment, province string, geocoder Geocoder, logger *slog.Logger) Assessment {
	if geocoder == nil {
		return a
	}

	regions := make([]RegionAssessment, len(a.Regions))
	copy(regions, a.Regions)
	for i := range regions {
		regions[i] = enrichRegion(ctx, regions[i], province, geocoder, logger)
	}
	a.Regions = regions
	return a
}

func enrichRegion(ctx context.Context, r RegionAssessment, province string, geocoder Geocoder, logger *slog.Logger) RegionAssessment {
	name := r.FullName
	if name == "" {
		name = r.Region
	}

	result, err := geocoder.ForwardGeocode(ctx, name, province)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"region", r.Region,
			"query", name,
			"error", err,
		)
		r.GeoSource = "failed"
		return r
	}
	if result.Lat == 0 && result.Lon == 0 {
		r.GeoSource = "original"
		return r
	}

	r.Lat = result.Lat
	r.Lon = result.Lon
	r.Confidence = result.Confidence
	r.GeoSource = "forward"
	return r
}
