package metadata

// Canonical position-data names that must round-trip through on-disk
// serialization unchanged (spec.md §6). "id" is reserved separately by
// package lineage, since it addresses the lineage graph rather than the
// metadata stores themselves.
const (
	NameType             = "type"
	NameEnding           = "ending"
	NameStarting         = "starting"
	NameError            = "error"
	NameSuppressedError  = "suppressed_error"
	NameUncertain        = "uncertain"
	NameMotherScore      = "mother_score"
	NameIntensity        = "intensity"
	NameIntensityVolume  = "intensity_volume"
	NameCTCID            = "ctc_id"
)

// End-marker values, stored as lowercase strings under NameEnding.
// Grounded on original_source/ai_track/linking_analysis/linking_markers.py.
const (
	EndMarkerDead      = "dead"
	EndMarkerOutOfView = "out_of_view"
	EndMarkerShed      = "shed"
)

// Start-marker values, stored as lowercase strings under NameStarting.
// EndMarkerOutOfView's start-side counterpart is StartMarkerGoesIntoView;
// StartMarkerUnsure additionally marks a track start the linking algorithm
// could not explain (supplemented from linking_markers.py, dropped by the
// distilled spec).
const (
	StartMarkerGoesIntoView = "goes_into_view"
	StartMarkerUnsure       = "unsure"
)
