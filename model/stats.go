package model

// AttemptStats are aggregate counts over the attempt log.
type AttemptStats struct {
	Total       int64 `json:"total"`
	Success     int64 `json:"success"`
	Blocked     int64 `json:"blocked"`
	Banned      int64 `json:"banned"`
	RateLimited int64 `json:"rate_limited"`
	Errors      int64 `json:"errors"`
	Devices     int64 `json:"devices"`
}

// TrackCount is a track with its successful-queue count.
type TrackCount struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	Count      int64  `json:"count"`
}

// DeviceSummary is a fingerprint row enriched with attempt counts for the
// admin device list.
type DeviceSummary struct {
	Fingerprint
	TotalAttempts int64 `json:"total_attempts"`
	SuccessCount  int64 `json:"success_count"`
}

// ActivityEntry is one attempt joined with the device's display name.
type ActivityEntry struct {
	QueueAttempt
	Username string `json:"username"`
}
