package dto

// TrackedURLStatItem is one row of the per campaign click report
type TrackedURLStatItem struct {
	Destination string `json:"destination"`
	Hash        string `json:"hash"`
	Clicks      int64  `json:"clicks"`
	DateAdded   string `json:"date_added"`
}

// TrackedURLStatsResponse wraps the click report for a campaign
type TrackedURLStatsResponse struct {
	CampaignUID string               `json:"campaign_uid"`
	URLs        []TrackedURLStatItem `json:"urls"`
}
