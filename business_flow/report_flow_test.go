package businessflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newReportFixture() (*ReportFlowImpl, *fakeTrackedURLRepo, *fakeClickRepo) {
	urls := &fakeTrackedURLRepo{}
	clicks := &fakeClickRepo{}
	campaigns := &fakeCampaignRepo{campaigns: []*models.Campaign{testCampaign()}}
	flow := NewReportFlow(campaigns, urls, clicks).(*ReportFlowImpl)
	return flow, urls, clicks
}

func seedReportData(urls *fakeTrackedURLRepo, clicks *fakeClickRepo) {
	urls.rows = []*models.TrackedURL{
		{ID: 1, CampaignID: 1, Destination: "https://example.com/a", Hash: utils.SHA1Hex("abc123https://example.com/a"), DateAdded: utils.UTCNow()},
		{ID: 2, CampaignID: 1, Destination: "https://example.com/b", Hash: utils.SHA1Hex("abc123https://example.com/b"), DateAdded: utils.UTCNow()},
	}
	clicks.clicks = []*models.TrackedURLClick{
		{ID: 1, TrackedURLID: 1, SubscriberID: 11},
		{ID: 2, TrackedURLID: 1, SubscriberID: 12},
		{ID: 3, TrackedURLID: 2, SubscriberID: 11},
	}
}

func TestTrackedURLStats(t *testing.T) {
	flow, urls, clicks := newReportFixture()
	seedReportData(urls, clicks)

	stats, err := flow.TrackedURLStats(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "https://example.com/a", stats[0].Destination)
	assert.Equal(t, int64(2), stats[0].Clicks)
	assert.Equal(t, "https://example.com/b", stats[1].Destination)
	assert.Equal(t, int64(1), stats[1].Clicks)
}

func TestTrackedURLStatsUnknownCampaign(t *testing.T) {
	flow, _, _ := newReportFixture()
	_, err := flow.TrackedURLStats(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestExportTrackedURLStats(t *testing.T) {
	flow, urls, clicks := newReportFixture()
	seedReportData(urls, clicks)

	filename, data, err := flow.ExportTrackedURLStats(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "campaign_abc123_tracked_urls.xlsx", filename)
	require.NotEmpty(t, data)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	assert.Equal(t, "campaign_abc123", sheet)

	rows, err := xl.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"destination", "hash", "clicks", "date_added"}, rows[0])
	assert.Equal(t, "https://example.com/a", rows[1][0])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "https://example.com/b", rows[2][0])
	assert.Equal(t, "1", rows[2][2])
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{name: "forbidden characters replaced", in: "a:b/c?d", expected: "a_b_c_d"},
		{name: "long name truncated", in: "campaign_with_a_very_long_uid_beyond_limit", expected: "campaign_with_a_very_long_uid_b"},
		{name: "empty falls back", in: "", expected: "Sheet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeSheetName(tt.in))
		})
	}
}
