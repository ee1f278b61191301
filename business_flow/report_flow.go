package businessflow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Kusanagi/repository"
	"github.com/xuri/excelize/v2"
)

// TrackedURLStat is one report row: a campaign destination and its clicks
type TrackedURLStat struct {
	Destination string
	Hash        string
	Clicks      int64
	DateAdded   time.Time
}

// ReportFlow produces per campaign click statistics for tracked URLs
type ReportFlow interface {
	TrackedURLStats(ctx context.Context, campaignUID string) ([]*TrackedURLStat, error)
	// ExportTrackedURLStats renders the stats as an xlsx workbook and
	// returns the suggested filename with the file bytes
	ExportTrackedURLStats(ctx context.Context, campaignUID string) (string, []byte, error)
}

type ReportFlowImpl struct {
	campaignRepo repository.CampaignRepository
	urlRepo      repository.TrackedURLRepository
	clickRepo    repository.TrackedURLClickRepository
}

func NewReportFlow(
	campaignRepo repository.CampaignRepository,
	urlRepo repository.TrackedURLRepository,
	clickRepo repository.TrackedURLClickRepository,
) ReportFlow {
	return &ReportFlowImpl{
		campaignRepo: campaignRepo,
		urlRepo:      urlRepo,
		clickRepo:    clickRepo,
	}
}

func (f *ReportFlowImpl) TrackedURLStats(ctx context.Context, campaignUID string) ([]*TrackedURLStat, error) {
	campaign, err := f.campaignRepo.ByUID(ctx, campaignUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	urls, err := f.urlRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("TRACKED_URL_LIST_FAILED", "Failed to list tracked urls", err)
	}

	stats := make([]*TrackedURLStat, 0, len(urls))
	for _, u := range urls {
		clicks, err := f.clickRepo.CountByTrackedURL(ctx, u.ID)
		if err != nil {
			return nil, NewBusinessError("CLICK_COUNT_FAILED", "Failed to count clicks", err)
		}
		stats = append(stats, &TrackedURLStat{
			Destination: u.Destination,
			Hash:        u.Hash,
			Clicks:      clicks,
			DateAdded:   u.DateAdded,
		})
	}
	return stats, nil
}

func (f *ReportFlowImpl) ExportTrackedURLStats(ctx context.Context, campaignUID string) (string, []byte, error) {
	stats, err := f.TrackedURLStats(ctx, campaignUID)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := sanitizeSheetName("campaign_" + campaignUID)
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"destination", "hash", "clicks", "date_added"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, s := range stats {
		record := []string{
			s.Destination,
			s.Hash,
			strconv.FormatInt(s.Clicks, 10),
			s.DateAdded.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return "campaign_" + campaignUID + "_tracked_urls.xlsx", buf.Bytes(), nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if len(safe) > 31 {
		safe = safe[:31]
	}
	if safe == "" {
		safe = "Sheet"
	}
	return safe
}
