package businessflow

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/utils"
	"github.com/xuri/excelize/v2"
)

const (
	rateTypeCPV = "CPV"
	rateTypeCPM = "CPM"
)

// targetingSheet is one tab of the targeting report
type targetingSheet struct {
	Name        string
	Dimensions  []models.TargetingDimension
	FirstColumn string
	SortByViews bool
}

var targetingSheets = []targetingSheet{
	{Name: "Target", Dimensions: []models.TargetingDimension{models.TargetingDimensionTarget}, FirstColumn: "Target", SortByViews: true},
	{Name: "Devices", Dimensions: []models.TargetingDimension{models.TargetingDimensionDevice}, FirstColumn: "Device"},
	{Name: "Demo", Dimensions: []models.TargetingDimension{models.TargetingDimensionAge, models.TargetingDimensionGender}, FirstColumn: "Demo"},
	{Name: "Video", Dimensions: []models.TargetingDimension{models.TargetingDimensionVideo}, FirstColumn: "Video"},
}

// targetingColumns follow the first column of every sheet
var targetingColumns = []string{
	"Type", "Ads Campaign", "Ads Ad group", "Salesforce Placement", "Placement Start Date",
	"Placement End Date", "Days remaining", "Margin Cap", "Cannot Roll over Delivery", "Rate Type",
	"Contracted Rate", "Max bid", "Avg. Rate", "Cost", "Cost delivery percentage", "Impressions",
	"Views", "Delivery percentage", "Revenue", "Profit", "Margin", "Video played to 100%",
	"View rate", "Clicks", "CTR",
}

// targetingRow is the aggregate of statistic rows sharing a dimension value and placement
type targetingRow struct {
	Dimension        models.TargetingDimension
	Name             string
	Type             string
	CampaignName     string
	AdGroupName      string
	PlacementName    string
	PlacementStart   *time.Time
	PlacementEnd     *time.Time
	RateType         string
	ContractedRate   float64
	MaxBid           float64
	MarginCap        *float64
	CannotRollOver   bool
	OrderedUnits     int64
	Impressions      int64
	VideoViews       int64
	Clicks           int64
	Cost             float64
	VideoPlayedTo100 int64
	Revenue          float64
}

func targetingRowKey(s *models.TargetingStatistic) string {
	return strings.Join([]string{string(s.Dimension), s.Name, s.Type, s.CampaignName, s.AdGroupName, s.PlacementName}, "\x00")
}

// aggregateTargetingStatistics sums daily rows per dimension value and placement, keeping first-seen order
func aggregateTargetingStatistics(stats []*models.TargetingStatistic) []*targetingRow {
	index := make(map[string]*targetingRow)
	var out []*targetingRow
	for _, s := range stats {
		key := targetingRowKey(s)
		row, ok := index[key]
		if !ok {
			row = &targetingRow{
				Dimension:      s.Dimension,
				Name:           s.Name,
				Type:           s.Type,
				CampaignName:   s.CampaignName,
				AdGroupName:    s.AdGroupName,
				PlacementName:  s.PlacementName,
				PlacementStart: s.PlacementStart,
				PlacementEnd:   s.PlacementEnd,
				RateType:       strings.ToUpper(s.RateType),
				ContractedRate: s.ContractedRate,
				MaxBid:         s.MaxBid,
				MarginCap:      s.MarginCap,
				CannotRollOver: s.CannotRollOver,
				OrderedUnits:   s.OrderedUnits,
			}
			index[key] = row
			out = append(out, row)
		}
		row.Impressions += s.Impressions
		row.VideoViews += s.VideoViews
		row.Clicks += s.Clicks
		row.Cost += s.Cost
		row.VideoPlayedTo100 += s.VideoPlayedTo100
		row.Revenue += s.Revenue
	}
	return out
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

func percent(num, den float64) *float64 {
	r := ratio(num, den)
	if r == nil {
		return nil
	}
	v := math.Round(*r*10000) / 100
	return &v
}

// AvgRate is cost per view for CPV placements and cost per thousand impressions for CPM
func (r *targetingRow) AvgRate() *float64 {
	switch r.RateType {
	case rateTypeCPV:
		return ratio(r.Cost, float64(r.VideoViews))
	case rateTypeCPM:
		return ratio(r.Cost, float64(r.Impressions)/1000)
	default:
		return nil
	}
}

func (r *targetingRow) deliveredUnits() float64 {
	if r.RateType == rateTypeCPM {
		return float64(r.Impressions)
	}
	return float64(r.VideoViews)
}

func (r *targetingRow) plannedCost() float64 {
	if r.RateType == rateTypeCPM {
		return float64(r.OrderedUnits) / 1000 * r.ContractedRate
	}
	return float64(r.OrderedUnits) * r.ContractedRate
}

func (r *targetingRow) DaysRemaining(today time.Time) *int {
	if r.PlacementEnd == nil {
		return nil
	}
	days := int(r.PlacementEnd.Sub(today.Truncate(24*time.Hour)).Hours() / 24)
	return &days
}

func cell[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(t *time.Time) any {
	if t == nil {
		return ""
	}
	return utils.FormatDate(*t)
}

func (r *targetingRow) cells(today time.Time) []any {
	profit := r.Revenue - r.Cost
	return []any{
		r.Name,
		r.Type,
		r.CampaignName,
		r.AdGroupName,
		r.PlacementName,
		dateCell(r.PlacementStart),
		dateCell(r.PlacementEnd),
		cell(r.DaysRemaining(today)),
		cell(r.MarginCap),
		r.CannotRollOver,
		r.RateType,
		r.ContractedRate,
		r.MaxBid,
		cell(r.AvgRate()),
		r.Cost,
		cell(percent(r.Cost, r.plannedCost())),
		r.Impressions,
		r.VideoViews,
		cell(percent(r.deliveredUnits(), float64(r.OrderedUnits))),
		r.Revenue,
		profit,
		cell(percent(profit, r.Revenue)),
		cell(percent(float64(r.VideoPlayedTo100), float64(r.Impressions))),
		cell(percent(float64(r.VideoViews), float64(r.Impressions))),
		r.Clicks,
		cell(percent(float64(r.Clicks), float64(r.Impressions))),
	}
}

// BuildTargetingReport renders the four-sheet targeting workbook
func BuildTargetingReport(opportunity *models.Opportunity, dateFrom, dateTo time.Time, stats []*models.TargetingStatistic, today time.Time) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	bold, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	rows := aggregateTargetingStatistics(stats)
	byDimension := make(map[models.TargetingDimension][]*targetingRow)
	for _, r := range rows {
		byDimension[r.Dimension] = append(byDimension[r.Dimension], r)
	}

	for i, sheet := range targetingSheets {
		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), sheet.Name); err != nil {
				return nil, err
			}
		} else if _, err := xl.NewSheet(sheet.Name); err != nil {
			return nil, err
		}

		var sheetRows []*targetingRow
		for _, d := range sheet.Dimensions {
			sheetRows = append(sheetRows, byDimension[d]...)
		}
		if sheet.SortByViews {
			sort.SliceStable(sheetRows, func(a, b int) bool {
				return sheetRows[a].VideoViews > sheetRows[b].VideoViews
			})
		} else {
			sort.SliceStable(sheetRows, func(a, b int) bool {
				return sheetRows[a].Name < sheetRows[b].Name
			})
		}

		title := []any{fmt.Sprintf("Opportunity: %s", opportunity.Name)}
		dateRange := []any{fmt.Sprintf("Date Range: %s - %s", utils.FormatDate(dateFrom), utils.FormatDate(dateTo))}
		if err := xl.SetSheetRow(sheet.Name, "A1", &title); err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet.Name, "A2", &dateRange); err != nil {
			return nil, err
		}

		header := append([]string{sheet.FirstColumn}, targetingColumns...)
		if err := xl.SetSheetRow(sheet.Name, "A4", &header); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 4)
		if err := xl.SetCellStyle(sheet.Name, "A1", last, bold); err != nil {
			return nil, err
		}
		if err := xl.SetColWidth(sheet.Name, "A", "A", 40); err != nil {
			return nil, err
		}

		for ri, r := range sheetRows {
			ref, _ := excelize.CoordinatesToCellName(1, ri+5)
			record := r.cells(today)
			if err := xl.SetSheetRow(sheet.Name, ref, &record); err != nil {
				return nil, err
			}
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
