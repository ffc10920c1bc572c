package analytics

import (
	"strings"
	"time"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/repository/mappings"
)

// TableCount is the lead count of one table.
type TableCount struct {
	TableName       string  `json:"tableName"`
	CustomTableName *string `json:"customTableName"`
	Count           int64   `json:"count"`
}

// TotalCount sums TableCount across every mapped table.
type TotalCount struct {
	Total  int64 `json:"total"`
	Tables int   `json:"tables"`
}

// DailyStat is the windowed breakdown of one table. HasData is false when
// the table is empty or its queries failed.
type DailyStat struct {
	TableName    string `json:"tableName"`
	DisplayName  string `json:"displayName"`
	Today        int64  `json:"today"`
	Yesterday    int64  `json:"yesterday"`
	ThisWeek     int64  `json:"thisWeek"`
	ThisMonth    int64  `json:"thisMonth"`
	LastMonth    int64  `json:"lastMonth"`
	TotalRecords int64  `json:"totalRecords"`
	HasData      bool   `json:"hasData"`
}

// TableGrowth compares a table's count in two equal-length windows.
type TableGrowth struct {
	TableName     string  `json:"tableName"`
	DisplayName   string  `json:"displayName"`
	Count         int64   `json:"count"`
	PreviousCount int64   `json:"previousCount"`
	Growth        float64 `json:"growth"`
}

// GrowthReport is the per-table growth over a date range plus in-memory
// totals.
type GrowthReport struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	PreviousFrom  string        `json:"previousFrom"`
	PreviousTo    string        `json:"previousTo"`
	Tables        []TableGrowth `json:"tables"`
	TotalCount    int64         `json:"totalCount"`
	TotalPrevious int64         `json:"totalPrevious"`
	TotalGrowth   float64       `json:"totalGrowth"`
	AverageGrowth float64       `json:"averageGrowth"`
}

// TableSize is the storage footprint of one table from information_schema.
type TableSize struct {
	TableName   string  `json:"tableName"`
	DisplayName string  `json:"displayName"`
	SizeMB      float64 `json:"sizeMb"`
	RowEstimate int64   `json:"rowEstimate"`
}

// DashboardSummary aggregates the daily stats for the landing page.
type DashboardSummary struct {
	TotalToday     int64     `json:"totalToday"`
	TotalYesterday int64     `json:"totalYesterday"`
	TotalThisWeek  int64     `json:"totalThisWeek"`
	TotalThisMonth int64     `json:"totalThisMonth"`
	TotalLastMonth int64     `json:"totalLastMonth"`
	TotalRecords   int64     `json:"totalRecords"`
	DailyGrowth    float64   `json:"dailyGrowth"`
	MonthlyGrowth  float64   `json:"monthlyGrowth"`
	AverageGrowth  float64   `json:"averageGrowth"`
	TablesWithData int       `json:"tablesWithData"`
	TotalTables    int       `json:"totalTables"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// Window names a predefined reporting window.
type Window string

const (
	WindowToday     Window = "today"
	WindowYesterday Window = "yesterday"
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
)

// ParseWindow accepts the window names case-insensitively.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case WindowToday, WindowYesterday, WindowWeek, WindowMonth:
		return w, nil
	}
	return "", apperrors.Validation(apperrors.CodeUnknownWindow, "unknown window").
		WithDetails("expected today, yesterday, week or month, got "+s).
		Build()
}

func zeroCount(d mappings.TableDescriptor) TableCount {
	return TableCount{TableName: d.TableName, CustomTableName: d.CustomTableName}
}

func zeroStat(d mappings.TableDescriptor) DailyStat {
	return DailyStat{TableName: d.TableName, DisplayName: d.DisplayName()}
}
