package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/replica"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/repository/mappings"
)

// Timestamp encodings of the lead tables' creation column.
const (
	UnitSeconds      = "seconds"
	UnitMilliseconds = "milliseconds"
	UnitDatetime     = "datetime"
)

// Counter runs the per-table statements of the fan-out.
type Counter struct {
	exec   replica.Executor
	column string
	unit   string
	schema string
	logger *zap.Logger
}

// NewCounter creates a Counter. column is the creation timestamp column and
// unit its encoding; schema scopes size lookups and may be empty.
func NewCounter(exec replica.Executor, column, unit, schema string, logger *zap.Logger) *Counter {
	if column == "" {
		column = "created_at_ts"
	}
	if unit == "" {
		unit = UnitSeconds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{exec: exec, column: column, unit: unit, schema: schema, logger: logger.Named("counter")}
}

func (c *Counter) bound(t time.Time) any {
	switch c.unit {
	case UnitMilliseconds:
		return t.UnixMilli()
	case UnitDatetime:
		return t
	default:
		return t.Unix()
	}
}

// CountTable returns the table's total row count.
func (c *Counter) CountTable(ctx context.Context, table string) (int64, error) {
	stmt, err := replica.CountStatement(table)
	if err != nil {
		return 0, err
	}
	res, err := c.exec.Query(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return replica.ExtractCount(res), nil
}

// CountRange returns the rows created within r.
func (c *Counter) CountRange(ctx context.Context, table string, r Range) (int64, error) {
	stmt, err := replica.RangeCountStatement(table, c.column, c.bound(r.From), c.bound(r.To))
	if err != nil {
		return 0, err
	}
	res, err := c.exec.Query(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return replica.ExtractCount(res), nil
}

// TableSize reads the table's footprint from information_schema.
func (c *Counter) TableSize(ctx context.Context, d mappings.TableDescriptor) (TableSize, error) {
	stmt, err := replica.TableSizeStatement(c.schema, d.TableName)
	if err != nil {
		return TableSize{}, err
	}
	res, err := c.exec.Query(ctx, stmt)
	if err != nil {
		return TableSize{}, err
	}
	size, _ := replica.ExtractField(res, "size_mb")
	rows, _ := replica.ExtractField(res, "row_estimate")
	return TableSize{
		TableName:   d.TableName,
		DisplayName: d.DisplayName(),
		SizeMB:      round2(size),
		RowEstimate: int64(rows),
	}, nil
}

// DailyStat counts d over every window. An empty table skips the windowed
// queries. The windows run one after another so a single table holds at
// most one replica connection.
func (c *Counter) DailyStat(ctx context.Context, d mappings.TableDescriptor, w Windows) (DailyStat, error) {
	stat := zeroStat(d)
	total, err := c.CountTable(ctx, d.TableName)
	if err != nil {
		return stat, err
	}
	if total == 0 {
		c.logger.Debug("Empty table, skipping windowed counts", zap.String("table", d.TableName))
		return stat, nil
	}
	stat.TotalRecords = total
	stat.HasData = true

	windows := []struct {
		name string
		r    Range
		dst  *int64
	}{
		{"today", w.Today, &stat.Today},
		{"yesterday", w.Yesterday, &stat.Yesterday},
		{"this_week", w.ThisWeek, &stat.ThisWeek},
		{"this_month", w.ThisMonth, &stat.ThisMonth},
		{"last_month", w.LastMonth, &stat.LastMonth},
	}
	for _, win := range windows {
		n, err := c.CountRange(ctx, d.TableName, win.r)
		if err != nil {
			return zeroStat(d), fmt.Errorf("%s window: %w", win.name, err)
		}
		*win.dst = n
	}
	return stat, nil
}
