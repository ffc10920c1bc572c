// Package mappings resolves which physical lead tables in the read replica
// belong to active clients. The relational store behind it is reached via
// gorm; a static list from configuration can stand in for it.
package mappings

import (
	"context"
	"sort"
	"strings"
)

// TableDescriptor identifies a lead table and its optional display alias.
type TableDescriptor struct {
	TableName       string  `json:"tableName"`
	CustomTableName *string `json:"customTableName"`
}

// DisplayName is the alias when one is set, otherwise the table name.
func (d TableDescriptor) DisplayName() string {
	if d.CustomTableName != nil && strings.TrimSpace(*d.CustomTableName) != "" {
		return *d.CustomTableName
	}
	return d.TableName
}

// Source lists the tables the aggregation engine fans out over.
type Source interface {
	ListActive(ctx context.Context) ([]TableDescriptor, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]TableDescriptor, error)

// ListActive calls f.
func (f SourceFunc) ListActive(ctx context.Context) ([]TableDescriptor, error) { return f(ctx) }

// Normalize drops blank names, merges duplicates and sorts by table name.
// A duplicate contributes its alias only when the first occurrence had none.
func Normalize(in []TableDescriptor) []TableDescriptor {
	byName := make(map[string]int, len(in))
	out := make([]TableDescriptor, 0, len(in))
	for _, d := range in {
		d.TableName = strings.TrimSpace(d.TableName)
		if d.TableName == "" {
			continue
		}
		if d.CustomTableName != nil && strings.TrimSpace(*d.CustomTableName) == "" {
			d.CustomTableName = nil
		}
		if i, ok := byName[d.TableName]; ok {
			if out[i].CustomTableName == nil {
				out[i].CustomTableName = d.CustomTableName
			}
			continue
		}
		byName[d.TableName] = len(out)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}

// StaticSource serves a fixed list, for local runs without a mapping store.
type StaticSource struct {
	tables []TableDescriptor
}

// NewStaticSource normalizes tables once.
func NewStaticSource(tables []TableDescriptor) *StaticSource {
	return &StaticSource{tables: Normalize(tables)}
}

// ListActive returns a copy of the configured list.
func (s *StaticSource) ListActive(context.Context) ([]TableDescriptor, error) {
	return append([]TableDescriptor(nil), s.tables...), nil
}
