// Package replica executes the per-table statements of the fan-out against
// the read replica.
//
// The replica is reached through Executor. The production chain is
//
//	Breaker(Retry(Tracing(Instrumented(SQL))))
//
// so that the breaker counts one failure per table call, however many
// attempts the retry layer made inside it.
//
// Table names are dynamic identifiers taken from the mapping store. They
// are validated and quoted before they are interpolated into a statement;
// everything else is bound as a parameter.
package replica

import "context"

// Statement kinds, used as metric and span labels.
const (
	KindCount      = "count"
	KindRangeCount = "range_count"
	KindTableSize  = "table_size"
)

// Statement is one parameterized query against one table.
type Statement struct {
	Kind  string
	Table string
	SQL   string
	Args  []any
}

// Executor runs a statement and returns the driver's result. Callers pass
// the result through ExtractCount or ExtractNumber rather than assuming a
// shape.
type Executor interface {
	Query(ctx context.Context, stmt Statement) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, stmt Statement) (any, error)

func (f ExecutorFunc) Query(ctx context.Context, stmt Statement) (any, error) {
	return f(ctx, stmt)
}
