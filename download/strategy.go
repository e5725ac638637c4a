package download

import (
	"context"
	"log/slog"
)

// transfer is the resolved state shared by the methods of one download.
type transfer struct {
	id      string
	req     Request
	work    string
	tracker *tracker
	logger  *slog.Logger
}

// strategy fetches a transfer's URL into its working file.
type strategy interface {
	method() Method
	fetch(ctx context.Context, t *transfer) error
}

// plan returns the methods tried, in order, for m.
func plan(m Method) []Method {
	if m == MethodAuto {
		return []Method{MethodExternalNoFetch, MethodInternal, MethodExternal}
	}
	return []Method{m}
}
