package app

import (
	"context"

	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/store"
)

// LogsParams are the raw filter values of logs list and logs query.
type LogsParams struct {
	Since   string
	Until   string
	Command string
	Outcome string
	Profile string
	Limit   int
	Offset  int
}

// LogsPage is one page of audit records, newest first.
type LogsPage struct {
	Records []model.AuditRecord `json:"records"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// Logs queries the audit log. The invocation itself is audited after
// the query, so it never appears in its own result.
func (a *App) Logs(ctx context.Context, req Request, params LogsParams) (LogsPage, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (LogsPage, error) {
		filter, err := store.ParseFilter(params.Since, params.Until, params.Command, params.Outcome, params.Profile, a.now())
		if err != nil {
			return LogsPage{}, err
		}
		if params.Limit <= 0 {
			params.Limit = store.DefaultQueryLimit
		}

		records, err := a.audit.Query(ctx, filter, params.Limit, params.Offset)
		if err != nil {
			return LogsPage{}, err
		}
		total, err := a.audit.Count(ctx, filter)
		if err != nil {
			return LogsPage{}, err
		}
		return LogsPage{Records: records, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
	})
}
