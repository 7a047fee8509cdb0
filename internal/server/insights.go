package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/repo"
)

func registerInsights(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "company-stats",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/stats",
		Summary:     "Dashboard statistics",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*output[engine.Stats], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		s, err := e.Stats(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-steps",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/next-steps",
		Summary:     "Suggested next steps",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*output[NextStepList], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		steps, err := e.NextSteps(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		if steps == nil {
			steps = []engine.NextStep{}
		}
		return respond(NextStepList{Items: steps}), nil
	})
}

func registerCompliance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "framework-compliance",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/compliance/{framework}",
		Summary:     "Compliance status for one framework",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		Framework string `path:"framework" doc:"Framework name or alias, e.g. DST"`
	}) (*output[engine.FrameworkCompliance], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		framework := input.Framework
		if unescaped, err := url.PathUnescape(framework); err == nil {
			framework = unescaped
		}
		fc, err := e.FrameworkCompliance(ctx, input.CompanyID, framework)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(fc), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/events",
		Summary:     "List recent events",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID  string `path:"company_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"company,task,evidence,rulebook"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[EventList], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		if _, err := e.Repo.GetCompany(ctx, input.CompanyID); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, repo.EventFilters{
			CompanyID:  input.CompanyID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventList{Items: []domain.Event{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return respond(resp), nil
	})
}
