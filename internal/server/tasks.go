package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/repo"
)

var taskErrors = append(append([]int{}, defaultErrors...), http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/tasks",
		Summary:     "List compliance tasks",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		Status    string `query:"status" enum:"todo,in_progress,pending_review,completed,blocked"`
		Category  string `query:"category" enum:"environmental,social,governance,general"`
		Priority  string `query:"priority" enum:"high,medium,low"`
		Source    string `query:"source" enum:"question,framework"`
		Framework string `query:"framework"`
		DueBefore string `query:"due_before" doc:"RFC3339 timestamp or YYYY-MM-DD"`
		Limit     int    `query:"limit" default:"50"`
	}) (*output[TaskList], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		f := repo.TaskFilters{
			CompanyID: input.CompanyID,
			Status:    input.Status,
			Category:  input.Category,
			Priority:  input.Priority,
			Source:    input.Source,
			Framework: input.Framework,
			Limit:     normalizeLimit(input.Limit),
		}
		if input.DueBefore != "" {
			due, ok := parseDate(input.DueBefore)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid due_before", map[string]any{"due_before": input.DueBefore})
			}
			f.DueBefore = &due
		}
		items, err := e.ListTasks(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return respond(TaskList{Items: items}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/tasks/{task_id}",
		Summary:     "Get a task",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		TaskID    string `path:"task_id"`
	}) (*output[domain.Task], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		t, err := e.GetTask(ctx, input.CompanyID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/companies/{company_id}/tasks/{task_id}",
		Summary:     "Update task status, priority or due date",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		TaskID    string `path:"task_id"`
		Body      TaskUpdateRequest
	}) (*output[domain.Task], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			CompanyID: input.CompanyID,
			ID:        input.TaskID,
			Status:    input.Body.Status,
			Priority:  input.Body.Priority,
			DueDate:   input.Body.DueDate,
			Force:     input.Body.Force,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/companies/{company_id}/tasks/{task_id}/complete",
		Summary:     "Complete a task",
		Description: "Fails with evidence_incomplete until the required evidence is attached, unless force is set.",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		TaskID    string `path:"task_id"`
		Body      *TaskCompleteRequest `required:"false"`
	}) (*output[domain.Task], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		force := input.Body != nil && input.Body.Force
		t, err := e.CompleteTask(ctx, input.CompanyID, input.TaskID, actorID, force)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})
}

func registerEvidence(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-evidence",
		Method:        http.MethodPost,
		Path:          "/companies/{company_id}/tasks/{task_id}/evidence",
		Summary:       "Attach evidence to a task",
		DefaultStatus: http.StatusCreated,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		TaskID    string `path:"task_id"`
		Body      EvidenceRequest
	}) (*output[engine.EvidenceResult], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.AddEvidence(ctx, engine.EvidenceOptions{
			CompanyID: input.CompanyID,
			TaskID:    input.TaskID,
			Kind:      domain.EvidenceType(input.Body.Kind),
			Filename:  input.Body.Filename,
			MimeType:  input.Body.MimeType,
			Value:     input.Body.Value,
			Unit:      input.Body.Unit,
			Note:      input.Body.Note,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-evidence",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}/tasks/{task_id}/evidence",
		Summary:     "List a task's evidence",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		TaskID    string `path:"task_id"`
	}) (*output[EvidenceList], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		items, err := e.ListEvidence(ctx, input.CompanyID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Evidence{}
		}
		return respond(EvidenceList{Items: items}), nil
	})
}

func parseDate(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
