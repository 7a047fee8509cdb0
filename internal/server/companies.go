package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/repo"
)

func registerSectors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sectors",
		Method:      http.MethodGet,
		Path:        "/sectors",
		Summary:     "List sectors in the question bank",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*output[[]SectorSummary], error) {
		items := []SectorSummary{}
		if e.Bank == nil {
			return respond(items), nil
		}
		for _, key := range e.Bank.Sectors() {
			s, _ := e.Bank.Sector(key)
			items = append(items, SectorSummary{
				Key:        s.Key,
				Name:       s.Name,
				Categories: s.Categories,
				Frameworks: s.Frameworks,
				Questions:  len(s.Questions),
			})
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sector-questions",
		Method:      http.MethodGet,
		Path:        "/sectors/{sector}/questions",
		Summary:     "List a sector's questions",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		Sector string `path:"sector"`
	}) (*output[[]domain.Question], error) {
		key := questionbank.NormalizeSectorKey(input.Sector)
		if e.Bank == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "unknown sector", map[string]any{"sector": key})
		}
		if _, ok := e.Bank.Sector(key); !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "unknown sector", map[string]any{"sector": key})
		}
		return respond(e.Bank.SectorQuestions(key)), nil
	})
}

func registerCompanies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-company",
		Method:        http.MethodPost,
		Path:          "/companies",
		Summary:       "Register a company",
		DefaultStatus: http.StatusCreated,
		Errors:        append(defaultErrors, http.StatusConflict),
	}, func(ctx context.Context, input *struct {
		Body CompanyCreateRequest
	}) (*output[domain.Company], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CompanyCreateOptions{
			ID:           input.Body.ID,
			Name:         input.Body.Name,
			Sector:       input.Body.Sector,
			Emirate:      input.Body.Emirate,
			EmployeeSize: input.Body.EmployeeSize,
			Answers:      input.Body.Answers,
			ActorID:      actorID,
		}
		if input.Body.Preferences != nil {
			opts.Preferences = *input.Body.Preferences
		}
		c, err := e.CreateCompany(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		Sector string `query:"sector"`
		Limit  int    `query:"limit" default:"50"`
	}) (*output[CompanyList], error) {
		f := repo.CompanyFilters{
			Sector: questionbank.NormalizeSectorKey(input.Sector),
			Limit:  normalizeLimit(input.Limit),
		}
		if p, ok := principalFromContext(ctx); ok {
			f.ID = p.CompanyID
		}
		items, err := e.ListCompanies(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Company{}
		}
		return respond(CompanyList{Items: items}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-company",
		Method:      http.MethodGet,
		Path:        "/companies/{company_id}",
		Summary:     "Get a company with its answers and meters",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*output[domain.Company], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		c, err := e.GetCompany(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-company",
		Method:      http.MethodPatch,
		Path:        "/companies/{company_id}",
		Summary:     "Update company profile",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		Body      CompanyUpdateRequest
	}) (*output[domain.Company], error) {
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
		c, err := e.UpdateCompany(ctx, engine.CompanyUpdateOptions{
			ID:           input.CompanyID,
			Name:         input.Body.Name,
			Emirate:      input.Body.Emirate,
			EmployeeSize: input.Body.EmployeeSize,
			Preferences:  input.Body.Preferences,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-answers",
		Method:      http.MethodPut,
		Path:        "/companies/{company_id}/answers",
		Summary:     "Record questionnaire answers",
		Description: "Answers are merged into the stored set unless replace is true. A null value removes an answer.",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		Body      AnswersRequest
	}) (*output[domain.Company], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateAnswers(ctx, engine.AnswersUpdateOptions{
			CompanyID: input.CompanyID,
			Answers:   input.Body.Answers,
			Replace:   input.Body.Replace,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-meter",
		Method:        http.MethodPost,
		Path:          "/companies/{company_id}/meters",
		Summary:       "Record a utility meter",
		DefaultStatus: http.StatusCreated,
		Errors:        append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		Body      MeterRequest
	}) (*output[domain.Company], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddMeter(ctx, engine.MeterOptions{
			CompanyID: input.CompanyID,
			Meter: domain.Meter{
				Number:   input.Body.Number,
				Type:     input.Body.Type,
				Provider: input.Body.Provider,
				Location: input.Body.Location,
			},
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})
}

func registerGeneration(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-tasks",
		Method:      http.MethodPost,
		Path:        "/companies/{company_id}/generate",
		Summary:     "Generate compliance tasks",
		Description: "Runs the rules engine over the stored answers. With dry_run the tasks are returned without being stored.",
		Errors:      append(defaultErrors, http.StatusForbidden),
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
		DryRun    bool   `query:"dry_run"`
	}) (*output[engine.GenerationResult], error) {
		if err := companyScope(ctx, input.CompanyID); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.GenerateForCompany(ctx, input.CompanyID, input.DryRun, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		if res.Tasks == nil {
			res.Tasks = []domain.Task{}
		}
		return respond(res), nil
	})
}
