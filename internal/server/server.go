package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"pulseboard/internal/domain"
	"pulseboard/internal/engine"
	"pulseboard/internal/generate"
	"pulseboard/internal/normalize"
	"pulseboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"report not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Pulseboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Pulseboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerReports(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var genErr *generate.Error
	if errors.As(err, &genErr) {
		return newAPIError(http.StatusBadGateway, "generation_failed", genErr.Error(), nil)
	}
	var normErr *normalize.Error
	if errors.As(err, &normErr) {
		return newAPIError(http.StatusUnprocessableEntity, "normalization_failed", normErr.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "out of range"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "generation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):     true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Pulseboard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in and persist the workspace identity",
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*struct {
		Body LoginResponse
	}, error) {
		u := domain.User{Email: input.Body.Email, Name: input.Body.Name}
		if err := e.Login(ctx, u); err != nil {
			return nil, handleError(err)
		}
		token, err := issueToken(u, authCfg.JWTSecret, authCfg.tokenTTL(), time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse
		}{Body: LoginResponse{Token: token, User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Summary:       "Clear the workspace identity",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := e.Logout(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current workspace identity",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User
	}, error) {
		u, err := e.CurrentUser(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User
		}{Body: u}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "ingest-report",
		Method:      http.MethodPost,
		Path:        "/reports/ingest",
		Summary:     "Generate a report from a raw project export",
		Errors:      []int{http.StatusBadGateway, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body IngestRequest
	}) (*struct {
		Body domain.Report
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Ingest(ctx, input.Body.Content, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List saved reports, most recently saved first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body reportList
	}, error) {
		return &struct {
			Body reportList
		}{Body: reportList{Items: e.List()}}, nil
	})

	type ReportPath struct {
		ReportID string `path:"report_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}",
		Summary:     "Get a saved report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body domain.Report
	}, error) {
		r, err := e.Get(input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-report",
		Method:      http.MethodPut,
		Path:        "/reports/{report_id}",
		Summary:     "Save a report (whole-record upsert, moves to front)",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body domain.Report
	}) (*struct {
		Body domain.Report
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r := input.Body
		r.ID = input.ReportID
		if err := e.Save(ctx, r, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-report",
		Method:        http.MethodDelete,
		Path:          "/reports/{report_id}",
		Summary:       "Delete a saved report (no-op when absent)",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *ReportPath) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Delete(ctx, input.ReportID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-report",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/edits",
		Summary:     "Apply one named edit to a saved report",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body EditRequest
	}) (*struct {
		Body domain.Report
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		current, err := e.Get(input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		edited, err := applyEdit(e, current, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Save {
			if err := e.Save(ctx, edited, actor); err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body domain.Report
		}{Body: edited}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-report",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}/export",
		Summary:     "Render a report as plain text",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body exportResponse
	}, error) {
		text, err := e.Export(input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body exportResponse
		}{Body: exportResponse{Text: text}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest workspace events",
	}, func(ctx context.Context, input *struct {
		N          int    `query:"n" default:"20" minimum:"1" maximum:"500"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event
	}, error) {
		events, err := e.Repo.LatestEvents(ctx, input.N, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event
		}{Body: events}, nil
	})
}

// applyEdit dispatches one named mutation to the reconciler.
func applyEdit(e engine.Engine, r domain.Report, req EditRequest) (domain.Report, error) {
	rec := e.Reconciler
	needIndex := func() (int, error) {
		if req.Index == nil {
			return 0, errors.New("index is required for this op")
		}
		return *req.Index, nil
	}
	switch req.Op {
	case "set_title":
		return rec.SetTitle(r, req.Value), nil
	case "set_project_name":
		return rec.SetProjectName(r, req.Value), nil
	case "set_summary":
		return rec.SetSummary(r, req.Value), nil
	case "set_report_date":
		return rec.SetReportDate(r, req.Value), nil
	case "set_status":
		return rec.SetOverallStatus(r, req.Value)
	case "set_sentiment":
		if req.Sentiment == nil {
			return domain.Report{}, errors.New("sentiment is required for this op")
		}
		return rec.SetSentiment(r, *req.Sentiment), nil
	case "set_health":
		if req.Dimension == "" {
			return domain.Report{}, errors.New("dimension is required for this op")
		}
		return rec.SetHealth(r, req.Dimension, req.Value)
	case "add_highlight":
		return rec.AddHighlight(r, req.Value), nil
	case "edit_highlight":
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditHighlight(r, i, req.Value)
	case "add_upcoming_work":
		return rec.AddUpcomingWork(r, req.Value), nil
	case "edit_upcoming_work":
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditUpcomingWork(r, i, req.Value)
	case "add_risk":
		return rec.AddRisk(r), nil
	case "edit_risk":
		if req.Risk == nil {
			return domain.Report{}, errors.New("risk is required for this op")
		}
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditRisk(r, i, *req.Risk)
	case "add_action_item":
		return rec.AddActionItem(r), nil
	case "edit_action_item":
		if req.ActionItem == nil {
			return domain.Report{}, errors.New("action_item is required for this op")
		}
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditActionItem(r, i, *req.ActionItem)
	case "add_dependency":
		return rec.AddDependency(r), nil
	case "edit_dependency":
		if req.Dependency == nil {
			return domain.Report{}, errors.New("dependency is required for this op")
		}
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditDependency(r, i, *req.Dependency)
	case "add_workload":
		if req.Workload == nil {
			return domain.Report{}, errors.New("workload is required for this op")
		}
		return rec.AddWorkload(r, *req.Workload), nil
	case "edit_workload":
		if req.Workload == nil {
			return domain.Report{}, errors.New("workload is required for this op")
		}
		i, err := needIndex()
		if err != nil {
			return domain.Report{}, err
		}
		return rec.EditWorkload(r, i, *req.Workload)
	default:
		return domain.Report{}, fmt.Errorf("unknown edit op %q", req.Op)
	}
}
