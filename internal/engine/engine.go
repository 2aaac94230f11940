// Package engine orchestrates the ingestion pipeline and the report
// collection: raw export text in, canonical saved reports out. It owns
// record stamping (id, title, report date, creation time); everything else
// is delegated to the injected collaborators.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
	"pulseboard/internal/events"
	"pulseboard/internal/generate"
	"pulseboard/internal/ids"
	"pulseboard/internal/normalize"
	"pulseboard/internal/prompt"
	"pulseboard/internal/reconcile"
	"pulseboard/internal/repo"
	"pulseboard/internal/store"
)

const unnamedProject = "Unnamed Project"

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Store      *store.Store
	Events     events.Writer
	Config     *config.Config
	Generator  generate.Generator
	Normalizer normalize.Normalizer
	Reconciler reconcile.Reconciler
	IDs        ids.Generator
	Now        func() time.Time
}

// New wires an engine over an open, migrated database. The generator is
// injected so the CLI can pass a live gateway and tests a canned one.
func New(ctx context.Context, db *sql.DB, cfg *config.Config, gen generate.Generator) (Engine, error) {
	r := repo.Repo{DB: db}
	st, err := store.Open(ctx, r)
	if err != nil {
		return Engine{}, fmt.Errorf("open report store: %w", err)
	}
	idGen := ids.Random{}
	return Engine{
		DB:         db,
		Repo:       r,
		Store:      st,
		Events:     events.Writer{DB: db},
		Config:     cfg,
		Generator:  gen,
		Normalizer: normalize.New(idGen),
		Reconciler: reconcile.New(idGen),
		IDs:        idGen,
		Now:        time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Ingest runs raw export text through the full pipeline and returns a new
// report. The report is not saved; callers decide if and when to Save it.
// Generation and normalization failures propagate unchanged.
func (e Engine) Ingest(ctx context.Context, raw, actorID string) (domain.Report, error) {
	if e.Generator == nil {
		return domain.Report{}, errors.New("generator not configured")
	}
	payload := prompt.Build(raw)
	response, err := e.Generator.Generate(ctx, payload)
	if err != nil {
		return domain.Report{}, err
	}
	r, err := e.Normalizer.Normalize(response)
	if err != nil {
		return domain.Report{}, err
	}

	now := e.now()
	r.ID = e.IDs.NewID("db")
	if strings.TrimSpace(r.ProjectName) == "" {
		r.Title = "Report: New Project"
		r.ProjectName = unnamedProject
	} else {
		r.Title = "Report: " + r.ProjectName
	}
	r.ReportDate = now.Format("Jan 2, 2006")
	r.CreatedAt = now.UnixMilli()

	if err := e.Events.Append(ctx, "report.ingest", "report", r.ID, actorID, events.EventPayload{
		"project_name": r.ProjectName,
		"status":       r.OverallStatus,
	}); err != nil {
		return domain.Report{}, err
	}
	return r, nil
}

// Save upserts the report: whole-record replacement, moved to the front of
// the ordering.
func (e Engine) Save(ctx context.Context, r domain.Report, actorID string) error {
	if r.ID == "" {
		return errors.New("report id is required")
	}
	if err := e.Store.Upsert(ctx, r); err != nil {
		return err
	}
	return e.Events.Append(ctx, "report.save", "report", r.ID, actorID, events.EventPayload{
		"title": r.Title,
	})
}

// Delete removes a saved report. Unknown ids are a silent no-op.
func (e Engine) Delete(ctx context.Context, id, actorID string) error {
	_, existed := e.Store.Get(id)
	if err := e.Store.Delete(ctx, id); err != nil {
		return err
	}
	if !existed {
		return nil
	}
	return e.Events.Append(ctx, "report.delete", "report", id, actorID, nil)
}

func (e Engine) List() []domain.Report {
	return e.Store.List()
}

func (e Engine) Get(id string) (domain.Report, error) {
	r, ok := e.Store.Get(id)
	if !ok {
		return domain.Report{}, repo.ErrNotFound
	}
	return r, nil
}

// Export renders a report as a plain-text executive summary.
func (e Engine) Export(id string) (string, error) {
	r, err := e.Get(id)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PROJECT STATUS REPORT: %s\n", r.ProjectName)
	fmt.Fprintf(&b, "Date: %s\n", r.ReportDate)
	fmt.Fprintf(&b, "Overall Status: %s\n", r.OverallStatus)
	fmt.Fprintf(&b, "Delivery Sentiment: %d/100\n", r.DeliverySentiment)
	fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
	if len(r.Highlights) > 0 {
		b.WriteString("\nHighlights:\n")
		for _, h := range r.Highlights {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}
	if len(r.Risks) > 0 {
		b.WriteString("\nRisks:\n")
		for _, risk := range r.Risks {
			fmt.Fprintf(&b, "  - [%s] %s (mitigation: %s)\n", risk.Severity, risk.Description, risk.Mitigation)
		}
	}
	if len(r.ActionItems) > 0 {
		b.WriteString("\nAction Items:\n")
		for _, a := range r.ActionItems {
			fmt.Fprintf(&b, "  - [%s] %s (%s, due %s)\n", a.Status, a.Task, a.Owner, a.DueDate)
		}
	}
	return b.String(), nil
}

// Login stores the active identity for the workspace.
func (e Engine) Login(ctx context.Context, u domain.User) error {
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email is required")
	}
	if err := e.Repo.WriteUser(ctx, u); err != nil {
		return err
	}
	return e.Events.Append(ctx, "user.login", "user", u.Email, u.Email, nil)
}

func (e Engine) Logout(ctx context.Context) error {
	return e.Repo.ClearUser(ctx)
}

func (e Engine) CurrentUser(ctx context.Context) (domain.User, error) {
	return e.Repo.ReadUser(ctx)
}
