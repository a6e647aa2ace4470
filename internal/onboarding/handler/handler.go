// Package handler exposes onboarding workflows and their documents over
// HTTP. Routes expect the tenant and request id middleware upstream.
package handler

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/httputil"
	"idv/pkg/platform/middleware/metadata"
	"idv/pkg/requestcontext"

	"idv/internal/decision"
	"idv/internal/document"
	"idv/internal/insight"
	"idv/internal/playbook"
	"idv/internal/rules"
	"idv/internal/vault"
	"idv/internal/workflow"
)

const (
	maxImageBytes    = 10 << 20
	maxRuleFileBytes = 256 << 10
)

// Previewer evaluates candidate rules against a workflow without side
// effects.
type Previewer interface {
	Preview(ctx context.Context, wf workflow.Workflow, candidates []rules.Instance) (decision.PreviewResult, error)
}

type InsightRecorder interface {
	Record(ctx context.Context, e insight.Event) error
}

// Playbooks resolves the playbook a workflow runs under.
type Playbooks interface {
	Config(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (playbook.Config, error)
}

// VaultWriter stores the fields a client submits with a new workflow.
type VaultWriter interface {
	Put(vaultID id.ScopedVaultID, values map[vault.DataIdentifier]string)
}

// Handler serves the onboarding API.
type Handler struct {
	engine    Engine
	documents Documents
	playbooks Playbooks
	previewer Previewer
	insights  InsightRecorder
	vault     VaultWriter
	logger    *slog.Logger
}

type Option func(*Handler)

// WithPreviewer enables POST /v1/workflows/{id}/preview.
func WithPreviewer(p Previewer) Option {
	return func(h *Handler) { h.previewer = p }
}

func WithInsights(r InsightRecorder) Option {
	return func(h *Handler) { h.insights = r }
}

// WithVault accepts data on workflow creation. Without it a request that
// carries data is rejected.
func WithVault(v VaultWriter) Option {
	return func(h *Handler) { h.vault = v }
}

func New(engine Engine, documents Documents, playbooks Playbooks, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{engine: engine, documents: documents, playbooks: playbooks, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the onboarding routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/workflows", h.HandleCreateWorkflow)
	r.Route("/v1/workflows/{workflowID}", func(r chi.Router) {
		r.Get("/", h.HandleGetWorkflow)
		r.Get("/events", h.HandleListEvents)
		r.Post("/actions", h.HandleAction)
		r.Post("/preview", h.HandlePreview)
		r.Post("/documents", h.HandleCreateDocument)
		r.Put("/documents/{documentID}/{side}", h.HandleUploadSide)
		r.Post("/documents/{documentID}/verify", h.HandleVerifyDocument)
	})
}

// HandleCreateWorkflow starts a workflow for a new or existing scoped vault.
func (h *Handler) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateWorkflowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if len(req.data) > 0 && h.vault == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "this deployment does not accept vault data"))
		return
	}

	wf, err := workflow.New(req.kind, requestcontext.TenantID(ctx), req.vaultID, req.playbookID, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	wf.IsSandbox = req.IsSandbox
	wf.IsRedo = req.IsRedo

	if len(req.data) > 0 {
		h.vault.Put(wf.ScopedVaultID, req.data)
	}
	if err := h.engine.Start(ctx, wf); err != nil {
		h.logger.ErrorContext(ctx, "failed to start workflow",
			"request_id", requestID,
			"kind", string(wf.Kind),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.recordInsight(ctx, wf)

	h.logger.InfoContext(ctx, "workflow created",
		"request_id", requestID,
		"workflow_id", wf.ID.String(),
		"kind", string(wf.Kind),
		"is_sandbox", wf.IsSandbox,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromWorkflow(wf))
}

func (h *Handler) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWorkflow(wf))
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	events, err := h.engine.Events(r.Context(), wf.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": FromEvents(events)})
}

// HandleAction applies a client action and follows the automatic
// transitions it unlocks.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.engine.Run(ctx, wf.ID, req.action)
	if err != nil {
		h.logAction(ctx, requestID, wf, req.action, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWorkflow(updated))
}

// HandlePreview evaluates a YAML rule file against the workflow's current
// inputs next to the active rules.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.previewer == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "rule preview is not enabled"))
		return
	}
	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}

	f, err := rules.Parse(http.MaxBytesReader(w, r.Body, maxRuleFileBytes))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	candidates := f.Instances(wf.TenantID, wf.PlaybookID, false)
	if len(candidates) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "rule file has no rules"))
		return
	}

	res, err := h.previewer.Preview(ctx, wf, candidates)
	if err != nil {
		h.logger.WarnContext(ctx, "rule preview failed",
			"request_id", requestcontext.RequestID(ctx),
			"workflow_id", wf.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PreviewResponse{
		Active:    FromEvaluation(res.Active),
		Candidate: FromEvaluation(res.Candidate),
	})
}

func (h *Handler) HandleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	// The playbook decides whether a selfie is required; a client may only
	// add one.
	cfg, err := h.playbooks.Config(ctx, wf.TenantID, wf.PlaybookID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.documents.CreateDocument(ctx, wf.ScopedVaultID,
		document.DocumentType(req.DocumentType), req.CountryCode, cfg.CollectSelfie || req.CollectSelfie)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

// HandleUploadSide takes the raw image bytes of one side.
func (h *Handler) HandleUploadSide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadDocument(w, r, wf)
	if !ok {
		return
	}
	side, ok := document.ParseSide(chi.URLParam(r, "side"))
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown side %q", chi.URLParam(r, "side")))
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "image is too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "failed to read image"))
		return
	}
	if len(image) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "image is empty"))
		return
	}

	doc, err = h.documents.UploadSide(ctx, doc.ID, side, image)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleVerifyDocument runs the document verification as far as the
// uploaded sides allow. A completed document is reported to the workflow.
func (h *Handler) HandleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	wf, ok := h.loadWorkflow(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadDocument(w, r, wf)
	if !ok {
		return
	}

	out, err := h.documents.Verify(ctx, document.Request{
		TenantID:           wf.TenantID,
		ScopedVaultID:      wf.ScopedVaultID,
		IdentityDocumentID: doc.ID,
		DecisionIntentID:   wf.DecisionIntentID,
		CollectSelfie:      doc.CollectSelfie,
	}, wf.IsSandbox)
	if err != nil {
		h.logger.ErrorContext(ctx, "document verification failed",
			"request_id", requestID,
			"workflow_id", wf.ID.String(),
			"identity_document_id", doc.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := FromOutcome(out)
	if out.Status == document.StatusComplete {
		action := workflow.DocCollected{DocumentID: doc.ID}
		updated, err := h.engine.Run(ctx, wf.ID, action)
		if err != nil {
			h.logAction(ctx, requestID, wf, action, err)
			httputil.WriteError(w, err)
			return
		}
		wfResp := FromWorkflow(updated)
		resp.Workflow = &wfResp
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// loadWorkflow resolves the path's workflow. Workflows of other tenants are
// reported as missing.
func (h *Handler) loadWorkflow(w http.ResponseWriter, r *http.Request) (workflow.Workflow, bool) {
	ctx := r.Context()
	workflowID, err := id.ParseWorkflowID(strings.TrimSpace(chi.URLParam(r, "workflowID")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "workflow id must be a uuid"))
		return workflow.Workflow{}, false
	}
	wf, err := h.engine.Get(ctx, workflowID)
	if err != nil {
		httputil.WriteError(w, err)
		return workflow.Workflow{}, false
	}
	if wf.TenantID != requestcontext.TenantID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "workflow not found"))
		return workflow.Workflow{}, false
	}
	return wf, true
}

func (h *Handler) loadDocument(w http.ResponseWriter, r *http.Request, wf workflow.Workflow) (document.IdentityDocument, bool) {
	docID, err := id.ParseIdentityDocumentID(strings.TrimSpace(chi.URLParam(r, "documentID")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document id must be a uuid"))
		return document.IdentityDocument{}, false
	}
	doc, err := h.documents.GetDocument(r.Context(), docID)
	if err != nil {
		httputil.WriteError(w, err)
		return document.IdentityDocument{}, false
	}
	if doc.ScopedVaultID != wf.ScopedVaultID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "identity document not found"))
		return document.IdentityDocument{}, false
	}
	return doc, true
}

// recordInsight keeps the client context of the request that started the
// workflow. Failures are logged and do not fail the request.
func (h *Handler) recordInsight(ctx context.Context, wf workflow.Workflow) {
	if h.insights == nil {
		return
	}
	c := metadata.FromContext(ctx)
	if c.IP == "" && c.UserAgent == "" {
		return
	}
	err := h.insights.Record(ctx, insight.Event{
		ScopedVaultID: wf.ScopedVaultID,
		IPAddress:     c.IP,
		Country:       c.Country,
		City:          c.City,
		UserAgent:     c.UserAgent,
		CreatedAt:     requestcontext.Now(ctx),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to record insight event",
			"workflow_id", wf.ID.String(),
			"error", err,
		)
	}
}

func (h *Handler) logAction(ctx context.Context, requestID string, wf workflow.Workflow, action workflow.Action, err error) {
	level := slog.LevelError
	if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeValidation) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "workflow action failed",
		"request_id", requestID,
		"workflow_id", wf.ID.String(),
		"action", string(action.Kind()),
		"error", err,
	)
}
