// Package handler exposes rule management to operators. Every route sits
// behind the admin token and acts within the request's tenant.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/httputil"
	"idv/pkg/requestcontext"

	"idv/internal/rules"
)

// HeaderActor names the operator recorded on rule versions.
const HeaderActor = "X-Actor"

const maxRuleFileBytes = 256 << 10

// Service manages versioned rules.
type Service interface {
	Create(ctx context.Context, req rules.CreateRequest) (rules.Instance, error)
	Update(ctx context.Context, ruleID id.RuleID, patch rules.Patch, actor string) (rules.Instance, error)
	Deactivate(ctx context.Context, ruleID id.RuleID, actor string) (rules.Instance, error)
	History(ctx context.Context, ruleID id.RuleID) ([]rules.Instance, error)
	Active(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) ([]rules.Instance, error)
	Import(ctx context.Context, f rules.File, tenantID id.TenantID, playbookID id.PlaybookID, isLive bool, actor string) ([]rules.Instance, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the rule admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/admin/playbooks/{playbookID}/rules", func(r chi.Router) {
		r.Get("/", h.HandleListActive)
		r.Post("/", h.HandleCreate)
		r.Post("/import", h.HandleImport)
	})
	r.Route("/v1/admin/rules/{ruleID}", func(r chi.Router) {
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDeactivate)
		r.Get("/history", h.HandleHistory)
	})
}

func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	playbookID, ok := playbookParam(w, r)
	if !ok {
		return
	}
	active, err := h.service.Active(r.Context(), requestcontext.TenantID(r.Context()), playbookID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rules": FromInstances(active)})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	playbookID, ok := playbookParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inst, err := h.service.Create(ctx, rules.CreateRequest{
		TenantID:   requestcontext.TenantID(ctx),
		PlaybookID: playbookID,
		IsLive:     req.IsLive,
		Name:       req.Name,
		Kind:       req.kind,
		Action:     req.action,
		Expression: req.Expression,
		IsShadow:   req.IsShadow,
		Actor:      actor(r),
	})
	if err != nil {
		h.logFailure(ctx, "create", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromInstance(inst))
}

// HandleImport creates every rule of a YAML rule file. ?is_live=true
// imports into the live playbook.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playbookID, ok := playbookParam(w, r)
	if !ok {
		return
	}
	isLive := false
	if v := r.URL.Query().Get("is_live"); v != "" {
		var err error
		if isLive, err = strconv.ParseBool(v); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "is_live must be a boolean"))
			return
		}
	}

	f, err := rules.Parse(http.MaxBytesReader(w, r.Body, maxRuleFileBytes))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	created, err := h.service.Import(ctx, f, requestcontext.TenantID(ctx), playbookID, isLive, actor(r))
	if err != nil {
		h.logFailure(ctx, "import", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rules imported",
		"request_id", requestcontext.RequestID(ctx),
		"playbook_id", playbookID.String(),
		"count", len(created),
	)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"rules": FromInstances(created)})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruleID, ok := h.ownedRule(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRuleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	inst, err := h.service.Update(ctx, ruleID, req.Patch, actor(r))
	if err != nil {
		h.logFailure(ctx, "update", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInstance(inst))
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := h.ownedRule(w, r)
	if !ok {
		return
	}
	inst, err := h.service.Deactivate(r.Context(), ruleID, actor(r))
	if err != nil {
		h.logFailure(r.Context(), "deactivate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInstance(inst))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "rule id must be a uuid"))
		return
	}
	versions, ok := h.history(w, r, ruleID)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"versions": FromInstances(versions)})
}

// ownedRule parses the path's rule id and checks the rule belongs to the
// request's tenant.
func (h *Handler) ownedRule(w http.ResponseWriter, r *http.Request) (id.RuleID, bool) {
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "rule id must be a uuid"))
		return id.RuleID{}, false
	}
	if _, ok := h.history(w, r, ruleID); !ok {
		return id.RuleID{}, false
	}
	return ruleID, true
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, ruleID id.RuleID) ([]rules.Instance, bool) {
	versions, err := h.service.History(r.Context(), ruleID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if len(versions) == 0 || versions[0].TenantID != requestcontext.TenantID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "rule not found"))
		return nil, false
	}
	return versions, true
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	h.logger.WarnContext(ctx, "rule change rejected",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"code", string(dErrors.GetCode(err)),
		"error", err,
	)
}

func playbookParam(w http.ResponseWriter, r *http.Request) (id.PlaybookID, bool) {
	playbookID, err := id.ParsePlaybookID(chi.URLParam(r, "playbookID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "playbook id must be a uuid"))
		return id.PlaybookID{}, false
	}
	return playbookID, true
}

// actor prefers the operator named by a verified bearer token over the
// self-reported header.
func actor(r *http.Request) string {
	if a := requestcontext.Actor(r.Context()); a != "" {
		return a
	}
	if a := strings.TrimSpace(r.Header.Get(HeaderActor)); a != "" {
		return a
	}
	return "admin"
}
