package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	"idv/pkg/platform/fallback"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
	"idv/pkg/requestcontext"

	"idv/internal/platform/flags"
	"idv/internal/platform/tracing"
	"idv/internal/risk"
	"idv/internal/vault"
	"idv/internal/vendor"
)

const (
	defaultPollDeadline      = 30 * time.Second
	defaultTransportAttempts = 3
	// maxSteps bounds one Run. A full pass with a selfie and polling is
	// ten stages.
	maxSteps = 32
)

// Status is where a Run stopped.
type Status string

const (
	StatusWaitingForUpload Status = "waiting_for_upload"
	StatusRetryUpload      Status = "retry_upload"
	StatusComplete         Status = "complete"
	StatusFailed           Status = "failed"
	StatusTimedOut         Status = "timed_out"
)

// Outcome is the result of one Run.
type Outcome struct {
	Session Session
	Status  Status
	// NextSide is the image the client uploads next when Status asks for one.
	NextSide       Side
	FailureReasons []FailureReason
	// Signals are set only by the Run that reached Complete.
	Signals []risk.Signal
}

// AuditPublisher emits compliance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Deps are the collaborators a Machine runs against.
type Deps struct {
	Sessions SessionStore
	Evidence EvidenceStore
	Vault    vault.Vault
	Vendor   VendorClient
	Calls    vendor.Store
	Signals  risk.Store
	// Audit receives document_hard_errored. Optional.
	Audit   AuditPublisher
	Flags   flags.Flags
	Logger  *slog.Logger
	Metrics *Metrics
	// PollDeadline caps GetOnboardingStatus polling when the caller's
	// context has no earlier deadline.
	PollDeadline time.Duration
	PollBackoff  func() backoff.BackOff
	// TransportAttempts is how often one stage call is tried on a retryable
	// transport error.
	TransportAttempts int
}

// Request names the document a Machine verifies.
type Request struct {
	TenantID           id.TenantID
	ScopedVaultID      id.ScopedVaultID
	IdentityDocumentID id.IdentityDocumentID
	DecisionIntentID   id.DecisionIntentID
	CollectSelfie      bool
}

// Machine runs the document protocol for one identity document.
type Machine struct {
	deps         Deps
	req          Request
	asyncScoring bool
}

// New validates deps and fixes the branch choices for the run.
func New(deps Deps, req Request) (*Machine, error) {
	if deps.Sessions == nil || deps.Evidence == nil || deps.Vault == nil ||
		deps.Vendor == nil || deps.Calls == nil || deps.Signals == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document machine is missing a dependency")
	}
	if req.ScopedVaultID.IsNil() || req.IdentityDocumentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "scoped vault and identity document are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PollDeadline <= 0 {
		deps.PollDeadline = defaultPollDeadline
	}
	if deps.PollBackoff == nil {
		deps.PollBackoff = defaultPollBackoff
	}
	if deps.TransportAttempts <= 0 {
		deps.TransportAttempts = defaultTransportAttempts
	}
	m := &Machine{deps: deps, req: req}
	if deps.Flags != nil {
		m.asyncScoring = deps.Flags.IsOn(flags.DocumentAsyncScoring, req.TenantID)
	}
	return m, nil
}

func defaultPollBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Run advances the session as far as the stored evidence allows.
//
// A retry limit ends the session in Fail and returns the Outcome together
// with a CodeRetryLimitExceeded error.
func (m *Machine) Run(ctx context.Context) (out Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "document.Machine.Run",
		attribute.String("identity_document_id", m.req.IdentityDocumentID.String()),
		attribute.Bool("collect_selfie", m.req.CollectSelfie),
	)
	defer func() {
		span.SetAttributes(attribute.String("status", string(out.Status)))
		tracing.End(span, err)
	}()

	doc, err := m.deps.Evidence.GetDocument(ctx, m.req.IdentityDocumentID)
	if err != nil {
		return Outcome{}, storeError(err, "failed to load identity document")
	}
	if doc.ScopedVaultID != m.req.ScopedVaultID {
		return Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "identity document belongs to another vault")
	}

	r := &run{m: m, doc: doc, seq: sequence(doc.DocumentType, m.req.CollectSelfie, m.asyncScoring)}
	if err := r.load(ctx); err != nil {
		return Outcome{}, err
	}

	for range maxSteps {
		halt, err := r.step(ctx)
		if halt == nil && err == nil {
			continue
		}
		if halt != nil {
			out = *halt
			m.deps.Metrics.incOutcome(out.Status)
		}
		return out, err
	}
	return Outcome{Session: r.sess}, dErrors.Newf(dErrors.CodeAssertion, "document run did not halt after %d steps", maxSteps)
}

// run is the in-memory state of one Run. It is discarded when Run returns.
type run struct {
	m       *Machine
	doc     IdentityDocument
	seq     []Stage
	sess    Session
	signals []risk.Signal
}

func (r *run) load(ctx context.Context) error {
	sess, err := r.m.deps.Sessions.Latest(ctx, r.doc.ScopedVaultID, r.doc.ID)
	if err == nil {
		r.sess = sess
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return storeError(err, "failed to load verification session")
	}
	sess = newSession(r.doc, requestcontext.Now(ctx))
	if err := r.m.deps.Sessions.Create(ctx, sess); err != nil {
		return storeError(err, "failed to open verification session")
	}
	r.sess = sess
	r.m.deps.Logger.InfoContext(ctx, "document session opened",
		"session_id", sess.ID.String(),
		"identity_document_id", r.doc.ID.String(),
		"document_type", r.doc.DocumentType,
	)
	return nil
}

func (r *run) step(ctx context.Context) (*Outcome, error) {
	stage := r.sess.Stage
	if !stage.IsTerminal() && stage != StageRetryUpload && !slices.Contains(r.seq, stage) {
		return nil, dErrors.Newf(dErrors.CodeAssertion, "stage %s is not part of this run", stage)
	}

	switch stage {
	case StageComplete:
		return r.halt(StatusComplete), nil
	case StageFail:
		out := r.halt(StatusFailed)
		out.FailureReasons = r.sess.LatestFailureReasons
		if !r.sess.HardErrored {
			return out, errRetryLimit()
		}
		return out, nil
	case StageRetryUpload:
		return r.retryUpload(ctx)
	case StageAddFront, StageAddBack, StageAddSelfie:
		return r.addSide(ctx, stage)
	case StageGetOnboardingStatus:
		return r.poll(ctx)
	case StageStartOnboarding:
		resp, resultID, err := r.call(ctx, r.request(stage))
		if err != nil {
			return nil, err
		}
		r.sess.InterviewID, r.sess.Token = resp.InterviewID, resp.Token
		return nil, r.advance(ctx, resultID)
	case StageAddConsent:
		_, resultID, err := r.call(ctx, r.request(stage))
		if err != nil {
			return nil, err
		}
		return nil, r.advance(ctx, resultID)
	case StageProcessID:
		resp, resultID, err := r.call(ctx, r.request(stage))
		if err != nil {
			return nil, err
		}
		// Processing has no side to retry, so any reason ends the session.
		if reasons := withoutIgnored(resp.FailureReasons, r.sess.IgnoredFailureReasons); len(reasons) > 0 {
			return r.fail(ctx, reasons, true, resultID)
		}
		return nil, r.advance(ctx, resultID)
	case StageFetchScores:
		resp, resultID, err := r.call(ctx, r.request(stage))
		if err != nil {
			return nil, err
		}
		if resp.Scores == nil {
			return nil, contractError(stage, "response has no scores")
		}
		return nil, r.advance(ctx, resultID)
	case StageFetchOCR:
		return nil, r.fetchOCR(ctx)
	}
	return nil, dErrors.Newf(dErrors.CodeAssertion, "unknown stage %q", stage)
}

func (r *run) halt(status Status) *Outcome {
	return &Outcome{Session: r.sess, Status: status, Signals: r.signals}
}

func (r *run) request(stage Stage) StageRequest {
	return StageRequest{
		Stage:        stage,
		InterviewID:  r.sess.InterviewID,
		Token:        r.sess.Token,
		DocumentType: r.doc.DocumentType,
		CountryCode:  r.doc.CountryCode,
	}
}

func (r *run) addSide(ctx context.Context, stage Stage) (*Outcome, error) {
	side, _ := stage.Side()
	loc := r.doc.Locator(side)
	if loc == nil {
		out := r.halt(StatusWaitingForUpload)
		out.NextSide = side
		return out, nil
	}
	image, err := r.m.deps.Vault.Load(ctx, *loc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to load %s image", side))
	}

	// Checks are relaxed per side: another side's retries never loosen
	// this one.
	var ignored []FailureReason
	req := r.request(stage)
	req.Side, req.Image = side, image
	if r.sess.Attempts(side) >= MaxAttemptsBeforeDroppingGlareCheck {
		req.SkipGlareCheck, req.SkipSharpnessCheck = true, true
		ignored = relaxedReasons(side)
		r.sess.IgnoredFailureReasons = addIgnored(r.sess.IgnoredFailureReasons, ignored...)
	}

	resp, resultID, err := r.call(ctx, req)
	if err != nil {
		return nil, err
	}
	reasons := withoutIgnored(resp.FailureReasons, ignored)
	switch Classify(reasons) {
	case ClassNone:
		return nil, r.advance(ctx, resultID)
	case ClassFatal:
		return r.fail(ctx, reasons, true, resultID)
	}

	if r.sess.Attempts(side)+1 >= MaxAttempts {
		return r.fail(ctx, reasons, false, resultID)
	}
	// The image is cleared before the stage moves so a crash in between
	// asks for a fresh upload instead of resubmitting the rejected one.
	if err := r.m.deps.Evidence.SetSide(ctx, r.doc.ID, side, nil); err != nil {
		return nil, storeError(err, fmt.Sprintf("failed to clear %s image", side))
	}
	r.doc.setLocator(side, nil)
	r.sess.RetrySide = side
	r.sess.LatestFailureReasons = reasons
	if err := r.moveTo(ctx, StageRetryUpload, resultID); err != nil {
		return nil, err
	}
	r.m.deps.Metrics.incRetry(side)

	out := r.halt(StatusRetryUpload)
	out.NextSide, out.FailureReasons = side, reasons
	return out, nil
}

func (r *run) retryUpload(ctx context.Context) (*Outcome, error) {
	side := r.sess.RetrySide
	if side == "" {
		return nil, dErrors.New(dErrors.CodeAssertion, "retry upload has no side to collect")
	}
	if r.doc.Locator(side) == nil {
		out := r.halt(StatusRetryUpload)
		out.NextSide, out.FailureReasons = side, r.sess.LatestFailureReasons
		return out, nil
	}
	r.sess.incAttempts(side)
	r.sess.RetrySide = ""
	r.sess.LatestFailureReasons = nil
	return nil, r.moveTo(ctx, side.AddStage(), id.VerificationResultID{})
}

var errScoringPending = errors.New("document scoring pending")

func (r *run) poll(ctx context.Context) (*Outcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.m.deps.PollDeadline)
	defer cancel()

	var resultID id.VerificationResultID
	err := backoff.Retry(func() error {
		resp, rid, err := r.call(ctx, r.request(StageGetOnboardingStatus))
		if err != nil {
			return backoff.Permanent(err)
		}
		if !resp.ScoringDone {
			return errScoringPending
		}
		resultID = rid
		return nil
	}, backoff.WithContext(r.m.deps.PollBackoff(), pollCtx))

	var domainErr *dErrors.Error
	switch {
	case err == nil:
		return nil, r.advance(ctx, resultID)
	case errors.As(err, &domainErr):
		return nil, err
	case errors.Is(err, errScoringPending), errors.Is(err, context.DeadlineExceeded):
		r.m.deps.Logger.InfoContext(ctx, "document scoring still pending",
			"session_id", r.sess.ID.String(),
		)
		return r.halt(StatusTimedOut), nil
	}
	return nil, err
}

func (r *run) fetchOCR(ctx context.Context) error {
	resp, resultID, err := r.call(ctx, r.request(StageFetchOCR))
	if err != nil {
		return err
	}
	if resp.OCR == nil {
		return contractError(StageFetchOCR, "response has no ocr")
	}

	scored, err := r.m.deps.Calls.LatestSuccessful(ctx, r.doc.ScopedVaultID, []vendor.API{vendor.IncodeFetchScores})
	if err != nil {
		return storeError(err, "failed to load document scores")
	}
	if scored.Request.IdentityDocumentID != r.doc.ID {
		return dErrors.New(dErrors.CodeConflict, "latest document scores belong to another document")
	}
	var scores StageResponse
	if err := json.Unmarshal(scored.Result.Response, &scores); err != nil || scores.Scores == nil {
		return contractError(StageFetchScores, "stored response has no scores")
	}

	vaulted, err := r.m.deps.Vault.Decrypt(ctx, r.doc.ScopedVaultID, ocrFields)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decrypt identity data")
	}

	// Every signal of one completion hangs off the FetchOCR result so the
	// groups are read back whole.
	now := requestcontext.Now(ctx)
	signals := scoreSignals(r.doc.ScopedVaultID, *scores.Scores, r.m.req.CollectSelfie, resultID, now)
	signals = append(signals, ocrSignals(r.doc.ScopedVaultID, *resp.OCR, vaulted, resultID, now)...)
	if err := r.m.deps.Signals.Create(txcontext.Detach(ctx), signals); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document signals")
	}
	r.signals = signals
	return r.advance(ctx, resultID)
}

func (r *run) fail(ctx context.Context, reasons []FailureReason, hard bool, resultID id.VerificationResultID) (*Outcome, error) {
	r.sess.LatestFailureReasons = reasons
	r.sess.HardErrored = hard
	r.sess.RetrySide = ""
	if hard && r.m.deps.Audit != nil {
		err := r.m.deps.Audit.Emit(ctx, audit.ComplianceEvent{
			TenantID: r.m.req.TenantID,
			Subject:  r.sess.ID.String(),
			Action:   audit.EventDocumentHardErrored,
			Decision: "fail",
			Reason:   joinReasons(reasons),
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit document hard error")
		}
	}
	if err := r.moveTo(ctx, StageFail, resultID); err != nil {
		return nil, err
	}
	r.m.deps.Logger.WarnContext(ctx, "document session failed",
		"session_id", r.sess.ID.String(),
		"hard_errored", hard,
		"failure_reasons", reasons,
	)

	out := r.halt(StatusFailed)
	out.FailureReasons = reasons
	if !hard {
		return out, errRetryLimit()
	}
	return out, nil
}

// advance moves past the current stage in the run's sequence.
func (r *run) advance(ctx context.Context, resultID id.VerificationResultID) error {
	next, ok := nextStage(r.seq, r.sess.Stage)
	if !ok {
		return dErrors.Newf(dErrors.CodeAssertion, "stage %s has no successor", r.sess.Stage)
	}
	r.sess.LatestFailureReasons = nil
	return r.moveTo(ctx, next, resultID)
}

// moveTo persists the session in stage with a version bump and logs the
// stage entered.
func (r *run) moveTo(ctx context.Context, stage Stage, resultID id.VerificationResultID) error {
	now := requestcontext.Now(ctx)
	next := cloneSession(r.sess)
	next.Stage = stage
	next.Version++
	next.UpdatedAt = now
	if stage.IsTerminal() {
		next.CompletedAt = &now
	}
	event := SessionEvent{
		ID:                   uuid.New(),
		SessionID:            next.ID,
		Stage:                stage,
		FailureReasons:       next.LatestFailureReasons,
		VerificationResultID: resultID,
		CreatedAt:            now,
	}
	if err := r.m.deps.Sessions.Update(ctx, next, event); err != nil {
		return storeError(err, "failed to persist verification session")
	}
	r.m.deps.Logger.DebugContext(ctx, "document stage entered",
		"session_id", next.ID.String(),
		"from", r.sess.Stage,
		"to", stage,
	)
	r.sess = next
	return nil
}

type stageHit struct {
	resp     StageResponse
	resultID id.VerificationResultID
}

// call makes one stage call with transport retries. Vendor requests are not
// cancelled once started; the log rows are written on a context detached
// from the caller's transaction.
func (r *run) call(ctx context.Context, req StageRequest) (StageResponse, id.VerificationResultID, error) {
	api, ok := req.Stage.API()
	if !ok {
		return StageResponse{}, id.VerificationResultID{}, dErrors.Newf(dErrors.CodeAssertion, "stage %s calls no vendor api", req.Stage)
	}
	callCtx := context.WithoutCancel(txcontext.Detach(ctx))
	provider := fallback.Provider[stageHit]{
		Name: string(api),
		Call: func(ctx context.Context) (stageHit, error) { return r.callOnce(ctx, api, req) },
	}

	hit, report, err := fallback.Run(callCtx,
		fallback.Policy{Retryable: vendor.IsRetryable, Logger: r.m.deps.Logger},
		fallback.Repeat(provider, r.m.deps.TransportAttempts),
	)
	if err != nil {
		r.m.deps.Metrics.incStageCall(req.Stage, string(vendor.GetCategory(err)))
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			return StageResponse{}, id.VerificationResultID{}, err
		}
		r.m.deps.Logger.WarnContext(ctx, "document vendor call failed",
			"stage", req.Stage,
			"session_id", r.sess.ID.String(),
			"attempts", len(report.Attempts),
			"error", err,
		)
		return StageResponse{}, id.VerificationResultID{}, dErrors.Wrap(err, dErrors.CodeVendorCallFailed,
			fmt.Sprintf("%s failed after %d attempts", api, len(report.Attempts)))
	}
	r.m.deps.Metrics.incStageCall(req.Stage, "ok")
	return hit.resp, hit.resultID, nil
}

func (r *run) callOnce(ctx context.Context, api vendor.API, req StageRequest) (stageHit, error) {
	vreq := vendor.NewRequest(api, r.doc.ScopedVaultID, r.m.req.DecisionIntentID, requestcontext.Now(ctx))
	vreq.IdentityDocumentID = r.doc.ID
	if err := r.m.deps.Calls.SaveRequest(ctx, vreq); err != nil {
		return stageHit{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vendor request")
	}

	resp, callErr := r.m.deps.Vendor.Call(ctx, req)
	var raw []byte
	if callErr == nil {
		raw, callErr = json.Marshal(resp)
	}

	res := vendor.NewResult(vreq, raw, callErr, requestcontext.Now(ctx))
	if err := r.m.deps.Calls.SaveResult(ctx, res); err != nil {
		return stageHit{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vendor result")
	}
	if callErr != nil {
		return stageHit{}, callErr
	}
	return stageHit{resp: resp, resultID: res.ID}, nil
}

func contractError(stage Stage, msg string) error {
	api, _ := stage.API()
	return dErrors.Wrap(vendor.NewError(vendor.ErrorContractMismatch, api, msg, nil),
		dErrors.CodeVendorCallFailed, fmt.Sprintf("%s returned an unusable response", stage))
}

func errRetryLimit() error {
	return dErrors.Newf(dErrors.CodeRetryLimitExceeded, "document side failed %d times", MaxAttempts)
}

func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func joinReasons(reasons []FailureReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}
