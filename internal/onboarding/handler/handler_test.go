package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/middleware/metadata"
	"idv/pkg/testutil"

	"idv/internal/decision"
	"idv/internal/document"
	"idv/internal/insight"
	"idv/internal/onboarding/handler"
	"idv/internal/onboarding/handler/mocks"
	"idv/internal/playbook"
	"idv/internal/rules"
	"idv/internal/vault"
	"idv/internal/workflow"
)

// =============================================================================
// Onboarding Handler Test Suite
// =============================================================================
// Justification for unit tests: request parsing, tenant scoping and the
// hand-off from a completed document to the workflow live only in the
// handler. Engine and document service are mocked so each test pins the
// exact calls a request makes.

type HandlerSuite struct {
	suite.Suite
	ctx       context.Context
	tenant    id.TenantID
	engine    *mocks.MockEngine
	documents *mocks.MockDocuments
	playbooks *playbook.StaticProvider
	vault     *vault.InMemory
	insights  *insight.InMemoryStore
	preview   *stubPreviewer
	router    chi.Router
}

type stubPreviewer struct {
	got []rules.Instance
	res decision.PreviewResult
}

func (p *stubPreviewer) Preview(_ context.Context, _ workflow.Workflow, candidates []rules.Instance) (decision.PreviewResult, error) {
	p.got = candidates
	return p.res, nil
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.engine = mocks.NewMockEngine(ctrl)
	s.documents = mocks.NewMockDocuments(ctrl)
	s.playbooks = playbook.NewStaticProvider()
	s.vault = vault.NewInMemory()
	s.insights = insight.NewInMemoryStore()
	s.preview = &stubPreviewer{}
	s.tenant = id.NewTenantID()
	s.ctx = testutil.Context(s.tenant)

	h := handler.New(s.engine, s.documents, s.playbooks, slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler.WithVault(s.vault),
		handler.WithInsights(s.insights),
		handler.WithPreviewer(s.preview),
	)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req.WithContext(s.ctx))
}

func (s *HandlerSuite) workflow(kind workflow.Kind) workflow.Workflow {
	wf, err := workflow.New(kind, s.tenant, id.NewScopedVaultID(), id.NewPlaybookID(), testutil.FixedTime)
	s.Require().NoError(err)
	return wf
}

func (s *HandlerSuite) path(wf workflow.Workflow, rest string) string {
	return "/v1/workflows/" + wf.ID.String() + rest
}

func (s *HandlerSuite) TestCreateWorkflow() {
	s.Run("starts the workflow and stores its data", func() {
		playbookID := id.NewPlaybookID()
		var started workflow.Workflow
		s.engine.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, wf workflow.Workflow) error {
				started = wf
				return nil
			})

		s.ctx = metadata.WithClient(testutil.Context(s.tenant), metadata.Client{
			IP: "203.0.113.7", UserAgent: "Mozilla/5.0", Country: "US",
		})
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/workflows", map[string]any{
			"kind":        "kyc",
			"playbook_id": playbookID.String(),
			"is_sandbox":  true,
			"data":        map[string]string{"id.first_name": "Jane"},
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[handler.WorkflowResponse](s.T(), rr)
		s.Equal(string(workflow.KycDataCollection), resp.State)
		s.True(resp.IsSandbox)
		s.Equal(playbookID, started.PlaybookID)
		s.Equal(s.tenant, started.TenantID)
		s.Equal(started.ID.String(), resp.ID)

		data, err := s.vault.Decrypt(s.ctx, started.ScopedVaultID, []vault.DataIdentifier{vault.IDFirstName})
		s.Require().NoError(err)
		s.Equal("Jane", data[vault.IDFirstName])

		ev, err := s.insights.Latest(s.ctx, started.ScopedVaultID)
		s.Require().NoError(err)
		s.Equal("203.0.113.7", ev.IPAddress)
		s.Equal("US", ev.Country)
		s.Equal(testutil.FixedTime, ev.CreatedAt)
	})

	s.Run("rejects unknown kinds", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/workflows", map[string]any{
			"kind":        "kyx",
			"playbook_id": id.NewPlaybookID().String(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("a redo needs a vault", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/workflows", map[string]any{
			"kind":        "kyc",
			"playbook_id": id.NewPlaybookID().String(),
			"is_redo":     true,
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestGetWorkflowIsTenantScoped() {
	wf := s.workflow(workflow.KindKyc)
	wf.TenantID = id.NewTenantID()
	s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path(wf, "")))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *HandlerSuite) TestAction() {
	s.Run("runs client actions", func() {
		wf := s.workflow(workflow.KindKyc)
		done := wf
		done.State = workflow.KycComplete
		done.Decision = &workflow.Decision{Kind: workflow.DecisionRulesExecuted}
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.engine.EXPECT().Run(gomock.Any(), wf.ID, workflow.Authorize{}).Return(done, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(wf, "/actions"),
			map[string]string{"action": "authorize"}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[handler.WorkflowResponse](s.T(), rr)
		s.Equal(string(workflow.KycComplete), resp.State)
		s.Require().NotNil(resp.Decision)
		s.Equal("pass", resp.Decision.Status)
	})

	s.Run("automatic actions cannot be sent", func() {
		wf := s.workflow(workflow.KindKyc)
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(wf, "/actions"),
			map[string]string{"action": "make_decision"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("invalid transitions conflict", func() {
		wf := s.workflow(workflow.KindKyc)
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.engine.EXPECT().Run(gomock.Any(), wf.ID, workflow.BoKycCompleted{}).
			Return(workflow.Workflow{}, dErrors.New(dErrors.CodeInvalidTransition, "no edge"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(wf, "/actions"),
			map[string]string{"action": "bo_kyc_completed"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidTransition))
	})
}

func (s *HandlerSuite) TestVerifyDocument() {
	s.Run("a completed document moves the workflow", func() {
		wf := s.workflow(workflow.KindDocument)
		wf.IsSandbox = true
		doc := document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: wf.ScopedVaultID}
		decided := wf
		decided.State = workflow.DocumentComplete

		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)
		s.documents.EXPECT().Verify(gomock.Any(), document.Request{
			TenantID:           s.tenant,
			ScopedVaultID:      wf.ScopedVaultID,
			IdentityDocumentID: doc.ID,
			DecisionIntentID:   wf.DecisionIntentID,
		}, true).Return(document.Outcome{Status: document.StatusComplete}, nil)
		s.engine.EXPECT().Run(gomock.Any(), wf.ID, workflow.DocCollected{DocumentID: doc.ID}).Return(decided, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(wf, "/documents/"+doc.ID.String()+"/verify")))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[handler.VerifyResponse](s.T(), rr)
		s.Equal(string(document.StatusComplete), resp.Status)
		s.Require().NotNil(resp.Workflow)
		s.Equal(string(workflow.DocumentComplete), resp.Workflow.State)
	})

	s.Run("a pending document leaves the workflow alone", func() {
		wf := s.workflow(workflow.KindDocument)
		doc := document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: wf.ScopedVaultID}

		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)
		s.documents.EXPECT().Verify(gomock.Any(), gomock.Any(), false).Return(document.Outcome{
			Status:   document.StatusWaitingForUpload,
			NextSide: document.SideBack,
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(wf, "/documents/"+doc.ID.String()+"/verify")))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[handler.VerifyResponse](s.T(), rr)
		s.Equal("back", resp.NextSide)
		s.Nil(resp.Workflow)
	})

	s.Run("documents of another vault are hidden", func() {
		wf := s.workflow(workflow.KindDocument)
		doc := document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: id.NewScopedVaultID()}

		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path(wf, "/documents/"+doc.ID.String()+"/verify")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestCreateDocument() {
	create := func(wf workflow.Workflow, body map[string]any) *httptest.ResponseRecorder {
		return s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path(wf, "/documents"), body))
	}
	givenPlaybook := func(wf workflow.Workflow, selfie bool) {
		s.playbooks.Put(playbook.Config{
			TenantID:      wf.TenantID,
			PlaybookID:    wf.PlaybookID,
			Kind:          playbook.KindDocument,
			DocumentKinds: []playbook.DocumentKind{playbook.DocumentDriversLicense},
			CollectSelfie: selfie,
		})
	}

	s.Run("a playbook requiring a selfie overrides the client", func() {
		wf := s.workflow(workflow.KindDocument)
		givenPlaybook(wf, true)
		doc := document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: wf.ScopedVaultID, CollectSelfie: true}
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().CreateDocument(gomock.Any(), wf.ScopedVaultID,
			document.DocumentTypeDriversLicense, "US", true).Return(doc, nil)

		rr := create(wf, map[string]any{"document_type": "drivers_license", "country_code": "us", "collect_selfie": false})
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("a client may add a selfie the playbook does not require", func() {
		wf := s.workflow(workflow.KindDocument)
		givenPlaybook(wf, false)
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().CreateDocument(gomock.Any(), wf.ScopedVaultID,
			document.DocumentTypeDriversLicense, "US", true).
			Return(document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: wf.ScopedVaultID}, nil)

		rr := create(wf, map[string]any{"document_type": "drivers_license", "country_code": "US", "collect_selfie": true})
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("unknown playbook", func() {
		wf := s.workflow(workflow.KindDocument)
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)

		rr := create(wf, map[string]any{"document_type": "drivers_license", "country_code": "US"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestUploadSide() {
	wf := s.workflow(workflow.KindDocument)
	doc := document.IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: wf.ScopedVaultID}
	upload := func(side, body string) *httptest.ResponseRecorder {
		return s.do(testutil.NewRawRequest(s.T(), http.MethodPut, s.path(wf, "/documents/"+doc.ID.String()+"/"+side), "image/jpeg", []byte(body)))
	}

	s.Run("stores the image", func() {
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)
		s.documents.EXPECT().UploadSide(gomock.Any(), doc.ID, document.SideFront, []byte("jpeg")).Return(doc, nil)

		testutil.AssertStatusOK(s.T(), upload("front", "jpeg"))
	})

	s.Run("unknown side", func() {
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)

		testutil.AssertStatusAndError(s.T(), upload("left", "jpeg"), http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("empty image", func() {
		s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)
		s.documents.EXPECT().GetDocument(gomock.Any(), doc.ID).Return(doc, nil)

		testutil.AssertStatusAndError(s.T(), upload("back", ""), http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestPreview() {
	wf := s.workflow(workflow.KindKyc)
	fail := rules.Fail
	s.preview.res = decision.PreviewResult{
		Candidate: rules.Evaluation{
			Results: []rules.Result{{Rule: rules.Instance{Name: "ssn_fail"}, Fired: true}},
			Action:  &fail,
		},
	}
	s.engine.EXPECT().Get(gomock.Any(), wf.ID).Return(wf, nil)

	body := "rules:\n  - name: ssn_fail\n    kind: person\n    action: fail\n    expression:\n      - reason_code: {code: ssn_does_not_match}\n"
	rr := s.do(testutil.NewRawRequest(s.T(), http.MethodPost, s.path(wf, "/preview"), "application/yaml", []byte(body)))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[handler.PreviewResponse](s.T(), rr)
	s.Equal("pass", resp.Active.Action)
	s.Equal("fail", resp.Candidate.Action)
	s.Equal([]string{"ssn_fail"}, resp.Candidate.Fired)
	s.Require().Len(s.preview.got, 1)
	s.Equal(wf.TenantID, s.preview.got[0].TenantID)
}
