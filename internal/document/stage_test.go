package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	"idv/pkg/testutil"

	"idv/internal/vault"
)

func TestSequence(t *testing.T) {
	testutil.Given(t, "a two-sided document without selfie", func(t *testing.T) {
		seq := sequence(DocumentTypeDriversLicense, false, false)
		assert.Equal(t, []Stage{
			StageStartOnboarding, StageAddFront, StageAddBack, StageProcessID,
			StageFetchScores, StageFetchOCR, StageComplete,
		}, seq)
	})

	testutil.Given(t, "a passport with selfie and async scoring", func(t *testing.T) {
		seq := sequence(DocumentTypePassport, true, true)
		assert.Equal(t, []Stage{
			StageStartOnboarding, StageAddFront, StageAddConsent, StageAddSelfie, StageProcessID,
			StageGetOnboardingStatus, StageFetchScores, StageFetchOCR, StageComplete,
		}, seq)

		testutil.Then(t, "every non-terminal stage has a successor", func(t *testing.T) {
			for _, s := range seq[:len(seq)-1] {
				_, ok := nextStage(seq, s)
				assert.True(t, ok, s)
			}
			_, ok := nextStage(seq, StageComplete)
			assert.False(t, ok)
		})
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		reasons []FailureReason
		want    Class
	}{
		{"none", nil, ClassNone},
		{"image problems", []FailureReason{ReasonBlurry, ReasonSelfieGlare}, ClassImageRetryable},
		{"one fatal taints the set", []FailureReason{ReasonGlare, ReasonTamperedDocument}, ClassFatal},
		{"unknown is fatal", []FailureReason{"vendor_invented"}, ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.reasons))
		})
	}
}

func TestIgnoredReasons(t *testing.T) {
	ignored := addIgnored(nil, relaxedReasons(SideFront)...)
	ignored = addIgnored(ignored, relaxedReasons(SideFront)...)
	assert.Equal(t, []FailureReason{ReasonGlare, ReasonBlurry}, ignored)

	got := withoutIgnored([]FailureReason{ReasonGlare, ReasonCountryMismatch, ReasonCountryMismatch}, ignored)
	assert.Equal(t, []FailureReason{ReasonCountryMismatch}, got)
	assert.Equal(t, []FailureReason{ReasonSelfieGlare, ReasonSelfieBlurry}, relaxedReasons(SideSelfie))
}

func TestNamesMatch(t *testing.T) {
	assert.True(t, namesMatch("José María", "JOSE  maria"))
	assert.True(t, namesMatch("Müller", "muller"))
	assert.False(t, namesMatch("Jose", "Josh"))
}

func TestSandboxClient(t *testing.T) {
	ctx := testutil.Context(id.NewTenantID())
	resp, err := SandboxClient{}.Call(ctx, StageRequest{Stage: StageAddFront, Image: []byte("sandbox:glare, blurry")})
	require.NoError(t, err)
	assert.Equal(t, []FailureReason{ReasonGlare, ReasonBlurry}, resp.FailureReasons)

	resp, err = SandboxClient{}.Call(ctx, StageRequest{
		Stage:              StageAddFront,
		Image:              []byte("sandbox:glare,blurry,wrong_document_side"),
		SkipGlareCheck:     true,
		SkipSharpnessCheck: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []FailureReason{ReasonWrongDocumentSide}, resp.FailureReasons)

	resp, err = SandboxClient{}.Call(ctx, StageRequest{Stage: StageFetchScores})
	require.NoError(t, err)
	require.NotNil(t, resp.Scores)
	assert.Equal(t, ScoreOK, resp.Scores.Document)
}

func TestInMemorySessionStore(t *testing.T) {
	ctx := testutil.Context(id.NewTenantID())
	store := NewInMemorySessionStore()
	doc := IdentityDocument{ID: id.NewIdentityDocumentID(), ScopedVaultID: id.NewScopedVaultID(), DocumentType: DocumentTypeIDCard}
	sess := newSession(doc, testutil.FixedTime)
	require.NoError(t, store.Create(ctx, sess))

	testutil.When(t, "a second session opens for the same document", func(t *testing.T) {
		err := store.Create(ctx, newSession(doc, testutil.FixedTime))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	testutil.When(t, "an update carries a stale version", func(t *testing.T) {
		stale := sess
		stale.Version = sess.Version + 2
		assert.ErrorIs(t, store.Update(ctx, stale, SessionEvent{SessionID: sess.ID}), sentinel.ErrConflict)
	})

	testutil.When(t, "the session completes", func(t *testing.T) {
		done := sess
		done.Version++
		done.Stage = StageComplete
		now := testutil.FixedTime
		done.CompletedAt = &now
		require.NoError(t, store.Update(ctx, done, SessionEvent{SessionID: sess.ID, Stage: StageComplete}))

		testutil.Then(t, "a new session may open", func(t *testing.T) {
			next := newSession(doc, testutil.FixedTime.Add(1))
			require.NoError(t, store.Create(ctx, next))
			latest, err := store.Latest(ctx, doc.ScopedVaultID, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, next.ID, latest.ID)
		})
	})
}

func TestUploadRejectsMissingSides(t *testing.T) {
	ctx := testutil.Context(id.NewTenantID())
	v := vault.NewInMemory()
	store := NewInMemoryEvidenceStore()
	doc, err := NewIdentityDocument(id.NewScopedVaultID(), DocumentTypePassport, "GB", false, testutil.FixedTime)
	require.NoError(t, err)
	require.NoError(t, store.CreateDocument(ctx, doc))

	_, err = Upload(ctx, v, store, doc, SideBack, []byte("back"))
	assert.Error(t, err, "passports have no back")
	_, err = Upload(ctx, v, store, doc, SideSelfie, []byte("selfie"))
	assert.Error(t, err, "selfie not requested")

	loc, err := Upload(ctx, v, store, doc, SideFront, []byte("front"))
	require.NoError(t, err)
	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FrontLocator)
	assert.Equal(t, loc, *got.FrontLocator)
}
