package document

import (
	"context"
	"strings"
)

// StageRequest is one submission to the document vendor.
type StageRequest struct {
	Stage        Stage        `json:"stage"`
	InterviewID  string       `json:"interview_id,omitempty"`
	Token        string       `json:"-"`
	DocumentType DocumentType `json:"document_type"`
	CountryCode  string       `json:"country_code"`
	Side         Side         `json:"side,omitempty"`
	Image        []byte       `json:"-"`
	// Set once a side has been retried MaxAttemptsBeforeDroppingGlareCheck
	// times.
	SkipGlareCheck     bool `json:"skip_glare_check,omitempty"`
	SkipSharpnessCheck bool `json:"skip_sharpness_check,omitempty"`
}

// StageResponse is what the vendor answered. Only the fields of the stage
// called are set.
type StageResponse struct {
	InterviewID    string          `json:"interview_id,omitempty"`
	Token          string          `json:"-"`
	FailureReasons []FailureReason `json:"failure_reasons,omitempty"`
	// ScoringDone is reported by GetOnboardingStatus.
	ScoringDone bool    `json:"scoring_done,omitempty"`
	Scores      *Scores `json:"scores,omitempty"`
	OCR         *OCR    `json:"ocr,omitempty"`
}

// ScoreStatus is the vendor's verdict on one check.
type ScoreStatus string

const (
	ScoreOK   ScoreStatus = "ok"
	ScoreFail ScoreStatus = "fail"
)

type Scores struct {
	Document     ScoreStatus `json:"document"`
	Selfie       ScoreStatus `json:"selfie,omitempty"`
	Liveness     ScoreStatus `json:"liveness,omitempty"`
	Expired      bool        `json:"expired,omitempty"`
	PossibleFake bool        `json:"possible_fake,omitempty"`
}

// OCR is the data read off the document. Dob is YYYY-MM-DD.
type OCR struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Dob       string `json:"dob"`
}

// VendorClient calls the document vendor. Errors should be *vendor.Error so
// transport failures are classified for retry.
type VendorClient interface {
	Call(ctx context.Context, req StageRequest) (StageResponse, error)
}

// SandboxClient answers every stage successfully and deterministically.
// A side image whose bytes read "sandbox:<reason>,<reason>" fails with those
// reasons, which lets sandbox users walk the retry paths.
type SandboxClient struct{}

const sandboxPrefix = "sandbox:"

func (SandboxClient) Call(_ context.Context, req StageRequest) (StageResponse, error) {
	switch req.Stage {
	case StageStartOnboarding:
		return StageResponse{InterviewID: "sandbox-interview", Token: "sandbox-token"}, nil
	case StageAddFront, StageAddBack, StageAddSelfie:
		return StageResponse{FailureReasons: sandboxReasons(req)}, nil
	case StageGetOnboardingStatus:
		return StageResponse{ScoringDone: true}, nil
	case StageFetchScores:
		return StageResponse{Scores: &Scores{Document: ScoreOK, Selfie: ScoreOK, Liveness: ScoreOK}}, nil
	case StageFetchOCR:
		return StageResponse{OCR: &OCR{FirstName: "Sandbox", LastName: "User", Dob: "1990-01-01"}}, nil
	}
	return StageResponse{}, nil
}

func sandboxReasons(req StageRequest) []FailureReason {
	s, ok := strings.CutPrefix(string(req.Image), sandboxPrefix)
	if !ok {
		return nil
	}
	var out []FailureReason
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		reason := FailureReason(r)
		if req.SkipGlareCheck && (reason == ReasonGlare || reason == ReasonSelfieGlare) {
			continue
		}
		if req.SkipSharpnessCheck && (reason == ReasonBlurry || reason == ReasonSelfieBlurry) {
			continue
		}
		out = append(out, reason)
	}
	return out
}
