// Package document drives the document vendor's verification protocol for
// one identity document.
//
// The Machine is rebuilt on every Run from the persisted session row and the
// side images present in the evidence store; nothing survives in memory
// between runs. Each stage calls the vendor, logs the request and result,
// and only then advances the session with an optimistic version check.
package document

import (
	"idv/internal/vendor"
)

// Stage is a step of the protocol.
type Stage string

const (
	StageStartOnboarding     Stage = "start_onboarding"
	StageAddFront            Stage = "add_front"
	StageAddBack             Stage = "add_back"
	StageAddConsent          Stage = "add_consent"
	StageAddSelfie           Stage = "add_selfie"
	StageProcessID           Stage = "process_id"
	StageGetOnboardingStatus Stage = "get_onboarding_status"
	StageFetchScores         Stage = "fetch_scores"
	StageFetchOCR            Stage = "fetch_ocr"
	StageRetryUpload         Stage = "retry_upload"
	StageComplete            Stage = "complete"
	StageFail                Stage = "fail"
)

var stageAPIs = map[Stage]vendor.API{
	StageStartOnboarding:     vendor.IncodeStartOnboarding,
	StageAddFront:            vendor.IncodeAddFront,
	StageAddBack:             vendor.IncodeAddBack,
	StageAddConsent:          vendor.IncodeAddConsent,
	StageAddSelfie:           vendor.IncodeAddSelfie,
	StageProcessID:           vendor.IncodeProcessID,
	StageGetOnboardingStatus: vendor.IncodeGetOnboardingStatus,
	StageFetchScores:         vendor.IncodeFetchScores,
	StageFetchOCR:            vendor.IncodeFetchOCR,
}

// API is the vendor endpoint the stage calls. RetryUpload and the terminal
// stages call nothing.
func (s Stage) API() (vendor.API, bool) {
	api, ok := stageAPIs[s]
	return api, ok
}

func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFail
}

// Side returns the image an Add stage submits.
func (s Stage) Side() (Side, bool) {
	switch s {
	case StageAddFront:
		return SideFront, true
	case StageAddBack:
		return SideBack, true
	case StageAddSelfie:
		return SideSelfie, true
	}
	return "", false
}

// Side is one image of the document evidence.
type Side string

const (
	SideFront  Side = "front"
	SideBack   Side = "back"
	SideSelfie Side = "selfie"
)

// ParseSide reads a side name from a URL or request body.
func ParseSide(v string) (Side, bool) {
	switch s := Side(v); s {
	case SideFront, SideBack, SideSelfie:
		return s, true
	}
	return "", false
}

// AddStage is the stage that submits the side.
func (s Side) AddStage() Stage {
	switch s {
	case SideFront:
		return StageAddFront
	case SideBack:
		return StageAddBack
	default:
		return StageAddSelfie
	}
}

// DocumentType is the kind of identity document photographed.
type DocumentType string

const (
	DocumentTypeDriversLicense DocumentType = "drivers_license"
	DocumentTypeIDCard         DocumentType = "id_card"
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeResidenceCard  DocumentType = "residence_card"
)

// IsSingleSided reports whether the document has no back to photograph.
func (t DocumentType) IsSingleSided() bool {
	return t == DocumentTypePassport
}

func (t DocumentType) IsKnown() bool {
	switch t {
	case DocumentTypeDriversLicense, DocumentTypeIDCard, DocumentTypePassport, DocumentTypeResidenceCard:
		return true
	}
	return false
}

// sequence is the nominal stage order for one run. The selfie branch and the
// polling sub-state are decided here and never change mid-run.
func sequence(docType DocumentType, collectSelfie, asyncScoring bool) []Stage {
	seq := []Stage{StageStartOnboarding, StageAddFront}
	if !docType.IsSingleSided() {
		seq = append(seq, StageAddBack)
	}
	if collectSelfie {
		seq = append(seq, StageAddConsent, StageAddSelfie)
	}
	seq = append(seq, StageProcessID)
	if asyncScoring {
		seq = append(seq, StageGetOnboardingStatus)
	}
	return append(seq, StageFetchScores, StageFetchOCR, StageComplete)
}

func nextStage(seq []Stage, current Stage) (Stage, bool) {
	for i, s := range seq {
		if s == current && i+1 < len(seq) {
			return seq[i+1], true
		}
	}
	return "", false
}
