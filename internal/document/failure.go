package document

import "slices"

// FailureReason is a vendor-reported problem with a submission.
type FailureReason string

const (
	ReasonBlurry            FailureReason = "blurry"
	ReasonGlare             FailureReason = "glare"
	ReasonWrongDocumentType FailureReason = "wrong_document_type"
	ReasonWrongDocumentSide FailureReason = "wrong_document_side"
	ReasonCountryMismatch   FailureReason = "country_mismatch"
	ReasonFaceNotFound      FailureReason = "face_not_found"
	ReasonSelfieBlurry      FailureReason = "selfie_blurry"
	ReasonSelfieGlare       FailureReason = "selfie_glare"

	ReasonUnsupportedDocument FailureReason = "unsupported_document"
	ReasonTamperedDocument    FailureReason = "tampered_document"
	ReasonMultipleFaces       FailureReason = "multiple_faces"
	ReasonUnreadableDocument  FailureReason = "unreadable_document"
)

const (
	// MaxAttempts bounds the retries of one side. A retryable failure that
	// would reach it ends the session.
	MaxAttempts = 5
	// MaxAttemptsBeforeDroppingGlareCheck is the number of retries after
	// which the glare and sharpness checks are no longer requested.
	MaxAttemptsBeforeDroppingGlareCheck = 2
)

var imageRetryable = map[FailureReason]bool{
	ReasonBlurry:            true,
	ReasonGlare:             true,
	ReasonWrongDocumentType: true,
	ReasonWrongDocumentSide: true,
	ReasonCountryMismatch:   true,
	ReasonFaceNotFound:      true,
	ReasonSelfieBlurry:      true,
	ReasonSelfieGlare:       true,
}

// Class is how a set of failure reasons is handled.
type Class int

const (
	ClassNone Class = iota
	ClassImageRetryable
	ClassFatal
)

// Classify returns ClassFatal when any reason is not image retryable.
// Unknown reasons are fatal.
func Classify(reasons []FailureReason) Class {
	if len(reasons) == 0 {
		return ClassNone
	}
	for _, r := range reasons {
		if !imageRetryable[r] {
			return ClassFatal
		}
	}
	return ClassImageRetryable
}

// relaxedReasons are the heuristic checks dropped after repeated retries.
func relaxedReasons(side Side) []FailureReason {
	if side == SideSelfie {
		return []FailureReason{ReasonSelfieGlare, ReasonSelfieBlurry}
	}
	return []FailureReason{ReasonGlare, ReasonBlurry}
}

func withoutIgnored(reasons, ignored []FailureReason) []FailureReason {
	var out []FailureReason
	for _, r := range reasons {
		if !slices.Contains(ignored, r) && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func addIgnored(ignored []FailureReason, add ...FailureReason) []FailureReason {
	for _, r := range add {
		if !slices.Contains(ignored, r) {
			ignored = append(ignored, r)
		}
	}
	return ignored
}
