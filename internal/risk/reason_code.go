package risk

import "sort"

// ReasonCode is a canonical, vendor-agnostic fact derived from a vendor response.
type ReasonCode string

const (
	SsnMatches              ReasonCode = "ssn_matches"
	SsnPartiallyMatches     ReasonCode = "ssn_partially_matches"
	SsnDoesNotMatch         ReasonCode = "ssn_does_not_match"
	NameMatches             ReasonCode = "name_matches"
	NameDoesNotMatch        ReasonCode = "name_does_not_match"
	DobMatches              ReasonCode = "dob_matches"
	DobDoesNotMatch         ReasonCode = "dob_does_not_match"
	AddressMatches          ReasonCode = "address_matches"
	AddressDoesNotMatch     ReasonCode = "address_does_not_match"
	PhoneNumberDoesNotMatch ReasonCode = "phone_number_does_not_match"
	IdNotLocated            ReasonCode = "id_not_located"
	SubjectDeceased         ReasonCode = "subject_deceased"

	WatchlistHitOfac   ReasonCode = "watchlist_hit_ofac"
	WatchlistHitNonSdn ReasonCode = "watchlist_hit_non_sdn"
	AdverseMediaHit    ReasonCode = "adverse_media_hit"

	DocumentVerified            ReasonCode = "document_verified"
	DocumentNotVerified         ReasonCode = "document_not_verified"
	DocumentExpired             ReasonCode = "document_expired"
	DocumentPossibleFakeImage   ReasonCode = "document_possible_fake_image"
	DocumentOcrNameMatches      ReasonCode = "document_ocr_name_matches"
	DocumentOcrNameDoesNotMatch ReasonCode = "document_ocr_name_does_not_match"
	DocumentOcrDobMatches       ReasonCode = "document_ocr_dob_matches"
	DocumentOcrDobDoesNotMatch  ReasonCode = "document_ocr_dob_does_not_match"

	DocumentSelfieMatches       ReasonCode = "document_selfie_matches"
	DocumentSelfieDoesNotMatch  ReasonCode = "document_selfie_does_not_match"
	DocumentSelfieLivenessCheck ReasonCode = "document_selfie_liveness_failed"

	BusinessNameMatches         ReasonCode = "business_name_matches"
	BusinessNameDoesNotMatch    ReasonCode = "business_name_does_not_match"
	BusinessAddressDoesNotMatch ReasonCode = "business_address_does_not_match"
	TinMatches                  ReasonCode = "tin_matches"
	TinDoesNotMatch             ReasonCode = "tin_does_not_match"
)

// Severity ranks how strongly a reason code indicates risk.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severities = map[ReasonCode]Severity{
	SsnMatches:              SeverityInfo,
	SsnPartiallyMatches:     SeverityMedium,
	SsnDoesNotMatch:         SeverityHigh,
	NameMatches:             SeverityInfo,
	NameDoesNotMatch:        SeverityHigh,
	DobMatches:              SeverityInfo,
	DobDoesNotMatch:         SeverityMedium,
	AddressMatches:          SeverityInfo,
	AddressDoesNotMatch:     SeverityLow,
	PhoneNumberDoesNotMatch: SeverityLow,
	IdNotLocated:            SeverityHigh,
	SubjectDeceased:         SeverityHigh,

	WatchlistHitOfac:   SeverityHigh,
	WatchlistHitNonSdn: SeverityMedium,
	AdverseMediaHit:    SeverityMedium,

	DocumentVerified:            SeverityInfo,
	DocumentNotVerified:         SeverityHigh,
	DocumentExpired:             SeverityMedium,
	DocumentPossibleFakeImage:   SeverityHigh,
	DocumentOcrNameMatches:      SeverityInfo,
	DocumentOcrNameDoesNotMatch: SeverityHigh,
	DocumentOcrDobMatches:       SeverityInfo,
	DocumentOcrDobDoesNotMatch:  SeverityMedium,

	DocumentSelfieMatches:       SeverityInfo,
	DocumentSelfieDoesNotMatch:  SeverityHigh,
	DocumentSelfieLivenessCheck: SeverityHigh,

	BusinessNameMatches:         SeverityInfo,
	BusinessNameDoesNotMatch:    SeverityHigh,
	BusinessAddressDoesNotMatch: SeverityLow,
	TinMatches:                  SeverityInfo,
	TinDoesNotMatch:             SeverityHigh,
}

// Severity returns the code's severity. Unknown codes are high so an
// unmapped fact is never treated as benign.
func (c ReasonCode) Severity() Severity {
	if s, ok := severities[c]; ok {
		return s
	}
	return SeverityHigh
}

// IsKnown reports whether c is part of the canonical set.
func (c ReasonCode) IsKnown() bool {
	_, ok := severities[c]
	return ok
}

// AllReasonCodes lists the canonical set in stable order.
func AllReasonCodes() []ReasonCode {
	out := make([]ReasonCode, 0, len(severities))
	for c := range severities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
