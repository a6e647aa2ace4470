package document

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	id "idv/pkg/domain"

	"idv/internal/risk"
	"idv/internal/vault"
	"idv/internal/vendor"
)

var ocrFields = []vault.DataIdentifier{vault.IDFirstName, vault.IDLastName, vault.IDDob}

// foldName reduces a name to a comparable form: case folded, accents
// stripped, inner whitespace collapsed.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

func namesMatch(vaulted, read string) bool {
	return foldName(vaulted) == foldName(read)
}

// scoreSignals turns the vendor scores into Doc and Selfie reason codes.
func scoreSignals(vaultID id.ScopedVaultID, scores Scores, selfie bool, resultID id.VerificationResultID, now time.Time) []risk.Signal {
	api := string(vendor.IncodeFetchScores)
	var out []risk.Signal
	add := func(code risk.ReasonCode, group risk.Group) {
		out = append(out, risk.NewSignal(vaultID, code, api, resultID, group, now))
	}

	if scores.Document == ScoreOK {
		add(risk.DocumentVerified, risk.GroupDoc)
	} else {
		add(risk.DocumentNotVerified, risk.GroupDoc)
	}
	if scores.Expired {
		add(risk.DocumentExpired, risk.GroupDoc)
	}
	if scores.PossibleFake {
		add(risk.DocumentPossibleFakeImage, risk.GroupDoc)
	}
	if !selfie {
		return out
	}
	if scores.Selfie == ScoreOK {
		add(risk.DocumentSelfieMatches, risk.GroupSelfie)
	} else {
		add(risk.DocumentSelfieDoesNotMatch, risk.GroupSelfie)
	}
	if scores.Liveness == ScoreFail {
		add(risk.DocumentSelfieLivenessCheck, risk.GroupSelfie)
	}
	return out
}

// ocrSignals compares what was read off the document with the vaulted
// identity. A field absent from the vault produces no signal.
func ocrSignals(vaultID id.ScopedVaultID, ocr OCR, vaulted map[vault.DataIdentifier]string, resultID id.VerificationResultID, now time.Time) []risk.Signal {
	api := string(vendor.IncodeFetchOCR)
	var out []risk.Signal
	add := func(code risk.ReasonCode) {
		out = append(out, risk.NewSignal(vaultID, code, api, resultID, risk.GroupDoc, now))
	}

	first, hasFirst := vaulted[vault.IDFirstName]
	last, hasLast := vaulted[vault.IDLastName]
	if hasFirst || hasLast {
		if namesMatch(first, ocr.FirstName) && namesMatch(last, ocr.LastName) {
			add(risk.DocumentOcrNameMatches)
		} else {
			add(risk.DocumentOcrNameDoesNotMatch)
		}
	}
	if dob, ok := vaulted[vault.IDDob]; ok {
		if strings.TrimSpace(dob) == strings.TrimSpace(ocr.Dob) {
			add(risk.DocumentOcrDobMatches)
		} else {
			add(risk.DocumentOcrDobDoesNotMatch)
		}
	}
	return out
}
