// Package risk models canonical risk signals and their storage.
package risk

import (
	"context"
	"sort"
	"time"

	id "idv/pkg/domain"
)

// Group is the kind of check a signal came from.
type Group string

const (
	GroupKyc    Group = "kyc"
	GroupKyb    Group = "kyb"
	GroupDoc    Group = "doc"
	GroupSelfie Group = "selfie"
	GroupAml    Group = "aml"
)

// IsDocument reports whether the group describes an identity document
// outcome. Such signals only count in runs that collected a document.
func (g Group) IsDocument() bool {
	return g == GroupDoc || g == GroupSelfie
}

// Signal is an immutable fact attached to a verification result. It can be
// hidden but never deleted.
type Signal struct {
	ID                   id.RiskSignalID
	ScopedVaultID        id.ScopedVaultID
	ReasonCode           ReasonCode
	VendorAPI            string
	VerificationResultID id.VerificationResultID
	Severity             Severity
	Group                Group
	Hidden               bool
	CreatedAt            time.Time
}

// NewSignal builds a signal with severity derived from the reason code.
func NewSignal(vaultID id.ScopedVaultID, code ReasonCode, vendorAPI string, resultID id.VerificationResultID, group Group, now time.Time) Signal {
	return Signal{
		ID:                   id.NewRiskSignalID(),
		ScopedVaultID:        vaultID,
		ReasonCode:           code,
		VendorAPI:            vendorAPI,
		VerificationResultID: resultID,
		Severity:             code.Severity(),
		Group:                group,
		CreatedAt:            now,
	}
}

// Check marks a verification result as the latest word on a group for a
// vault. A check with no signals clears whatever an older result said.
type Check struct {
	ScopedVaultID        id.ScopedVaultID
	Group                Group
	VerificationResultID id.VerificationResultID
	CreatedAt            time.Time
}

// checksOf derives one check per (result, group) pair found in signals,
// in first-seen order.
func checksOf(signals []Signal) []Check {
	type key struct {
		result id.VerificationResultID
		group  Group
	}
	seen := make(map[key]bool)
	var out []Check
	for _, sig := range signals {
		k := key{sig.VerificationResultID, sig.Group}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Check{
			ScopedVaultID:        sig.ScopedVaultID,
			Group:                sig.Group,
			VerificationResultID: sig.VerificationResultID,
			CreatedAt:            sig.CreatedAt,
		})
	}
	return out
}

// Grouped holds the current signals per group.
type Grouped map[Group][]Signal

// Without returns a copy that omits the listed groups.
func (g Grouped) Without(groups ...Group) Grouped {
	out := make(Grouped, len(g))
	for k, v := range g {
		out[k] = v
	}
	for _, k := range groups {
		delete(out, k)
	}
	return out
}

// Groups lists present groups in stable order.
func (g Grouped) Groups() []Group {
	out := make([]Group, 0, len(g))
	for k := range g {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Signals flattens the groups in stable order.
func (g Grouped) Signals() []Signal {
	var out []Signal
	for _, k := range g.Groups() {
		out = append(out, g[k]...)
	}
	return out
}

// ReasonCodes flattens the groups into their reason codes.
func (g Grouped) ReasonCodes() []ReasonCode {
	signals := g.Signals()
	out := make([]ReasonCode, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.ReasonCode)
	}
	return out
}

// IDs returns the ids of every signal in stable order.
func (g Grouped) IDs() []id.RiskSignalID {
	signals := g.Signals()
	out := make([]id.RiskSignalID, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.ID)
	}
	return out
}

// Store persists risk signals.
type Store interface {
	// Create stores signals and checks each result they reference.
	Create(ctx context.Context, signals []Signal) error
	// Record stores checks plus signals. Checks for results that produced
	// no signals are how a clean re-check clears a group.
	Record(ctx context.Context, checks []Check, signals []Signal) error
	// LatestByGroup returns, per group, the visible signals of the most
	// recent verification result checked for that group.
	LatestByGroup(ctx context.Context, vaultID id.ScopedVaultID) (Grouped, error)
	Hide(ctx context.Context, signalID id.RiskSignalID) error
}
