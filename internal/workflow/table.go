package workflow

import (
	"fmt"
	"slices"

	dErrors "idv/pkg/domain-errors"
)

type edge struct {
	from   State
	action ActionKind
}

// transitions maps (state, action) to the states the body may choose.
// Anything absent is an invalid transition. Complete states have no edges.
// Kyc decisioning may return to doc collection for a step-up.
var transitions = map[Kind]map[edge][]State{
	KindKyc: {
		{KycDataCollection, ActionAuthorize}:    {KycDocCollection, KycVendorCalls, KycDecisioning},
		{KycDocCollection, ActionDocCollected}:  {KycVendorCalls},
		{KycVendorCalls, ActionMakeVendorCalls}: {KycDecisioning},
		{KycDecisioning, ActionMakeDecision}:    {KycComplete, KycDocCollection},
	},
	KindKyb: {
		{KybDataCollection, ActionAuthorize}:     {KybAwaitingBoKyc},
		{KybAwaitingBoKyc, ActionBoKycCompleted}: {KybVendorCalls},
		{KybVendorCalls, ActionMakeVendorCalls}:  {KybDecisioning},
		{KybDecisioning, ActionMakeDecision}:     {KybComplete},
	},
	KindDocument: {
		{DocumentDataCollection, ActionDocCollected}: {DocumentDecisioning},
		{DocumentDecisioning, ActionMakeDecision}:    {DocumentComplete},
	},
}

// Allowed returns the states a legal action may lead to.
func Allowed(kind Kind, from State, action ActionKind) ([]State, error) {
	table, ok := transitions[kind]
	if !ok {
		return nil, errUnknownKind(kind)
	}
	next, ok := table[edge{from, action}]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "%s is not allowed in %s", action, from)
	}
	return next, nil
}

func checkTarget(allowed []State, from, to State, action ActionKind) error {
	if !slices.Contains(allowed, to) {
		return dErrors.Newf(dErrors.CodeAssertion, "%s from %s chose %s, expected one of %v", action, from, to, allowed)
	}
	return nil
}

func errUnknownKind(kind Kind) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown workflow kind %q", kind))
}
