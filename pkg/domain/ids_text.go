package domain

import "github.com/google/uuid"

// Identifiers encode as their canonical UUID string in JSON and YAML. An
// empty string decodes to the nil id.

func marshalID(u uuid.UUID) ([]byte, error) {
	return []byte(u.String()), nil
}

func unmarshalID(dst *uuid.UUID, text []byte) error {
	if len(text) == 0 {
		*dst = uuid.Nil
		return nil
	}
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

func (id TenantID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *TenantID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id WorkflowID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *WorkflowID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id ScopedVaultID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *ScopedVaultID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id PlaybookID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *PlaybookID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id DecisionIntentID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *DecisionIntentID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id IdentityDocumentID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *IdentityDocumentID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id SessionID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *SessionID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id VerificationRequestID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *VerificationRequestID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id VerificationResultID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *VerificationResultID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id RiskSignalID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *RiskSignalID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id RuleID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *RuleID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id RuleInstanceID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *RuleInstanceID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func (id RuleSetResultID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id *RuleSetResultID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
