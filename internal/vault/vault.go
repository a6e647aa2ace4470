// Package vault is the boundary to PII storage. Encryption lives behind the
// interface; the decisioning core only sees plaintext for the identifiers it
// asks for.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// DataIdentifier names one piece of vaulted data.
type DataIdentifier string

const (
	IDFirstName    DataIdentifier = "id.first_name"
	IDLastName     DataIdentifier = "id.last_name"
	IDDob          DataIdentifier = "id.dob"
	IDSsn9         DataIdentifier = "id.ssn9"
	IDAddressLine1 DataIdentifier = "id.address_line1"
	IDZip          DataIdentifier = "id.zip"
	IDCountry      DataIdentifier = "id.country"
	IDPhoneNumber  DataIdentifier = "id.phone_number"
	IDEmail        DataIdentifier = "id.email"

	BusinessName DataIdentifier = "business.name"
	BusinessTin  DataIdentifier = "business.tin"

	// Sandbox identifiers steer the fixture vendor in sandbox runs.
	SandboxOutcome DataIdentifier = "sandbox.outcome"
	SandboxCodes   DataIdentifier = "sandbox.codes"
)

// Locator addresses an opaque blob such as a document image.
type Locator string

// Vault decrypts structured data and stores blobs.
type Vault interface {
	// Decrypt returns the requested identifiers that are present. Missing
	// identifiers are omitted rather than reported as errors.
	Decrypt(ctx context.Context, vaultID id.ScopedVaultID, ids []DataIdentifier) (map[DataIdentifier]string, error)
	Store(ctx context.Context, vaultID id.ScopedVaultID, data []byte) (Locator, error)
	Load(ctx context.Context, locator Locator) ([]byte, error)
}

// InMemory is a plaintext vault for local runs and tests.
type InMemory struct {
	mu    sync.RWMutex
	data  map[id.ScopedVaultID]map[DataIdentifier]string
	blobs map[Locator][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{
		data:  make(map[id.ScopedVaultID]map[DataIdentifier]string),
		blobs: make(map[Locator][]byte),
	}
}

// Put sets vault data for vaultID.
func (v *InMemory) Put(vaultID id.ScopedVaultID, values map[DataIdentifier]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data[vaultID] == nil {
		v.data[vaultID] = make(map[DataIdentifier]string, len(values))
	}
	for k, val := range values {
		v.data[vaultID][k] = val
	}
}

func (v *InMemory) Decrypt(_ context.Context, vaultID id.ScopedVaultID, ids []DataIdentifier) (map[DataIdentifier]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[DataIdentifier]string, len(ids))
	for _, di := range ids {
		if val, ok := v.data[vaultID][di]; ok {
			out[di] = val
		}
	}
	return out, nil
}

func (v *InMemory) Store(_ context.Context, vaultID id.ScopedVaultID, data []byte) (Locator, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	loc := Locator(fmt.Sprintf("mem://%s/%s", vaultID, uuid.NewString()))
	v.blobs[loc] = append([]byte(nil), data...)
	return loc, nil
}

func (v *InMemory) Load(_ context.Context, locator Locator) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	b, ok := v.blobs[locator]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", locator, sentinel.ErrNotFound)
	}
	return b, nil
}
