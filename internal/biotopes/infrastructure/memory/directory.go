package memory

import (
	"context"
	"sync"

	biotopes "aquatracking/internal/biotopes/domain"
)

// Directory is an in-memory biotope repository and owner directory.
type Directory struct {
	mu       sync.RWMutex
	biotopes map[string]biotopes.Biotope
	emails   map[string]string
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		biotopes: make(map[string]biotopes.Biotope),
		emails:   make(map[string]string),
	}
}

// Put registers a biotope and the email of its owner.
func (d *Directory) Put(biotope biotopes.Biotope, ownerEmail string) {
	d.mu.Lock()
	d.biotopes[biotope.ID] = biotope
	if biotope.OwnerID != "" {
		d.emails[biotope.OwnerID] = ownerEmail
	}
	d.mu.Unlock()
}

// Get implements biotopes.Repository.
func (d *Directory) Get(_ context.Context, id string) (*biotopes.Biotope, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	biotope, ok := d.biotopes[id]
	if !ok {
		return nil, nil
	}
	return &biotope, nil
}

// GetBiotopeOwner implements biotopes.OwnerDirectory.
func (d *Directory) GetBiotopeOwner(_ context.Context, biotopeID string) (*biotopes.Owner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	biotope, ok := d.biotopes[biotopeID]
	if !ok {
		return nil, nil
	}
	email, ok := d.emails[biotope.OwnerID]
	if !ok {
		return nil, nil
	}
	return &biotopes.Owner{
		UserID:      biotope.OwnerID,
		Email:       email,
		BiotopeID:   biotope.ID,
		BiotopeName: biotope.Name,
		BiotopeKind: biotope.Kind,
	}, nil
}
