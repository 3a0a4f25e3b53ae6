package biotopes

import (
	"context"
	"time"
)

// Kind distinguishes aquariums from terrariums.
type Kind string

const (
	KindAquarium  Kind = "aquarium"
	KindTerrarium Kind = "terrarium"
)

// Label returns the display word for the kind.
func (k Kind) Label() string {
	switch k {
	case KindAquarium:
		return "aquarium"
	case KindTerrarium:
		return "terrarium"
	default:
		return "biotope"
	}
}

// Biotope is an aquarium or terrarium owned by a user.
type Biotope struct {
	ID        string
	OwnerID   string
	Name      string
	Kind      Kind
	CreatedAt time.Time
}

// Owner identifies who receives alerts for a biotope.
type Owner struct {
	UserID      string
	Email       string
	BiotopeID   string
	BiotopeName string
	BiotopeKind Kind
}

// Repository loads biotopes.
type Repository interface {
	// Get returns nil when the biotope does not exist.
	Get(ctx context.Context, id string) (*Biotope, error)
}

// OwnerDirectory resolves the owner of a biotope.
type OwnerDirectory interface {
	// GetBiotopeOwner returns nil when the biotope or its owner does not exist.
	GetBiotopeOwner(ctx context.Context, biotopeID string) (*Owner, error)
}
