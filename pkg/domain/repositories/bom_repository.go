package repositories

import (
	"context"
	"time"

	"github.com/vsinha/bom/pkg/domain/entities"
)

// BomRepository provides the components and time-effective BOM items a graph is built from.
//
// Implementations resolve the active BOM header and substitute groups before returning
// items, so every call yields exactly one candidate edge set per parent. The repository
// must present a stable snapshot for the duration of one graph build.
type BomRepository interface {
	// GetComponent returns the component or an error wrapping entities.ErrComponentNotFound
	GetComponent(ctx context.Context, id entities.ComponentID) (*entities.Component, error)

	// GetBomItems returns the items under parentID effective at asOf; nil asOf disables the date filter
	GetBomItems(ctx context.Context, parentID entities.ComponentID, asOf *time.Time) ([]entities.BomItem, error)
}

// CatalogRepository is a BomRepository that can also enumerate every component it holds
type CatalogRepository interface {
	BomRepository
	ListComponentIDs(ctx context.Context) ([]entities.ComponentID, error)
}
