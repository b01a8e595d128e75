package receiving

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline-wms/stockline/internal/inventory"
)

// PackageStore abstracts package persistence for the service.
type PackageStore interface {
	InsertPackage(ctx context.Context, pkg Package) error
	GetPackage(ctx context.Context, id string) (Package, error)
	ListPackages(ctx context.Context, limit, offset int) ([]Package, error)
}

// Engine is the slice of the inventory service receiving needs.
type Engine interface {
	ReceiveBatch(ctx context.Context, input inventory.ReceiveBatchInput) (inventory.Batch, []inventory.Unit, error)
}

// Service turns accepted packages into inventory batches.
type Service struct {
	store  PackageStore
	engine Engine
}

// NewService builds Service.
func NewService(store PackageStore, engine Engine) *Service {
	return &Service{store: store, engine: engine}
}

// ReceiveInput describes one package at the dock.
type ReceiveInput struct {
	Reference      string
	Carrier        string
	TrackingNumber string
	SKU            string
	ProductName    string
	Quantity       int
	Serials        []string
	UnitValue      decimal.Decimal
	ReceivedBy     string
}

// Receive records the package and opens its batch. The batch and its units are
// created together inside the engine's transaction; the package row itself is
// provenance and carries no counters.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Package, inventory.Batch, []inventory.Unit, error) {
	if input.Quantity <= 0 {
		return Package{}, inventory.Batch{}, nil, errors.New("receiving: quantity must be positive")
	}
	pkg := Package{
		ID:             uuid.NewString(),
		Reference:      input.Reference,
		Carrier:        input.Carrier,
		TrackingNumber: input.TrackingNumber,
		Quantity:       input.Quantity,
		ReceivedBy:     input.ReceivedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertPackage(ctx, pkg); err != nil {
		return Package{}, inventory.Batch{}, nil, err
	}
	batch, units, err := s.engine.ReceiveBatch(ctx, inventory.ReceiveBatchInput{
		SKU:             input.SKU,
		ProductName:     input.ProductName,
		Quantity:        input.Quantity,
		Serials:         input.Serials,
		UnitValue:       input.UnitValue,
		Source:          inventory.SourceNewArrival,
		SourceReference: pkg.ID,
		ReceivedBy:      input.ReceivedBy,
	})
	if err != nil {
		return Package{}, inventory.Batch{}, nil, err
	}
	return pkg, batch, units, nil
}

// GetPackage loads one package.
func (s *Service) GetPackage(ctx context.Context, id string) (Package, error) {
	return s.store.GetPackage(ctx, id)
}

// ListPackages lists packages newest first.
func (s *Service) ListPackages(ctx context.Context, limit, offset int) ([]Package, error) {
	return s.store.ListPackages(ctx, limit, offset)
}
