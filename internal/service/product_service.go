package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ProductService holds the catalog rules: products, variants and their stock.
type ProductService struct {
	repo      repository.ProductRepository
	variants  repository.VariantRepository
	movements repository.MovementRepository
	tx        repository.TxManager
	log       log.FieldLogger
}

func NewProductService(repo repository.ProductRepository, variants repository.VariantRepository,
	movements repository.MovementRepository, tx repository.TxManager, logger log.FieldLogger) *ProductService {
	return &ProductService{repo: repo, variants: variants, movements: movements, tx: tx, log: logger}
}

func invalid(msg string) error { return errors.Wrap(domain.ErrInvalidInput, msg) }

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name is required")
	}
	if p.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	if p.Stock < 0 {
		return invalid("stock must not be negative")
	}
	return nil
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	cp := p
	cp.ID = uuid.Nil
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, &cp); err != nil {
			return err
		}
		if cp.Stock == 0 {
			return nil
		}
		return s.movements.AppendMovement(ctx, &domain.StockMovement{
			ProductID: cp.ID, Delta: cp.Stock, Before: 0, After: cp.Stock, Reason: domain.MovementManualAdjust,
		})
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, invalid("product id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Update changes the descriptive fields. Stock is kept; use SetStock or the
// variant operations to change it.
func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == uuid.Nil {
		return nil, invalid("product id is required")
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	cp := p
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// the row lock keeps a concurrent confirmation from being overwritten
		locked, err := s.repo.LockForUpdate(ctx, []uuid.UUID{p.ID})
		if err != nil {
			return err
		}
		cp.Stock = locked[0].Stock
		return s.repo.Update(ctx, &cp)
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return invalid("product id is required")
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.repo.List(ctx, f)
}

// SetStock is the administrative stock edit of a product without variants.
func (s *ProductService) SetStock(ctx context.Context, id uuid.UUID, stock int64) (*domain.Product, error) {
	if stock < 0 {
		return nil, invalid("stock must not be negative")
	}
	var updated *domain.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockForUpdate(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		variants, err := s.variants.ListVariants(ctx, id)
		if err != nil {
			return err
		}
		if len(variants) > 0 {
			return invalid("stock of a product with variants is the sum of its variants")
		}
		p := locked[0]
		if err := s.applyStock(ctx, &p, stock, domain.MovementManualAdjust); err != nil {
			return err
		}
		updated = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyStock writes the new aggregate stock and records the movement.
func (s *ProductService) applyStock(ctx context.Context, p *domain.Product, stock int64, reason string) error {
	before := p.Stock
	if before == stock {
		return nil
	}
	p.Stock = stock
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{"product_id": p.ID, "before": before, "after": stock, "reason": reason}).Info("stock changed")
	return s.movements.AppendMovement(ctx, &domain.StockMovement{
		ProductID: p.ID, Delta: stock - before, Before: before, After: stock, Reason: reason,
	})
}

func validateVariant(v domain.Variant) error {
	if strings.TrimSpace(v.Code) == "" {
		return invalid("variant code is required")
	}
	if v.Stock < 0 {
		return invalid("stock must not be negative")
	}
	if v.Price != nil && v.Price.IsNegative() {
		return invalid("price must not be negative")
	}
	return nil
}

func (s *ProductService) CreateVariant(ctx context.Context, v domain.Variant) (*domain.Variant, error) {
	if err := validateVariant(v); err != nil {
		return nil, err
	}
	cp := v
	cp.ID = uuid.Nil
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, v.ProductID); err != nil {
			return err
		}
		existing, err := s.variants.ListVariants(ctx, v.ProductID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if strings.EqualFold(e.Code, v.Code) {
				return invalid("variant code already exists")
			}
		}
		if err := s.variants.CreateVariant(ctx, &cp); err != nil {
			return err
		}
		return s.syncAggregate(ctx, v.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// UpdateVariant replaces code, stock, price override and active flag.
func (s *ProductService) UpdateVariant(ctx context.Context, v domain.Variant) (*domain.Variant, error) {
	if v.ID == uuid.Nil {
		return nil, invalid("variant id is required")
	}
	if err := validateVariant(v); err != nil {
		return nil, err
	}
	cp := v
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.variants.GetVariant(ctx, v.ID)
		if err != nil {
			return err
		}
		cp.ProductID = current.ProductID
		if err := s.variants.UpdateVariant(ctx, &cp); err != nil {
			return err
		}
		return s.syncAggregate(ctx, current.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.variants.ListVariants(ctx, productID)
}

// syncAggregate sets the product stock to the sum of its active variants.
func (s *ProductService) syncAggregate(ctx context.Context, productID uuid.UUID) error {
	locked, err := s.repo.LockForUpdate(ctx, []uuid.UUID{productID})
	if err != nil {
		return err
	}
	variants, err := s.variants.ListVariants(ctx, productID)
	if err != nil {
		return err
	}
	var total int64
	for _, v := range variants {
		if v.Active {
			total += v.Stock
		}
	}
	p := locked[0]
	return s.applyStock(ctx, &p, total, domain.MovementVariantSync)
}

func (s *ProductService) ListMovements(ctx context.Context, productID uuid.UUID) ([]domain.StockMovement, error) {
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.movements.ListMovements(ctx, productID)
}
