package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

type SupplierDetail struct {
	Supplier  *models.Supplier  `json:"supplier"`
	Purchases []models.Purchase `json:"purchases"`
}

type SupplierService struct {
	suppliers repository.Store[models.Supplier]
	purchases repository.Store[models.Purchase]
}

func NewSupplierService(suppliers repository.Store[models.Supplier], purchases repository.Store[models.Purchase]) *SupplierService {
	return &SupplierService{suppliers: suppliers, purchases: purchases}
}

// Detail returns a supplier with its purchase history. totalPayment is
// recomputed from the purchases and stored when it has drifted.
func (s *SupplierService) Detail(ctx context.Context, id primitive.ObjectID) (*SupplierDetail, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	purchases, err := s.purchases.Find(ctx, bson.M{"supplier": id})
	if err != nil {
		return nil, err
	}

	total := models.SumAmounts(purchases, func(p models.Purchase) models.Amount { return p.Total })
	if !total.Equal(supplier.TotalPayment) {
		supplier.TotalPayment = total
		if err := s.suppliers.Replace(ctx, supplier); err != nil {
			return nil, err
		}
	}
	return &SupplierDetail{Supplier: supplier, Purchases: purchases}, nil
}
