package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RepairStatus string

const (
	RepairPending    RepairStatus = "Pending"
	RepairInProgress RepairStatus = "InProgress"
	RepairDone       RepairStatus = "Done"
	RepairDelivered  RepairStatus = "Delivered"
)

type RepairedArticle struct {
	Color       primitive.ObjectID `bson:"color" json:"color" validate:"required"`
	TypeArticle ArticleType        `bson:"typeArticle" json:"typeArticle" validate:"required"`
	Weight      float64            `bson:"weight" json:"weight" validate:"gte=0"`
	Cost        Amount             `bson:"cost" json:"cost" validate:"gte=0"`
	BarCode     string             `bson:"barCode" json:"barCode" validate:"required"`
}

// Repair is a job handed to a technician on behalf of a client.
type Repair struct {
	Base             `bson:",inline"`
	Status           RepairStatus       `bson:"status" json:"status" validate:"omitempty,oneof=Pending InProgress Done Delivered"`
	Technician       primitive.ObjectID `bson:"technicien" json:"technicien" validate:"required"`
	Client           primitive.ObjectID `bson:"client" json:"client" validate:"required"`
	RepairedArticles []RepairedArticle  `bson:"repairedArticles" json:"repairedArticles" validate:"required,min=1,dive"`
	Price            Amount             `bson:"price" json:"price" validate:"gte=0"`
}

func (r *Repair) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = RepairPending
	}
	// Without an explicit price the job costs the sum of its articles.
	if !r.Price.IsPositive() {
		r.Price = SumAmounts(r.RepairedArticles, func(a RepairedArticle) Amount { return a.Cost })
	}
	return nil
}
