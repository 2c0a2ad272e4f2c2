package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionMatches(t *testing.T) {
	assert.True(t, PermissionMatches("*:*", "sales:create"))
	assert.True(t, PermissionMatches("sales:*", "sales:delete"))
	assert.True(t, PermissionMatches("sales:create", "sales:create"))
	assert.False(t, PermissionMatches("sales:create", "sales:delete"))
	assert.False(t, PermissionMatches("stock:*", "sales:create"))
	assert.False(t, PermissionMatches("broken", "sales:create"))
}

func TestIdentityCan(t *testing.T) {
	id := &Identity{Permissions: []string{"clients:*", "sales:view"}}

	assert.True(t, id.Can("clients:delete"))
	assert.True(t, id.Can("sales:view"))
	assert.False(t, id.Can("sales:create"))
}

func TestUserPublicDropsPassword(t *testing.T) {
	u := User{UserName: "amel", Password: "$2a$10$hash"}

	assert.Empty(t, u.Public().Password)
	assert.NotEmpty(t, u.Password)
}

func TestPermissionValidate(t *testing.T) {
	assert.NoError(t, (&Permission{PermissionName: " sales:create "}).Validate())
	assert.Error(t, (&Permission{PermissionName: "sales"}).Validate())
	assert.Error(t, (&Permission{}).Validate())
}

func TestRepairValidateDefaults(t *testing.T) {
	r := &Repair{
		Technician: [12]byte{1},
		Client:     [12]byte{2},
		RepairedArticles: []RepairedArticle{
			{Color: [12]byte{3}, TypeArticle: ArticleRing, BarCode: "123", Cost: NewAmount(40)},
			{Color: [12]byte{3}, TypeArticle: ArticleNecklace, BarCode: "124", Cost: NewAmount(60)},
		},
	}

	assert.NoError(t, r.Validate())
	assert.Equal(t, RepairPending, r.Status)
	assert.Equal(t, "100", r.Price.String())
}

func TestNewPurchase(t *testing.T) {
	a := &Article{Weight: 2.5, BuyPrice: NewAmount(120), TypeArticle: ArticleRing}

	p, err := NewPurchase(a, 4)
	assert.NoError(t, err)
	assert.Equal(t, "480", p.Total.String())
	assert.InDelta(t, 10.0, p.TotalWeight, 1e-9)

	_, err = NewPurchase(a, 0)
	assert.Error(t, err)
}

func TestRepairValidateNamesMissingFields(t *testing.T) {
	r := &Repair{
		Client:           [12]byte{2},
		RepairedArticles: []RepairedArticle{{Color: [12]byte{3}, TypeArticle: ArticleRing}},
	}

	err := r.Validate()
	require.Error(t, err)
	assert.Equal(t, "Invalid or missing fields: technicien, barCode", err.Error())

	r = &Repair{Technician: [12]byte{1}, Client: [12]byte{2}, Status: "Lost",
		RepairedArticles: []RepairedArticle{{Color: [12]byte{3}, TypeArticle: ArticleRing, BarCode: "1"}}}
	assert.Error(t, r.Validate())
}

func TestUserValidateRejectsBadEmail(t *testing.T) {
	u := &User{UserName: "amel", FirstName: "Amel", LastName: "B", Phone: "0550",
		Email: "not-an-email", Role: [12]byte{1}}

	err := u.Validate()
	require.Error(t, err)
	assert.Equal(t, "Invalid or missing fields: email", err.Error())

	u.Email = " Amel@Example.dz "
	assert.NoError(t, u.Validate())
	assert.Equal(t, "amel@example.dz", u.Email)
}
