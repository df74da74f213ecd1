package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProduct() Product {
	return Product{
		Seller:          "sam",
		Name:            "Cola",
		Description:     "Cold soda can",
		Cost:            15,
		AmountAvailable: 10,
	}
}

func TestProductValidate(t *testing.T) {
	assert.NoError(t, validProduct().Validate())

	tests := []struct {
		name   string
		mutate func(p *Product)
	}{
		{"short name", func(p *Product) { p.Name = "C" }},
		{"long name", func(p *Product) { p.Name = strings.Repeat("x", 51) }},
		{"short description", func(p *Product) { p.Description = "cold" }},
		{"long description", func(p *Product) { p.Description = strings.Repeat("x", 101) }},
		{"free", func(p *Product) { p.Cost = 0 }},
		{"negative cost", func(p *Product) { p.Cost = -5 }},
		{"odd cost", func(p *Product) { p.Cost = 12 }},
		{"too many slots", func(p *Product) { p.AmountAvailable = 11 }},
		{"negative stock", func(p *Product) { p.AmountAvailable = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidProduct)
		})
	}
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("ab"))
	assert.True(t, ValidUsername("abcd"))
	assert.False(t, ValidUsername("a"))
	assert.False(t, ValidUsername("abcde"))
}

func TestRole(t *testing.T) {
	r, err := ParseRole(" Seller ")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, r)
	assert.True(t, r.CanSell())
	assert.True(t, r.CanPurchase())

	_, err = ParseRole("root")
	assert.ErrorIs(t, err, ErrInvalidRole)

	assert.False(t, RoleAdmin.CanPurchase())
	assert.False(t, RoleBuyer.CanSell())
	assert.False(t, Role(0).CanPurchase())

	assert.True(t, RoleAdmin.CanAdminister())
	assert.False(t, RoleSeller.CanAdminister())
	assert.False(t, RoleBuyer.CanAdminister())
	assert.False(t, Role(0).CanAdminister())
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(User{Username: "bob", Role: RoleBuyer, Deposit: 20})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"buyer"`)

	var u User
	require.NoError(t, json.Unmarshal(data, &u))
	assert.Equal(t, RoleBuyer, u.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"janitor"}`), &u))
}
