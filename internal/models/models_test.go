package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecomputeTotal(t *testing.T) {
	cart := &Cart{
		Items: []CartItem{
			{ProductID: 1, Quantity: 2, UnitPrice: 12.50},
			{ProductID: 2, Quantity: 1, UnitPrice: 5},
		},
	}
	cart.RecomputeTotal()
	assert.InDelta(t, 30.0, cart.Total, 1e-9)

	cart.Items = nil
	cart.RecomputeTotal()
	assert.Zero(t, cart.Total)
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	for _, s := range []string{"", "shipped", "Pending", "PENDING"} {
		assert.False(t, ValidOrderStatus(s), s)
	}
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleAdmin.Can(CapabilityManageCatalog))
	assert.False(t, RoleUser.Can(CapabilityManageCatalog))
	assert.False(t, Role("intruder").Can(CapabilityManageCatalog))
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, NormalizeRole("admin"))
	assert.Equal(t, RoleUser, NormalizeRole("user"))
	assert.Equal(t, RoleUser, NormalizeRole(""))
	assert.Equal(t, RoleUser, NormalizeRole("Admin"))
	assert.Equal(t, RoleUser, NormalizeRole("superuser"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.co"))
	assert.True(t, ValidEmail("first.last@sub.example.com"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("plainaddress"))
	assert.False(t, ValidEmail("missing@tld"))
	assert.False(t, ValidEmail("spaces in@example.com"))
}
