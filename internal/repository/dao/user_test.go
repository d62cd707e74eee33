package dao

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserDAO_InsertAndFind(t *testing.T) {
	resetTables(t)

	d := NewUserDAO(testDB)
	ctx := context.Background()

	created, err := d.Insert(ctx, User{
		Name:     "Ana",
		Email:    "ana@example.com",
		Phone:    "11988887777",
		Rg:       "12.345.678-9",
		Password: "hashed",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.NotNil(t, created.PurchasedTickets)

	byID, err := d.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", byID.Email)

	byEmail, err := d.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestUserDAO_InsertDuplicateEmail(t *testing.T) {
	resetTables(t)

	d := NewUserDAO(testDB)
	ctx := context.Background()

	_, err := d.Insert(ctx, User{Name: "Ana", Email: "ana@example.com", Phone: "1", Password: "x"})
	require.NoError(t, err)

	_, err = d.Insert(ctx, User{Name: "Other", Email: "ana@example.com", Phone: "2", Password: "y"})
	assert.ErrorIs(t, err, ErrUserEmailExists)
}

func TestUserDAO_FindMissing(t *testing.T) {
	resetTables(t)

	d := NewUserDAO(testDB)
	ctx := context.Background()

	_, err := d.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = d.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSeedTickets(t *testing.T) {
	resetTables(t)

	ctx := context.Background()
	require.NoError(t, SeedTickets(ctx, testDB, 25))

	d := NewTicketDAO(testDB)
	tickets, err := d.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 25)
	assert.Equal(t, "001", tickets[0].Number)
	assert.Equal(t, "025", tickets[24].Number)

	// Reseeding an already seeded inventory is a no-op.
	require.NoError(t, SeedTickets(ctx, testDB, 999))
	tickets, err = d.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, tickets, 25)
}

func TestSeedAdmin(t *testing.T) {
	resetTables(t)

	ctx := context.Background()
	admin := User{Name: "Admin", Email: "admin@example.com", Phone: "0", Password: "hashed"}

	require.NoError(t, SeedAdmin(ctx, testDB, admin))

	stored, err := NewUserDAO(testDB).FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)

	// Idempotent: a second seed does not duplicate or error.
	require.NoError(t, SeedAdmin(ctx, testDB, admin))

	all, err := NewUserDAO(testDB).FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
