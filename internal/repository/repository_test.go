package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/testutil"
	apperrors "realtime-chat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	repo := NewGormMessageRepository(db)

	msg, err := repo.Append(context.Background(), alice.ID, "  hello  ")
	require.NoError(t, err)

	assert.NotZero(t, msg.ID)
	assert.Equal(t, alice.ID, msg.UserID)
	assert.Equal(t, "hello", msg.Body)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestAppendRejectsInvalidBodies(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	repo := NewGormMessageRepository(db)

	for _, body := range []string{"", "   ", strings.Repeat("x", models.MaxMessageLength+1)} {
		_, err := repo.Append(context.Background(), alice.ID, body)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	}

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAppendUnknownUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGormMessageRepository(db)

	_, err := repo.Append(context.Background(), 999, "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestConcurrentAppendsGetDistinctIncreasingIDs(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	repo := NewGormMessageRepository(db)

	const writers = 20
	ids := make([]uint, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := repo.Append(context.Background(), alice.ID, "concurrent")
			if assert.NoError(t, err) {
				ids[i] = msg.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint]bool, writers)
	for _, id := range ids {
		require.NotZero(t, id)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	recent, err := repo.Recent(context.Background(), writers)
	require.NoError(t, err)
	require.Len(t, recent, writers)
	assert.True(t, sort.SliceIsSorted(recent, func(i, j int) bool { return recent[i].ID < recent[j].ID }))
}

func TestRecentReturnsNewestWindowOldestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	repo := NewGormMessageRepository(db)

	for _, body := range []string{"one", "two", "three", "four"} {
		_, err := repo.Append(context.Background(), alice.ID, body)
		require.NoError(t, err)
	}

	recent, err := repo.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[0].Body)
	assert.Equal(t, "three", recent[1].Body)
	assert.Equal(t, "four", recent[2].Body)

	all, err := repo.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRecentEmptyStore(t *testing.T) {
	repo := NewGormMessageRepository(testutil.NewDB(t))

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	user := &models.User{Name: "Alice", Email: "Alice@Example.com ", Password: "secret123"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, "secret123", user.Password, "password is hashed")

	found, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.True(t, models.CheckPasswordHash("secret123", found.Password))

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.FindByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)

	dup := &models.User{Name: "Other", Email: "alice@example.com", Password: "secret123"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrEmailTaken)
}

func TestDisplayNames(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	repo := NewGormUserRepository(db)

	names, err := repo.DisplayNames(context.Background(), []uint{alice.ID, bob.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{alice.ID: "alice", bob.ID: "bob"}, names)

	names, err = repo.DisplayNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
}
