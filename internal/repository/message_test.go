package repository

import (
	"context"
	"testing"
	"time"

	"liaison/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectCoordinator{},
		&models.Message{},
		&models.Attachment{},
		&models.Reaction{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hashed",
		Role:     role,
		Active:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestMessageRepository_ThreadsAreDisjoint(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	coordinator := createUser(t, db, "coordinator", models.RoleCoordinator)
	client := createUser(t, db, "client", models.RoleClient)

	project := &models.Project{Name: "Website", ClientID: client.ID}
	require.NoError(t, db.Create(project).Error)

	direct := &models.Message{SenderID: coordinator.ID, RecipientID: client.ID, Content: "direct hello"}
	require.NoError(t, repo.Create(ctx, direct))

	scoped := &models.Message{SenderID: coordinator.ID, RecipientID: client.ID, ProjectID: &project.ID, Content: "project hello"}
	require.NoError(t, repo.Create(ctx, scoped))

	t.Run("Direct thread excludes project messages", func(t *testing.T) {
		messages, total, err := repo.ListBetween(ctx, MessageQuery{
			UserID: client.ID, OtherID: coordinator.ID, Limit: 50,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, messages, 1)
		assert.Equal(t, "direct hello", messages[0].Content)
	})

	t.Run("Project thread excludes direct messages", func(t *testing.T) {
		messages, total, err := repo.ListBetween(ctx, MessageQuery{
			UserID: client.ID, OtherID: coordinator.ID, ProjectID: &project.ID, Limit: 50,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, messages, 1)
		assert.Equal(t, "project hello", messages[0].Content)
	})
}

func TestMessageRepository_ListBetween_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice", models.RoleAdmin)
	bob := createUser(t, db, "bob", models.RoleCoordinator)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			SenderID:    alice.ID,
			RecipientID: bob.ID,
			Content:     string(rune('a' + i)),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, msg))
	}

	t.Run("First page holds the latest messages in chronological order", func(t *testing.T) {
		messages, total, err := repo.ListBetween(ctx, MessageQuery{
			UserID: bob.ID, OtherID: alice.ID, Limit: 2,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, messages, 2)
		assert.Equal(t, "d", messages[0].Content)
		assert.Equal(t, "e", messages[1].Content)
	})

	t.Run("Second page goes further back", func(t *testing.T) {
		messages, _, err := repo.ListBetween(ctx, MessageQuery{
			UserID: bob.ID, OtherID: alice.ID, Limit: 2, Offset: 2,
		})
		assert.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "b", messages[0].Content)
		assert.Equal(t, "c", messages[1].Content)
	})

	t.Run("Both directions appear in one thread", func(t *testing.T) {
		reply := &models.Message{SenderID: bob.ID, RecipientID: alice.ID, Content: "reply"}
		require.NoError(t, repo.Create(ctx, reply))

		_, total, err := repo.ListBetween(ctx, MessageQuery{
			UserID: alice.ID, OtherID: bob.ID, Limit: 50,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(6), total)
	})
}

func TestMessageRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	coordinator := createUser(t, db, "coordinator", models.RoleCoordinator)
	client := createUser(t, db, "client", models.RoleClient)

	project := &models.Project{Name: "Launch", ClientID: client.ID}
	require.NoError(t, db.Create(project).Error)

	// Unread traffic in both the direct and the project thread
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: coordinator.ID, RecipientID: client.ID, Content: "direct"}))
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: coordinator.ID, RecipientID: client.ID, ProjectID: &project.ID, Content: "scoped"}))
	// Traffic the other way must stay untouched
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: client.ID, RecipientID: coordinator.ID, Content: "outbound"}))

	rows, err := repo.MarkRead(ctx, client.ID, coordinator.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), rows, "read receipt should span direct and project threads")

	var unreadOutbound int64
	db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", coordinator.ID, false).
		Count(&unreadOutbound)
	assert.Equal(t, int64(1), unreadOutbound, "counterpart's own unread messages stay unread")

	t.Run("Idempotent", func(t *testing.T) {
		rows, err := repo.MarkRead(ctx, client.ID, coordinator.ID)
		assert.NoError(t, err)
		assert.Zero(t, rows)
	})

	t.Run("ReadAt is stamped", func(t *testing.T) {
		var msg models.Message
		require.NoError(t, db.Where("content = ?", "direct").First(&msg).Error)
		assert.True(t, msg.IsRead)
		assert.NotNil(t, msg.ReadAt)
	})
}

func TestMessageRepository_Reactions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice", models.RoleAdmin)
	bob := createUser(t, db, "bob", models.RoleClient)

	msg := &models.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "hello"}
	require.NoError(t, repo.Create(ctx, msg))

	require.NoError(t, repo.AddReaction(ctx, &models.Reaction{MessageID: msg.ID, UserID: bob.ID, Emoji: "👍"}))

	t.Run("Duplicate reaction is a no-op", func(t *testing.T) {
		err := repo.AddReaction(ctx, &models.Reaction{MessageID: msg.ID, UserID: bob.ID, Emoji: "👍"})
		assert.NoError(t, err)

		fetched, err := repo.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		assert.Len(t, fetched.Reactions, 1)
	})

	t.Run("Remove reaction", func(t *testing.T) {
		require.NoError(t, repo.RemoveReaction(ctx, msg.ID, bob.ID, "👍"))

		fetched, err := repo.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		assert.Empty(t, fetched.Reactions)
	})
}

func TestMessageRepository_EditAndSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice", models.RoleAdmin)
	bob := createUser(t, db, "bob", models.RoleClient)

	msg := &models.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "tpyo"}
	require.NoError(t, repo.Create(ctx, msg))

	require.NoError(t, repo.Edit(ctx, msg.ID, "typo"))

	edited, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "typo", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	require.NoError(t, repo.SoftDelete(ctx, msg.ID))

	_, err = repo.GetByID(ctx, msg.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The row survives in the log; only listings stop seeing it
	var count int64
	db.Unscoped().Model(&models.Message{}).Where("id = ?", msg.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMessageRepository_ListForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice", models.RoleAdmin)
	bob := createUser(t, db, "bob", models.RoleCoordinator)
	carol := createUser(t, db, "carol", models.RoleClient)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: alice.ID, RecipientID: bob.ID, Content: "first", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: carol.ID, RecipientID: alice.ID, Content: "second", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.Message{
		SenderID: bob.ID, RecipientID: carol.ID, Content: "not alice's", CreatedAt: base.Add(2 * time.Minute)}))

	messages, err := repo.ListForUser(ctx, alice.ID)
	assert.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Content, "newest first")
	assert.Equal(t, "first", messages[1].Content)
}
