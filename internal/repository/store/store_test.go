package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/repository/store"
	"fanpage-server/internal/repository/store/storetest"
)

func seedUser(t *testing.T, db *gorm.DB, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, (&store.UserRepository{DB: db}).Create(context.Background(), u))
	return u
}

func seedPost(t *testing.T, db *gorm.DB, author uint64, title, content string, approved bool) *model.Post {
	t.Helper()
	p := &model.Post{Title: title, Content: content, AuthorID: author, Category: model.CategoryFanBlog, IsApproved: approved}
	require.NoError(t, (&store.PostRepository{DB: db}).Create(context.Background(), p))
	return p
}

func TestToggleKeepsCounterEqualToSet(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	p := seedPost(t, db, u.ID, "t", "c", true)
	repo := &store.PostLikeRepository{DB: db}

	liked, likes, err := repo.Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, likes)

	liked, likes, err = repo.Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 0, likes)

	isLiked, err := repo.IsLiked(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, isLiked)
}

func TestToggleRepairsDriftedCounter(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	p := seedPost(t, db, u.ID, "t", "c", true)
	repo := &store.PostLikeRepository{DB: db}

	_, _, err := repo.Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)
	// 模拟历史脏数据
	require.NoError(t, db.Model(&model.Post{}).Where("id = ?", p.ID).UpdateColumn("like_count", 0).Error)

	_, likes, err := repo.Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, likes)
}

func TestToggleMissingPost(t *testing.T) {
	db := storetest.NewDB(t)
	_, _, err := (&store.PostLikeRepository{DB: db}).Toggle(context.Background(), 1, 42)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestConcurrentTogglesPreserveInvariant(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "author", model.RoleUser)
	p := seedPost(t, db, author.ID, "t", "c", true)
	repo := &store.PostLikeRepository{DB: db}

	var users []*model.User
	for _, name := range []string{"u1", "u2", "u3", "u4"} {
		users = append(users, seedUser(t, db, name, model.RoleUser))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		// 每个用户切换三次，最终都处于已点赞状态
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				_, _, err := repo.Toggle(ctx, id, p.ID)
				assert.NoError(t, err)
			}(u.ID)
		}
	}
	wg.Wait()

	count, err := repo.GetLikeCount(ctx, p.ID)
	require.NoError(t, err)
	var rows int64
	require.NoError(t, db.Model(&model.PostLike{}).Where("post_id = ?", p.ID).Count(&rows).Error)
	assert.Equal(t, rows, count)
	assert.EqualValues(t, 4, count)
}

func TestDeleteCascadeRemovesCommentsAndLikes(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	p := seedPost(t, db, u.ID, "t", "c", true)
	other := seedPost(t, db, u.ID, "t2", "c2", true)
	comments := &store.CommentRepository{DB: db}
	require.NoError(t, comments.Create(ctx, &model.Comment{Content: "a", AuthorID: u.ID, PostID: p.ID}))
	require.NoError(t, comments.Create(ctx, &model.Comment{Content: "b", AuthorID: u.ID, PostID: other.ID}))
	_, _, err := (&store.PostLikeRepository{DB: db}).Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)

	posts := &store.PostRepository{DB: db}
	require.NoError(t, posts.DeleteCascade(ctx, p.ID, u.ID))

	left, err := comments.ListByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	kept, err := comments.ListByPost(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	var likes int64
	require.NoError(t, db.Model(&model.PostLike{}).Where("post_id = ?", p.ID).Count(&likes).Error)
	assert.Zero(t, likes)

	assert.ErrorIs(t, posts.DeleteCascade(ctx, p.ID, u.ID), gorm.ErrRecordNotFound)
}

func TestListFiltersAndOrder(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	first := seedPost(t, db, u.ID, "first", "c", true)
	time.Sleep(10 * time.Millisecond)
	second := seedPost(t, db, u.ID, "second", "c", true)
	seedPost(t, db, u.ID, "hidden", "c", false)

	posts := &store.PostRepository{DB: db}
	list, err := posts.List(ctx, store.PostFilter{OnlyApproved: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	require.NotNil(t, list[0].Author)
	assert.Equal(t, "alice", list[0].Author.Username)
	assert.Equal(t, model.RoleUser, list[0].Author.Role)
	assert.NotNil(t, list[0].LikedBy)

	all, err := posts.List(ctx, store.PostFilter{AuthorID: u.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearchRanksByRelevance(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	weak := seedPost(t, db, u.ID, "Salah scores", "a quiet win", true)
	strong := seedPost(t, db, u.ID, "Salah transfer rumour", "Salah linked with a transfer", true)
	seedPost(t, db, u.ID, "Salah transfer hidden", "transfer talk", false)
	seedPost(t, db, u.ID, "unrelated", "nothing", true)

	posts := &store.PostRepository{DB: db}
	list, err := posts.Search(ctx, "salah transfer", true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, strong.ID, list[0].ID)
	assert.Equal(t, weak.ID, list[1].ID)

	all, err := posts.Search(ctx, "salah transfer", false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	fit := seedPost(t, db, u.ID, "Keeper 100% fit", "back in training", true)
	seedPost(t, db, u.ID, "Matchday", "lineup news", true)

	posts := &store.PostRepository{DB: db}
	list, err := posts.Search(ctx, "%", true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fit.ID, list[0].ID)

	list, err = posts.Search(ctx, "_", true)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = posts.Search(ctx, `\`, true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOutboxLifecycle(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	seedPost(t, db, u.ID, "t", "c", true)

	outbox := &store.OutboxRepository{DB: db}
	rows, err := outbox.ListPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.EventPostCreated, rows[0].EventType)

	require.NoError(t, outbox.MarkFailed(ctx, rows[0].ID))
	rows, err = outbox.ListPending(ctx, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, rows, "retry budget exhausted")

	rows, err = outbox.ListPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, outbox.MarkSent(ctx, rows[0].ID))
	rows, err = outbox.ListPending(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReconcilerRepo(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "alice", model.RoleUser)
	p := seedPost(t, db, u.ID, "t", "c", true)
	_, _, err := (&store.PostLikeRepository{DB: db}).Toggle(ctx, u.ID, p.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.Post{}).Where("id = ?", p.ID).UpdateColumn("like_count", 7).Error)

	repo := &store.LikeCountReconcilerRepo{DB: db}
	list, last, err := repo.ReconcileList(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, last)
	assert.EqualValues(t, 7, list[0].LikeCount)

	actual, err := repo.RealLikes(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, actual)
	require.NoError(t, repo.Recount(ctx, p.ID))

	count, err := (&store.PostLikeRepository{DB: db}).GetLikeCount(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
