package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
)

type PostRepository struct {
	DB *gorm.DB
}

// PostFilter 零值字段不参与过滤
type PostFilter struct {
	Category     model.Category
	AuthorID     uint64
	OnlyApproved bool
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "username", "role")
	})
}

// Create 写帖子并记录 outbox
func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(post).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventPostCreated, post.ID, post.AuthorID, map[string]any{
			"category":    post.Category,
			"is_approved": post.IsApproved,
		})
	})
}

// FindByID 不带作者投影，用于权限判断
func (r *PostRepository) FindByID(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := r.DB.WithContext(ctx).First(&post, id).Error
	return &post, err
}

// FindDetail 带作者投影和点赞集合
func (r *PostRepository) FindDetail(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	if err := withAuthor(r.DB.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, err
	}
	list := []model.Post{post}
	if err := r.attachLikers(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// List 按创建时间倒序
func (r *PostRepository) List(ctx context.Context, f PostFilter) ([]model.Post, error) {
	q := withAuthor(r.DB.WithContext(ctx)).Model(&model.Post{})
	if f.OnlyApproved {
		q = q.Where("is_approved = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.AuthorID != 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	var list []model.Post
	if err := q.Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, r.attachLikers(ctx, list)
}

// ListPending 审核队列，先到先审
func (r *PostRepository) ListPending(ctx context.Context) ([]model.Post, error) {
	var list []model.Post
	if err := withAuthor(r.DB.WithContext(ctx)).
		Where("is_approved = ?", false).
		Order("created_at ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, r.attachLikers(ctx, list)
}

// Update fields 的 key 为列名
func (r *PostRepository) Update(ctx context.Context, postID, actorID uint64, fields map[string]any) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Post{}).Where("id = ?", postID).Updates(fields).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventPostUpdated, postID, actorID, fields)
	})
}

// DeleteCascade 在一个事务里删除帖子、评论和点赞记录
func (r *PostRepository) DeleteCascade(ctx context.Context, postID, actorID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Post{}, postID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.PostLike{}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventPostDeleted, postID, actorID, nil)
	})
}

// Search 全文检索，按相关度倒序
func (r *PostRepository) Search(ctx context.Context, q string, onlyApproved bool) ([]model.Post, error) {
	db := withAuthor(r.DB.WithContext(ctx)).Model(&model.Post{})

	switch r.DB.Dialector.Name() {
	case "mysql":
		match := "MATCH(title, content) AGAINST (? IN NATURAL LANGUAGE MODE)"
		db = db.Select("posts.*, "+match+" AS score", q).Where(match, q)
	case "postgres":
		doc := "to_tsvector('english', title || ' ' || content)"
		query := "plainto_tsquery('english', ?)"
		db = db.Select("posts.*, ts_rank("+doc+", "+query+") AS score", q).Where(doc+" @@ "+query, q)
	default:
		terms := strings.Fields(strings.ToLower(q))
		if len(terms) == 0 {
			return nil, nil
		}
		score, cond, scoreArgs, condArgs := likeScore(terms)
		db = db.Select("posts.*, ("+score+") AS score", scoreArgs...).Where(cond, condArgs...)
	}
	if onlyApproved {
		db = db.Where("is_approved = ?", true)
	}

	var list []model.Post
	if err := db.Order("score DESC").Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, r.attachLikers(ctx, list)
}

// likeEscaper 用户输入里的通配符按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeScore 没有全文索引的方言下，每命中一个 (词, 字段) 计一分
func likeScore(terms []string) (score, cond string, scoreArgs, condArgs []any) {
	scores := make([]string, 0, len(terms)*2)
	conds := make([]string, 0, len(terms)*2)
	for _, term := range terms {
		pattern := fmt.Sprintf("%%%s%%", likeEscaper.Replace(term))
		for _, col := range []string{"title", "content"} {
			scores = append(scores, "CASE WHEN LOWER("+col+`) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END`)
			conds = append(conds, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
			scoreArgs = append(scoreArgs, pattern)
			condArgs = append(condArgs, pattern)
		}
	}
	return strings.Join(scores, " + "), "(" + strings.Join(conds, " OR ") + ")", scoreArgs, condArgs
}

// attachLikers 一次查询回填 likedBy
func (r *PostRepository) attachLikers(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
		posts[i].LikedBy = []uint64{}
	}
	var rows []model.PostLike
	if err := r.DB.WithContext(ctx).
		Select("post_id", "user_id").
		Where("post_id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}
	index := make(map[uint64]int, len(posts))
	for i := range posts {
		index[posts[i].ID] = i
	}
	for _, row := range rows {
		if i, ok := index[row.PostID]; ok {
			posts[i].LikedBy = append(posts[i].LikedBy, row.UserID)
		}
	}
	return nil
}
