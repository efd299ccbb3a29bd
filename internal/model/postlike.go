package model

import "time"

// PostLike 一行代表一个用户对一个帖子的点赞，post.like_count 始终等于该帖子的行数
type PostLike struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_user_post"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_user_post;index"`
	CreatedAt time.Time
}

func (PostLike) TableName() string {
	return "post_likes"
}
