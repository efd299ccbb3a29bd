package model

import "time"

type Comment struct {
	ID        uint64     `gorm:"primaryKey" json:"id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	AuthorID  uint64     `gorm:"not null;index" json:"authorId"`
	Author    *UserBrief `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID    uint64     `gorm:"not null;index:idx_post_time" json:"postId"`
	CreatedAt time.Time  `gorm:"index:idx_post_time" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
