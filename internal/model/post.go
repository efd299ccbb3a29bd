package model

import "time"

type Category string

const (
	CategoryTransferNews Category = "transfer news"
	CategoryFanBlog      Category = "fan blog"
	CategoryMatchReport  Category = "match report"
	CategoryOther        Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTransferNews, CategoryFanBlog, CategoryMatchReport, CategoryOther:
		return true
	}
	return false
}

type Post struct {
	ID         uint64     `gorm:"primaryKey" json:"id"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	AuthorID   uint64     `gorm:"not null;index:idx_author_time" json:"authorId"`
	Author     *UserBrief `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Category   Category   `gorm:"size:32;not null;default:fan blog;index" json:"category"`
	IsApproved bool       `gorm:"not null;default:false;index" json:"isApproved"`
	Likes      int64      `gorm:"column:like_count;not null;default:0" json:"likes"`
	LikedBy    []uint64   `gorm:"-" json:"likedBy"`
	CreatedAt  time.Time  `gorm:"index:idx_author_time;index" json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
