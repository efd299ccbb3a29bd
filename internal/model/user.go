package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated admin 和 moderator 可以越过作者归属校验
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleModerator
}

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;size:64;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserBrief 帖子/评论里作者的投影，只暴露公开字段
type UserBrief struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
}

func (UserBrief) TableName() string {
	return "users"
}
