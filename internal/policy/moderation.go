// Package policy holds the content moderation rules for posts. It has no I/O so handlers,
// services and tests can call it directly.
package policy

import (
	"errors"

	"fanpage-server/internal/model"
)

var (
	ErrInvalidCategory        = errors.New("invalid category")
	ErrTransferNewsRestricted = errors.New("Forbidden: Only admin/moderator can post transfer news directly.")
	ErrTransferNewsChange     = errors.New("Forbidden: Only admin/moderator can change post category to transfer news.")
	ErrApprovalRestricted     = errors.New("Forbidden: Only admin/moderator can change approval status.")
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// Request nil 表示请求里没有带该字段
type Request struct {
	Category *model.Category
	Approved *bool
	Role     model.Role
	Mode     Mode
}

// Decision 更新模式下只有 Set 为 true 的字段需要写入
type Decision struct {
	Category    model.Category
	Approved    bool
	CategorySet bool
	ApprovedSet bool
}

// IsForbidden 区分权限拒绝和参数错误
func IsForbidden(err error) bool {
	return errors.Is(err, ErrTransferNewsRestricted) ||
		errors.Is(err, ErrTransferNewsChange) ||
		errors.Is(err, ErrApprovalRestricted)
}

// Decide 普通用户创建帖子时分类一律被覆盖为 fan blog，不校验取值
func Decide(req Request) (Decision, error) {
	checkCategory := req.Mode == ModeUpdate || req.Role.Elevated()
	if checkCategory && req.Category != nil && !req.Category.Valid() {
		return Decision{}, ErrInvalidCategory
	}
	if req.Mode == ModeUpdate {
		return decideUpdate(req)
	}
	return decideCreate(req)
}

func decideCreate(req Request) (Decision, error) {
	d := Decision{CategorySet: true, ApprovedSet: true}

	if req.Role.Elevated() {
		if req.Category != nil && *req.Category == model.CategoryTransferNews {
			d.Category = model.CategoryTransferNews
			d.Approved = true
			return d, nil
		}
		d.Category = model.CategoryFanBlog
		if req.Category != nil {
			d.Category = *req.Category
		}
		d.Approved = true
		if req.Approved != nil {
			d.Approved = *req.Approved
		}
		return d, nil
	}

	if req.Category != nil && *req.Category == model.CategoryTransferNews {
		return Decision{}, ErrTransferNewsRestricted
	}
	// 普通用户的帖子一律进 fan blog 并等待审核
	d.Category = model.CategoryFanBlog
	d.Approved = false
	return d, nil
}

func decideUpdate(req Request) (Decision, error) {
	var d Decision

	if req.Role.Elevated() {
		if req.Category != nil {
			d.Category = *req.Category
			d.CategorySet = true
			if d.Category == model.CategoryTransferNews {
				d.Approved = true
				d.ApprovedSet = true
				return d, nil
			}
		}
		if req.Approved != nil {
			d.Approved = *req.Approved
			d.ApprovedSet = true
		}
		return d, nil
	}

	if req.Category != nil {
		if *req.Category == model.CategoryTransferNews {
			return Decision{}, ErrTransferNewsChange
		}
		d.Category = *req.Category
		d.CategorySet = true
	}
	if req.Approved != nil {
		return Decision{}, ErrApprovalRestricted
	}
	return d, nil
}
