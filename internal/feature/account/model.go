package account

import (
	"time"
)

// 角色：默认 developer，只能由管理端改
const (
	RoleDeveloper = "developer"
	RoleTester    = "tester"
	RoleManager   = "manager"
	RoleTeamLead  = "teamlead"
	RoleAdmin     = "admin"
)

// token 用途标记；没有标记的裸 token 字段会让登录态 token 混进确认流程
const (
	TokenPurposeConfirm = "confirm"
	TokenPurposeReset   = "reset"
	TokenPurposeSession = "session"
)

type AccountModel struct {
	ID       string `gorm:"primaryKey;type:varchar(32)"`
	UserName string `gorm:"uniqueIndex;size:50;not null"`
	Email    string `gorm:"uniqueIndex;size:255;not null"`

	// 重置请求到凭据更新之间为 NULL，此窗口内无法登录
	PasswordHash *string `gorm:"size:191"`

	// 待确认/待重置/当前会话 token；空则 TokenPurpose 也为空串
	Token        *string `gorm:"size:512"`
	TokenPurpose string  `gorm:"size:16"`

	IsConfirmed bool   `gorm:"not null;default:false"`
	Role        string `gorm:"size:16;not null;default:developer"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string { return "accounts" }
