package account

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-manager/internal/core/auth"
	"go-task-manager/internal/core/mail"
	"go-task-manager/pkg/utils"
)

const (
	confirmMailSubject = "Email confirmation for Task Manager"
	resetMailSubject   = "Password reset for Task Manager"
)

// Service 账号生命周期：注册 → 邮箱确认 → 登录，外加重置/改凭据小回环。
// 所有失败都收敛成 Result，不向控制器层抛裸 error。
type Service struct {
	db     *gorm.DB
	jwter  *auth.JWTer
	sender mail.Sender
	log    *zap.Logger
}

func NewService(db *gorm.DB, jwter *auth.JWTer, sender mail.Sender, log *zap.Logger) *Service {
	return &Service{db: db, jwter: jwter, sender: sender, log: log}
}

// RegisterData 返回给调用方的账号 id 和确认 token（自动化/联调用）
type RegisterData struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Register 新账号落库（未确认 + confirm token），然后发确认邮件。
// 邮件失败不回滚已入库的账号，只在结果里单独报出来。
func (s *Service) Register(ctx context.Context, userName, email, password, confirmBaseURL string) Result[*RegisterData] {
	if userName == "" || email == "" || password == "" {
		return fail[*RegisterData](MsgBadRequest, "username, email and password are required")
	}

	// 两个查询都要做，哪个撞了报哪个
	byEmail, err := NewRepo(s.db).FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("register: lookup by email failed", zap.Error(err))
		return fail[*RegisterData](MsgError, err.Error())
	}
	byName, err := NewRepo(s.db).FindByUserName(ctx, userName)
	if err != nil {
		s.log.Error("register: lookup by username failed", zap.Error(err))
		return fail[*RegisterData](MsgError, err.Error())
	}
	if byEmail != nil {
		return fail[*RegisterData](MsgConflict, fmt.Sprintf("user with such email already exists: %s", email))
	}
	if byName != nil {
		return fail[*RegisterData](MsgConflict, fmt.Sprintf("user with such username already exists: %s", userName))
	}

	hash := utils.HashPassword(password)
	acc := &AccountModel{
		ID:           utils.NewID(),
		UserName:     userName,
		Email:        email,
		PasswordHash: &hash,
		IsConfirmed:  false,
		Role:         RoleDeveloper,
	}

	token, err := s.jwter.Issue(acc.ID, acc.Email, acc.Role)
	if err != nil {
		s.log.Error("register: issue confirm token failed", zap.Error(err))
		return fail[*RegisterData](MsgError, err.Error())
	}
	acc.Token = &token
	acc.TokenPurpose = TokenPurposeConfirm

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return NewRepo(tx).Create(ctx, acc)
	})
	if err == ErrAlreadyExists {
		// 并发注册被唯一索引挡下
		return fail[*RegisterData](MsgConflict, "email or username already exists")
	}
	if err != nil {
		s.log.Error("register: persist failed", zap.Error(err))
		return fail[*RegisterData](MsgError, err.Error())
	}

	link := confirmLink(confirmBaseURL, acc.ID, token)
	body := fmt.Sprintf("To verify your email <a href='%s'>click here</a>", link)
	if err := s.sender.Send(ctx, email, confirmMailSubject, body); err != nil {
		// 账号留着，让调用方换渠道重发
		s.log.Warn("register: confirmation mail failed", zap.String("email", email), zap.Error(err))
		return fail[*RegisterData](MsgError, fmt.Sprintf("could not send confirmation email: %s", err.Error()))
	}

	s.log.Info("account registered", zap.String("id", acc.ID), zap.String("username", userName))
	return ok("User registered successfully", &RegisterData{ID: acc.ID, Token: token})
}

// ConfirmEmail 签名/过期校验 + 与库里 confirm token 严格相等，二者都过才翻 IsConfirmed
func (s *Service) ConfirmEmail(ctx context.Context, email, token string) Result[struct{}] {
	if email == "" || token == "" {
		return fail[struct{}](MsgBadRequest, "email and token are required")
	}

	acc, err := NewRepo(s.db).FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("confirm: lookup failed", zap.Error(err))
		return fail[struct{}](MsgError, err.Error())
	}
	if acc == nil {
		return fail[struct{}](MsgBadRequest, "no account exists for this email")
	}

	if _, err := s.jwter.Parse(token); err != nil {
		return fail[struct{}](MsgUnauthorized, "invalid or expired confirmation token")
	}
	if acc.Token == nil || acc.TokenPurpose != TokenPurposeConfirm || *acc.Token != token {
		return fail[struct{}](MsgUnauthorized, "confirmation token does not match")
	}

	acc.Token = nil
	acc.TokenPurpose = ""
	acc.IsConfirmed = true
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return NewRepo(tx).Update(ctx, acc)
	})
	if err != nil {
		s.log.Error("confirm: persist failed", zap.Error(err))
		return fail[struct{}](MsgError, err.Error())
	}

	s.log.Info("email confirmed", zap.String("id", acc.ID))
	return ok("Email confirmed successfully", struct{}{})
}

// Login 三连检查：用户名存在、密码验证、已确认；全过才签发会话 token 并落库
func (s *Service) Login(ctx context.Context, userName, password string) Result[string] {
	acc, err := NewRepo(s.db).FindByUserName(ctx, userName)
	if err != nil {
		s.log.Error("login: lookup failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}
	if acc == nil {
		return fail[string](MsgConflict, "user with such username doesn't exist")
	}
	// 重置窗口内 PasswordHash 为 NULL，按密码不匹配处理
	if acc.PasswordHash == nil || !utils.CheckPassword(password, *acc.PasswordHash) {
		return fail[string](MsgConflict, "password doesn't match")
	}
	if !acc.IsConfirmed {
		return fail[string](MsgConflict, "account email is not confirmed")
	}

	token, err := s.jwter.Issue(acc.ID, acc.Email, acc.Role)
	if err != nil {
		s.log.Error("login: issue session token failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}
	acc.Token = &token
	acc.TokenPurpose = TokenPurposeSession
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return NewRepo(tx).Update(ctx, acc)
	})
	if err != nil {
		s.log.Error("login: persist failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}

	s.log.Info("user logged in", zap.String("id", acc.ID))
	return ok("User logged in successfully", token)
}

// RequestReset 立即作废当前凭据（清密码、去确认态），再发重置邮件。
// 邮件失败时账号停在锁定态，结果单独报出来，不回滚。
func (s *Service) RequestReset(ctx context.Context, email, resetBaseURL string) Result[string] {
	if email == "" {
		return fail[string](MsgBadRequest, "email is required")
	}

	acc, err := NewRepo(s.db).FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("reset: lookup failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}
	if acc == nil {
		return fail[string](MsgConflict, "user with such email doesn't exist")
	}

	token, err := s.jwter.Issue(acc.ID, acc.Email, acc.Role)
	if err != nil {
		s.log.Error("reset: issue token failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}
	acc.Token = &token
	acc.TokenPurpose = TokenPurposeReset
	acc.IsConfirmed = false
	acc.PasswordHash = nil
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return NewRepo(tx).Update(ctx, acc)
	})
	if err != nil {
		s.log.Error("reset: persist failed", zap.Error(err))
		return fail[string](MsgError, err.Error())
	}

	link := confirmLink(resetBaseURL, acc.ID, token)
	body := fmt.Sprintf("To reset your credentials <a href='%s'>click here</a>", link)
	if err := s.sender.Send(ctx, email, resetMailSubject, body); err != nil {
		s.log.Warn("reset: mail failed", zap.String("email", email), zap.Error(err))
		return fail[string](MsgError, fmt.Sprintf("could not send reset email: %s", err.Error()))
	}

	s.log.Info("reset requested", zap.String("id", acc.ID))
	return ok("Reset email was sent to your mailbox", token)
}

// UpdateCredentials 重置回环的收尾：校验 reset token，换用户名/密码，恢复确认态
func (s *Service) UpdateCredentials(ctx context.Context, email, newUserName, newPassword, token string) Result[struct{}] {
	if email == "" || newUserName == "" || newPassword == "" || token == "" {
		return fail[struct{}](MsgBadRequest, "email, username, password and token are required")
	}

	acc, err := NewRepo(s.db).FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("update: lookup failed", zap.Error(err))
		return fail[struct{}](MsgError, err.Error())
	}
	if acc == nil {
		return fail[struct{}](MsgConflict, "user with such email doesn't exist")
	}

	if _, err := s.jwter.Parse(token); err != nil {
		return fail[struct{}](MsgUnauthorized, "invalid or expired reset token")
	}
	if acc.Token == nil || acc.TokenPurpose != TokenPurposeReset || *acc.Token != token {
		return fail[struct{}](MsgUnauthorized, "reset token does not match")
	}

	hash := utils.HashPassword(newPassword)
	acc.UserName = newUserName
	acc.PasswordHash = &hash
	acc.Token = nil
	acc.TokenPurpose = ""
	acc.IsConfirmed = true
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return NewRepo(tx).Update(ctx, acc)
	})
	if err == ErrAlreadyExists {
		return fail[struct{}](MsgConflict, fmt.Sprintf("user with such username already exists: %s", newUserName))
	}
	if err != nil {
		s.log.Error("update: persist failed", zap.Error(err))
		return fail[struct{}](MsgError, fmt.Sprintf("error occurred while updating credentials: %s", err.Error()))
	}

	s.log.Info("credentials updated", zap.String("id", acc.ID))
	return ok("User credentials updated successfully", struct{}{})
}

func confirmLink(base, userID, token string) string {
	return fmt.Sprintf("%s?userId=%s&token=%s", base, userID, url.QueryEscape(token))
}
