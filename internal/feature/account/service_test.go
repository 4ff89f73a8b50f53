package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go-task-manager/internal/core/auth"
)

// fakeSender 记录发信调用；fail=true 时模拟 SMTP 挂掉
type fakeSender struct {
	sent []struct{ to, subject, body string }
	fail bool
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if f.fail {
		return errors.New("smtp connection refused")
	}
	f.sent = append(f.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每个测试独立的内存库，避免互相污染
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&AccountModel{}))
	return db
}

func newTestService(t *testing.T) (*Service, *fakeSender, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	sender := &fakeSender{}
	jwter := &auth.JWTer{
		Secret:   []byte("unit-test-secret"),
		Issuer:   "task-manager",
		Audience: "task-manager-clients",
		TTL:      30 * time.Minute,
	}
	return NewService(db, jwter, sender, zap.NewNop()), sender, db
}

func mustAccount(t *testing.T, db *gorm.DB, email string) *AccountModel {
	t.Helper()
	acc, err := NewRepo(db).FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists unconfirmed account and sends mail", func(t *testing.T) {
		svc, sender, db := newTestService(t)

		r := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "http://app/confirm")
		require.True(t, r.Succeeded)
		require.NotNil(t, r.Data)
		assert.NotEmpty(t, r.Data.ID)
		assert.NotEmpty(t, r.Data.Token)
		assert.Empty(t, r.Errors)

		acc := mustAccount(t, db, "a@x.com")
		assert.False(t, acc.IsConfirmed)
		assert.Equal(t, RoleDeveloper, acc.Role)
		require.NotNil(t, acc.Token)
		assert.Equal(t, r.Data.Token, *acc.Token)
		assert.Equal(t, TokenPurposeConfirm, acc.TokenPurpose)
		require.NotNil(t, acc.PasswordHash)

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "a@x.com", sender.sent[0].to)
		assert.Contains(t, sender.sent[0].body, "userId="+acc.ID)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		r := svc.Register(ctx, "", "a@x.com", "Secret1", "http://app/confirm")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgBadRequest, r.Message)
		assert.NotEmpty(t, r.Errors)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		require.True(t, svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u").Succeeded)

		r := svc.Register(ctx, "bobby1", "a@x.com", "Secret2", "u")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
		require.NotEmpty(t, r.Errors)
		assert.Contains(t, r.Errors[0], "email already exists")
	})

	t.Run("duplicate username different email", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		require.True(t, svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u").Succeeded)

		r := svc.Register(ctx, "alice1", "b@x.com", "Secret2", "u")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
		require.NotEmpty(t, r.Errors)
		assert.Contains(t, r.Errors[0], "username already exists")
	})

	t.Run("mail failure keeps account persisted", func(t *testing.T) {
		svc, sender, db := newTestService(t)
		sender.fail = true

		r := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgError, r.Message)
		require.NotEmpty(t, r.Errors)
		assert.Contains(t, r.Errors[0], "could not send confirmation email")

		// 注册不回滚
		acc := mustAccount(t, db, "a@x.com")
		assert.False(t, acc.IsConfirmed)
		assert.NotNil(t, acc.Token)
	})
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("missing args", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.Equal(t, MsgBadRequest, svc.ConfirmEmail(ctx, "", "tok").Message)
		assert.Equal(t, MsgBadRequest, svc.ConfirmEmail(ctx, "a@x.com", "").Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		r := svc.ConfirmEmail(ctx, "nobody@x.com", "tok")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgBadRequest, r.Message)
	})

	t.Run("mismatched token leaves account unconfirmed", func(t *testing.T) {
		svc, _, db := newTestService(t)
		require.True(t, svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u").Succeeded)

		// 另签一个合法但不匹配的 token
		other, err := svc.jwter.Issue("someone", "a@x.com", RoleDeveloper)
		require.NoError(t, err)

		r := svc.ConfirmEmail(ctx, "a@x.com", other)
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgUnauthorized, r.Message)
		assert.False(t, mustAccount(t, db, "a@x.com").IsConfirmed)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		require.True(t, svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u").Succeeded)

		r := svc.ConfirmEmail(ctx, "a@x.com", "not-a-jwt")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgUnauthorized, r.Message)
	})

	t.Run("correct token confirms and clears, replay fails", func(t *testing.T) {
		svc, _, db := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)

		r := svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token)
		require.True(t, r.Succeeded)

		acc := mustAccount(t, db, "a@x.com")
		assert.True(t, acc.IsConfirmed)
		assert.Nil(t, acc.Token)
		assert.Empty(t, acc.TokenPurpose)

		// 同一 token 再来一次：库里已清空，拒绝
		r2 := svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token)
		assert.False(t, r2.Succeeded)
		assert.Equal(t, MsgUnauthorized, r2.Message)
	})

	t.Run("session token cannot confirm", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)
		require.True(t, svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token).Succeeded)

		login := svc.Login(ctx, "alice1", "Secret1")
		require.True(t, login.Succeeded)

		// 登录态 token 用途是 session，不能再当确认 token 用
		r := svc.ConfirmEmail(ctx, "a@x.com", login.Data)
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgUnauthorized, r.Message)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *gorm.DB) {
		svc, _, db := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)
		require.True(t, svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token).Succeeded)
		return svc, db
	}

	t.Run("unknown username", func(t *testing.T) {
		svc, _ := setup(t)
		r := svc.Login(ctx, "nobody", "Secret1")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := setup(t)
		r := svc.Login(ctx, "alice1", "wrong")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
	})

	t.Run("unconfirmed account", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		require.True(t, svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u").Succeeded)

		r := svc.Login(ctx, "alice1", "Secret1")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
	})

	t.Run("success stores session token", func(t *testing.T) {
		svc, db := setup(t)
		r := svc.Login(ctx, "alice1", "Secret1")
		require.True(t, r.Succeeded)
		assert.NotEmpty(t, r.Data)

		acc := mustAccount(t, db, "a@x.com")
		require.NotNil(t, acc.Token)
		assert.Equal(t, r.Data, *acc.Token)
		assert.Equal(t, TokenPurposeSession, acc.TokenPurpose)
	})
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		r := svc.RequestReset(ctx, "nobody@x.com", "u")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgConflict, r.Message)
	})

	t.Run("locks account until credentials updated", func(t *testing.T) {
		svc, sender, db := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)
		require.True(t, svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token).Succeeded)

		r := svc.RequestReset(ctx, "a@x.com", "http://app/reset")
		require.True(t, r.Succeeded)
		assert.NotEmpty(t, r.Data)

		acc := mustAccount(t, db, "a@x.com")
		assert.False(t, acc.IsConfirmed)
		assert.Nil(t, acc.PasswordHash)
		assert.Equal(t, TokenPurposeReset, acc.TokenPurpose)
		require.Len(t, sender.sent, 2) // 注册确认 + 重置
	})

	t.Run("mail failure leaves account in locked state", func(t *testing.T) {
		svc, sender, db := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)
		require.True(t, svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token).Succeeded)

		sender.fail = true
		r := svc.RequestReset(ctx, "a@x.com", "u")
		assert.False(t, r.Succeeded)
		assert.Equal(t, MsgError, r.Message)

		// 不回滚：密码已清、确认态已摘
		acc := mustAccount(t, db, "a@x.com")
		assert.False(t, acc.IsConfirmed)
		assert.Nil(t, acc.PasswordHash)
	})
}

func TestUpdateCredentials(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, string) {
		svc, _, _ := newTestService(t)
		reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "u")
		require.True(t, reg.Succeeded)
		require.True(t, svc.ConfirmEmail(ctx, "a@x.com", reg.Data.Token).Succeeded)
		r := svc.RequestReset(ctx, "a@x.com", "u")
		require.True(t, r.Succeeded)
		return svc, r.Data
	}

	t.Run("missing payload", func(t *testing.T) {
		svc, _ := setup(t)
		r := svc.UpdateCredentials(ctx, "a@x.com", "", "", "")
		assert.Equal(t, MsgBadRequest, r.Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, tok := setup(t)
		r := svc.UpdateCredentials(ctx, "nobody@x.com", "alice1", "NewPass1", tok)
		assert.Equal(t, MsgConflict, r.Message)
	})

	t.Run("wrong token", func(t *testing.T) {
		svc, _ := setup(t)
		other, err := svc.jwter.Issue("someone", "a@x.com", RoleDeveloper)
		require.NoError(t, err)
		r := svc.UpdateCredentials(ctx, "a@x.com", "alice1", "NewPass1", other)
		assert.Equal(t, MsgUnauthorized, r.Message)
	})

	t.Run("success restores confirmed state with new credentials", func(t *testing.T) {
		svc, tok := setup(t)
		r := svc.UpdateCredentials(ctx, "a@x.com", "alice2", "NewPass1", tok)
		require.True(t, r.Succeeded)

		login := svc.Login(ctx, "alice2", "NewPass1")
		assert.True(t, login.Succeeded)
	})
}

func TestLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newTestService(t)

	// 注册 → 确认 → 登录
	reg := svc.Register(ctx, "alice1", "a@x.com", "Secret1", "http://app/confirm")
	require.True(t, reg.Succeeded)
	t1 := reg.Data.Token

	require.True(t, svc.ConfirmEmail(ctx, "a@x.com", t1).Succeeded)
	assert.True(t, mustAccount(t, db, "a@x.com").IsConfirmed)

	login := svc.Login(ctx, "alice1", "Secret1")
	require.True(t, login.Succeeded)
	t2 := login.Data
	assert.NotEmpty(t, t2)
	assert.NotEqual(t, t1, t2)

	// 重置回环：请求重置后旧密码失效，更新后新密码可登录
	reset := svc.RequestReset(ctx, "a@x.com", "http://app/reset")
	require.True(t, reset.Succeeded)
	t3 := reset.Data

	acc := mustAccount(t, db, "a@x.com")
	assert.False(t, acc.IsConfirmed)
	assert.Nil(t, acc.PasswordHash)

	assert.False(t, svc.Login(ctx, "alice1", "Secret1").Succeeded)

	require.True(t, svc.UpdateCredentials(ctx, "a@x.com", "alice1", "NewPass1", t3).Succeeded)
	final := svc.Login(ctx, "alice1", "NewPass1")
	assert.True(t, final.Succeeded)
}
