package account

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrAlreadyExists 唯一索引冲突；并发注册时先查后插挡不住，最终靠它兜底
var ErrAlreadyExists = errors.New("account already exists")

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) FindByEmail(ctx context.Context, email string) (*AccountModel, error) {
	var a AccountModel
	err := r.db.WithContext(ctx).First(&a, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) FindByUserName(ctx context.Context, name string) (*AccountModel, error) {
	var a AccountModel
	err := r.db.WithContext(ctx).First(&a, "user_name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (*AccountModel, error) {
	var a AccountModel
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) Create(ctx context.Context, a *AccountModel) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if isDupKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, a *AccountModel) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		if isDupKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// isDupKey 不依赖 gorm.ErrDuplicatedKey，避免驱动差异导致识别不到
func isDupKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
