package project

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-task-manager/internal/feature/account"
)

var (
	ErrNotFound      = errors.New("project: not found")
	ErrAlreadyExists = errors.New("project: already exists")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate") ||
		strings.Contains(s, "unique constraint") ||
		strings.Contains(s, "unique violation")
}

// ListAll 带参与人的全量项目列表（管理端）
func (r *Repo) ListAll(ctx context.Context) ([]ProjectModel, error) {
	var out []ProjectModel
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) FindByID(ctx context.Context, id string) (*ProjectModel, error) {
	var p ProjectModel
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Stages").
		Preload("Stages.Assignments").
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) FindByTitle(ctx context.Context, title string) (*ProjectModel, error) {
	var p ProjectModel
	err := r.db.WithContext(ctx).Where("title = ?", title).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, p *ProjectModel) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDupKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, p *ProjectModel) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		if isDupKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete 连带阶段/指派/提交一起清
func (r *Repo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)

	var stageIDs []string
	if err := db.Model(&StageModel{}).Where("project_id = ?", id).Pluck("id", &stageIDs).Error; err != nil {
		return err
	}
	if len(stageIDs) > 0 {
		if err := db.Where("stage_id IN ?", stageIDs).Delete(&CommitModel{}).Error; err != nil {
			return err
		}
		if err := db.Where("stage_id IN ?", stageIDs).Delete(&StageAssignmentModel{}).Error; err != nil {
			return err
		}
		if err := db.Where("project_id = ?", id).Delete(&StageModel{}).Error; err != nil {
			return err
		}
	}
	if err := db.Exec("DELETE FROM project_participants WHERE project_id = ?", id).Error; err != nil {
		return err
	}

	res := db.Where("id = ?", id).Delete(&ProjectModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByParticipant 某用户参与的全部项目
func (r *Repo) ListByParticipant(ctx context.Context, userID string) ([]ProjectModel, error) {
	var out []ProjectModel
	err := r.db.WithContext(ctx).
		Select("projects.*").
		Joins("JOIN project_participants pp ON pp.project_id = projects.id").
		Where("pp.account_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) AddParticipants(ctx context.Context, p *ProjectModel, users []account.AccountModel) error {
	return r.db.WithContext(ctx).Model(p).Association("Participants").Append(users)
}

func (r *Repo) RemoveParticipant(ctx context.Context, p *ProjectModel, userID string) error {
	return r.db.WithContext(ctx).Model(p).
		Association("Participants").
		Delete(&account.AccountModel{ID: userID})
}

func (r *Repo) CreateStage(ctx context.Context, s *StageModel, assignments []StageAssignmentModel) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(s).Error; err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}
	return db.Create(&assignments).Error
}

// AssignmentsOf 某用户名下全部阶段指派
func (r *Repo) AssignmentsOf(ctx context.Context, userID string) ([]StageAssignmentModel, error) {
	var out []StageAssignmentModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) FindAssignment(ctx context.Context, stageID, userID string) (*StageAssignmentModel, error) {
	var a StageAssignmentModel
	err := r.db.WithContext(ctx).
		Where("stage_id = ? AND user_id = ?", stageID, userID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) CompleteAssignment(ctx context.Context, stageID, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&StageAssignmentModel{}).
		Where("stage_id = ? AND user_id = ?", stageID, userID).
		Update("completed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
