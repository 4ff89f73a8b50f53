package project

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-task-manager/internal/core/cache"
)

const (
	projectListKey = "projects:all"
	projectListTTL = 30 * time.Second
)

// ParticipantView / ProjectView 是列表口径的瘦身视图，不带密码哈希等账号内部字段
type ParticipantView struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

type ProjectView struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	Participants []ParticipantView `json:"participants"`
}

func toView(p *ProjectModel) ProjectView {
	v := ProjectView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Type:         p.Type,
		Status:       p.Status,
		Participants: make([]ParticipantView, 0, len(p.Participants)),
	}
	for _, u := range p.Participants {
		v.Participants = append(v.Participants, ParticipantView{ID: u.ID, UserName: u.UserName})
	}
	return v
}

// Service 项目域读路径；写路径走 ez action 里的事务 + Repo
type Service struct {
	db    *gorm.DB
	cache *cache.Cache // 可为 nil（没配 redis 时直连库）
	log   *zap.Logger
}

func NewService(db *gorm.DB, c *cache.Cache, log *zap.Logger) *Service {
	return &Service{db: db, cache: c, log: log}
}

func (s *Service) loadAll(ctx context.Context) (*[]ProjectView, error) {
	items, err := NewRepo(s.db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	return &views, nil
}

// ListProjects 管理端项目列表，走 redis 读穿缓存（singleflight 防击穿）
func (s *Service) ListProjects(ctx context.Context) ([]ProjectView, error) {
	if s.cache == nil {
		v, err := s.loadAll(ctx)
		if err != nil {
			return nil, err
		}
		return *v, nil
	}
	v, err := cache.GetOrLoadJSON[[]ProjectView](s.cache, ctx, projectListKey, projectListTTL, s.loadAll)
	if err != nil {
		// 缓存链路出错就回源，读路径不因 redis 挂掉而不可用
		s.log.Warn("project list cache failed, falling back to db", zap.Error(err))
		fallback, dbErr := s.loadAll(ctx)
		if dbErr != nil {
			return nil, dbErr
		}
		return *fallback, nil
	}
	if v == nil {
		return []ProjectView{}, nil
	}
	return *v, nil
}

// BustList 写路径调用，令列表缓存失效
func (s *Service) BustList(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, projectListKey)
	}
}

// MyProjects 用户视角：自己参与的项目
func (s *Service) MyProjects(ctx context.Context, userID string) ([]ProjectView, error) {
	items, err := NewRepo(s.db).ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	return views, nil
}
