package project

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-task-manager/internal/core/auth"
	"go-task-manager/internal/feature/account"
	"go-task-manager/internal/transport/http/ez"
	mdw "go-task-manager/internal/transport/http/middleware"
	"go-task-manager/pkg/utils"
)

// Module 项目域路由：用户端在 /my 下，管理端全量管控
type Module struct {
	DB    *gorm.DB
	Svc   *Service
	JWTer *auth.JWTer
}

func (m *Module) Priority() int { return 20 }

const dateLayout = "2006-01-02"

type createProjectReq struct {
	Title       string `json:"title" binding:"required,min=5,max=50"`
	Description string `json:"description" binding:"omitempty,min=5,max=255"`
	StartDate   string `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
	Type        string `json:"type" binding:"required,oneof=internal client research"`
	Status      string `json:"status" binding:"omitempty,oneof=planning in_progress completed on_hold"`
}

type updateProjectReq struct {
	Title       string `json:"title" binding:"required,min=5,max=50"`
	Description string `json:"description" binding:"omitempty,min=5,max=255"`
	StartDate   string `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
	Type        string `json:"type" binding:"required,oneof=internal client research"`
	Status      string `json:"status" binding:"required,oneof=planning in_progress completed on_hold"`
}

type addStageReq struct {
	Title   string   `json:"title" binding:"required,min=5,max=50"`
	UserIDs []string `json:"userIds" binding:"omitempty,dive,required"`
}

type addParticipantsReq struct {
	UserNames []string `json:"userNames" binding:"required,min=1,dive,required"`
}

func parseDates(start, end string) (time.Time, *time.Time, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, nil, err
	}
	if end == "" {
		return s, nil, nil
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, nil, err
	}
	return s, &e, nil
}

// MountAPI 用户端：我的项目 / 我的指派 / 完成指派 / 提交记录
func (m *Module) MountAPI(api *gin.RouterGroup) {
	my := api.Group("/my", mdw.AuthJWT(m.JWTer, ""))
	e := ez.New(my)

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, []ProjectView]{
		Method: "GET", Path: "/projects", Binder: ez.BindNone, Auth: true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]ProjectView, error) {
			return m.Svc.MyProjects(c, c.GetString("userId"))
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, []StageAssignmentModel]{
		Method: "GET", Path: "/assignments", Binder: ez.BindNone, Auth: true,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) ([]StageAssignmentModel, error) {
			return NewRepo(db).AssignmentsOf(c, c.GetString("userId"))
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, gin.H]{
		Method: "POST", Path: "/assignments/:stageId/complete", Binder: ez.BindNone, Auth: true, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (gin.H, error) {
			stageID := c.Param("stageId")
			err := NewRepo(tx).CompleteAssignment(c, stageID, c.GetString("userId"))
			if err == ErrNotFound {
				return nil, ez.NotFound("you are not assigned to this stage")
			}
			if err != nil {
				return nil, ez.Internal("could not complete assignment", err)
			}
			return gin.H{"stageId": stageID, "completed": true}, nil
		},
	})

	// 提交记录是标准归属型 CRUD，挂通用注册器；创建前校验确有指派
	ez.Crud(ez.CrudConfig[CommitModel]{
		DB:    m.DB,
		Group: my,
		Path:  "/commits",
		New:   func() *CommitModel { return &CommitModel{} },
		Hooks: ez.CrudHooks[CommitModel]{
			BeforeCreate: func(c *gin.Context, cm *CommitModel) error {
				a, err := NewRepo(m.DB).FindAssignment(c, cm.StageID, cm.UserID)
				if err != nil {
					return err
				}
				if a == nil {
					return fmt.Errorf("user is not assigned to stage %s", cm.StageID)
				}
				if cm.CommitDate.IsZero() {
					cm.CommitDate = time.Now().UTC().Truncate(24 * time.Hour)
				}
				return nil
			},
		},
		AllowCreate: true,
		AllowList:   true,
		AllowGet:    true,
		AllowDelete: true,
	})
}

// MountAdmin 管理端：项目 CRUD、阶段、参与人（分组已套 admin 鉴权）
func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, []ProjectView]{
		Method: "GET", Path: "/projects", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]ProjectView, error) {
			return m.Svc.ListProjects(c)
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[createProjectReq, *ProjectModel]{
		Method: "POST", Path: "/projects", Binder: ez.BindJSON, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *createProjectReq) (*ProjectModel, error) {
			start, end, err := parseDates(in.StartDate, in.EndDate)
			if err != nil {
				return nil, ez.BadRequest("invalid date: " + err.Error())
			}
			status := in.Status
			if status == "" {
				status = StatusPlanning
			}
			p := &ProjectModel{
				ID:          utils.NewID(),
				Title:       in.Title,
				Description: in.Description,
				StartDate:   start,
				EndDate:     end,
				Type:        in.Type,
				Status:      status,
			}
			if err := NewRepo(tx).Create(c, p); err != nil {
				if err == ErrAlreadyExists {
					return nil, ez.Conflict("Conflict", "project title already exists")
				}
				return nil, ez.Internal("could not create project", err)
			}
			m.Svc.BustList(c)
			return p, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, *ProjectModel]{
		Method: "GET", Path: "/projects/:id", Binder: ez.BindNone,
		Handler: func(c *gin.Context, db *gorm.DB, _ *struct{}) (*ProjectModel, error) {
			p, err := NewRepo(db).FindByID(c, c.Param("id"))
			if err != nil {
				return nil, ez.Internal("could not load project", err)
			}
			if p == nil {
				return nil, ez.NotFound("unable to find project with id = " + c.Param("id"))
			}
			return p, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[updateProjectReq, *ProjectModel]{
		Method: "PUT", Path: "/projects/:id", Binder: ez.BindJSON, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *updateProjectReq) (*ProjectModel, error) {
			repo := NewRepo(tx)
			p, err := repo.FindByID(c, c.Param("id"))
			if err != nil {
				return nil, ez.Internal("could not load project", err)
			}
			if p == nil {
				return nil, ez.NotFound("unable to find project with id = " + c.Param("id"))
			}
			start, end, err := parseDates(in.StartDate, in.EndDate)
			if err != nil {
				return nil, ez.BadRequest("invalid date: " + err.Error())
			}
			p.Title = in.Title
			p.Description = in.Description
			p.StartDate = start
			p.EndDate = end
			p.Type = in.Type
			p.Status = in.Status
			if err := repo.Update(c, p); err != nil {
				if err == ErrAlreadyExists {
					return nil, ez.Conflict("Conflict", "project title already exists")
				}
				return nil, ez.Internal("could not update project", err)
			}
			m.Svc.BustList(c)
			return p, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, gin.H]{
		Method: "DELETE", Path: "/projects/:id", Binder: ez.BindNone, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := NewRepo(tx).Delete(c, id); err != nil {
				if err == ErrNotFound {
					return nil, ez.NotFound("unable to find project with id = " + id)
				}
				return nil, ez.Internal("could not delete project", err)
			}
			m.Svc.BustList(c)
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[addStageReq, *StageModel]{
		Method: "POST", Path: "/projects/:id/stages", Binder: ez.BindJSON, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *addStageReq) (*StageModel, error) {
			repo := NewRepo(tx)
			p, err := repo.FindByID(c, c.Param("id"))
			if err != nil {
				return nil, ez.Internal("could not load project", err)
			}
			if p == nil {
				return nil, ez.NotFound("unable to find project with id = " + c.Param("id"))
			}

			stage := &StageModel{ID: utils.NewID(), Title: in.Title, ProjectID: p.ID}
			accounts := account.NewRepo(tx)
			assignments := make([]StageAssignmentModel, 0, len(in.UserIDs))
			for _, uid := range in.UserIDs {
				u, err := accounts.FindByID(c, uid)
				if err != nil {
					return nil, ez.Internal("could not look up user", err)
				}
				if u == nil {
					return nil, ez.Conflict("Conflict", "unknown user id: "+uid)
				}
				assignments = append(assignments, StageAssignmentModel{
					StageID:    stage.ID,
					UserID:     u.ID,
					StageTitle: in.Title,
				})
			}
			if err := repo.CreateStage(c, stage, assignments); err != nil {
				return nil, ez.Internal("could not create stage", err)
			}
			return stage, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[addParticipantsReq, *ProjectModel]{
		Method: "POST", Path: "/projects/:id/participants", Binder: ez.BindJSON, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *addParticipantsReq) (*ProjectModel, error) {
			repo := NewRepo(tx)
			p, err := repo.FindByID(c, c.Param("id"))
			if err != nil {
				return nil, ez.Internal("could not load project", err)
			}
			if p == nil {
				return nil, ez.NotFound("unable to find project with id = " + c.Param("id"))
			}

			accounts := account.NewRepo(tx)
			users := make([]account.AccountModel, 0, len(in.UserNames))
			for _, name := range in.UserNames {
				u, err := accounts.FindByUserName(c, name)
				if err != nil {
					return nil, ez.Internal("could not look up user", err)
				}
				if u == nil {
					return nil, ez.Conflict("Conflict", "unknown username: "+name)
				}
				users = append(users, *u)
			}
			if err := repo.AddParticipants(c, p, users); err != nil {
				return nil, ez.Internal("could not add participants", err)
			}
			m.Svc.BustList(c)
			return p, nil
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, gin.H]{
		Method: "DELETE", Path: "/projects/:id/participants/:userId", Binder: ez.BindNone, UseTx: true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (gin.H, error) {
			repo := NewRepo(tx)
			p, err := repo.FindByID(c, c.Param("id"))
			if err != nil {
				return nil, ez.Internal("could not load project", err)
			}
			if p == nil {
				return nil, ez.NotFound("unable to find project with id = " + c.Param("id"))
			}
			if err := repo.RemoveParticipant(c, p, c.Param("userId")); err != nil {
				return nil, ez.Internal("could not remove participant", err)
			}
			m.Svc.BustList(c)
			return gin.H{"projectId": p.ID, "userId": c.Param("userId")}, nil
		},
	})
}
