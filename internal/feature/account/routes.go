package account

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go-task-manager/internal/core/auth"
	"go-task-manager/internal/core/config"
	httpez "go-task-manager/internal/transport/http/ez"
	mdw "go-task-manager/internal/transport/http/middleware"
	resp "go-task-manager/internal/transport/http/response"
)

// Module 注册到路由 registry；API 端挂生命周期接口，Admin 端挂用户管理
type Module struct {
	DB    *gorm.DB
	Svc   *Service
	JWTer *auth.JWTer
	Mail  config.Mail
}

func (m *Module) Priority() int { return 10 } // 账号模块先挂

// kindCode Result.Message → envelope 错误码
func kindCode(msg string) int {
	switch msg {
	case MsgConflict:
		return resp.CodeConflict
	case MsgUnauthorized:
		return resp.CodeUnauthorized
	case MsgBadRequest:
		return resp.CodeBadRequest
	default:
		return resp.CodeServerError
	}
}

func respond[T any](c *gin.Context, r Result[T]) {
	if r.Succeeded {
		c.JSON(http.StatusOK, resp.OK(gin.H{"message": r.Message, "data": r.Data}))
		return
	}
	c.JSON(http.StatusOK, resp.Fail(kindCode(r.Message), r.Message, r.Errors))
}

func (m *Module) MountAPI(api *gin.RouterGroup) {
	// 公共入口，按 IP 限速防爆破
	pub := api.Group("/auth")
	pub.Use(mdw.RateLimitPerIP(5, 10))

	type registerIn struct {
		UserName string `json:"userName" binding:"required,min=5,max=50"`
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	pub.POST("/register", func(c *gin.Context) {
		var in registerIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		respond(c, m.Svc.Register(c.Request.Context(), in.UserName, in.Email, in.Password, m.Mail.ConfirmBaseURL))
	})

	// 邮件里的链接是 GET
	pub.GET("/confirm", func(c *gin.Context) {
		r := m.Svc.ConfirmEmail(c.Request.Context(), c.Query("email"), c.Query("token"))
		respond(c, r)
	})

	type loginIn struct {
		UserName string `json:"userName" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	pub.POST("/login", func(c *gin.Context) {
		var in loginIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		r := m.Svc.Login(c.Request.Context(), in.UserName, in.Password)
		if r.Succeeded {
			mdw.CountLogin("ok")
		} else {
			mdw.CountLogin("rejected")
		}
		respond(c, r)
	})

	type resetIn struct {
		Email string `json:"email" binding:"required,email"`
	}
	pub.POST("/reset", func(c *gin.Context) {
		var in resetIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		respond(c, m.Svc.RequestReset(c.Request.Context(), in.Email, m.Mail.ResetBaseURL))
	})

	type updateIn struct {
		Email    string `json:"email"    binding:"required,email"`
		UserName string `json:"userName" binding:"required,min=5,max=50"`
		Password string `json:"password" binding:"required,min=6"`
		Token    string `json:"token"    binding:"required"`
	}
	pub.POST("/update", func(c *gin.Context) {
		var in updateIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		respond(c, m.Svc.UpdateCredentials(c.Request.Context(), in.Email, in.UserName, in.Password, in.Token))
	})

	// 需要会话 token 的部分
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(m.JWTer, ""))
	authed.GET("/me", func(c *gin.Context) {
		acc, err := NewRepo(m.DB).FindByID(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, err.Error()))
			return
		}
		if acc == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "user not found"))
			return
		}
		c.JSON(http.StatusOK, resp.OK(gin.H{
			"id": acc.ID, "userName": acc.UserName, "email": acc.Email,
			"role": acc.Role, "isConfirmed": acc.IsConfirmed,
		}))
	})
}

// MountAdmin 管理端用户管理（分组已挂 AuthJWT(admin)）
func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	ezAdmin := httpez.New(admin)

	type listQ struct {
		Offset int    `form:"offset,default=0"`
		Limit  int    `form:"limit,default=20"`
		Q      string `form:"q"` // 按 email/username 模糊搜
	}
	type row struct {
		ID          string `json:"id"`
		UserName    string `json:"userName"`
		Email       string `json:"email"`
		Role        string `json:"role"`
		IsConfirmed bool   `json:"isConfirmed"`
	}
	type listOut struct {
		Total int64 `json:"total"`
		Items []row `json:"items"`
	}
	httpez.RegisterAction[listQ, listOut](ezAdmin, m.DB, httpez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, tx *gorm.DB, in *listQ) (listOut, error) {
			if in.Limit <= 0 || in.Limit > 100 {
				in.Limit = 20
			}
			q := tx.Model(&AccountModel{})
			if s := strings.TrimSpace(in.Q); s != "" {
				like := "%" + s + "%"
				q = q.Where("email LIKE ? OR user_name LIKE ?", like, like)
			}
			var total int64
			if err := q.Count(&total).Error; err != nil {
				return listOut{}, httpez.Internal("count users failed", err)
			}
			var accs []AccountModel
			if err := q.Order("created_at DESC").Limit(in.Limit).Offset(in.Offset).Find(&accs).Error; err != nil {
				return listOut{}, httpez.Internal("list users failed", err)
			}
			out := listOut{Total: total, Items: make([]row, 0, len(accs))}
			for _, a := range accs {
				out.Items = append(out.Items, row{
					ID: a.ID, UserName: a.UserName, Email: a.Email,
					Role: a.Role, IsConfirmed: a.IsConfirmed,
				})
			}
			return out, nil
		},
	})

	// 改角色（含提为 admin）
	type roleIn struct {
		Role string `json:"role" binding:"required,oneof=developer tester manager teamlead admin"`
	}
	httpez.RegisterAction[roleIn, gin.H](ezAdmin, m.DB, httpez.Action[roleIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/role",
		Binder: httpez.BindJSON,
		UseTx:  true,
		Handler: func(c *gin.Context, tx *gorm.DB, in *roleIn) (gin.H, error) {
			res := tx.Model(&AccountModel{}).Where("id = ?", c.Param("id")).Update("role", in.Role)
			if res.Error != nil {
				return nil, httpez.Internal("update role failed", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil, httpez.NotFound("user not found")
			}
			return gin.H{"id": c.Param("id"), "role": in.Role}, nil
		},
	})

	// 删号（硬删，管理端专用）：同事务连带清掉指派/提交/项目参与记录，
	// 这些表归项目域管，这里按表名清，避免反向依赖
	httpez.RegisterAction[struct{}, gin.H](ezAdmin, m.DB, httpez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: httpez.BindNone,
		UseTx:  true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			for _, stmt := range []string{
				"DELETE FROM commits WHERE user_id = ?",
				"DELETE FROM stage_assignments WHERE user_id = ?",
				"DELETE FROM project_participants WHERE account_id = ?",
			} {
				if err := tx.Exec(stmt, id).Error; err != nil {
					return nil, httpez.Internal("delete user data failed", err)
				}
			}
			res := tx.Where("id = ?", id).Delete(&AccountModel{})
			if res.Error != nil {
				return nil, httpez.Internal("delete user failed", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil, httpez.NotFound("user not found")
			}
			return gin.H{"id": id}, nil
		},
	})
}
