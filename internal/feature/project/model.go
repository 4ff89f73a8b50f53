package project

import (
	"time"

	"go-task-manager/internal/feature/account"
)

// 项目状态流转：planning -> in_progress -> completed；on_hold 可随时进出
const (
	StatusPlanning   = "planning"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOnHold     = "on_hold"
)

const (
	TypeInternal = "internal"
	TypeClient   = "client"
	TypeResearch = "research"
)

// ProjectModel 项目主表，参与人走 many2many 中间表
type ProjectModel struct {
	ID          string     `gorm:"type:varchar(32);primaryKey" json:"id"`
	Title       string     `gorm:"uniqueIndex;size:50;not null" json:"title"`
	Description string     `gorm:"size:255" json:"description"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Type        string     `gorm:"size:16" json:"type"`
	Status      string     `gorm:"size:16;default:planning" json:"status"`

	Participants []account.AccountModel `gorm:"many2many:project_participants;joinForeignKey:ProjectID;joinReferences:AccountID" json:"participants,omitempty"`
	Stages       []StageModel           `gorm:"foreignKey:ProjectID" json:"stages,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ProjectModel) TableName() string { return "projects" }

// StageModel 项目下的阶段
type StageModel struct {
	ID        string `gorm:"type:varchar(32);primaryKey" json:"id"`
	Title     string `gorm:"size:50;not null" json:"title"`
	ProjectID string `gorm:"type:varchar(32);index;not null" json:"projectId"`

	Assignments []StageAssignmentModel `gorm:"foreignKey:StageID" json:"assignments,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (StageModel) TableName() string { return "stages" }

// StageAssignmentModel 阶段-用户指派，复合主键；stage_title 冗余一份方便按名查
type StageAssignmentModel struct {
	StageID    string `gorm:"type:varchar(32);primaryKey" json:"stageId"`
	UserID     string `gorm:"type:varchar(32);primaryKey" json:"userId"`
	StageTitle string `gorm:"size:50" json:"stageTitle"`
	Completed  bool   `gorm:"default:false" json:"completed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StageAssignmentModel) TableName() string { return "stage_assignments" }

// CommitModel 用户在某次阶段指派下记录的提交
type CommitModel struct {
	ID         string    `gorm:"type:varchar(32);primaryKey" json:"id"`
	StageID    string    `gorm:"type:varchar(32);index;not null" json:"stageId" binding:"required"`
	UserID     string    `gorm:"type:varchar(32);index;not null" json:"userId"`
	Message    string    `gorm:"size:256" json:"message" binding:"required,min=5,max=256"`
	CommitDate time.Time `json:"commitDate"`

	CreatedAt time.Time `json:"createdAt"`
}

func (CommitModel) TableName() string { return "commits" }
