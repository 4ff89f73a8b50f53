package project

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go-task-manager/internal/feature/account"
	"go-task-manager/pkg/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&account.AccountModel{},
		&ProjectModel{},
		&StageModel{},
		&StageAssignmentModel{},
		&CommitModel{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *account.AccountModel {
	t.Helper()
	u := &account.AccountModel{
		ID:          utils.NewID(),
		UserName:    name,
		Email:       name + "@x.com",
		IsConfirmed: true,
		Role:        account.RoleDeveloper,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedProject(t *testing.T, db *gorm.DB, title string) *ProjectModel {
	t.Helper()
	p := &ProjectModel{
		ID:        utils.NewID(),
		Title:     title,
		StartDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Type:      TypeInternal,
		Status:    StatusPlanning,
	}
	require.NoError(t, NewRepo(db).Create(context.Background(), p))
	return p
}

func TestRepoCreate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepo(db)

	seedProject(t, db, "Apollo Board")

	t.Run("duplicate title", func(t *testing.T) {
		err := repo.Create(ctx, &ProjectModel{
			ID:        utils.NewID(),
			Title:     "Apollo Board",
			StartDate: time.Now(),
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("find by title", func(t *testing.T) {
		p, err := repo.FindByTitle(ctx, "Apollo Board")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, StatusPlanning, p.Status)
	})

	t.Run("unknown id is nil without error", func(t *testing.T) {
		p, err := repo.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestParticipants(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepo(db)

	p := seedProject(t, db, "Apollo Board")
	alice := seedUser(t, db, "alice1")
	bob := seedUser(t, db, "bobby1")

	require.NoError(t, repo.AddParticipants(ctx, p, []account.AccountModel{*alice, *bob}))

	t.Run("list by participant", func(t *testing.T) {
		mine, err := repo.ListByParticipant(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, p.ID, mine[0].ID)
	})

	t.Run("preloaded on list all", func(t *testing.T) {
		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Len(t, all[0].Participants, 2)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, repo.RemoveParticipant(ctx, p, bob.ID))
		mine, err := repo.ListByParticipant(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})
}

func TestStagesAndAssignments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepo(db)

	p := seedProject(t, db, "Apollo Board")
	alice := seedUser(t, db, "alice1")

	stage := &StageModel{ID: utils.NewID(), Title: "Discovery phase", ProjectID: p.ID}
	require.NoError(t, repo.CreateStage(ctx, stage, []StageAssignmentModel{
		{StageID: stage.ID, UserID: alice.ID, StageTitle: stage.Title},
	}))

	t.Run("assignment visible to user", func(t *testing.T) {
		got, err := repo.AssignmentsOf(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Discovery phase", got[0].StageTitle)
		assert.False(t, got[0].Completed)
	})

	t.Run("complete flips flag", func(t *testing.T) {
		require.NoError(t, repo.CompleteAssignment(ctx, stage.ID, alice.ID))
		a, err := repo.FindAssignment(ctx, stage.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.True(t, a.Completed)
	})

	t.Run("complete unassigned is not found", func(t *testing.T) {
		err := repo.CompleteAssignment(ctx, stage.ID, "someone-else")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepo(db)

	p := seedProject(t, db, "Apollo Board")
	alice := seedUser(t, db, "alice1")
	require.NoError(t, repo.AddParticipants(ctx, p, []account.AccountModel{*alice}))

	stage := &StageModel{ID: utils.NewID(), Title: "Discovery phase", ProjectID: p.ID}
	require.NoError(t, repo.CreateStage(ctx, stage, []StageAssignmentModel{
		{StageID: stage.ID, UserID: alice.ID, StageTitle: stage.Title},
	}))
	require.NoError(t, db.Create(&CommitModel{
		ID:         utils.NewID(),
		StageID:    stage.ID,
		UserID:     alice.ID,
		Message:    "initial schema draft",
		CommitDate: time.Now().UTC(),
	}).Error)

	require.NoError(t, repo.Delete(ctx, p.ID))

	var stages, assignments, commits int64
	require.NoError(t, db.Model(&StageModel{}).Count(&stages).Error)
	require.NoError(t, db.Model(&StageAssignmentModel{}).Count(&assignments).Error)
	require.NoError(t, db.Model(&CommitModel{}).Count(&commits).Error)
	assert.Zero(t, stages)
	assert.Zero(t, assignments)
	assert.Zero(t, commits)

	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
}

func TestServiceViews(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepo(db)
	svc := NewService(db, nil, zap.NewNop())

	p := seedProject(t, db, "Apollo Board")
	alice := seedUser(t, db, "alice1")
	require.NoError(t, repo.AddParticipants(ctx, p, []account.AccountModel{*alice}))

	t.Run("list projects strips account internals", func(t *testing.T) {
		views, err := svc.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, views, 1)
		require.Len(t, views[0].Participants, 1)
		assert.Equal(t, "alice1", views[0].Participants[0].UserName)
	})

	t.Run("my projects scoped to membership", func(t *testing.T) {
		views, err := svc.MyProjects(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)

		none, err := svc.MyProjects(ctx, "stranger")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
