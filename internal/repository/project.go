package repository

import (
	"context"

	"liaison/internal/models"

	"gorm.io/gorm"
)

// ProjectRepository defines the interface for project membership lookups.
// Projects themselves are managed elsewhere; messaging only reads them.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Project, error)
	ListForUser(ctx context.Context, userID uint) ([]*models.Project, error)
	IsMember(ctx context.Context, projectID, userID uint) (bool, error)
	HaveSharedProject(ctx context.Context, coordinatorID, clientID uint) (bool, error)
	Create(ctx context.Context, project *models.Project) error
}

// projectRepository implements ProjectRepository
type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Preload("Coordinators").
		First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.WithContext(ctx).
		Preload("Coordinators").
		Joins("LEFT JOIN project_coordinators pc ON projects.id = pc.project_id").
		Where("projects.client_id = ? OR pc.user_id = ?", userID, userID).
		Distinct("projects.*").
		Find(&projects).Error
	return projects, err
}

func (r *projectRepository) IsMember(ctx context.Context, projectID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Joins("LEFT JOIN project_coordinators pc ON projects.id = pc.project_id AND pc.user_id = ?", userID).
		Where("projects.id = ? AND (projects.client_id = ? OR pc.user_id IS NOT NULL)", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *projectRepository) HaveSharedProject(ctx context.Context, coordinatorID, clientID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Joins("JOIN project_coordinators pc ON projects.id = pc.project_id").
		Where("pc.user_id = ? AND projects.client_id = ?", coordinatorID, clientID).
		Count(&count).Error
	return count > 0, err
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}
