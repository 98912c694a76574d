package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/models"
)

// TaskRepository provides data access methods for durable document tasks.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.DocumentTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.DocumentTask, error) {
	var task models.DocumentTask
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkRunning transitions a task to running and counts the attempt.
func (r *TaskRepository) MarkRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.DocumentTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   models.TaskRunning,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

// MarkCompleted finishes a task.
func (r *TaskRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.DocumentTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.TaskCompleted,
			"last_error": "",
		}).Error
}

// MarkFailed records a terminal failure with its reason.
func (r *TaskRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	return r.db.WithContext(ctx).Model(&models.DocumentTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.TaskFailed,
			"last_error": reason,
		}).Error
}

// ListUnfinished returns tasks left pending or running, oldest first. Called
// at startup to re-enqueue work interrupted by a crash.
func (r *TaskRepository) ListUnfinished(ctx context.Context) ([]*models.DocumentTask, error) {
	var tasks []*models.DocumentTask
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.TaskStatus{models.TaskPending, models.TaskRunning}).
		Order("created_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByDocument returns a document's tasks, newest first.
func (r *TaskRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentTask, error) {
	var tasks []*models.DocumentTask
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("created_at DESC").Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
