package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/choudian/document-QA-system/internal/config"
	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/service"
	"github.com/choudian/document-QA-system/pkg/logger"
)

const parseRetryDelay = 2 * time.Second

// Runner 是文档处理流水线的后台执行器。任务先落库再入队，进程重启时
// 未完成的任务行会被重新入队，保证至少一次执行；各阶段依据文档状态
// 自行保证幂等。
type Runner struct {
	tasks        *repository.TaskRepository
	pipeline     *service.VectorizationService
	concurrency  int
	parseRetries int
	queue        chan string // task id
	wg           sync.WaitGroup
	cancel       context.CancelFunc
	log          *logger.Logger
}

func NewRunner(tasks *repository.TaskRepository, pipeline *service.VectorizationService, cfg *config.WorkerConfig) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	parseRetries := cfg.ParseRetries
	if parseRetries <= 0 {
		parseRetries = 3
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	return &Runner{
		tasks:        tasks,
		pipeline:     pipeline,
		concurrency:  concurrency,
		parseRetries: parseRetries,
		queue:        make(chan string, capacity),
		log:          logger.New("task"),
	}
}

// Start 启动 worker，并把库中遗留的未完成任务重新入队。
func (r *Runner) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}

	unfinished, err := r.tasks.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("加载未完成任务失败: %w", err)
	}
	for _, t := range unfinished {
		select {
		case r.queue <- t.ID:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(unfinished) > 0 {
		r.log.WithField("count", len(unfinished)).Info("重新入队未完成的文档任务")
	}

	r.log.WithField("concurrency", r.concurrency).Info("文档任务执行器已启动")
	return nil
}

// Stop 停止接收新任务并等待在执行的任务结束。
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Enqueue 持久化任务行并发出执行信号。信号通道满时只落库不阻塞，
// 任务会在下次重启时被补跑。
func (r *Runner) Enqueue(ctx context.Context, t *models.DocumentTask) error {
	if err := r.tasks.Create(ctx, t); err != nil {
		return err
	}
	select {
	case r.queue <- t.ID:
	default:
		r.log.WithField("task_id", t.ID).Warn("任务队列已满，任务将延迟执行")
	}
	return nil
}

var _ service.TaskEnqueuer = (*Runner)(nil)

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case taskID := <-r.queue:
			r.run(ctx, taskID)
		}
	}
}

// run 执行一个任务。任何 panic 被吸收并标记任务失败，worker 永不退出。
func (r *Runner) run(ctx context.Context, taskID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("task_id", taskID).Error(fmt.Sprintf("任务执行 panic: %v", rec))
			if err := r.tasks.MarkFailed(ctx, taskID, fmt.Sprintf("panic: %v", rec)); err != nil {
				r.log.WithError(err).Error("标记任务失败状态出错")
			}
		}
	}()

	t, err := r.tasks.GetByID(ctx, taskID)
	if err != nil {
		r.log.WithError(err).WithField("task_id", taskID).Error("加载任务失败")
		return
	}
	if t.Status == models.TaskCompleted {
		return
	}

	if err := r.tasks.MarkRunning(ctx, taskID); err != nil {
		r.log.WithError(err).WithField("task_id", taskID).Error("标记任务运行状态失败")
		return
	}

	var runErr error
	switch t.TaskType {
	case models.TaskTypeProcess:
		runErr = r.process(ctx, t)
	default:
		runErr = fmt.Errorf("未知的任务类型: %s", t.TaskType)
	}

	if runErr != nil {
		r.log.WithError(runErr).WithFields(map[string]interface{}{
			"task_id": t.ID, "document_id": t.DocumentID,
		}).Error("文档任务执行失败")
		if err := r.tasks.MarkFailed(ctx, t.ID, runErr.Error()); err != nil {
			r.log.WithError(err).Error("标记任务失败状态出错")
		}
		return
	}

	if err := r.tasks.MarkCompleted(ctx, t.ID); err != nil {
		r.log.WithError(err).Error("标记任务完成状态出错")
	}
}

// process 依次执行解析与向量化，成功后清理被替代的旧版本。
// 解析阶段有独立的重试预算，属临时性失败（存储抖动等）最常见的环节。
func (r *Runner) process(ctx context.Context, t *models.DocumentTask) error {
	var payload models.TaskPayload
	if len(t.Payload) > 0 {
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return fmt.Errorf("任务负载无效: %w", err)
		}
	}

	var parseErr error
	for attempt := 1; attempt <= r.parseRetries; attempt++ {
		parseErr = r.pipeline.Parse(ctx, t.TenantID, t.DocumentID)
		if parseErr == nil {
			break
		}
		r.log.WithError(parseErr).WithFields(map[string]interface{}{
			"document_id": t.DocumentID, "attempt": attempt,
		}).Warn("解析失败，准备重试")
		select {
		case <-time.After(parseRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if parseErr != nil {
		return fmt.Errorf("解析失败（已重试 %d 次）: %w", r.parseRetries, parseErr)
	}

	if err := r.pipeline.Vectorize(ctx, t.TenantID, t.DocumentID); err != nil {
		return err
	}

	r.pipeline.CleanupSuperseded(ctx, t.TenantID, payload.PriorDocumentID)
	return nil
}
