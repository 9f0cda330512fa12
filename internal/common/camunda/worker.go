package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"viora-nlu/internal/common/logger"
)

// JobHandler is implemented by every task handler. Handle completes or
// fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Concurrency   int
	Timeout       time.Duration
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for opts.TaskType.
func StartWorker(client zbc.Client, opts WorkerOptions, handler JobHandler, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	step := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(handler.Handle)

	cmd := step.Name("viora-nlu")
	if opts.MaxJobsActive > 0 {
		cmd = cmd.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Concurrency > 0 {
		cmd = cmd.Concurrency(opts.Concurrency)
	}
	if opts.Timeout > 0 {
		cmd = cmd.Timeout(opts.Timeout)
	}

	w := &Worker{worker: cmd.Open(), logger: log, taskType: opts.TaskType}
	log.Info("Worker started", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"concurrency":   opts.Concurrency,
	})
	return w
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
