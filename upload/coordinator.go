package upload

import (
	"context"
	"errors"
	"time"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
)

// Options configures a Coordinator.
type Options struct {
	Logger logging.Logger
}

// Coordinator submits files for remote ingestion and reconciles their
// processing status into the session's upload queue.
type Coordinator struct {
	svc    core.RemoteService
	logger logging.Logger
}

// NewCoordinator creates an upload coordinator over the given remote backend.
func NewCoordinator(svc core.RemoteService, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{svc: svc, logger: opts.Logger}
}

// Submit validates the request locally, issues the remote upload and enqueues
// a PENDING task. The remote service processes asynchronously; the returned
// snapshot is the caller's handle for polling. An empty StoreID targets the
// session's active store.
func (c *Coordinator) Submit(ctx context.Context, sess *core.Session, req core.UploadRequest) (core.UploadTask, error) {
	if req.StoreID == "" {
		st, ok := sess.Selected()
		if !ok {
			return core.UploadTask{}, &core.ConfigurationError{Op: "submit upload", Reason: "no store selected"}
		}
		req.StoreID = st.ID
	}
	if !sess.HasStore(req.StoreID) {
		return core.UploadTask{}, &core.ConfigurationError{Op: "submit upload", Reason: "store not in session cache: " + req.StoreID}
	}
	if len(req.Content) == 0 {
		return core.UploadTask{}, &core.ConfigurationError{Op: "submit upload", Reason: "file content must not be empty"}
	}
	if err := req.Metadata.Validate(); err != nil {
		return core.UploadTask{}, err
	}
	if err := req.Chunking.Validate(); err != nil {
		return core.UploadTask{}, err
	}

	handle, err := c.svc.UploadFile(ctx, req)
	if err != nil {
		return core.UploadTask{}, err
	}

	now := time.Now().UTC()
	task := core.UploadTask{
		ID:          core.NewID(),
		StoreID:     req.StoreID,
		DisplayName: req.DisplayName,
		MIMEType:    req.MIMEType,
		SizeBytes:   int64(len(req.Content)),
		Metadata:    req.Metadata,
		Chunking:    req.Chunking,
		Handle:      handle,
		Status:      core.UploadPending,
		Created:     now,
		Updated:     now,
	}
	sess.EnqueueTask(task)
	c.logger.Info("upload submitted", "task_id", task.ID, "store_id", task.StoreID, "file", task.DisplayName)
	return task, nil
}

// Poll observes the task's remote processing state once and applies it to the
// queued task. It is idempotent and safe to call repeatedly; the caller owns
// the cadence. Terminal statuses are served from the session without a remote
// call. A transient remote failure leaves the task at its last known status
// and surfaces the retryable error; only the remote service's own processing
// verdict can mark a task FAILED.
func (c *Coordinator) Poll(ctx context.Context, sess *core.Session, taskID string) (core.UploadStatus, error) {
	task, ok := sess.Task(taskID)
	if !ok {
		return core.UploadPending, &core.ConfigurationError{Op: "poll upload", Reason: "unknown task " + taskID}
	}
	if task.Status.Terminal() {
		return task.Status, nil
	}

	observed, err := c.svc.GetUploadStatus(ctx, task.Handle)
	if err != nil {
		var re *core.RemoteError
		if errors.As(err, &re) && re.Kind == core.RemoteNotFound {
			return task.Status, &core.StaleReferenceError{Resource: "file", ID: task.Handle.FileID}
		}
		return task.Status, err
	}

	next, _ := sess.AdvanceTask(taskID, observed)
	if next.Terminal() {
		c.logger.Info("upload reached terminal state", "task_id", taskID, "status", next.String())
	}
	return next, nil
}
