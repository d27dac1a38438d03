// Package pipeline drives one batch run of the storage lifecycle:
// validation on upload, backup of intake objects, and the age-based
// archival sweep. The orchestrator owns stage sequencing, per-key
// deduplication, retry policy, and outcome aggregation; the per-object
// protocols live in the backup and archive packages.
package pipeline

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tiervault/tiervault/internal/archive"
	"github.com/tiervault/tiervault/internal/backup"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/internal/telemetry"
	"github.com/tiervault/tiervault/internal/validate"
	"github.com/tiervault/tiervault/internal/worker"
	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/retry"
	"github.com/tiervault/tiervault/pkg/types"
)

// State is the orchestrator's position in the batch run state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateBackingUp
	StateArchiving
	StateReporting
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateBackingUp:
		return "backing-up"
	case StateArchiving:
		return "archiving"
	case StateReporting:
		return "reporting"
	default:
		return "unknown"
	}
}

// Options configures one orchestrator.
type Options struct {
	AgeThreshold   time.Duration
	MaxConcurrency int
	Retry          retry.Config
}

// Orchestrator is the top-level driver for upload intake and the scheduled
// backup-and-archival sweep. It holds no durable state; every run
// reconstructs the world by listing the tier stores.
type Orchestrator struct {
	intake    storage.ObjectStore
	validator *validate.Validator
	backups   *backup.Coordinator
	archiver  *archive.Scheduler
	pool      *worker.Pool
	retryer   *retry.Retryer
	sink      telemetry.Sink
	logger    *slog.Logger

	ageThreshold time.Duration

	// runMu serializes batch runs: per-key exclusivity inside a run is
	// guaranteed by dedup at dispatch, so two overlapping runs are the
	// only way a key could be touched twice concurrently.
	runMu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// New creates an orchestrator over the three tier stores.
func New(intake storage.ObjectStore, validator *validate.Validator, backups *backup.Coordinator,
	archiver *archive.Scheduler, sink telemetry.Sink, opts Options) *Orchestrator {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Orchestrator{
		intake:       intake,
		validator:    validator,
		backups:      backups,
		archiver:     archiver,
		pool:         worker.New(opts.MaxConcurrency),
		retryer:      retry.New(opts.Retry),
		sink:         sink,
		logger:       slog.Default().With("component", "pipeline"),
		ageThreshold: opts.AgeThreshold,
		state:        StateIdle,
	}
}

// State reports the orchestrator's current position in the run.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// Upload validates one uploaded file and, when accepted, stores it in the
// intake tier. Validation errors are returned synchronously with the
// specific rejection reason.
func (o *Orchestrator) Upload(ctx context.Context, fileName string, data []byte) (types.ValidationResult, error) {
	o.setState(StateValidating)
	defer o.setState(StateIdle)

	result, err := o.validator.Validate(fileName, int64(len(data)))
	if err != nil {
		o.logger.Warn("upload rejected", "file", fileName, "reason", result.Reason)
		o.sink.RecordOutcome(types.TaskOutcome{
			Key:         fileName,
			Stage:       types.StageValidation,
			Status:      types.StatusFailed,
			ErrorCode:   string(errors.CodeOf(err)),
			ErrorDetail: err.Error(),
		})
		return result, err
	}

	digest, err := o.intake.Put(ctx, fileName, data)
	if err != nil {
		return types.ValidationResult{Accepted: false, Reason: string(errors.CodeOf(err))}, err
	}
	o.sink.RecordOutcome(types.TaskOutcome{
		Key:    fileName,
		Stage:  types.StageValidation,
		Status: types.StatusSuccess,
		Record: &types.ObjectRecord{
			Key:          fileName,
			Tier:         types.TierIntake,
			SizeBytes:    int64(len(data)),
			Digest:       digest,
			LastModified: time.Now(),
		},
	})

	o.sink.Emit(telemetry.Event{
		Name: "upload",
		Fields: map[string]interface{}{
			"filename":         fileName,
			"size_bytes":       len(data),
			"content_type":     mime.TypeByExtension(filepath.Ext(fileName)),
			"upload_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})

	return result, nil
}

// RunSweep executes one batch run: back up intake objects missing or stale
// in the backup tier, then archive backup objects past the age threshold,
// then aggregate and report. Per-object failures never abort the run; only
// a store-wide listing failure does, reported as a single batch-level
// failure.
func (o *Orchestrator) RunSweep(ctx context.Context) (types.BatchSummary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	defer o.setState(StateIdle)

	summary := types.BatchSummary{
		StartedAt: time.Now(),
		Stages:    make(map[types.Stage]types.StageCounts),
	}

	o.setState(StateBackingUp)
	backupKeys, err := o.selectBackupKeys(ctx)
	if err != nil {
		return o.abort(summary, "listing stores for backup stage failed", err)
	}
	backupTasks := make([]worker.Task, 0, len(backupKeys))
	for _, key := range backupKeys {
		key := key
		backupTasks = append(backupTasks, worker.Task{
			Key: key,
			Run: o.withRetry(func(ctx context.Context) types.TaskOutcome {
				return o.backups.Backup(ctx, key)
			}),
		})
	}
	for _, outcome := range o.pool.Run(ctx, types.StageBackup, backupTasks) {
		summary.Add(outcome)
		o.sink.RecordOutcome(outcome)
	}

	o.setState(StateArchiving)
	candidates, err := o.archiver.SelectCandidates(ctx, o.ageThreshold)
	if err != nil {
		return o.abort(summary, "listing archival candidates failed", err)
	}
	archiveTasks := make([]worker.Task, 0, len(candidates))
	for _, key := range dedupe(candidates) {
		key := key
		archiveTasks = append(archiveTasks, worker.Task{
			Key: key,
			Run: o.withRetry(func(ctx context.Context) types.TaskOutcome {
				return o.archiver.Archive(ctx, key)
			}),
		})
	}
	for _, outcome := range o.pool.Run(ctx, types.StageArchival, archiveTasks) {
		summary.Add(outcome)
		o.sink.RecordOutcome(outcome)
	}

	o.setState(StateReporting)
	summary.FinishedAt = time.Now()
	o.sink.RecordRun(summary)
	o.logger.Info("sweep complete",
		"backed_up", summary.Stages[types.StageBackup],
		"archived", summary.Stages[types.StageArchival],
		"duration", summary.FinishedAt.Sub(summary.StartedAt))

	return summary, nil
}

// selectBackupKeys lists both tiers and returns intake keys that are absent
// from the backup tier or stale in it (intake modified after the copy, or
// sizes diverging). Keys are deduplicated and sorted for deterministic
// dispatch; execution order across keys is still unspecified.
func (o *Orchestrator) selectBackupKeys(ctx context.Context) ([]string, error) {
	intakeObjects, err := o.intake.List(ctx)
	if err != nil {
		return nil, err
	}
	backupObjects, err := o.backups.BackupStore().List(ctx)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]types.ObjectInfo, len(backupObjects))
	for _, info := range backupObjects {
		existing[info.Key] = info
	}

	seen := make(map[string]bool, len(intakeObjects))
	var keys []string
	for _, info := range intakeObjects {
		if seen[info.Key] {
			continue
		}
		seen[info.Key] = true

		copied, ok := existing[info.Key]
		if ok && copied.SizeBytes == info.SizeBytes && !copied.LastModified.Before(info.LastModified) {
			continue
		}
		keys = append(keys, info.Key)
	}

	sort.Strings(keys)
	return keys, nil
}

// withRetry wraps a per-object task with the orchestrator's retry policy.
// Only outcomes carrying a retryable error code are retried; the final
// attempt's outcome is returned either way. A context canceled before the
// first attempt means the task never ran, which is reported as Skipped so
// every dispatched task still lands in the Success/Failed/Skipped taxonomy.
func (o *Orchestrator) withRetry(run func(ctx context.Context) types.TaskOutcome) func(ctx context.Context) types.TaskOutcome {
	return func(ctx context.Context) types.TaskOutcome {
		var last types.TaskOutcome
		err := o.retryer.DoWithContext(ctx, func(ctx context.Context) error {
			last = run(ctx)
			if last.Status == types.StatusFailed &&
				errors.IsRetryableByDefault(errors.ErrorCode(last.ErrorCode)) {
				return errors.New(errors.ErrorCode(last.ErrorCode), last.ErrorDetail)
			}
			return nil
		})
		if err != nil && last.Status == "" {
			return types.TaskOutcome{
				Status:      types.StatusSkipped,
				ErrorCode:   string(errors.ErrCodeOperationCanceled),
				ErrorDetail: err.Error(),
			}
		}
		return last
	}
}

// abort finalizes a run that failed at the batch level.
func (o *Orchestrator) abort(summary types.BatchSummary, cause string, err error) (types.BatchSummary, error) {
	summary.FinishedAt = time.Now()
	summary.Aborted = true
	summary.AbortCause = cause + ": " + err.Error()
	o.sink.RecordRun(summary)
	o.logger.Error("sweep aborted", "cause", cause, "error", err)
	return summary, err
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
