// Package backup produces verified duplicates of intake objects in the
// backup tier. The protocol is read, copy, re-read, compare digests; a
// mismatch tears the partial copy back down so the backup tier never holds
// bytes that differ from intake.
package backup

import (
	"context"
	"log/slog"

	"github.com/tiervault/tiervault/internal/integrity"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/types"
)

// Coordinator copies intake objects into the backup tier and verifies
// copy fidelity.
type Coordinator struct {
	intake storage.ObjectStore
	backup storage.ObjectStore
	logger *slog.Logger
}

// NewCoordinator creates a backup coordinator over the two tiers.
func NewCoordinator(intake, backup storage.ObjectStore) *Coordinator {
	return &Coordinator{
		intake: intake,
		backup: backup,
		logger: slog.Default().With("component", "backup"),
	}
}

// BackupStore exposes the backup tier store, used by the sweep to compare
// tier listings.
func (c *Coordinator) BackupStore() storage.ObjectStore {
	return c.backup
}

// Backup duplicates one intake object into the backup tier and verifies the
// copy by re-reading it. Re-running for an already-backed-up key overwrites
// with identical bytes, which is safe and reported as success. Retries are
// the caller's policy; this call never retries internally.
func (c *Coordinator) Backup(ctx context.Context, key string) types.TaskOutcome {
	source, err := c.intake.Get(ctx, key)
	if err != nil {
		return c.outcome(key, err)
	}

	if _, err := c.backup.Put(ctx, key, source.Data); err != nil {
		return c.outcome(key, err)
	}

	// Re-read the copy; trusting the digest returned by Put would not
	// catch corruption introduced on the write path.
	copied, err := c.backup.Get(ctx, key)
	if err != nil {
		return c.outcome(key, err)
	}

	if !integrity.Equal(copied.Digest, source.Digest) {
		c.logger.Error("backup copy digest mismatch, removing partial copy",
			"key", key, "intake_digest", source.Digest, "backup_digest", copied.Digest)

		if delErr := c.backup.Delete(ctx, key); delErr != nil {
			c.logger.Error("failed to remove mismatched backup copy", "key", key, "error", delErr)
		}

		return c.outcome(key, errors.New(errors.ErrCodeDigestMismatch, "backup copy does not match intake content").
			WithComponent("backup").WithContext("key", key))
	}

	c.logger.Debug("object backed up", "key", key, "size", len(source.Data))
	return types.TaskOutcome{
		Key:    key,
		Stage:  types.StageBackup,
		Status: types.StatusSuccess,
		Record: &types.ObjectRecord{
			Key:          key,
			Tier:         types.TierBackup,
			SizeBytes:    int64(len(copied.Data)),
			Digest:       copied.Digest,
			LastModified: copied.LastModified,
		},
	}
}

// outcome converts an error into the per-object task outcome. An object
// that vanished between listing and reading was handled by another run, so
// it is skipped rather than failed.
func (c *Coordinator) outcome(key string, err error) types.TaskOutcome {
	code := errors.CodeOf(err)
	status := types.StatusFailed
	if code == errors.ErrCodeObjectNotFound {
		status = types.StatusSkipped
	}
	return types.TaskOutcome{
		Key:         key,
		Stage:       types.StageBackup,
		Status:      status,
		ErrorCode:   string(code),
		ErrorDetail: err.Error(),
	}
}
