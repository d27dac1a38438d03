// Package archive moves aged backup objects into the archive tier. The
// protocol for one key is strictly ordered: read backup, compress, write
// archive, re-read and verify the compressed bytes, and only then delete
// the backup source. A failure at any step keeps the backup record intact
// and rolls back any partial archive write, so at least one live copy
// survives every single failure point.
package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/tiervault/tiervault/internal/compress"
	"github.com/tiervault/tiervault/internal/integrity"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/types"
)

// Scheduler selects aged backup objects and relocates them, compressed,
// into the archive tier.
type Scheduler struct {
	backup  storage.ObjectStore
	archive storage.ObjectStore
	codec   *compress.Codec
	logger  *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewScheduler creates an archival scheduler over the two tiers.
func NewScheduler(backup, archive storage.ObjectStore, codec *compress.Codec) *Scheduler {
	return &Scheduler{
		backup:  backup,
		archive: archive,
		codec:   codec,
		logger:  slog.Default().With("component", "archive"),
		now:     time.Now,
	}
}

// SelectCandidates lists the backup tier and returns the keys of objects at
// or past the age threshold. Order of the returned keys is unspecified;
// callers must not rely on it.
func (s *Scheduler) SelectCandidates(ctx context.Context, ageThreshold time.Duration) ([]string, error) {
	infos, err := s.backup.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-ageThreshold)

	var candidates []string
	for _, info := range infos {
		if !info.LastModified.After(cutoff) {
			candidates = append(candidates, info.Key)
		}
	}

	s.logger.Debug("archival candidates selected",
		"backup_objects", len(infos), "candidates", len(candidates), "age_threshold", ageThreshold)
	return candidates, nil
}

// Archive relocates one backup object into the archive tier. The backup
// record is deleted only strictly after the compressed archive copy has
// been re-read and digest-verified, never before and never concurrently.
func (s *Scheduler) Archive(ctx context.Context, key string) types.TaskOutcome {
	source, err := s.backup.Get(ctx, key)
	if err != nil {
		return s.outcome(key, err)
	}

	compressed, err := s.codec.Compress(source.Data)
	if err != nil {
		return s.outcome(key, err)
	}
	compressedDigest := integrity.Digest(compressed)

	if _, err := s.archive.Put(ctx, key, compressed); err != nil {
		s.rollback(ctx, key)
		return s.outcome(key, err)
	}

	written, err := s.archive.Get(ctx, key)
	if err != nil {
		s.rollback(ctx, key)
		return s.outcome(key, err)
	}

	if !integrity.Equal(written.Digest, compressedDigest) {
		s.logger.Error("archive write failed digest verification",
			"key", key, "expected", compressedDigest, "actual", written.Digest)
		s.rollback(ctx, key)
		return s.outcome(key, errors.New(errors.ErrCodeDigestMismatch,
			"archived content does not match compressed source").
			WithComponent("archive").WithContext("key", key))
	}

	// The archive copy is confirmed durable; the backup record is now
	// redundant. A crash before this delete leaves two live copies, which
	// the next sweep resolves by re-verifying the archive object.
	if err := s.backup.Delete(ctx, key); err != nil {
		s.logger.Warn("archive copy verified but backup cleanup failed; next sweep will retry",
			"key", key, "error", err)
		return s.outcome(key, err)
	}

	s.logger.Info("object archived",
		"key", key, "original_size", len(source.Data), "compressed_size", len(compressed))
	return types.TaskOutcome{
		Key:    key,
		Stage:  types.StageArchival,
		Status: types.StatusSuccess,
		Record: &types.ObjectRecord{
			Key:          key,
			Tier:         types.TierArchive,
			SizeBytes:    int64(len(compressed)),
			Digest:       compressedDigest,
			LastModified: written.LastModified,
			Compressed:   true,
		},
	}
}

// rollback removes a partial archive write. Failure to roll back is logged
// and tolerated: a stale unverified archive object is harmless, since the
// backup record still exists and the next sweep overwrites the partial copy.
func (s *Scheduler) rollback(ctx context.Context, key string) {
	if err := s.archive.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to roll back partial archive write", "key", key, "error", err)
	}
}

func (s *Scheduler) outcome(key string, err error) types.TaskOutcome {
	code := errors.CodeOf(err)
	status := types.StatusFailed
	if code == errors.ErrCodeObjectNotFound {
		status = types.StatusSkipped
	}
	return types.TaskOutcome{
		Key:         key,
		Stage:       types.StageArchival,
		Status:      status,
		ErrorCode:   string(code),
		ErrorDetail: err.Error(),
	}
}
