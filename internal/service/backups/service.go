package backups

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/backup"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/crypto"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// service implements the Service interface
type service struct {
	store     keyvalue.Store
	gateway   crypto.Gateway
	adapters  map[values.StoreType]stores.Adapter
	retention map[values.StoreType]values.RetentionWindow
	registry  *metrics.Registry
	logger    *zap.Logger
	clock     backup.Clock

	// restores serialize per (backupID, storeType)
	restoreMu sync.Mutex
	inFlight  map[string]*sync.Mutex
}

// NewService creates the backup/restore engine
func NewService(
	store keyvalue.Store,
	gateway crypto.Gateway,
	adapters []stores.Adapter,
	retention map[values.StoreType]values.RetentionWindow,
	registry *metrics.Registry,
	logger *zap.Logger,
) Service {
	byType := make(map[values.StoreType]stores.Adapter, len(adapters))
	for _, adapter := range adapters {
		byType[adapter.StoreType()] = adapter
	}

	return &service{
		store:     store,
		gateway:   gateway,
		adapters:  byType,
		retention: retention,
		registry:  registry,
		logger:    logger,
		clock:     backup.RealClock{},
		inFlight:  make(map[string]*sync.Mutex),
	}
}

// SetClock injects a clock for tests
func (s *service) SetClock(c backup.Clock) {
	s.clock = c
}

// Backup snapshots the live store of a family
func (s *service) Backup(ctx context.Context, storeType values.StoreType) (*backup.Record, error) {
	adapter, err := s.adapter(storeType)
	if err != nil {
		return nil, err
	}

	payload, err := adapter.Extract(ctx)
	if err != nil {
		return nil, err
	}

	return s.BackupPayload(ctx, storeType, payload)
}

// BackupPayload snapshots an explicit payload: full-payload checksum plus a
// critical-fields sub-checksum, encrypted at the family's sensitivity level.
func (s *service) BackupPayload(ctx context.Context, storeType values.StoreType, payload []byte) (*backup.Record, error) {
	adapter, err := s.adapter(storeType)
	if err != nil {
		return nil, err
	}

	critical, err := adapter.CriticalFields(payload)
	if err != nil {
		return nil, err
	}

	record, err := backup.NewRecord(
		storeType,
		values.ComputeChecksum(payload),
		values.ComputeChecksum(critical),
		len(critical) > 0 && string(critical) != "null",
	)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.gateway.Encrypt(ctx, payload, record.EncryptionLevel)
	if err != nil {
		return nil, err
	}

	envelope := backup.NewEnvelope(record, encrypted)
	if err := s.store.SetJSON(ctx, record.Key(), envelope); err != nil {
		return nil, errors.NewInternalError("failed to persist backup").WithCause(err)
	}

	if s.registry != nil {
		s.registry.BackupCounter.Add(ctx, 1)
	}
	s.logger.Info("backup written",
		zap.String("backup_id", record.BackupID.String()),
		zap.String("store_type", storeType.String()),
		zap.String("checksum", record.DataChecksum.Format()),
		zap.Bool("critical_data_present", record.CriticalDataPresent))

	return record, nil
}

// VerifyIntegrity decrypts the snapshot and recomputes both checksums
func (s *service) VerifyIntegrity(ctx context.Context, storeType values.StoreType, backupID uuid.UUID) (bool, error) {
	envelope, err := s.loadEnvelope(ctx, storeType, backupID)
	if err != nil {
		return false, err
	}

	payload, err := s.gateway.Decrypt(ctx, envelope.EncryptedStore, envelope.Metadata.EncryptionLevel)
	if err != nil {
		return false, err
	}

	if !envelope.Metadata.DataChecksum.Verify(payload) {
		return false, nil
	}

	adapter, err := s.adapter(storeType)
	if err != nil {
		return false, err
	}

	critical, err := adapter.CriticalFields(payload)
	if err != nil {
		return false, err
	}

	// An empty critical extract still hashes to a well-defined digest;
	// it must not read as a verification failure.
	return envelope.Metadata.CriticalChecksum.Verify(critical), nil
}

// ListBackups returns the records of a family, newest first
func (s *service) ListBackups(ctx context.Context, storeType values.StoreType) ([]*backup.Record, error) {
	keys, err := s.store.Keys(ctx, storeType.BackupKeyPrefix())
	if err != nil {
		return nil, errors.NewInternalError("failed to list backups").WithCause(err)
	}

	records := make([]*backup.Record, 0, len(keys))
	for _, key := range keys {
		var envelope backup.Envelope
		if err := s.store.GetJSON(ctx, key, &envelope); err != nil {
			s.logger.Warn("skipping unreadable backup envelope",
				zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, envelope.Metadata)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// CleanupExpired removes snapshots past their retention window
func (s *service) CleanupExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	removed := 0

	for _, storeType := range values.AllStoreTypes() {
		window := s.window(storeType)
		records, err := s.ListBackups(ctx, storeType)
		if err != nil {
			return removed, err
		}

		for _, record := range records {
			if !record.ExpiredAt(window, now) {
				continue
			}
			if err := s.store.Remove(ctx, record.Key()); err != nil {
				return removed, errors.NewInternalError("failed to remove expired backup").WithCause(err)
			}
			removed++
			s.logger.Info("expired backup removed",
				zap.String("backup_id", record.BackupID.String()),
				zap.String("store_type", storeType.String()))
		}
	}

	return removed, nil
}

func (s *service) adapter(storeType values.StoreType) (stores.Adapter, error) {
	adapter, ok := s.adapters[storeType]
	if !ok {
		return nil, errors.NewValidationError("UNKNOWN_STORE_TYPE",
			"no adapter registered for store type "+storeType.String())
	}
	return adapter, nil
}

func (s *service) window(storeType values.StoreType) values.RetentionWindow {
	if w, ok := s.retention[storeType]; ok && !w.IsZero() {
		return w
	}
	return values.DefaultRetentionWindow()
}

func (s *service) loadEnvelope(ctx context.Context, storeType values.StoreType, backupID uuid.UUID) (*backup.Envelope, error) {
	var envelope backup.Envelope
	key := storeType.BackupKey(backupID.String())
	if err := s.store.GetJSON(ctx, key, &envelope); err != nil {
		if keyvalue.IsNotFound(err) {
			return nil, errors.ErrBackupNotFound
		}
		return nil, errors.NewInternalError("failed to load backup envelope").WithCause(err)
	}

	if envelope.Metadata == nil {
		return nil, errors.NewIntegrityError("backup envelope has no metadata")
	}

	return &envelope, nil
}
