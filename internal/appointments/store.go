package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew = "appointments.store.new"
	opLoadAll  = "appointments.load_all"
	opPut         = "appointments.put"
	opInsert      = "appointments.insert"
	opSetApproved = "appointments.set_approved"
	opDelete      = "appointments.delete"

	fieldToken = "token"

	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"
	reasonInvalidToken    = "invalid_token"
	reasonWriteRejected   = "write_rejected"
	reasonNotFound        = "not_found"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store persists appointment records keyed by token.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, reasonMissingDatabase, errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// LoadAll returns every stored appointment ordered by token.
func (s *Store) LoadAll(ctx context.Context) ([]Appointment, error) {
	if s.db == nil {
		s.logError(opLoadAll, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opLoadAll, reasonMissingDatabase, errMissingDatabase)
	}

	var records []Appointment
	if err := s.db.WithContext(ctx).
		Order(fieldToken + " ASC").
		Find(&records).Error; err != nil {
		s.logError(opLoadAll, reasonQueryFailed, err)
		return nil, newServiceError(opLoadAll, reasonQueryFailed, err)
	}
	return records, nil
}

// Put inserts the record or replaces the stored record with the same token.
// The original creation time survives replacement.
func (s *Store) Put(ctx context.Context, record Appointment) error {
	if s.db == nil {
		s.logError(opPut, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opPut, reasonMissingDatabase, errMissingDatabase)
	}
	if record.Token <= 0 {
		err := fmt.Errorf("%w: %d", ErrInvalidToken, record.Token)
		s.logError(opPut, reasonInvalidToken, err)
		return newServiceError(opPut, reasonInvalidToken, err)
	}

	if record.CreatedAtSeconds == 0 {
		record.CreatedAtSeconds = s.clock().UTC().Unix()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: fieldToken}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "date", "time", "approved"}),
		}).
		Create(&record).Error
	if err != nil {
		s.logError(opPut, reasonWriteRejected, err, zap.Int64(fieldToken, record.Token.Int64()))
		return newServiceError(opPut, reasonWriteRejected, fmt.Errorf("%w: %w", ErrWriteRejected, err))
	}

	s.logger.Debug("appointment saved", zap.Int64(fieldToken, record.Token.Int64()))
	return nil
}

// Insert stores a new record. A record already carrying the token is left
// untouched and the insert fails.
func (s *Store) Insert(ctx context.Context, record Appointment) error {
	if s.db == nil {
		s.logError(opInsert, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opInsert, reasonMissingDatabase, errMissingDatabase)
	}
	if record.Token <= 0 {
		err := fmt.Errorf("%w: %d", ErrInvalidToken, record.Token)
		s.logError(opInsert, reasonInvalidToken, err)
		return newServiceError(opInsert, reasonInvalidToken, err)
	}

	if record.CreatedAtSeconds == 0 {
		record.CreatedAtSeconds = s.clock().UTC().Unix()
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opInsert, reasonWriteRejected, err, zap.Int64(fieldToken, record.Token.Int64()))
		return newServiceError(opInsert, reasonWriteRejected, fmt.Errorf("%w: %w", ErrWriteRejected, err))
	}

	s.logger.Debug("appointment inserted", zap.Int64(fieldToken, record.Token.Int64()))
	return nil
}

// SetApproved updates the approval flag of an existing record. It never
// creates a record; a missing token yields ErrAppointmentNotFound.
func (s *Store) SetApproved(ctx context.Context, token Token, approved bool) error {
	if s.db == nil {
		s.logError(opSetApproved, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opSetApproved, reasonMissingDatabase, errMissingDatabase)
	}

	result := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where(fieldToken+" = ?", token.Int64()).
		Update("approved", approved)
	if result.Error != nil {
		s.logError(opSetApproved, reasonWriteRejected, result.Error, zap.Int64(fieldToken, token.Int64()))
		return newServiceError(opSetApproved, reasonWriteRejected, fmt.Errorf("%w: %w", ErrWriteRejected, result.Error))
	}
	if result.RowsAffected == 0 {
		return newServiceError(opSetApproved, reasonNotFound, fmt.Errorf("%w: %d", ErrAppointmentNotFound, token))
	}

	s.logger.Debug("appointment approval saved", zap.Int64(fieldToken, token.Int64()), zap.Bool("approved", approved))
	return nil
}

// Delete removes the record with the given token. Missing tokens are not an error.
func (s *Store) Delete(ctx context.Context, token Token) error {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opDelete, reasonMissingDatabase, errMissingDatabase)
	}

	err := s.db.WithContext(ctx).
		Where(fieldToken+" = ?", token.Int64()).
		Delete(&Appointment{}).Error
	if err != nil {
		s.logError(opDelete, reasonWriteRejected, err, zap.Int64(fieldToken, token.Int64()))
		return newServiceError(opDelete, reasonWriteRejected, fmt.Errorf("%w: %w", ErrWriteRejected, err))
	}

	s.logger.Debug("appointment deleted", zap.Int64(fieldToken, token.Int64()))
	return nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("appointment store error", attrs...)
}
