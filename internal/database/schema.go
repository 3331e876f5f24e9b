package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSchemaDowngrade indicates that the stored schema is newer than the requested version.
var ErrSchemaDowngrade = errors.New("database: stored schema version is newer than requested")

type schemaRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	Version          int    `gorm:"column:version;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (schemaRecord) TableName() string {
	return "register_schema"
}

type schemaStep struct {
	version int
	name    string
	apply   func(*gorm.DB) error
}

// schemaSteps lists the setup hooks in version order. A step runs only when
// the stored version is below its own.
var schemaSteps = []schemaStep{
	{version: 1, name: "create_appointments", apply: createAppointmentsStore},
}

func upgradeSchema(db *gorm.DB, name string, target int, logger *zap.Logger) error {
	if err := db.AutoMigrate(&schemaRecord{}); err != nil {
		return err
	}

	current := 0
	var record schemaRecord
	err := db.Where("name = ?", name).Take(&record).Error
	switch {
	case err == nil:
		current = record.Version
	case errors.Is(err, gorm.ErrRecordNotFound):
		current = 0
	default:
		return err
	}

	if current > target {
		return fmt.Errorf("%w: stored %d, requested %d", ErrSchemaDowngrade, current, target)
	}
	if current == target {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, step := range schemaSteps {
			if step.version <= current || step.version > target {
				continue
			}
			if err := step.apply(tx); err != nil {
				return fmt.Errorf("schema step %s: %w", step.name, err)
			}
			if logger != nil {
				logger.Info("schema step applied",
					zap.String("database", name),
					zap.String("step", step.name),
					zap.Int("version", step.version))
			}
		}
		return tx.Save(&schemaRecord{
			Name:             name,
			Version:          target,
			AppliedAtSeconds: time.Now().UTC().Unix(),
		}).Error
	})
}

func createAppointmentsStore(db *gorm.DB) error {
	return db.AutoMigrate(&appointments.Appointment{})
}
