package services

import (
	"context"

	"hospital-billing/models"

	"gorm.io/gorm"
)

// Catalog is read-only reference data owned outside the billing core.
type Catalog interface {
	LabTest(ctx context.Context, name string) (*models.LabCatalogEntry, error)
	ConsultationFee(ctx context.Context, doctorID string) (models.Money, error)
}

// DBCatalog reads the lab_catalog and doctors tables.
type DBCatalog struct {
	db *gorm.DB
}

func NewDBCatalog(db *gorm.DB) *DBCatalog {
	return &DBCatalog{db: db}
}

func (c *DBCatalog) LabTest(ctx context.Context, name string) (*models.LabCatalogEntry, error) {
	var entry models.LabCatalogEntry
	if err := c.db.WithContext(ctx).Where("name = ?", name).First(&entry).Error; err != nil {
		return nil, notFoundOr(err, "lab test", name)
	}
	return &entry, nil
}

func (c *DBCatalog) ConsultationFee(ctx context.Context, doctorID string) (models.Money, error) {
	var doctor models.Doctor
	if err := c.db.WithContext(ctx).Select("id", "consultation_fee").Where("id = ?", doctorID).First(&doctor).Error; err != nil {
		return 0, notFoundOr(err, "doctor", doctorID)
	}
	return doctor.ConsultationFee, nil
}
