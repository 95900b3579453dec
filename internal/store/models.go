package store

import (
	"time"
)

// BookBronze is one cleaned checkout row as persisted to the bronze layer.
// Raw columns are kept next to the typed ones so downstream consumers can
// audit every repair against the original cell values.
type BookBronze struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	BatchID         string `gorm:"type:varchar(36);not null;index"`
	BookTitle       string `gorm:"type:text"`
	CustomerIDRaw   string `gorm:"type:text"`
	CheckoutDateRaw string `gorm:"type:text"`
	ReturnDateRaw   string `gorm:"type:text"`

	CustomerID           *int64
	CheckoutDate         *time.Time
	ReturnDate           *time.Time
	LoanDurationDays     *int
	NegativeDurationFlag *bool
	CheckoutDateISO      string `gorm:"type:varchar(10)"`
	ReturnDateISO        string `gorm:"type:varchar(10)"`
	ExpectedReturnDate   *time.Time
	OverdueDays          *int
	IsOverdue            bool

	LoadedAt time.Time `gorm:"not null"`
}

// TableName keeps the bronze naming convention.
func (BookBronze) TableName() string { return "books_bronze" }

// CustomerBronze is one normalized customer row in the bronze layer.
type CustomerBronze struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	BatchID       string `gorm:"type:varchar(36);not null;index"`
	CustomerIDRaw string `gorm:"type:text"`
	CustomerID    *int64
	Name          string    `gorm:"type:text"`
	LoadedAt      time.Time `gorm:"not null"`
}

// TableName keeps the bronze naming convention.
func (CustomerBronze) TableName() string { return "customers_bronze" }

// MetricsLog is one row per dataset per run summarizing what the pipeline
// dropped at each stage boundary.
type MetricsLog struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	BatchID           string    `gorm:"type:varchar(36);not null;index"`
	Dataset           string    `gorm:"type:varchar(32);not null"`
	InitialCount      int       `gorm:"not null"`
	FinalCount        int       `gorm:"not null"`
	DuplicatesDropped int       `gorm:"not null"`
	MissingDropped    int       `gorm:"not null"`
	TotalDropped      int       `gorm:"not null"`
	RetentionRate     float64   `gorm:"not null"`
	RanAt             time.Time `gorm:"not null"`
}

// TableName keeps the original log table name.
func (MetricsLog) TableName() string { return "DE_metrics_log" }
