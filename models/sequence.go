package models

// Sequence is a named counter for human-readable document numbers.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null"`
}
