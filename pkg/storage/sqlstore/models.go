package sqlstore

import "time"

// SequenceRow is the per-key counter record. Version backs the
// optimistic update; Witness records the last reset scope marker.
type SequenceRow struct {
	ID           uint      `gorm:"primaryKey"`
	KeyName      string    `gorm:"uniqueIndex;size:255;not null"`
	CurrentValue int64     `gorm:"not null"`
	Version      int64     `gorm:"not null"`
	Witness      string    `gorm:"size:32"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName maps SequenceRow to id_sequences.
func (SequenceRow) TableName() string { return "id_sequences" }

// ConfigRow stores one key configuration as a JSON blob.
type ConfigRow struct {
	ID         uint      `gorm:"primaryKey"`
	KeyName    string    `gorm:"uniqueIndex;size:255;not null"`
	IDType     string    `gorm:"size:16;not null"`
	ConfigJSON string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName maps ConfigRow to id_configs.
func (ConfigRow) TableName() string { return "id_configs" }

// TokenRow stores the hash of one key token.
type TokenRow struct {
	ID        uint      `gorm:"primaryKey"`
	KeyName   string    `gorm:"uniqueIndex;size:255;not null"`
	TokenHash string    `gorm:"size:64;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName maps TokenRow to key_tokens.
func (TokenRow) TableName() string { return "key_tokens" }

// LeaseRow is one snowflake worker-id lease. The composite unique index
// is what makes lease grants race-free: a double grant is a constraint
// violation and retried.
type LeaseRow struct {
	ID          uint      `gorm:"primaryKey"`
	KeyName     string    `gorm:"uniqueIndex:idx_lease_key_worker;size:255;not null"`
	WorkerID    int       `gorm:"uniqueIndex:idx_lease_key_worker;not null"`
	Fingerprint string    `gorm:"size:128;not null"`
	ExpiresAt   time.Time `gorm:"not null"`
}

// TableName maps LeaseRow to worker_leases.
func (LeaseRow) TableName() string { return "worker_leases" }

// LockRow is one distributed lock.
type LockRow struct {
	LockKey   string    `gorm:"primaryKey;size:255"`
	OwnerID   string    `gorm:"size:128;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// TableName maps LockRow to distributed_locks.
func (LockRow) TableName() string { return "distributed_locks" }

// SchemaRow records one applied schema version.
type SchemaRow struct {
	Version   int       `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName maps SchemaRow to schema_versions.
func (SchemaRow) TableName() string { return "schema_versions" }

// allModels returns every model for AutoMigrate.
func allModels() []any {
	return []any{
		&SequenceRow{},
		&ConfigRow{},
		&TokenRow{},
		&LeaseRow{},
		&LockRow{},
		&SchemaRow{},
	}
}
