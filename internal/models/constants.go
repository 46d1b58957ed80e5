package models

// DateLayout is the wire and storage format of booking dates.
const DateLayout = "2006-01-02"

const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

const (
	// DefaultNotificationQueueSize размер очереди уведомлений
	DefaultNotificationQueueSize = 256

	// MaxExportRangeDays ограничение на диапазон выгрузки
	MaxExportRangeDays = 366
)
