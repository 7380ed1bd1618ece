package domain

import "time"

// SyncReport resume un ciclo de settlement sync. Solo para observabilidad:
// los fallos individuales se loguean y se cuentan en Errors.
type SyncReport struct {
	League         string
	StartedAt      time.Time
	Duration       time.Duration
	TeamsUpdated   int
	GamesProcessed int
	PayoutsIssued  int // payouts que repartieron algo (> 0)
	GamesSkipped   int // ya procesados (fence) o sin ganador
	LockedTeams    int
	Errors         int
	Skipped        bool // otro run de la misma liga estaba en curso
}
