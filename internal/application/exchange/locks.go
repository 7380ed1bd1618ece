package exchange

import "sync"

// teamLocks serializa en proceso las mutaciones de un mismo equipo. Entre
// procesos lo hace el lock de fila (LockTeam) dentro de la transacción.
type teamLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newTeamLocks() *teamLocks {
	return &teamLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock bloquea el equipo y devuelve la función de unlock.
func (l *teamLocks) lock(teamID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[teamID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[teamID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
