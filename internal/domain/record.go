package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Record es el récord W-L-T de un equipo. En NHL el tercer número son las
// derrotas en prórroga; lo guardamos en Ties igual que el feed lo resume.
type Record struct {
	Wins   int
	Losses int
	Ties   int
}

// String formatea como "W-L-T".
func (r Record) String() string {
	return fmt.Sprintf("%d-%d-%d", r.Wins, r.Losses, r.Ties)
}

// ParseRecord parsea un resumen "W-L" o "W-L-T". Cualquier parte no numérica o
// negativa es un error: el caller decide si salta el equipo.
func ParseRecord(summary string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(summary), "-")
	if len(parts) < 2 || len(parts) > 3 {
		return Record{}, fmt.Errorf("parse record %q: want W-L or W-L-T", summary)
	}

	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Record{}, fmt.Errorf("parse record %q: bad field %q", summary, p)
		}
		vals[i] = n
	}
	return Record{Wins: vals[0], Losses: vals[1], Ties: vals[2]}, nil
}

// StandingRow es una fila de standings tal como la entrega el feed.
type StandingRow struct {
	ProviderTicker string
	Name           string
	Record         Record
}
