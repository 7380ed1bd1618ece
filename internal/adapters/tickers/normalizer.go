package tickers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alejandrodnm/teamshares/internal/ports"
)

// Defaults de producción: código del feed → ticker canónico, por liga.
var (
	defaultNHL = map[string]string{
		"TB":  "TBL",
		"SJ":  "SJS",
		"NJ":  "NJD",
		"LA":  "LAK",
		"WAS": "WSH",
		"MON": "MTL",
		"UTA": "UTAH",
	}
	defaultNFL = map[string]string{
		"WAS": "WSH",
		"JAC": "JAX",
		"LA":  "LAR",
	}
)

// Defaults devuelve una copia de las tablas por defecto.
func Defaults() map[string]map[string]string {
	return map[string]map[string]string{
		"NHL": clone(defaultNHL),
		"NFL": clone(defaultNFL),
	}
}

// Normalizer traduce tickers del feed a tickers canónicos. Las tablas son por
// liga: el mismo código ("LA") puede significar equipos distintos en cada una.
// Inmutable tras NewNormalizer: seguro para uso concurrente.
type Normalizer struct {
	tables map[string]map[string]string
}

var _ ports.TickerNormalizer = (*Normalizer)(nil)

// NewNormalizer parte de Defaults y aplica overrides encima (liga → código → canónico).
func NewNormalizer(overrides map[string]map[string]string) *Normalizer {
	tables := Defaults()
	for league, m := range overrides {
		league = strings.ToUpper(league)
		if tables[league] == nil {
			tables[league] = make(map[string]string, len(m))
		}
		for from, to := range m {
			tables[league][strings.ToUpper(from)] = strings.ToUpper(to)
		}
	}
	return &Normalizer{tables: tables}
}

// Normalize devuelve el ticker canónico. Códigos sin entrada pasan tal cual
// (en mayúsculas).
func (n *Normalizer) Normalize(league, providerTicker string) string {
	t := strings.ToUpper(strings.TrimSpace(providerTicker))
	if to, ok := n.tables[strings.ToUpper(league)][t]; ok {
		return to
	}
	return t
}

// Collision es una entrada ambigua de la tabla de una liga.
type Collision struct {
	League    string
	Canonical string
	Sources   []string
	Reason    string
}

func (c Collision) String() string {
	return fmt.Sprintf("%s: %s ← %s (%s)", c.League, c.Canonical, strings.Join(c.Sources, ","), c.Reason)
}

// Collisions detecta mapeos ambiguos: dos códigos que llevan al mismo
// canónico, o un canónico que a su vez es el origen de otra entrada (el
// resultado dependería del orden de aplicación). No se resuelven: el caller
// los loguea.
func (n *Normalizer) Collisions() []Collision {
	var out []Collision
	for _, league := range sortedKeys(n.tables) {
		table := n.tables[league]

		byTarget := make(map[string][]string)
		for from, to := range table {
			byTarget[to] = append(byTarget[to], from)
		}
		for _, to := range sortedKeys(byTarget) {
			sources := byTarget[to]
			sort.Strings(sources)
			if len(sources) > 1 {
				out = append(out, Collision{League: league, Canonical: to, Sources: sources, Reason: "many codes to one ticker"})
			}
			if next, chained := table[to]; chained && next != to {
				out = append(out, Collision{League: league, Canonical: to, Sources: sources, Reason: "ticker is also remapped to " + next})
			}
		}
	}
	return out
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
