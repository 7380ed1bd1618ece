package ports

import "github.com/alejandrodnm/teamshares/internal/domain"

// Reporter presenta el estado del mercado y los ciclos de sync al operador.
type Reporter interface {
	// ReportMarket muestra los equipos de una liga y su resumen.
	// En la implementación de consola, imprime una tabla formateada.
	ReportMarket(league string, teams []domain.Team, sum domain.MarketSummary)
	ReportSync(r domain.SyncReport)
}
