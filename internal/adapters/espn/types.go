package espn

// DTOs raw del site API de ESPN. Solo se usan dentro de este paquete.
// La conversión a domain se hace en mapping.go.

// --- scoreboard ---

type scoreboardResponse struct {
	Events []event `json:"events"`
}

type event struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Status       eventStatus   `json:"status"`
	Competitions []competition `json:"competitions"`
}

type eventStatus struct {
	Type statusType `json:"type"`
}

type statusType struct {
	State     string `json:"state"` // pre | in | post
	Completed bool   `json:"completed"`
	Detail    string `json:"detail"`
}

type competition struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Competitors []competitor `json:"competitors"`
}

type competitor struct {
	HomeAway string       `json:"homeAway"`
	Winner   bool         `json:"winner"`
	Score    string       `json:"score"`
	Team     teamRef      `json:"team"`
	Records  []teamRecord `json:"records"`
}

type teamRef struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
}

type teamRecord struct {
	Name    string `json:"name"` // "overall", "Home", "Road"...
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// --- standings ---

// standingsNode es recursivo: liga → conferencias → divisiones. Las entries
// pueden colgar de cualquier nivel.
type standingsNode struct {
	Name      string          `json:"name"`
	Children  []standingsNode `json:"children"`
	Standings *standingsTable `json:"standings"`
}

type standingsTable struct {
	Entries []standingsEntry `json:"entries"`
}

type standingsEntry struct {
	Team  teamRef `json:"team"`
	Stats []stat  `json:"stats"`
}

type stat struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}
