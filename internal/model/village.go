package model

import "time"

// Village is one entry of the read-only rural experience village catalog.
// Villages are not stored in the database; they are loaded from CSV at
// start-up and joined onto collection and memory rows by ID.
type Village struct {
	ID             int64   `json:"villageId"`
	Name           string  `json:"villageName"`
	SidoName       string  `json:"sidoName"`    // province, e.g. "경상남도"
	SigunguName    string  `json:"sigunguName"` // county or city, e.g. "산청군"
	Address        string  `json:"address"`
	PhoneNumber    string  `json:"phoneNumber"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	ProgramName    string  `json:"programName"`
	ProgramContent string  `json:"programContent"`
	ImageURL       string  `json:"imageUrl"`
}

// VillageDetail is a village annotated with the caller's collection state.
// Anonymous callers always see IsCollected=false.
type VillageDetail struct {
	Village
	IsCollected bool       `json:"isCollected"`
	CollectedAt *time.Time `json:"collectedAt"`
}

// VillageFilter narrows the catalog. Empty fields match everything.
type VillageFilter struct {
	Region      string // exact match on SidoName
	ProgramType string // substring of ProgramName
}
