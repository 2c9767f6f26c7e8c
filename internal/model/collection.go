package model

import "time"

// Collection is a (user, village) pair the user has "caught".
// The pair is unique per user.
type Collection struct {
	ID          int64
	UserID      int64
	VillageID   int64
	CollectedAt time.Time
}

// CollectionEntry is a collection row joined with its village.
type CollectionEntry struct {
	CollectionID int64     `json:"collectionId"`
	VillageID    int64     `json:"villageId"`
	VillageName  string    `json:"villageName"`
	SidoName     string    `json:"sidoName"`
	SigunguName  string    `json:"sigunguName"`
	Address      string    `json:"address"`
	ProgramName  string    `json:"programName"`
	ImageURL     string    `json:"imageUrl"`
	CollectedAt  time.Time `json:"collectedAt"`
}

// CollectionStats counts the caller's collection, in total and per region.
type CollectionStats struct {
	TotalCount  int            `json:"totalCount"`
	RegionStats map[string]int `json:"regionStats"`
}
