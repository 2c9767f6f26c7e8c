package model

import "time"

// VisitDateLayout is the wire and storage format of Memory.VisitDate.
const VisitDateLayout = "2006-01-02"

// Memory is a journal entry about a visit, owned by exactly one user.
//
// ImageKey is the object key inside the image store ("" when the memory has
// no photo). The public URL is resolved by the store when the memory is
// rendered, so moving the bucket or upload directory needs no migration.
type Memory struct {
	ID        int64
	UserID    int64
	VillageID int64
	Content   string
	VisitDate string // YYYY-MM-DD
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemoryEntry is a memory joined with its village, as returned to clients.
type MemoryEntry struct {
	MemoryID    int64     `json:"memoryId"`
	VillageID   int64     `json:"villageId"`
	VillageName string    `json:"villageName"`
	SidoName    string    `json:"sidoName"`
	SigunguName string    `json:"sigunguName"`
	Address     string    `json:"address"`
	Content     string    `json:"content"`
	VisitDate   string    `json:"visitDate"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
