package dto

import "time"

type CatalogAddRequest struct {
	FileRef string `json:"file_ref"`
	Kind    string `json:"kind"`
}

type CatalogAddResponse struct {
	ItemID    int64     `json:"item_id"`
	FileRef   string    `json:"file_ref"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type CatalogStatsResponse struct {
	Items int64 `json:"items"`
}
