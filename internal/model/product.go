package model

import "time"

type Product struct {
	ID           string     `json:"id"`
	MedicineName string     `json:"medicineName"`
	Description  string     `json:"description"`
	Price        float64    `json:"price"`
	Image        string     `json:"image"`
	Thumbnail    string     `json:"thumbnail"`
	DosageForm   string     `json:"dosageForm"`
	Uses         string     `json:"uses"`
	Manufacturer string     `json:"manufacturer"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
	DrugNumber   string     `json:"drugNumber"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ProductInput carries the fields of a create or update request. A nil
// pointer means the field was not supplied.
type ProductInput struct {
	MedicineName *string
	Description  *string
	Price        *string
	DosageForm   *string
	Uses         *string
	Manufacturer *string
	ExpiryDate   *string
	DrugNumber   *string
	Image        *StoredImage
}

type StoredImage struct {
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail,omitempty"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
}
