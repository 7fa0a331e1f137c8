package models

type Company struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Location is a hotel owned by a company.
type Location struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	CompanyID string `json:"company_id" yaml:"company_id"`
	SortOrder int64  `json:"sort_order" yaml:"sort_order"`
}

type Room struct {
	Number     string `json:"number" yaml:"number"`
	Type       string `json:"type" yaml:"type"`
	Note       string `json:"note" yaml:"note"`
	LocationID string `json:"location_id" yaml:"location_id"`
	IsActive   bool   `json:"is_active" yaml:"is_active"`
}
