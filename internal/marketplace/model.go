package marketplace

import "time"

// Service is a full marketplace listing: an offer of help or a need for help.
type Service struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ServiceType     string     `json:"service_type"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	HoursRequired   float64    `json:"hours_required"`
	LocationType    string     `json:"location_type"`
	LocationAddress *string    `json:"location_address,omitempty"`
	Status          string     `json:"status"`
	ServiceDate     *time.Time `json:"service_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ServiceSummary is the browse-view row, including the owner's display name.
type ServiceSummary struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	OwnerName     string    `json:"owner_name"`
	ServiceType   string    `json:"service_type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	HoursRequired float64   `json:"hours_required"`
	LocationType  string    `json:"location_type"`
	Status        string    `json:"status"`
	Applicants    int       `json:"applicants"`
	CreatedAt     time.Time `json:"created_at"`
}

// Application is a user's request to take part in a service.
type Application struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	ApplicantID string    `json:"applicant_id"`
	Status      string    `json:"status"`
	Message     *string   `json:"message,omitempty"`
	AppliedAt   time.Time `json:"applied_at"`
}
