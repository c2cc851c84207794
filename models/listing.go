package models

import "time"

// Schedule classes carried in WorkItem metadata. Discovery items come
// from index-page harvesting; priority items are seeded externally.
const (
	ScheduleDiscovery = "discovery"
	SchedulePriority  = "priority_url"
)

// WorkItem is one unit of crawl work flowing through the queue. Its
// identity is the URL; the queue deduplicates on it.
type WorkItem struct {
	URL  string       `json:"url"`
	Meta WorkItemMeta `json:"meta"`
}

// WorkItemMeta mirrors the envelope external seeders push onto the queue.
type WorkItemMeta struct {
	JobID     string `json:"job-id"`
	StartDate string `json:"start-date"`
	Schedule  string `json:"schedule"`
}

// Extraction is the best-effort record pulled from a rendered detail
// page before persistence. Optional numeric fields are pointers so a
// missing value is distinguishable from zero.
type Extraction struct {
	URL        string
	ExternalID string

	Address  string
	Suburb   string
	State    string
	Postcode string

	PriceText  string
	LowerPrice *int
	UpperPrice *int

	PropertyType string
	Bedrooms     *int
	Bathrooms    *int
	CarSpaces    *int
	LandArea     *int

	Description  string
	CouncilRates string

	Latitude  *float64
	Longitude *float64

	OriginImages    []string
	OriginFloorPlan []string
	OriginDocuments []string

	Agent AgentContact

	PublishDate time.Time
}

// AgentContact is the agent substructure scraped from the contact
// section of a detail page.
type AgentContact struct {
	Name       string
	Agency     string
	Phone      string
	Email      string
	ProfileURL string
}

// Agent is a persisted real-estate agent. Identity is the (Name, Phone)
// pair; no surrogate business key exists upstream.
type Agent struct {
	ID           int64
	Name         string
	Agency       string
	Phone        string
	Email        string
	ProfileURL   string
	Bio          string
	ProfileImage string
	SocialMedia  map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Listing is a persisted property listing. ExternalID (the site-assigned
// numeric id) and URL are each globally unique.
type Listing struct {
	ID         int64
	URL        string
	ExternalID string

	Title    string
	Address  string
	Suburb   string
	State    string
	Postcode string

	PriceText  string
	LowerPrice *int
	UpperPrice *int

	PropertyType string
	Bedrooms     *int
	Bathrooms    *int
	CarSpaces    *int
	LandArea     *int

	Description  string
	CouncilRates string

	Latitude  *float64
	Longitude *float64

	// Origin* hold the raw site URLs; the parallel relocated sets are
	// rewritten to CDN URLs by the media relocator after commit.
	Images          []string
	OriginImages    []string
	FloorPlan       []string
	OriginFloorPlan []string
	PDFDocuments    []string
	OriginDocuments []string

	AgentID *int64

	PublishDate time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FromExtraction builds a Listing from an extraction result. The agent
// reference is attached later, once the agent row is resolved.
func FromExtraction(e *Extraction) *Listing {
	return &Listing{
		URL:             e.URL,
		ExternalID:      e.ExternalID,
		Title:           e.Address,
		Address:         e.Address,
		Suburb:          e.Suburb,
		State:           e.State,
		Postcode:        e.Postcode,
		PriceText:       e.PriceText,
		LowerPrice:      e.LowerPrice,
		UpperPrice:      e.UpperPrice,
		PropertyType:    e.PropertyType,
		Bedrooms:        e.Bedrooms,
		Bathrooms:       e.Bathrooms,
		CarSpaces:       e.CarSpaces,
		LandArea:        e.LandArea,
		Description:     e.Description,
		CouncilRates:    e.CouncilRates,
		Latitude:        e.Latitude,
		Longitude:       e.Longitude,
		OriginImages:    e.OriginImages,
		OriginFloorPlan: e.OriginFloorPlan,
		OriginDocuments: e.OriginDocuments,
		PublishDate:     e.PublishDate,
	}
}
