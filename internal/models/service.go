package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultCheckInterval is used when a service is created without an interval (seconds)
const DefaultCheckInterval = 60

// DefaultExpectedStatus is the HTTP status a probe expects unless configured otherwise
const DefaultExpectedStatus = 200

// Service represents a monitored HTTP endpoint
type Service struct {
	ID                  string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name                string    `json:"name" gorm:"not null"`
	Description         *string   `json:"description"`
	URL                 string    `json:"url" gorm:"not null"`
	DisplayURL          *string   `json:"displayUrl" gorm:"column:display_url"`
	ExpectedStatus      int       `json:"expectedStatus" gorm:"not null"`
	ExpectedContentType *string   `json:"expectedContentType" gorm:"column:expected_content_type"`
	ExpectedBody        *string   `json:"expectedBody" gorm:"column:expected_body"`
	CheckInterval       int       `json:"checkInterval" gorm:"not null"` // seconds
	Enabled             bool      `json:"enabled" gorm:"not null;index"`
	IsPublic            bool      `json:"isPublic" gorm:"not null"`
	EmailNotifications  bool      `json:"emailNotifications" gorm:"not null"`
	GroupName           *string   `json:"groupName" gorm:"column:group_name;index"`
	CreatedBy           string    `json:"createdBy"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Service
func (Service) TableName() string {
	return "services"
}

// BeforeCreate assigns a UUID when none is set (GORM hook)
func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ShownURL returns the URL presented to users: the display URL when set,
// otherwise the probed URL.
func (s *Service) ShownURL() string {
	if s.DisplayURL != nil && *s.DisplayURL != "" {
		return *s.DisplayURL
	}
	return s.URL
}

// Group returns the owning group name or "" when the service is ungrouped.
func (s *Service) Group() string {
	if s.GroupName == nil {
		return ""
	}
	return *s.GroupName
}
