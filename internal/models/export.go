package models

import "time"

// ExportVersion is the only bundle format understood by import
const ExportVersion = 1

// Export scopes
const (
	ExportGlobal  = "global"
	ExportGroup   = "group"
	ExportService = "service"
)

// ExportBundle is a portable snapshot of groups and service definitions.
// It carries no ids, owners or check history.
type ExportBundle struct {
	Version    int        `json:"version"`
	Type       string     `json:"type"`
	ExportedAt time.Time  `json:"exportedAt"`
	Data       ExportData `json:"data"`
}

// ExportData holds the exported rows
type ExportData struct {
	Groups   []ExportedGroup   `json:"groups,omitempty"`
	Services []ExportedService `json:"services,omitempty"`
}

// ExportedGroup is a group without its timestamps
type ExportedGroup struct {
	Name               string `json:"name"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// ExportedService is a service definition without identity or ownership
type ExportedService struct {
	Name                string  `json:"name"`
	Description         *string `json:"description"`
	URL                 string  `json:"url"`
	DisplayURL          *string `json:"displayUrl"`
	ExpectedStatus      int     `json:"expectedStatus"`
	ExpectedContentType *string `json:"expectedContentType"`
	ExpectedBody        *string `json:"expectedBody"`
	CheckInterval       int     `json:"checkInterval"`
	Enabled             bool    `json:"enabled"`
	IsPublic            bool    `json:"isPublic"`
	EmailNotifications  bool    `json:"emailNotifications"`
	GroupName           *string `json:"groupName"`
}

// ExportGroupOf strips g down to its portable fields
func ExportGroupOf(g *Group) ExportedGroup {
	return ExportedGroup{Name: g.Name, EmailNotifications: g.EmailNotifications}
}

// ExportServiceOf strips svc down to its portable fields
func ExportServiceOf(svc *Service) ExportedService {
	return ExportedService{
		Name:                svc.Name,
		Description:         svc.Description,
		URL:                 svc.URL,
		DisplayURL:          svc.DisplayURL,
		ExpectedStatus:      svc.ExpectedStatus,
		ExpectedContentType: svc.ExpectedContentType,
		ExpectedBody:        svc.ExpectedBody,
		CheckInterval:       svc.CheckInterval,
		Enabled:             svc.Enabled,
		IsPublic:            svc.IsPublic,
		EmailNotifications:  svc.EmailNotifications,
		GroupName:           svc.GroupName,
	}
}

// Service builds a new service row owned by createdBy
func (e *ExportedService) Service(createdBy string) *Service {
	return &Service{
		Name:                e.Name,
		Description:         e.Description,
		URL:                 e.URL,
		DisplayURL:          e.DisplayURL,
		ExpectedStatus:      e.ExpectedStatus,
		ExpectedContentType: e.ExpectedContentType,
		ExpectedBody:        e.ExpectedBody,
		CheckInterval:       e.CheckInterval,
		Enabled:             e.Enabled,
		IsPublic:            e.IsPublic,
		EmailNotifications:  e.EmailNotifications,
		GroupName:           e.GroupName,
		CreatedBy:           createdBy,
	}
}
