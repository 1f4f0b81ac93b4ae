package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is a validated company row. ID is the caller-supplied external key.
type Company struct {
	ID            string          `json:"id"`
	IndustryID    int64           `json:"industry_id"`
	Name          string          `json:"name"`
	Domain        string          `json:"domain"`
	Size          string          `json:"size"`
	Country       string          `json:"country"`
	CreatedDate   time.Time       `json:"created_date"`
	IsCustomer    bool            `json:"is_customer"`
	AnnualRevenue decimal.Decimal `json:"annual_revenue"`
}

// Contact is a validated contact row.
type Contact struct {
	ID           string    `json:"id"`
	StatusID     int64     `json:"status_id"`
	CompanyID    string    `json:"company_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Title        string    `json:"title"`
	Phone        string    `json:"phone,omitempty"` // optional, normalized international form
	CreatedDate  time.Time `json:"created_date"`
	LastModified time.Time `json:"last_modified"`
}

// Opportunity is a validated opportunity row.
type Opportunity struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	ContactID          string          `json:"contact_id"`
	CompanyID          string          `json:"company_id"`
	StageID            int64           `json:"stage_id"`
	ForecastCategoryID int64           `json:"forecast_category_id"`
	ProductID          int64           `json:"product_id"`
	Amount             decimal.Decimal `json:"amount"`
	Probability        int             `json:"probability"`
	CreatedDate        time.Time       `json:"created_date"`
	CloseDate          time.Time       `json:"close_date"`
	IsClosed           bool            `json:"is_closed"`
}

// Activity is a validated activity row. OpportunityID is nullable.
type Activity struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contact_id"`
	Type            string    `json:"type"`
	Subject         string    `json:"subject"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes int       `json:"duration_minutes"`
	Outcome         string    `json:"outcome"`
	OpportunityID   *string   `json:"opportunity_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}
