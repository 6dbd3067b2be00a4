package domain

import (
	"strings"
	"time"
)

// RecordMeta is embedded by every CRM record.
type RecordMeta struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Meta exposes the embedded metadata so generic code can stamp ids and times.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// Entity is implemented by pointers to CRM records.
type Entity interface {
	Meta() *RecordMeta
	// Normalize fills defaults and canonicalizes fields before persistence.
	Normalize()
}

type Address struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
	ZipCode string `json:"zip_code,omitempty" bson:"zip_code,omitempty"`
}

// Client is a customer company or contact.
type Client struct {
	RecordMeta `bson:",inline"`
	Name       string  `json:"name" bson:"name" validate:"required"`
	Email      string  `json:"email" bson:"email" validate:"required,email"`
	Phone      string  `json:"phone" bson:"phone" validate:"required"`
	Company    string  `json:"company" bson:"company" validate:"required"`
	Industry   string  `json:"industry,omitempty" bson:"industry,omitempty"`
	Address    Address `json:"address" bson:"address"`
	Status     string  `json:"status" bson:"status" validate:"omitempty,oneof=active inactive prospect"`
	Notes      string  `json:"notes,omitempty" bson:"notes,omitempty"`
	AssignedTo string  `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
}

func (c *Client) Normalize() {
	c.Email = NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = "prospect"
	}
}

// Employee is a staff member, optionally linked to a user account.
type Employee struct {
	RecordMeta `bson:",inline"`
	UserID     string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	FirstName  string    `json:"first_name" bson:"first_name" validate:"required"`
	LastName   string    `json:"last_name" bson:"last_name" validate:"required"`
	Email      string    `json:"email" bson:"email" validate:"required,email"`
	Phone      string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Position   string    `json:"position" bson:"position" validate:"required"`
	Department string    `json:"department" bson:"department" validate:"required"`
	Salary     float64   `json:"salary" bson:"salary" validate:"gte=0"`
	JoinDate   time.Time `json:"join_date" bson:"join_date"`
	Status     string    `json:"status" bson:"status" validate:"omitempty,oneof=active inactive on-leave"`
	Skills     []string  `json:"skills,omitempty" bson:"skills,omitempty"`
}

func (e *Employee) Normalize() {
	e.Email = NormalizeEmail(e.Email)
	if e.Status == "" {
		e.Status = "active"
	}
	if e.JoinDate.IsZero() {
		e.JoinDate = e.CreatedAt
	}
}

type Task struct {
	Description string    `json:"description" bson:"description" validate:"required"`
	Status      string    `json:"status" bson:"status" validate:"omitempty,oneof=pending in-progress completed"`
	AssignedTo  string    `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	DueDate     time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
}

// Project is a piece of work delivered for a client.
type Project struct {
	RecordMeta  `bson:",inline"`
	Name        string    `json:"name" bson:"name" validate:"required"`
	Description string    `json:"description" bson:"description" validate:"required"`
	ClientID    string    `json:"client_id" bson:"client_id" validate:"required"`
	StartDate   time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" bson:"end_date" validate:"required,gtefield=StartDate"`
	Budget      float64   `json:"budget" bson:"budget" validate:"gte=0"`
	Status      string    `json:"status" bson:"status" validate:"omitempty,oneof=planned in-progress completed on-hold"`
	Team        []string  `json:"team,omitempty" bson:"team,omitempty"`
	Tasks       []Task    `json:"tasks,omitempty" bson:"tasks,omitempty" validate:"dive"`
}

func (p *Project) Normalize() {
	if p.Status == "" {
		p.Status = "planned"
	}
	for i := range p.Tasks {
		if p.Tasks[i].Status == "" {
			p.Tasks[i].Status = "pending"
		}
	}
}

// Revenue is a single payment or receivable.
type Revenue struct {
	RecordMeta    `bson:",inline"`
	ProjectID     string    `json:"project_id,omitempty" bson:"project_id,omitempty"`
	ClientID      string    `json:"client_id" bson:"client_id" validate:"required"`
	Amount        float64   `json:"amount" bson:"amount" validate:"required,gt=0"`
	Currency      string    `json:"currency" bson:"currency" validate:"omitempty,len=3"`
	Type          string    `json:"type" bson:"type" validate:"omitempty,oneof=project-payment retainer consultation other"`
	Status        string    `json:"status" bson:"status" validate:"omitempty,oneof=pending received overdue cancelled"`
	Description   string    `json:"description" bson:"description" validate:"required"`
	Date          time.Time `json:"date" bson:"date"`
	PaymentMethod string    `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	InvoiceNumber string    `json:"invoice_number,omitempty" bson:"invoice_number,omitempty"`
	DueDate       time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
}

func (r *Revenue) Normalize() {
	r.Currency = strings.ToUpper(r.Currency)
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if r.Type == "" {
		r.Type = "other"
	}
	if r.Status == "" {
		r.Status = "pending"
	}
	if r.Date.IsZero() {
		r.Date = r.CreatedAt
	}
}

// DashboardStats is the aggregate shown on the CRM landing page.
type DashboardStats struct {
	Employees int64   `json:"employees"`
	Clients   int64   `json:"clients"`
	Projects  int64   `json:"projects"`
	Revenue   float64 `json:"revenue"`
}
