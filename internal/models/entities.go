package models

// Base holds the system fields every record carries.
type Base struct {
	ID          string `json:"id,omitempty"`
	CreatedDate string `json:"created_date,omitempty"`
	UpdatedDate string `json:"updated_date,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

const (
	RoleGovernor      = "governor"
	RoleCoordinator   = "coordinator"
	RoleCommitteeHead = "committee_head"
	RoleMember        = "member"
	RoleVolunteer     = "volunteer"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

type TeamMember struct {
	Base
	FullName     string `json:"full_name" validate:"required"`
	NationalID   string `json:"national_id" validate:"required"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role" validate:"required,oneof=governor coordinator committee_head member volunteer"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=active inactive pending"`
	PasswordHash string `json:"password_hash,omitempty"`
	CommitteeID  string `json:"committee_id,omitempty"`
	Department   string `json:"department,omitempty"`
	Position     string `json:"position,omitempty"`
}

type Settings struct {
	Base
	CityName string `json:"city_name,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`
}

type Committee struct {
	Base
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	HeadID      string `json:"head_id,omitempty"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

type Task struct {
	Base
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description,omitempty"`
	AssignedTo   string `json:"assigned_to,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	ReminderDate string `json:"reminder_date,omitempty"`
	ReminderSent bool   `json:"reminder_sent,omitempty"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority     string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	StandardID   string `json:"standard_id,omitempty"`
	CommitteeID  string `json:"committee_id,omitempty"`
}

type Notification struct {
	Base
	UserEmail string `json:"user_email" validate:"required"`
	Type      string `json:"type" validate:"required"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Link      string `json:"link,omitempty"`
	IsRead    bool   `json:"is_read,omitempty"`
}

type Axis struct {
	Base
	Code        string  `json:"code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Order       float64 `json:"order,omitempty"`
}

type Standard struct {
	Base
	Code                 string  `json:"code" validate:"required"`
	AxisID               string  `json:"axis_id" validate:"required"`
	AxisCode             string  `json:"axis_code,omitempty"`
	Title                string  `json:"title" validate:"required"`
	Description          string  `json:"description,omitempty"`
	RequiredEvidence     string  `json:"required_evidence,omitempty"`
	KPIs                 string  `json:"kpis,omitempty" validate:"omitempty,json"`
	Status               string  `json:"status,omitempty" validate:"omitempty,oneof=not_started in_progress completed approved"`
	CompletionPercentage float64 `json:"completion_percentage,omitempty" validate:"min=0,max=100"`
	Notes                string  `json:"notes,omitempty"`
}

type Evidence struct {
	Base
	StandardID string `json:"standard_id" validate:"required"`
	Title      string `json:"title,omitempty"`
	FileURL    string `json:"file_url,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type KpiEvidence struct {
	Base
	StandardID string  `json:"standard_id" validate:"required"`
	KpiName    string  `json:"kpi_name" validate:"required"`
	Value      float64 `json:"value,omitempty"`
	FileURL    string  `json:"file_url,omitempty"`
	Status     string  `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	Notes      string  `json:"notes,omitempty"`
}

type Initiative struct {
	Base
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	StandardID  string  `json:"standard_id,omitempty"`
	CommitteeID string  `json:"committee_id,omitempty"`
	Status      string  `json:"status,omitempty" validate:"omitempty,oneof=planned active completed cancelled"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	Progress    float64 `json:"progress,omitempty" validate:"min=0,max=100"`
}

type InitiativeKPI struct {
	Base
	InitiativeID string  `json:"initiative_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Target       float64 `json:"target,omitempty"`
	Actual       float64 `json:"actual,omitempty"`
	Unit         string  `json:"unit,omitempty"`
}

type Budget struct {
	Base
	Name        string  `json:"name" validate:"required"`
	FiscalYear  string  `json:"fiscal_year,omitempty"`
	TotalAmount float64 `json:"total_amount,omitempty" validate:"min=0"`
	Notes       string  `json:"notes,omitempty"`
}

type BudgetAllocation struct {
	Base
	BudgetID     string  `json:"budget_id" validate:"required"`
	CommitteeID  string  `json:"committee_id,omitempty"`
	InitiativeID string  `json:"initiative_id,omitempty"`
	Amount       float64 `json:"amount,omitempty" validate:"min=0"`
	Notes        string  `json:"notes,omitempty"`
}

type Transaction struct {
	Base
	BudgetID     string  `json:"budget_id" validate:"required"`
	AllocationID string  `json:"allocation_id,omitempty"`
	Amount       float64 `json:"amount" validate:"required"`
	Type         string  `json:"type,omitempty" validate:"omitempty,oneof=expense income"`
	Date         string  `json:"date,omitempty"`
	Description  string  `json:"description,omitempty"`
}

type FileUpload struct {
	Base
	FileName      string  `json:"file_name" validate:"required"`
	ContentType   string  `json:"content_type,omitempty"`
	Size          float64 `json:"size,omitempty"`
	DataURL       string  `json:"data_url" validate:"required,datauri"`
	UploadedBy    string  `json:"uploaded_by,omitempty"`
	RelatedEntity string  `json:"related_entity,omitempty"`
	RelatedID     string  `json:"related_id,omitempty"`
}

type FamilySurvey struct {
	Base
	FamilyName   string         `json:"family_name,omitempty"`
	District     string         `json:"district,omitempty"`
	MembersCount float64        `json:"members_count,omitempty"`
	Answers      map[string]any `json:"answers,omitempty"`
	SubmittedAt  string         `json:"submitted_at,omitempty"`
}

type UserPreferences struct {
	Base
	UserEmail    string `json:"user_email" validate:"required"`
	TaskDueEmail *bool  `json:"task_due_email,omitempty"`
	TaskDueApp   *bool  `json:"task_due_app,omitempty"`
}

type VerificationCode struct {
	Base
	Email     string `json:"email" validate:"required"`
	Code      string `json:"code" validate:"required"`
	ExpiresAt string `json:"expires_at" validate:"required"`
	Verified  bool   `json:"verified"`
}
