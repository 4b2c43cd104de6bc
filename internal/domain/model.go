package domain

import "time"

// Core domain models used internally. Registry records stay opaque (Entity);
// everything the pipeline derives lives on ClassifiedEntity and Result.

// SizeCategory buckets an entity by employee count. The zero value is Micro and
// the constants are ordered, so categories compare with < and >.
type SizeCategory int

const (
	SizeMicro SizeCategory = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeVeryLarge
)

func (s SizeCategory) String() string {
	switch s {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	case SizeVeryLarge:
		return "very_large"
	default:
		return "micro"
	}
}

// Industry sentinels. IndustryUnknown means the entity carries no code at all,
// IndustryOther means it has one the table does not know.
const (
	IndustryUnknown = "unknown"
	IndustryOther   = "other"
)

// ClassifiedEntity is an entity plus the attributes derived from it.
// EstimatedRevenue is nil when the employee count is unknown.
type ClassifiedEntity struct {
	Entity           Entity
	Size             SizeCategory
	Industry         string
	EstimatedRevenue *int64
}

// RevenueOrZero is the ordering key used by ranking. It never replaces the
// absent estimate in output.
func (c ClassifiedEntity) RevenueOrZero() int64 {
	if c.EstimatedRevenue == nil {
		return 0
	}
	return *c.EstimatedRevenue
}

// Result is one output record per ranked entity.
type Result struct {
	OrganizationNumber string   `json:"organization_number"`
	BusinessName       string   `json:"business_name"`
	UniqueDomains      []string `json:"unique_domains"`
	EstimatedRevenue   *int64   `json:"estimated_revenue"`
	Employees          *int     `json:"employees"`
	SizeCategory       string   `json:"size_category"`
	Industry           string   `json:"industry"`
	Municipality       string   `json:"municipality"`
	Founded            string   `json:"founded"`
	NACECode           string   `json:"nace_code"`
}

// NewResult builds the output record for a classified entity and its
// verified domains. Passthrough fields are copied as found.
func NewResult(c ClassifiedEntity, domains []string) Result {
	if domains == nil {
		domains = []string{}
	}
	var employees *int
	if n, ok := c.Entity.EmployeeCount(); ok {
		employees = &n
	}
	return Result{
		OrganizationNumber: c.Entity.Identifier(),
		BusinessName:       c.Entity.Name(),
		UniqueDomains:      domains,
		EstimatedRevenue:   c.EstimatedRevenue,
		Employees:          employees,
		SizeCategory:       c.Size.String(),
		Industry:           c.Industry,
		Municipality:       c.Entity.Municipality(),
		Founded:            c.Entity.Founded(),
		NACECode:           c.Entity.IndustryCode(),
	}
}

type ReportMetadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	TotalCompanies int       `json:"total_companies"`
	TotalDomains   int       `json:"total_domains"`
}

// Report is the bulk output document.
type Report struct {
	Metadata  ReportMetadata `json:"metadata"`
	Companies []Result       `json:"companies"`
}

func NewReport(results []Result, generatedAt time.Time) Report {
	if results == nil {
		results = []Result{}
	}
	total := 0
	for _, r := range results {
		total += len(r.UniqueDomains)
	}
	return Report{
		Metadata: ReportMetadata{
			GeneratedAt:    generatedAt,
			TotalCompanies: len(results),
			TotalDomains:   total,
		},
		Companies: results,
	}
}

// CompaniesWithDomains counts results with at least one verified domain.
func (r Report) CompaniesWithDomains() int {
	n := 0
	for _, c := range r.Companies {
		if len(c.UniqueDomains) > 0 {
			n++
		}
	}
	return n
}

// RunParams are the knobs of one ranking run.
type RunParams struct {
	MaxCompanies int `json:"max_companies"`
	MinEmployees int `json:"min_employees"`
}

type Run struct {
	ID         string
	Params     RunParams
	Status     string // queued|running|completed|failed
	Progress   float64
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// DomainRecord is the last known verification state of a registrable domain.
type DomainRecord struct {
	ID                string
	RegistrableDomain string
	Outcome           VerifyOutcome
	CheckedAt         time.Time
}
