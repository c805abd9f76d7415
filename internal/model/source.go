package model

// SourceKind identifies one of the external data sources consulted per request.
type SourceKind string

const (
	SourceProfile SourceKind = "profile"
	SourceReviews SourceKind = "reviews"
	SourceFunding SourceKind = "funding"
	SourceNews    SourceKind = "news"
)

// AllSourceKinds lists every known source kind in a stable order.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceProfile, SourceReviews, SourceFunding, SourceNews}
}

// Label returns a human-readable name for prompts and reports.
func (k SourceKind) Label() string {
	switch k {
	case SourceProfile:
		return "Professional network profile"
	case SourceReviews:
		return "Employer reviews"
	case SourceFunding:
		return "Funding database"
	case SourceNews:
		return "News"
	default:
		return string(k)
	}
}

// ProfileRecord holds structured data from the professional-network profile.
// All fields are optional; an empty field means the source did not list it.
type ProfileRecord struct {
	CompanyName   string `json:"company_name,omitempty"`
	Description   string `json:"description,omitempty"`
	EmployeeCount string `json:"number_of_employees,omitempty"`
	ProfileURL    string `json:"profile_url,omitempty"`
	Headquarters  string `json:"headquarters,omitempty"`
	Founded       string `json:"founded,omitempty"`
	Industry      string `json:"industry,omitempty"`
	Website       string `json:"website,omitempty"`
}

// ReviewsRecord holds structured data from the employer-review site.
type ReviewsRecord struct {
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int     `json:"num_reviews,omitempty"`
	ReviewSummary string   `json:"review_summary,omitempty"`
}

// FundingRecord holds structured data from the startup-funding database.
type FundingRecord struct {
	Founded       string   `json:"founded,omitempty"`
	FundingRound  string   `json:"funding_round,omitempty"`
	FundingDate   string   `json:"funding_date,omitempty"`
	FundingAmount string   `json:"funding_amount,omitempty"`
	Investors     []string `json:"investors,omitempty"`
	KeyPeople     []string `json:"key_people,omitempty"`
}

// NewsRecord holds categorized news items from the past two years.
type NewsRecord struct {
	Layoffs      []string `json:"layoffs"`
	Scandals     []string `json:"scandals"`
	Achievements []string `json:"achievements"`
}

// SourceRecord is the union of per-source payloads. Exactly one pointer is
// non-nil, matching the Kind. NotFound marks a confirmed no-match: the source
// was reachable but has no entry for the exact company name.
type SourceRecord struct {
	Kind     SourceKind     `json:"kind"`
	NotFound bool           `json:"not_found,omitempty"`
	Profile  *ProfileRecord `json:"profile,omitempty"`
	Reviews  *ReviewsRecord `json:"reviews,omitempty"`
	Funding  *FundingRecord `json:"funding,omitempty"`
	News     *NewsRecord    `json:"news,omitempty"`
}
