package model

import (
	"time"

	"github.com/absolute0github/band-contract-plugin/pkg/finance"
)

// Contract is a performance agreement between the performer and a client.
type Contract struct {
	ID             int64  `json:"id"`
	ContractNumber string `json:"contract_number"`
	InvoiceNumber  string `json:"invoice_number"`
	Status         Status `json:"status"`

	// Client
	ClientCompanyName string `json:"client_company_name"`
	ContactPersonName string `json:"contact_person_name"`
	StreetAddress     string `json:"street_address"`
	City              string `json:"city"`
	State             string `json:"state"`
	ZipCode           string `json:"zip_code"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`

	// Performance
	PerformanceDate   string `json:"performance_date"` // YYYY-MM-DD
	EventName         string `json:"event_name"`
	FirstSetStartTime string `json:"first_set_start_time"` // HH:MM
	NumberOfSets      int    `json:"number_of_sets"`
	SetLength         int    `json:"set_length"`
	BreakLength       int    `json:"break_length"`
	LoadInTime        string `json:"load_in_time"`

	// Venue
	VenueName           string `json:"venue_name"`
	VenueAddress        string `json:"venue_address"`
	VenueCity           string `json:"venue_city"`
	VenueState          string `json:"venue_state"`
	VenueZip            string `json:"venue_zip"`
	VenueContactPerson  string `json:"venue_contact_person"`
	VenuePhone          string `json:"venue_phone"`
	VenueEmail          string `json:"venue_email"`
	InsideOutside       string `json:"inside_outside"`
	StageAvailable      string `json:"stage_available"`
	PowerRequirements   string `json:"power_requirements"`
	LoadinLocation      string `json:"loadin_location"`
	PerformanceLocation string `json:"performance_location"`

	// Production
	SoundSystem            string `json:"sound_system"`
	Lights                 string `json:"lights"`
	MusicBetweenSets       string `json:"music_between_sets"`
	OutsideProduction      bool   `json:"outside_production"`
	OutsideProductionNotes string `json:"outside_production_notes"`
	PreferredGenre         string `json:"preferred_genre"`

	// Travel and compensation
	AccommodationsProvided  string  `json:"accommodations_provided"`
	AccommodationCostOffset float64 `json:"accommodation_cost_offset"`
	MileageTravelFee        float64 `json:"mileage_travel_fee"`
	EarlyLoadinRequired     bool    `json:"early_loadin_required"`
	EarlyLoadinHours        float64 `json:"early_loadin_hours"`
	BaseCompensation        float64 `json:"base_compensation"`
	DepositPercentage       float64 `json:"deposit_percentage"`
	AdditionalCompensation  string  `json:"additional_compensation"`

	// Services and content
	ServicesDescription     string `json:"services_description"`
	Attire                  string `json:"attire"`
	AudienceRating          string `json:"audience_rating"`
	CoverLetterMessage      string `json:"cover_letter_message"`
	AdditionalContractNotes string `json:"additional_contract_notes"`

	LineItems []LineItem `json:"line_items"`

	AccessToken    string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`

	ClientSignature  string     `json:"-"`
	ClientSignedAt   *time.Time `json:"client_signed_at,omitempty"`
	ClientSignedIP   string     `json:"client_signed_ip,omitempty"`
	ClientSignedName string     `json:"client_signed_name,omitempty"`

	Documents DocumentPaths `json:"documents"`

	Deposit Payment `json:"deposit_payment"`
	Balance Payment `json:"balance_payment"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`
}

// LineItem is an informational invoice entry. It never feeds the total compensation.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	SortOrder   int     `json:"sort_order"`
}

// DocumentPaths holds the artifact locations of the generated documents.
type DocumentPaths struct {
	CoverLetter    string `json:"cover_letter,omitempty"`
	Contract       string `json:"contract,omitempty"`
	Invoice        string `json:"invoice,omitempty"`
	SignedContract string `json:"signed_contract,omitempty"`
}

// All returns the non-empty locations.
func (d DocumentPaths) All() []string {
	var out []string
	for _, p := range []string{d.CoverLetter, d.Contract, d.Invoice, d.SignedContract} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Merge overlays the non-empty locations of other onto d.
func (d DocumentPaths) Merge(other DocumentPaths) DocumentPaths {
	if other.CoverLetter != "" {
		d.CoverLetter = other.CoverLetter
	}
	if other.Contract != "" {
		d.Contract = other.Contract
	}
	if other.Invoice != "" {
		d.Invoice = other.Invoice
	}
	if other.SignedContract != "" {
		d.SignedContract = other.SignedContract
	}
	return d
}

// Totals derives the calculated amounts and set schedule from the current field values.
func (c *Contract) Totals() finance.Totals {
	items := make([]finance.LineItem, len(c.LineItems))
	for i, it := range c.LineItems {
		items[i] = finance.LineItem{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return finance.Calculate(finance.Input{
		BaseCompensation:    c.BaseCompensation,
		MileageTravelFee:    c.MileageTravelFee,
		EarlyLoadinRequired: c.EarlyLoadinRequired,
		EarlyLoadinHours:    c.EarlyLoadinHours,
		DepositPercentage:   c.DepositPercentage,
		LineItems:           items,
		FirstSetStartTime:   c.FirstSetStartTime,
		NumberOfSets:        c.NumberOfSets,
		SetLength:           c.SetLength,
		BreakLength:         c.BreakLength,
	})
}

// TokenExpired reports whether the access token is expired at now.
func (c *Contract) TokenExpired(now time.Time) bool {
	return !c.TokenExpiresAt.After(now)
}

// Payment tracks one of the two independent payments of a signed contract.
type Payment struct {
	Paid           bool          `json:"paid"`
	Method         PaymentMethod `json:"method,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	AmountReceived float64       `json:"amount_received"`
	Notes          string        `json:"notes,omitempty"`
}

type PaymentType string

const (
	PaymentDeposit PaymentType = "deposit"
	PaymentBalance PaymentType = "balance"
)

func (t PaymentType) Valid() bool {
	return t == PaymentDeposit || t == PaymentBalance
}

type PaymentMethod string

const (
	MethodCheck PaymentMethod = "check"
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCheck, MethodCash, MethodCard:
		return true
	}
	return false
}

// Label is the human readable payment method.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodCheck:
		return "Check"
	case MethodCash:
		return "Cash"
	case MethodCard:
		return "Credit Card"
	}
	return string(m)
}

// Activity is one append-only audit log entry.
type Activity struct {
	ID          int64     `json:"id"`
	ContractID  int64     `json:"contract_id"`
	Action      Action    `json:"action"`
	Description string    `json:"description"`
	Actor       string    `json:"actor,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Action string

const (
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionStatusChanged    Action = "status_changed"
	ActionViewed           Action = "viewed"
	ActionSigned           Action = "signed"
	ActionTokenRegenerated Action = "token_regenerated"
	ActionPaymentRecorded  Action = "payment_recorded"
)

// Clone returns a deep copy of c.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	cp := *c
	cp.LineItems = append([]LineItem(nil), c.LineItems...)
	cp.ClientSignedAt = cloneTime(c.ClientSignedAt)
	cp.SentAt = cloneTime(c.SentAt)
	cp.ViewedAt = cloneTime(c.ViewedAt)
	cp.Deposit.PaidAt = cloneTime(c.Deposit.PaidAt)
	cp.Balance.PaidAt = cloneTime(c.Balance.PaidAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
