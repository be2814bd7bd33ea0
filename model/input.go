package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const DefaultServicesDescription = "Live musical entertainment consisting of rock, pop, country, and dance music performed by the Skinny Moo band."

var (
	insideOutsideOptions   = []string{"inside", "outside", "both"}
	stageOptions           = []string{"yes", "no", "tbd"}
	productionOptions      = []string{"we_provide", "they_provide", "shared"}
	genreOptions           = []string{"", "rock", "pop", "country", "jazz", "blues", "rnb", "dance_edm", "oldies", "mix"}
	accommodationOptions   = []string{"", "yes", "no", "na"}
	audienceRatingOptions  = []string{"g", "pg", "pg-13", "r"}
	requiredContractFields = []string{
		"client_company_name", "contact_person_name", "street_address", "city", "state",
		"zip_code", "phone", "email", "event_name", "performance_date", "load_in_time",
		"first_set_start_time",
	}
)

// ContractInput is the admin-editable part of a contract.
type ContractInput struct {
	ClientCompanyName string `json:"client_company_name"`
	ContactPersonName string `json:"contact_person_name"`
	StreetAddress     string `json:"street_address"`
	City              string `json:"city"`
	State             string `json:"state"`
	ZipCode           string `json:"zip_code"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`

	PerformanceDate   string `json:"performance_date"`
	EventName         string `json:"event_name"`
	FirstSetStartTime string `json:"first_set_start_time"`
	NumberOfSets      int    `json:"number_of_sets"`
	SetLength         int    `json:"set_length"`
	BreakLength       *int   `json:"break_length"`
	LoadInTime        string `json:"load_in_time"`

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

	SoundSystem            string `json:"sound_system"`
	Lights                 string `json:"lights"`
	MusicBetweenSets       string `json:"music_between_sets"`
	OutsideProduction      bool   `json:"outside_production"`
	OutsideProductionNotes string `json:"outside_production_notes"`
	PreferredGenre         string `json:"preferred_genre"`

	AccommodationsProvided  string   `json:"accommodations_provided"`
	AccommodationCostOffset float64  `json:"accommodation_cost_offset"`
	MileageTravelFee        float64  `json:"mileage_travel_fee"`
	EarlyLoadinRequired     bool     `json:"early_loadin_required"`
	EarlyLoadinHours        float64  `json:"early_loadin_hours"`
	BaseCompensation        float64  `json:"base_compensation"`
	DepositPercentage       *float64 `json:"deposit_percentage"`
	AdditionalCompensation  string   `json:"additional_compensation"`

	ServicesDescription     string `json:"services_description"`
	Attire                  string `json:"attire"`
	AudienceRating          string `json:"audience_rating"`
	CoverLetterMessage      string `json:"cover_letter_message"`
	AdditionalContractNotes string `json:"additional_contract_notes"`

	// LineItems replaces the stored items when non-nil.
	LineItems *[]LineItem `json:"line_items"`

	// Status is only applied on update and only when set.
	Status   Status `json:"status"`
	Override bool   `json:"override"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned by Validate.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Normalize trims text and fills defaults for unset options.
func (in *ContractInput) Normalize(defaultDeposit float64) {
	for _, p := range []*string{
		&in.ClientCompanyName, &in.ContactPersonName, &in.StreetAddress, &in.City, &in.State,
		&in.ZipCode, &in.Phone, &in.Email, &in.PerformanceDate, &in.EventName,
		&in.FirstSetStartTime, &in.LoadInTime, &in.VenueName, &in.VenueAddress, &in.VenueCity,
		&in.VenueState, &in.VenueZip, &in.VenueContactPerson, &in.VenuePhone, &in.VenueEmail,
		&in.InsideOutside, &in.StageAvailable, &in.PowerRequirements, &in.LoadinLocation,
		&in.PerformanceLocation, &in.SoundSystem, &in.Lights, &in.MusicBetweenSets,
		&in.OutsideProductionNotes, &in.PreferredGenre, &in.AccommodationsProvided,
		&in.AdditionalCompensation, &in.ServicesDescription, &in.Attire, &in.AudienceRating,
		&in.CoverLetterMessage, &in.AdditionalContractNotes,
	} {
		*p = strings.TrimSpace(*p)
	}
	in.Email = strings.ToLower(in.Email)
	in.VenueEmail = strings.ToLower(in.VenueEmail)

	if in.NumberOfSets == 0 {
		in.NumberOfSets = 3
	}
	if in.SetLength == 0 {
		in.SetLength = 60
	}
	if in.BreakLength == nil {
		b := 30
		in.BreakLength = &b
	}
	if in.DepositPercentage == nil {
		d := defaultDeposit
		in.DepositPercentage = &d
	}
	if in.InsideOutside == "" {
		in.InsideOutside = "inside"
	}
	if in.StageAvailable == "" {
		in.StageAvailable = "tbd"
	}
	if in.SoundSystem == "" {
		in.SoundSystem = "we_provide"
	}
	if in.Lights == "" {
		in.Lights = "we_provide"
	}
	if in.MusicBetweenSets == "" {
		in.MusicBetweenSets = "we_provide"
	}
	if in.AudienceRating == "" {
		in.AudienceRating = "pg-13"
	}
	if in.ServicesDescription == "" {
		in.ServicesDescription = DefaultServicesDescription
	}
	if !in.EarlyLoadinRequired {
		in.EarlyLoadinHours = 0
	}
	if in.LineItems != nil {
		items := make([]LineItem, 0, len(*in.LineItems))
		for _, it := range *in.LineItems {
			it.Description = strings.TrimSpace(it.Description)
			if it.Description == "" {
				continue
			}
			if it.Quantity == 0 {
				it.Quantity = 1
			}
			items = append(items, it)
		}
		for i := range items {
			items[i].SortOrder = i
		}
		in.LineItems = &items
	}
}

// Validate checks a normalized input.
func (in *ContractInput) Validate() error {
	var errs FieldErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	values := map[string]string{
		"client_company_name":  in.ClientCompanyName,
		"contact_person_name":  in.ContactPersonName,
		"street_address":       in.StreetAddress,
		"city":                 in.City,
		"state":                in.State,
		"zip_code":             in.ZipCode,
		"phone":                in.Phone,
		"email":                in.Email,
		"event_name":           in.EventName,
		"performance_date":     in.PerformanceDate,
		"load_in_time":         in.LoadInTime,
		"first_set_start_time": in.FirstSetStartTime,
	}
	for _, f := range requiredContractFields {
		if values[f] == "" {
			add(f, "is required")
		}
	}

	if in.Email != "" && !validEmail(in.Email) {
		add("email", "is not a valid email address")
	}
	if in.VenueEmail != "" && !validEmail(in.VenueEmail) {
		add("venue_email", "is not a valid email address")
	}
	if in.PerformanceDate != "" {
		if _, err := time.Parse(time.DateOnly, in.PerformanceDate); err != nil {
			add("performance_date", "must be YYYY-MM-DD")
		}
	}
	if in.FirstSetStartTime != "" && !validClock(in.FirstSetStartTime) {
		add("first_set_start_time", "must be HH:MM")
	}
	if in.LoadInTime != "" && !validClock(in.LoadInTime) {
		add("load_in_time", "must be HH:MM")
	}

	if in.NumberOfSets < 1 || in.NumberOfSets > 4 {
		add("number_of_sets", "must be between 1 and 4")
	}
	if in.SetLength < 15 || in.SetLength > 180 {
		add("set_length", "must be between 15 and 180 minutes")
	}
	if in.BreakLength != nil && (*in.BreakLength < 0 || *in.BreakLength > 60) {
		add("break_length", "must be between 0 and 60 minutes")
	}
	if in.DepositPercentage != nil && (*in.DepositPercentage < 0 || *in.DepositPercentage > 100) {
		add("deposit_percentage", "must be between 0 and 100")
	}
	if in.BaseCompensation < 0 {
		add("base_compensation", "must not be negative")
	}
	if in.MileageTravelFee < 0 {
		add("mileage_travel_fee", "must not be negative")
	}
	if in.AccommodationCostOffset < 0 {
		add("accommodation_cost_offset", "must not be negative")
	}
	if in.EarlyLoadinHours < 0 {
		add("early_loadin_hours", "must not be negative")
	}

	checkOption := func(field, value string, options []string) {
		if !contains(options, value) {
			add(field, "must be one of %s", strings.Join(nonEmpty(options), ", "))
		}
	}
	checkOption("inside_outside", in.InsideOutside, insideOutsideOptions)
	checkOption("stage_available", in.StageAvailable, stageOptions)
	checkOption("sound_system", in.SoundSystem, productionOptions)
	checkOption("lights", in.Lights, productionOptions)
	checkOption("music_between_sets", in.MusicBetweenSets, productionOptions)
	checkOption("preferred_genre", in.PreferredGenre, genreOptions)
	checkOption("accommodations_provided", in.AccommodationsProvided, accommodationOptions)
	checkOption("audience_rating", in.AudienceRating, audienceRatingOptions)

	if in.LineItems != nil {
		for i, it := range *in.LineItems {
			if it.Quantity < 0 || it.UnitPrice < 0 {
				add(fmt.Sprintf("line_items[%d]", i), "quantity and unit price must not be negative")
			}
		}
	}
	if in.Status != "" && !in.Status.Valid() {
		add("status", "unknown status %q", in.Status)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyTo copies the input onto c. Line items are only replaced when provided.
func (in *ContractInput) ApplyTo(c *Contract) {
	c.ClientCompanyName = in.ClientCompanyName
	c.ContactPersonName = in.ContactPersonName
	c.StreetAddress = in.StreetAddress
	c.City = in.City
	c.State = in.State
	c.ZipCode = in.ZipCode
	c.Phone = in.Phone
	c.Email = in.Email

	c.PerformanceDate = in.PerformanceDate
	c.EventName = in.EventName
	c.FirstSetStartTime = in.FirstSetStartTime
	c.NumberOfSets = in.NumberOfSets
	c.SetLength = in.SetLength
	if in.BreakLength != nil {
		c.BreakLength = *in.BreakLength
	}
	c.LoadInTime = in.LoadInTime

	c.VenueName = in.VenueName
	c.VenueAddress = in.VenueAddress
	c.VenueCity = in.VenueCity
	c.VenueState = in.VenueState
	c.VenueZip = in.VenueZip
	c.VenueContactPerson = in.VenueContactPerson
	c.VenuePhone = in.VenuePhone
	c.VenueEmail = in.VenueEmail
	c.InsideOutside = in.InsideOutside
	c.StageAvailable = in.StageAvailable
	c.PowerRequirements = in.PowerRequirements
	c.LoadinLocation = in.LoadinLocation
	c.PerformanceLocation = in.PerformanceLocation

	c.SoundSystem = in.SoundSystem
	c.Lights = in.Lights
	c.MusicBetweenSets = in.MusicBetweenSets
	c.OutsideProduction = in.OutsideProduction
	c.OutsideProductionNotes = in.OutsideProductionNotes
	c.PreferredGenre = in.PreferredGenre

	c.AccommodationsProvided = in.AccommodationsProvided
	c.AccommodationCostOffset = in.AccommodationCostOffset
	c.MileageTravelFee = in.MileageTravelFee
	c.EarlyLoadinRequired = in.EarlyLoadinRequired
	c.EarlyLoadinHours = in.EarlyLoadinHours
	c.BaseCompensation = in.BaseCompensation
	if in.DepositPercentage != nil {
		c.DepositPercentage = *in.DepositPercentage
	}
	c.AdditionalCompensation = in.AdditionalCompensation

	c.ServicesDescription = in.ServicesDescription
	c.Attire = in.Attire
	c.AudienceRating = in.AudienceRating
	c.CoverLetterMessage = in.CoverLetterMessage
	c.AdditionalContractNotes = in.AdditionalContractNotes

	if in.LineItems != nil {
		c.LineItems = append([]LineItem(nil), (*in.LineItems)...)
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func contains(list []string, v string) bool {
	for _, o := range list {
		if o == v {
			return true
		}
	}
	return false
}

func nonEmpty(list []string) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
