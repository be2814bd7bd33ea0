package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
)

// Store persists contracts, their line items and activity log.
// Every mutating call is applied atomically together with the activity entries it carries.
type Store interface {
	// Create assigns ID, contract number and invoice number, then inserts c.
	// It returns ErrDuplicate when a unique constraint rejects the row.
	Create(ctx context.Context, c *model.Contract, acts ...model.Activity) error
	Get(ctx context.Context, id int64) (*model.Contract, error)
	GetByToken(ctx context.Context, token string) (*model.Contract, error)
	GetByNumber(ctx context.Context, number string) (*model.Contract, error)
	// Update writes the editable fields, status, timestamps and payments of c when the
	// stored status still equals expected. Line items are replaced when replaceItems is set.
	Update(ctx context.Context, c *model.Contract, expected model.Status, replaceItems bool, acts ...model.Activity) error
	// MarkViewed moves a sent contract to viewed. It reports whether the transition happened.
	MarkViewed(ctx context.Context, id int64, at time.Time, act model.Activity) (bool, error)
	// RecordSignature signs a sent or viewed contract whose token matches and is unexpired.
	// It returns ErrStale when any of those conditions no longer hold.
	RecordSignature(ctx context.Context, id int64, sig Signature, act model.Activity) error
	UpdateToken(ctx context.Context, id int64, token string, expiresAt time.Time, act model.Activity) error
	SetDocuments(ctx context.Context, id int64, docs model.DocumentPaths) error
	RecordPayment(ctx context.Context, id int64, typ model.PaymentType, p model.Payment, act model.Activity) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	Statistics(ctx context.Context, now time.Time) (*Stats, error)
	Activity(ctx context.Context, id int64, limit int) ([]model.Activity, error)
	Close() error
}

// Signature is the data captured by a successful signing.
type Signature struct {
	Token    string
	Image    string
	Name     string
	IP       string
	SignedAt time.Time
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

var sortableColumns = map[string]bool{
	"created_at":          true,
	"performance_date":    true,
	"client_company_name": true,
	"status":              true,
	"contract_number":     true,
}

type ListQuery struct {
	Status   model.Status `form:"status"`
	Search   string       `form:"search"`
	DateFrom string       `form:"date_from"`
	DateTo   string       `form:"date_to"`
	Page     int          `form:"page"`
	PerPage  int          `form:"per_page"`
	OrderBy  string       `form:"orderby"`
	Order    string       `form:"order"`
}

// Normalize applies paging defaults and falls back to created_at DESC for unknown sorts.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	if !sortableColumns[q.OrderBy] {
		q.OrderBy = "created_at"
	}
	q.Order = strings.ToUpper(q.Order)
	if q.Order != "ASC" {
		q.Order = "DESC"
	}
	q.Search = strings.TrimSpace(q.Search)
}

func (q *ListQuery) offset() int {
	return (q.Page - 1) * q.PerPage
}

type ListResult struct {
	Contracts  []*model.Contract `json:"contracts"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

func newListResult(q ListQuery, total int, contracts []*model.Contract) *ListResult {
	pages := (total + q.PerPage - 1) / q.PerPage
	if contracts == nil {
		contracts = []*model.Contract{}
	}
	return &ListResult{Contracts: contracts, Total: total, Page: q.Page, PerPage: q.PerPage, TotalPages: pages}
}

type Stats struct {
	Total           int                  `json:"total"`
	ByStatus        map[model.Status]int `json:"by_status"`
	SignedThisMonth int                  `json:"signed_this_month"`
	UpcomingEvents  int                  `json:"upcoming_events"`
	TotalRevenue    float64              `json:"total_revenue"`
	PendingRevenue  float64              `json:"pending_revenue"`
}

func newStats() *Stats {
	s := &Stats{ByStatus: make(map[model.Status]int, len(model.Statuses))}
	for _, st := range model.Statuses {
		s.ByStatus[st] = 0
	}
	return s
}

// statsWindow returns the first instant of the month and the upcoming event date range.
func statsWindow(now time.Time) (monthStart time.Time, from, to string) {
	now = now.UTC()
	monthStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return monthStart, now.Format(time.DateOnly), now.AddDate(0, 0, 30).Format(time.DateOnly)
}

func contractNumber(year, seq int) string { return fmt.Sprintf("SM-%d-%04d", year, seq) }

func invoiceNumber(year, seq int) string { return fmt.Sprintf("INV-%d-%04d", year, seq) }

// MemoryStore keeps everything in process memory. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	contracts  map[int64]*model.Contract
	activities []model.Activity
	nextID     int64
	nextActID  int64
}

func NewMemoryStore() *MemoryStore {
	slog.Info("contract store initialized", "driver", "memory")
	return &MemoryStore{contracts: make(map[int64]*model.Contract)}
}

func (s *MemoryStore) Create(ctx context.Context, c *model.Contract, acts ...model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contracts {
		if existing.AccessToken == c.AccessToken {
			return ErrDuplicate
		}
	}

	year := c.CreatedAt.UTC().Year()
	seq := s.maxSequence("SM-"+strconv.Itoa(year)+"-", func(x *model.Contract) string { return x.ContractNumber }) + 1
	inv := s.maxSequence("INV-"+strconv.Itoa(year)+"-", func(x *model.Contract) string { return x.InvoiceNumber }) + 1

	s.nextID++
	c.ID = s.nextID
	c.ContractNumber = contractNumber(year, seq)
	c.InvoiceNumber = invoiceNumber(year, inv)
	s.contracts[c.ID] = c.Clone()
	s.appendActivities(c.ID, acts)
	return nil
}

// maxSequence must be called with the lock held.
func (s *MemoryStore) maxSequence(prefix string, field func(*model.Contract) string) int {
	max := 0
	for _, c := range s.contracts {
		v := field(c)
		if !strings.HasPrefix(v, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(v, prefix)); err == nil && n > max {
			max = n
		}
	}
	return max
}

// appendActivities must be called with the lock held.
func (s *MemoryStore) appendActivities(id int64, acts []model.Activity) {
	for _, a := range acts {
		s.nextActID++
		a.ID = s.nextActID
		a.ContractID = id
		s.activities = append(s.activities, a)
	}
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, contractNotFound()
	}
	return c.Clone(), nil
}

func (s *MemoryStore) GetByToken(ctx context.Context, token string) (*model.Contract, error) {
	return s.find(func(c *model.Contract) bool { return c.AccessToken == token })
}

func (s *MemoryStore) GetByNumber(ctx context.Context, number string) (*model.Contract, error) {
	return s.find(func(c *model.Contract) bool { return c.ContractNumber == number })
}

func (s *MemoryStore) find(match func(*model.Contract) bool) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contracts {
		if match(c) {
			return c.Clone(), nil
		}
	}
	return nil, contractNotFound()
}

func (s *MemoryStore) Update(ctx context.Context, c *model.Contract, expected model.Status, replaceItems bool, acts ...model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.contracts[c.ID]
	if !ok {
		return contractNotFound()
	}
	if cur.Status != expected {
		return ErrStale
	}

	next := c.Clone()
	// Immutable or separately managed columns always come from the stored row.
	next.ContractNumber = cur.ContractNumber
	next.InvoiceNumber = cur.InvoiceNumber
	next.AccessToken = cur.AccessToken
	next.TokenExpiresAt = cur.TokenExpiresAt
	next.ClientSignature = cur.ClientSignature
	next.ClientSignedAt = cur.ClientSignedAt
	next.ClientSignedIP = cur.ClientSignedIP
	next.ClientSignedName = cur.ClientSignedName
	next.Documents = cur.Documents
	next.CreatedAt = cur.CreatedAt
	if !replaceItems {
		next.LineItems = cur.LineItems
	}
	s.contracts[c.ID] = next
	s.appendActivities(c.ID, acts)
	return nil
}

func (s *MemoryStore) MarkViewed(ctx context.Context, id int64, at time.Time, act model.Activity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return false, contractNotFound()
	}
	if c.Status != model.StatusSent || c.ViewedAt != nil {
		return false, nil
	}
	c.Status = model.StatusViewed
	c.ViewedAt = &at
	c.UpdatedAt = at
	s.appendActivities(id, []model.Activity{act})
	return true, nil
}

func (s *MemoryStore) RecordSignature(ctx context.Context, id int64, sig Signature, act model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return contractNotFound()
	}
	if c.AccessToken != sig.Token || !c.TokenExpiresAt.After(sig.SignedAt) ||
		(c.Status != model.StatusSent && c.Status != model.StatusViewed) {
		return ErrStale
	}
	signedAt := sig.SignedAt
	c.ClientSignature = sig.Image
	c.ClientSignedAt = &signedAt
	c.ClientSignedIP = sig.IP
	c.ClientSignedName = sig.Name
	c.Status = model.StatusSigned
	c.UpdatedAt = signedAt
	s.appendActivities(id, []model.Activity{act})
	return nil
}

func (s *MemoryStore) UpdateToken(ctx context.Context, id int64, token string, expiresAt time.Time, act model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return contractNotFound()
	}
	for otherID, other := range s.contracts {
		if otherID != id && other.AccessToken == token {
			return ErrDuplicate
		}
	}
	c.AccessToken = token
	c.TokenExpiresAt = expiresAt
	c.UpdatedAt = act.CreatedAt
	s.appendActivities(id, []model.Activity{act})
	return nil
}

func (s *MemoryStore) SetDocuments(ctx context.Context, id int64, docs model.DocumentPaths) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return contractNotFound()
	}
	c.Documents = c.Documents.Merge(docs)
	return nil
}

func (s *MemoryStore) RecordPayment(ctx context.Context, id int64, typ model.PaymentType, p model.Payment, act model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return contractNotFound()
	}
	if c.Status != model.StatusSigned {
		return ErrStale
	}
	if typ == model.PaymentDeposit {
		c.Deposit = p
	} else {
		c.Balance = p
	}
	c.UpdatedAt = act.CreatedAt
	s.appendActivities(id, []model.Activity{act})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[id]; !ok {
		return contractNotFound()
	}
	delete(s.contracts, id)
	kept := s.activities[:0]
	for _, a := range s.activities {
		if a.ContractID != id {
			kept = append(kept, a)
		}
	}
	s.activities = kept
	return nil
}

func (s *MemoryStore) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	q.Normalize()
	search := strings.ToLower(q.Search)

	s.mu.RLock()
	var matched []*model.Contract
	for _, c := range s.contracts {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if q.DateFrom != "" && c.PerformanceDate < q.DateFrom {
			continue
		}
		if q.DateTo != "" && c.PerformanceDate > q.DateTo {
			continue
		}
		if search != "" && !matchesSearch(c, search) {
			continue
		}
		matched = append(matched, c.Clone())
	}
	s.mu.RUnlock()

	key := sortKey(q.OrderBy)
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := key(matched[i]), key(matched[j])
		if a == b {
			return matched[i].ID > matched[j].ID
		}
		if q.Order == "ASC" {
			return a < b
		}
		return a > b
	})

	total := len(matched)
	start := q.offset()
	if start > total {
		start = total
	}
	end := start + q.PerPage
	if end > total {
		end = total
	}
	return newListResult(q, total, matched[start:end]), nil
}

func matchesSearch(c *model.Contract, search string) bool {
	for _, v := range []string{c.ClientCompanyName, c.ContactPersonName, c.EventName, c.ContractNumber, c.Email} {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

func sortKey(column string) func(*model.Contract) string {
	switch column {
	case "performance_date":
		return func(c *model.Contract) string { return c.PerformanceDate }
	case "client_company_name":
		return func(c *model.Contract) string { return strings.ToLower(c.ClientCompanyName) }
	case "status":
		return func(c *model.Contract) string { return string(c.Status) }
	case "contract_number":
		return func(c *model.Contract) string { return c.ContractNumber }
	}
	return func(c *model.Contract) string { return c.CreatedAt.UTC().Format(time.RFC3339Nano) }
}

func (s *MemoryStore) Statistics(ctx context.Context, now time.Time) (*Stats, error) {
	monthStart, from, to := statsWindow(now)
	st := newStats()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contracts {
		st.Total++
		st.ByStatus[c.Status]++
		if c.ClientSignedAt != nil && !c.ClientSignedAt.Before(monthStart) {
			st.SignedThisMonth++
		}
		switch c.Status {
		case model.StatusSigned:
			st.TotalRevenue += c.Totals().TotalCompensation
		case model.StatusSent, model.StatusViewed:
			st.PendingRevenue += c.Totals().TotalCompensation
		}
		if c.PerformanceDate >= from && c.PerformanceDate <= to &&
			(c.Status == model.StatusSent || c.Status == model.StatusViewed || c.Status == model.StatusSigned) {
			st.UpcomingEvents++
		}
	}
	return st, nil
}

func (s *MemoryStore) Activity(ctx context.Context, id int64, limit int) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Activity{}
	for i := len(s.activities) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.activities[i].ContractID == id {
			out = append(out, s.activities[i])
		}
	}
	return out, nil
}

// Count returns the number of contracts in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

func (s *MemoryStore) Close() error { return nil }
