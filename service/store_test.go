package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

// forEachStore runs fn against the memory store and a SQLite store in a temp dir.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to open sqlite store: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func sampleContract(company, token string) *model.Contract {
	return &model.Contract{
		Status:              model.StatusDraft,
		ClientCompanyName:   company,
		ContactPersonName:   "Pat Jones",
		Email:               "pat@example.com",
		PerformanceDate:     "2026-05-20",
		EventName:           company + " Gala",
		FirstSetStartTime:   "19:00",
		NumberOfSets:        3,
		SetLength:           60,
		BreakLength:         30,
		LoadInTime:          "17:00",
		BaseCompensation:    1500,
		MileageTravelFee:    50,
		EarlyLoadinRequired: true,
		EarlyLoadinHours:    2,
		DepositPercentage:   30,
		LineItems: []model.LineItem{
			{Description: "Extra hour", Quantity: 1, UnitPrice: 300, SortOrder: 0},
		},
		AccessToken:    token,
		TokenExpiresAt: testNow.Add(DefaultTokenTTL),
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
}

func testToken(n int) string {
	return fmt.Sprintf("%064x", n)
}

func mustCreate(t *testing.T, s Store, c *model.Contract) *model.Contract {
	t.Helper()
	act := model.Activity{Action: model.ActionCreated, Description: "Contract created", CreatedAt: testNow}
	if err := s.Create(context.Background(), c, act); err != nil {
		t.Fatalf("Failed to create contract: %v", err)
	}
	return c
}

func mustSend(t *testing.T, s Store, c *model.Contract) {
	t.Helper()
	next := c.Clone()
	next.Status = model.StatusSent
	if err := s.Update(context.Background(), next, model.StatusDraft, false); err != nil {
		t.Fatalf("Failed to mark contract sent: %v", err)
	}
}

func TestStoreCreateAssignsNumbers(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		first := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		second := mustCreate(t, s, sampleContract("Beta", testToken(2)))

		if first.ContractNumber != "SM-2026-0001" {
			t.Errorf("Expected SM-2026-0001, got %s", first.ContractNumber)
		}
		if second.ContractNumber != "SM-2026-0002" {
			t.Errorf("Expected SM-2026-0002, got %s", second.ContractNumber)
		}
		if second.InvoiceNumber != "INV-2026-0002" {
			t.Errorf("Expected INV-2026-0002, got %s", second.InvoiceNumber)
		}
		if first.ID == second.ID {
			t.Error("Expected distinct ids")
		}

		got, err := s.Get(context.Background(), first.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ClientCompanyName != "Acme" || got.Status != model.StatusDraft {
			t.Errorf("Unexpected stored contract: %+v", got)
		}
		if len(got.LineItems) != 1 || got.LineItems[0].UnitPrice != 300 {
			t.Errorf("Expected one line item, got %+v", got.LineItems)
		}
		if !got.TokenExpiresAt.Equal(testNow.Add(DefaultTokenTTL)) {
			t.Errorf("Expected expiry %v, got %v", testNow.Add(DefaultTokenTTL), got.TokenExpiresAt)
		}

		byNumber, err := s.GetByNumber(context.Background(), "SM-2026-0002")
		if err != nil || byNumber.ID != second.ID {
			t.Errorf("Expected lookup by number to find contract %d, got %v (%v)", second.ID, byNumber, err)
		}
	})
}

func TestStoreDuplicateToken(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustCreate(t, s, sampleContract("Acme", testToken(1)))
		err := s.Create(context.Background(), sampleContract("Beta", testToken(1)))
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate, got %v", err)
		}
	})
}

func TestStoreNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Get(ctx, 999); !IsNotFound(err) {
			t.Errorf("Expected not found, got %v", err)
		}
		if _, err := s.GetByToken(ctx, testToken(42)); !IsNotFound(err) {
			t.Errorf("Expected not found by token, got %v", err)
		}
		if err := s.Delete(ctx, 999); !IsNotFound(err) {
			t.Errorf("Expected not found on delete, got %v", err)
		}
	})
}

func TestStoreUpdateCompareAndSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))

		next := c.Clone()
		next.EventName = "Renamed"
		if err := s.Update(ctx, next, model.StatusSent, false); !errors.Is(err, ErrStale) {
			t.Errorf("Expected ErrStale for wrong expected status, got %v", err)
		}

		next.LineItems = []model.LineItem{{Description: "Ignored", Quantity: 2, UnitPrice: 10}}
		if err := s.Update(ctx, next, model.StatusDraft, false); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, _ := s.Get(ctx, c.ID)
		if got.EventName != "Renamed" {
			t.Errorf("Expected event name Renamed, got %s", got.EventName)
		}
		if len(got.LineItems) != 1 || got.LineItems[0].Description != "Extra hour" {
			t.Errorf("Expected line items to be kept, got %+v", got.LineItems)
		}

		next.LineItems = []model.LineItem{
			{Description: "Sound tech", Quantity: 1, UnitPrice: 200, SortOrder: 0},
			{Description: "Lights", Quantity: 2, UnitPrice: 75, SortOrder: 1},
		}
		act := model.Activity{Action: model.ActionUpdated, Description: "Contract details updated", CreatedAt: testNow}
		if err := s.Update(ctx, next, model.StatusDraft, true, act); err != nil {
			t.Fatalf("Update with items failed: %v", err)
		}
		got, _ = s.Get(ctx, c.ID)
		if len(got.LineItems) != 2 || got.LineItems[1].Description != "Lights" {
			t.Errorf("Expected line items to be replaced, got %+v", got.LineItems)
		}
		if got.AccessToken != testToken(1) {
			t.Error("Expected update to leave the access token alone")
		}
	})
}

func TestStoreMarkViewedOnlyOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		act := model.Activity{Action: model.ActionViewed, Description: "Contract viewed by client", CreatedAt: testNow}

		changed, err := s.MarkViewed(ctx, c.ID, testNow, act)
		if err != nil || changed {
			t.Errorf("Expected draft contract to stay unviewed, got changed=%v err=%v", changed, err)
		}

		mustSend(t, s, c)
		for i, want := range []bool{true, false, false} {
			changed, err := s.MarkViewed(ctx, c.ID, testNow.Add(time.Duration(i)*time.Hour), act)
			if err != nil {
				t.Fatalf("MarkViewed failed: %v", err)
			}
			if changed != want {
				t.Errorf("Call %d: expected changed=%v, got %v", i, want, changed)
			}
		}

		got, _ := s.Get(ctx, c.ID)
		if got.Status != model.StatusViewed {
			t.Errorf("Expected viewed, got %s", got.Status)
		}
		if got.ViewedAt == nil || !got.ViewedAt.Equal(testNow) {
			t.Errorf("Expected first view time %v, got %v", testNow, got.ViewedAt)
		}

		acts, _ := s.Activity(ctx, c.ID, 50)
		viewed := 0
		for _, a := range acts {
			if a.Action == model.ActionViewed {
				viewed++
			}
		}
		if viewed != 1 {
			t.Errorf("Expected one viewed entry, got %d", viewed)
		}
	})
}

func TestStoreRecordSignature(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		act := model.Activity{Action: model.ActionSigned, Description: "signed", CreatedAt: testNow}
		sig := Signature{Token: testToken(1), Image: "data:image/png;base64,AAAA", Name: "Pat Jones", IP: "203.0.113.9", SignedAt: testNow}

		if err := s.RecordSignature(ctx, c.ID, sig, act); !errors.Is(err, ErrStale) {
			t.Errorf("Expected draft contract to reject signature, got %v", err)
		}
		mustSend(t, s, c)

		wrong := sig
		wrong.Token = testToken(2)
		if err := s.RecordSignature(ctx, c.ID, wrong, act); !errors.Is(err, ErrStale) {
			t.Errorf("Expected wrong token to be rejected, got %v", err)
		}
		late := sig
		late.SignedAt = c.TokenExpiresAt.Add(time.Hour)
		if err := s.RecordSignature(ctx, c.ID, late, act); !errors.Is(err, ErrStale) {
			t.Errorf("Expected expired token to be rejected, got %v", err)
		}

		if err := s.RecordSignature(ctx, c.ID, sig, act); err != nil {
			t.Fatalf("RecordSignature failed: %v", err)
		}
		if err := s.RecordSignature(ctx, c.ID, sig, act); !errors.Is(err, ErrStale) {
			t.Errorf("Expected second signature to be rejected, got %v", err)
		}

		got, _ := s.Get(ctx, c.ID)
		if got.Status != model.StatusSigned {
			t.Errorf("Expected signed, got %s", got.Status)
		}
		if got.ClientSignedName != "Pat Jones" || got.ClientSignedIP != "203.0.113.9" {
			t.Errorf("Unexpected signer data: %s %s", got.ClientSignedName, got.ClientSignedIP)
		}
		if got.ClientSignature != sig.Image {
			t.Error("Expected signature image to be stored")
		}
		if got.ClientSignedAt == nil || !got.ClientSignedAt.Equal(testNow) {
			t.Errorf("Expected signed at %v, got %v", testNow, got.ClientSignedAt)
		}
	})
}

func TestStoreUpdateToken(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		mustCreate(t, s, sampleContract("Beta", testToken(2)))
		act := model.Activity{Action: model.ActionTokenRegenerated, Description: "regenerated", CreatedAt: testNow}
		expires := testNow.Add(48 * time.Hour)

		if err := s.UpdateToken(ctx, c.ID, testToken(2), expires, act); !errors.Is(err, ErrDuplicate) {
			t.Errorf("Expected ErrDuplicate for a token in use, got %v", err)
		}
		if err := s.UpdateToken(ctx, c.ID, testToken(3), expires, act); err != nil {
			t.Fatalf("UpdateToken failed: %v", err)
		}
		if _, err := s.GetByToken(ctx, testToken(1)); !IsNotFound(err) {
			t.Errorf("Expected old token to stop resolving, got %v", err)
		}
		got, err := s.GetByToken(ctx, testToken(3))
		if err != nil {
			t.Fatalf("Expected new token to resolve: %v", err)
		}
		if !got.TokenExpiresAt.Equal(expires) {
			t.Errorf("Expected expiry %v, got %v", expires, got.TokenExpiresAt)
		}
	})
}

func TestStoreSetDocumentsMerges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))

		first := model.DocumentPaths{CoverLetter: "a/cover.html", Contract: "a/contract.html", Invoice: "a/invoice.html"}
		if err := s.SetDocuments(ctx, c.ID, first); err != nil {
			t.Fatalf("SetDocuments failed: %v", err)
		}
		if err := s.SetDocuments(ctx, c.ID, model.DocumentPaths{SignedContract: "a/signed.html", Invoice: "a/invoice2.html"}); err != nil {
			t.Fatalf("SetDocuments failed: %v", err)
		}

		got, _ := s.Get(ctx, c.ID)
		want := model.DocumentPaths{CoverLetter: "a/cover.html", Contract: "a/contract.html", Invoice: "a/invoice2.html", SignedContract: "a/signed.html"}
		if got.Documents != want {
			t.Errorf("Expected %+v, got %+v", want, got.Documents)
		}
	})
}

func TestStoreRecordPayment(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		act := model.Activity{Action: model.ActionPaymentRecorded, Description: "deposit", CreatedAt: testNow}
		paidAt := testNow
		p := model.Payment{Paid: true, Method: model.MethodCheck, PaidAt: &paidAt, AmountReceived: 525, Notes: "check #1001"}

		if err := s.RecordPayment(ctx, c.ID, model.PaymentDeposit, p, act); !errors.Is(err, ErrStale) {
			t.Errorf("Expected unsigned contract to reject payment, got %v", err)
		}

		mustSend(t, s, c)
		sig := Signature{Token: testToken(1), Image: "img", Name: "Pat", IP: "127.0.0.1", SignedAt: testNow}
		if err := s.RecordSignature(ctx, c.ID, sig, model.Activity{Action: model.ActionSigned, CreatedAt: testNow}); err != nil {
			t.Fatalf("RecordSignature failed: %v", err)
		}
		if err := s.RecordPayment(ctx, c.ID, model.PaymentDeposit, p, act); err != nil {
			t.Fatalf("RecordPayment failed: %v", err)
		}

		got, _ := s.Get(ctx, c.ID)
		if !got.Deposit.Paid || got.Deposit.AmountReceived != 525 || got.Deposit.Method != model.MethodCheck {
			t.Errorf("Unexpected deposit: %+v", got.Deposit)
		}
		if got.Balance.Paid {
			t.Error("Expected balance to stay unpaid")
		}
	})
}

func TestStoreDeleteCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		other := mustCreate(t, s, sampleContract("Beta", testToken(2)))

		if err := s.Delete(ctx, c.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get(ctx, c.ID); !IsNotFound(err) {
			t.Errorf("Expected deleted contract to be gone, got %v", err)
		}
		acts, err := s.Activity(ctx, c.ID, 50)
		if err != nil || len(acts) != 0 {
			t.Errorf("Expected activity to be removed, got %d entries (%v)", len(acts), err)
		}
		acts, _ = s.Activity(ctx, other.ID, 50)
		if len(acts) != 1 {
			t.Errorf("Expected other contract activity to remain, got %d", len(acts))
		}
	})
}

func TestStoreActivityNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		for i := 1; i <= 3; i++ {
			act := model.Activity{Action: model.ActionUpdated, Description: fmt.Sprintf("edit %d", i), CreatedAt: testNow.Add(time.Duration(i) * time.Minute)}
			if err := s.Update(ctx, c, model.StatusDraft, false, act); err != nil {
				t.Fatalf("Update failed: %v", err)
			}
		}

		acts, err := s.Activity(ctx, c.ID, 2)
		if err != nil {
			t.Fatalf("Activity failed: %v", err)
		}
		if len(acts) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(acts))
		}
		if acts[0].Description != "edit 3" || acts[1].Description != "edit 2" {
			t.Errorf("Expected newest first, got %s, %s", acts[0].Description, acts[1].Description)
		}
	})
}

func TestStoreList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, name := range []string{"Cobalt", "Acme", "Beta"} {
			c := sampleContract(name, testToken(i+1))
			c.PerformanceDate = fmt.Sprintf("2026-06-%02d", 10+i)
			mustCreate(t, s, c)
		}
		beta, _ := s.GetByNumber(ctx, "SM-2026-0003")
		mustSend(t, s, beta)

		tests := []struct {
			name      string
			query     ListQuery
			wantTotal int
			wantFirst string
		}{
			{"defaults", ListQuery{}, 3, "Beta"},
			{"company ascending", ListQuery{OrderBy: "client_company_name", Order: "asc"}, 3, "Acme"},
			{"unknown sort falls back", ListQuery{OrderBy: "id; DROP TABLE contracts"}, 3, "Beta"},
			{"status filter", ListQuery{Status: model.StatusSent}, 1, "Beta"},
			{"search event", ListQuery{Search: "cobalt gala"}, 1, "Cobalt"},
			{"search number", ListQuery{Search: "sm-2026-0002"}, 1, "Acme"},
			{"date range", ListQuery{DateFrom: "2026-06-11", DateTo: "2026-06-12", OrderBy: "performance_date", Order: "ASC"}, 2, "Acme"},
			{"no match", ListQuery{Search: "nothing"}, 0, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := s.List(ctx, tt.query)
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				if res.Total != tt.wantTotal {
					t.Errorf("Expected total %d, got %d", tt.wantTotal, res.Total)
				}
				if tt.wantFirst == "" {
					if len(res.Contracts) != 0 {
						t.Errorf("Expected no contracts, got %d", len(res.Contracts))
					}
					return
				}
				if len(res.Contracts) == 0 || res.Contracts[0].ClientCompanyName != tt.wantFirst {
					t.Errorf("Expected first contract %s, got %+v", tt.wantFirst, res.Contracts)
				}
			})
		}

		res, err := s.List(ctx, ListQuery{PerPage: 2, Page: 2, OrderBy: "contract_number", Order: "ASC"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if res.TotalPages != 2 || len(res.Contracts) != 1 || res.Contracts[0].ContractNumber != "SM-2026-0003" {
			t.Errorf("Unexpected second page: pages=%d contracts=%d", res.TotalPages, len(res.Contracts))
		}
	})
}

func TestStoreStatistics(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		signed := mustCreate(t, s, sampleContract("Acme", testToken(1)))
		sent := mustCreate(t, s, sampleContract("Beta", testToken(2)))
		far := sampleContract("Cobalt", testToken(3))
		far.PerformanceDate = "2027-01-01"
		mustCreate(t, s, far)

		mustSend(t, s, signed)
		mustSend(t, s, sent)
		sig := Signature{Token: testToken(1), Image: "img", Name: "Pat", IP: "127.0.0.1", SignedAt: testNow}
		if err := s.RecordSignature(ctx, signed.ID, sig, model.Activity{Action: model.ActionSigned, CreatedAt: testNow}); err != nil {
			t.Fatalf("RecordSignature failed: %v", err)
		}

		st, err := s.Statistics(ctx, testNow)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if st.Total != 3 {
			t.Errorf("Expected total 3, got %d", st.Total)
		}
		if st.ByStatus[model.StatusSigned] != 1 || st.ByStatus[model.StatusSent] != 1 || st.ByStatus[model.StatusDraft] != 1 {
			t.Errorf("Unexpected status counts: %v", st.ByStatus)
		}
		if st.ByStatus[model.StatusCancelled] != 0 {
			t.Errorf("Expected zero cancelled, got %d", st.ByStatus[model.StatusCancelled])
		}
		if st.SignedThisMonth != 1 {
			t.Errorf("Expected 1 signed this month, got %d", st.SignedThisMonth)
		}
		if st.UpcomingEvents != 2 {
			t.Errorf("Expected 2 upcoming events, got %d", st.UpcomingEvents)
		}
		// 1500 base + 50 mileage + 2h early load-in at 100
		if st.TotalRevenue != 1750 {
			t.Errorf("Expected revenue 1750, got %v", st.TotalRevenue)
		}
		if st.PendingRevenue != 1750 {
			t.Errorf("Expected pending revenue 1750, got %v", st.PendingRevenue)
		}
	})
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Page: -1, PerPage: 500, OrderBy: "email", Order: "sideways", Search: "  acme "}
	q.Normalize()

	if q.Page != 1 {
		t.Errorf("Expected page 1, got %d", q.Page)
	}
	if q.PerPage != 100 {
		t.Errorf("Expected per page 100, got %d", q.PerPage)
	}
	if q.OrderBy != "created_at" || q.Order != "DESC" {
		t.Errorf("Expected created_at DESC, got %s %s", q.OrderBy, q.Order)
	}
	if q.Search != "acme" {
		t.Errorf("Expected trimmed search, got %q", q.Search)
	}
}
