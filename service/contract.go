package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/finance"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
)

const (
	maxKeyAttempts = 5
	activityLimit  = 50

	msgSendExpired = "The contract link has expired. Regenerate the link before sending."
)

// RequestMeta identifies who triggered a mutation.
type RequestMeta struct {
	IP        string
	UserAgent string
	Actor     string
}

func (m RequestMeta) activity(action model.Action, description string, at time.Time) model.Activity {
	return model.Activity{
		Action:      action,
		Description: description,
		Actor:       m.Actor,
		IPAddress:   m.IP,
		UserAgent:   m.UserAgent,
		CreatedAt:   at,
	}
}

// PaymentInput is an admin payment entry.
type PaymentInput struct {
	Type        model.PaymentType   `json:"type"`
	Method      model.PaymentMethod `json:"method"`
	Amount      float64             `json:"amount"`
	Notes       string              `json:"notes"`
	SendReceipt bool                `json:"send_receipt"`
}

// ContractService owns the contract lifecycle. Handlers and the signature workflow
// go through it rather than the store.
type ContractService struct {
	store          Store
	tokens         *TokenManager
	docs           DocumentGenerator
	artifacts      ArtifactStore
	notifier       Notifier
	baseURL        string
	defaultDeposit float64
	now            func() time.Time
}

type ContractServiceConfig struct {
	Store          Store
	Tokens         *TokenManager
	Documents      DocumentGenerator
	Artifacts      ArtifactStore
	Notifier       Notifier
	BaseURL        string
	DefaultDeposit float64
}

func NewContractService(cfg ContractServiceConfig) *ContractService {
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewTokenManager(DefaultTokenTTL)
	}
	return &ContractService{
		store:          cfg.Store,
		tokens:         tokens,
		docs:           cfg.Documents,
		artifacts:      cfg.Artifacts,
		notifier:       cfg.Notifier,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		defaultDeposit: cfg.DefaultDeposit,
		now:            time.Now,
	}
}

func (s *ContractService) Tokens() *TokenManager { return s.tokens }

func (s *ContractService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// ContractURL is the client link sent by email.
func (s *ContractService) ContractURL(token string) string {
	return s.baseURL + "/contract/view?token=" + url.QueryEscape(token)
}

func (s *ContractService) validate(in *model.ContractInput) error {
	in.Normalize(s.defaultDeposit)
	if err := in.Validate(); err != nil {
		var fields model.FieldErrors
		if errors.As(err, &fields) {
			return &ValidationError{Message: "Invalid contract data.", Fields: fields}
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

func (s *ContractService) Create(ctx context.Context, in model.ContractInput, meta RequestMeta) (*model.Contract, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	now := s.clock()
	c := &model.Contract{Status: model.StatusDraft, CreatedAt: now, UpdatedAt: now}
	in.ApplyTo(c)
	if c.LineItems == nil {
		c.LineItems = []model.LineItem{}
	}

	for attempt := 1; ; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}
		c.AccessToken = token
		c.TokenExpiresAt = s.tokens.ExpiresAt(now)

		err = s.store.Create(ctx, c, meta.activity(model.ActionCreated, "Contract created", now))
		if errors.Is(err, ErrDuplicate) && attempt < maxKeyAttempts {
			logger.Debug(ctx, "contract key collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, persistence("create contract", err)
		}
		break
	}

	logger.Info(logger.WithContractID(ctx, c.ID), "contract created", "contract_number", c.ContractNumber)
	return c, nil
}

func (s *ContractService) Get(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := s.store.Get(ctx, id)
	return c, persistence("get contract", err)
}

func (s *ContractService) GetByNumber(ctx context.Context, number string) (*model.Contract, error) {
	c, err := s.store.GetByNumber(ctx, strings.TrimSpace(number))
	return c, persistence("get contract by number", err)
}

// GetByToken looks a contract up by access token. Malformed tokens never reach the store.
func (s *ContractService) GetByToken(ctx context.Context, token string) (*model.Contract, error) {
	if !ValidTokenFormat(token) {
		return nil, &ValidationError{Message: MsgInvalidLink}
	}
	c, err := s.store.GetByToken(ctx, strings.ToLower(token))
	return c, persistence("get contract by token", err)
}

func (s *ContractService) Update(ctx context.Context, id int64, in model.ContractInput, meta RequestMeta) (*model.Contract, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	next := cur.Clone()
	in.ApplyTo(next)
	next.UpdatedAt = now
	acts := []model.Activity{meta.activity(model.ActionUpdated, "Contract details updated", now)}

	if in.Status != "" && in.Status != cur.Status {
		if !in.Override {
			if !cur.Status.SetByAdmin(in.Status) {
				return nil, &StateConflictError{
					Reason: fmt.Sprintf("Cannot change status from %s to %s.", cur.Status.Label(), in.Status.Label()),
				}
			}
			if in.Status == model.StatusSent && cur.TokenExpired(s.now()) {
				return nil, &StateConflictError{Reason: msgSendExpired}
			}
		}
		next.Status = in.Status
		stampStatus(next, now)
		acts = append(acts, meta.activity(model.ActionStatusChanged,
			fmt.Sprintf("Status changed from %s to %s", cur.Status, in.Status), now))
	}

	if err := s.store.Update(ctx, next, cur.Status, in.LineItems != nil, acts...); err != nil {
		return nil, s.staleConflict("update contract", err)
	}
	return s.Get(ctx, id)
}

// stampStatus fills the first-time timestamp for a status reached by admin action.
func stampStatus(c *model.Contract, now time.Time) {
	switch c.Status {
	case model.StatusSent:
		if c.SentAt == nil {
			c.SentAt = &now
		}
	case model.StatusViewed:
		if c.ViewedAt == nil {
			c.ViewedAt = &now
		}
	}
}

func (s *ContractService) staleConflict(op string, err error) error {
	if errors.Is(err, ErrStale) {
		return &StateConflictError{Reason: "The contract was changed by someone else. Please reload and try again."}
	}
	return persistence(op, err)
}

// MarkViewed moves a sent contract to viewed. Only the first view is logged.
func (s *ContractService) MarkViewed(ctx context.Context, c *model.Contract, meta RequestMeta) (bool, error) {
	if c.Status != model.StatusSent {
		return false, nil
	}
	now := s.clock()
	changed, err := s.store.MarkViewed(ctx, c.ID, now, meta.activity(model.ActionViewed, "Contract viewed by client", now))
	if err != nil {
		return false, persistence("mark viewed", err)
	}
	if changed {
		c.Status = model.StatusViewed
		c.ViewedAt = &now
		c.UpdatedAt = now
	}
	return changed, nil
}

// View resolves a client link, marking the contract viewed on first open.
func (s *ContractService) View(ctx context.Context, token string, meta RequestMeta) (*model.Contract, Decision, error) {
	c, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, Decision{}, err
	}
	if c.TokenExpired(s.now()) {
		return nil, Decision{}, &StateConflictError{Reason: MsgLinkExpired}
	}
	if _, err := s.MarkViewed(ctx, c, meta); err != nil {
		return nil, Decision{}, err
	}
	return c, s.tokens.CanSign(c), nil
}

// Send emails the contract link. Draft contracts move to sent; sent or viewed ones are re-sent.
func (s *ContractService) Send(ctx context.Context, id int64, meta RequestMeta) (*model.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, c.ID)

	switch c.Status {
	case model.StatusDraft, model.StatusSent, model.StatusViewed:
	default:
		return nil, &StateConflictError{Reason: fmt.Sprintf("A %s contract cannot be sent.", strings.ToLower(c.Status.Label()))}
	}
	if c.TokenExpired(s.now()) {
		return nil, &StateConflictError{Reason: msgSendExpired}
	}

	if c.Documents.Contract == "" && s.docs != nil {
		if _, err := s.generate(ctx, c, false); err != nil {
			logger.Warn(ctx, "document generation before send failed", "error", err)
		}
	}

	if err := s.notifier.SendContract(ctx, c, s.ContractURL(c.AccessToken)); err != nil {
		logger.Error(ctx, "contract email failed", "error", err)
		return nil, fmt.Errorf("send contract email: %w", err)
	}

	now := s.clock()
	next := c.Clone()
	next.UpdatedAt = now
	var act model.Activity
	if c.Status == model.StatusDraft {
		next.Status = model.StatusSent
		stampStatus(next, now)
		act = meta.activity(model.ActionStatusChanged, "Contract sent to "+c.Email, now)
	} else {
		act = meta.activity(model.ActionUpdated, "Contract re-sent to "+c.Email, now)
	}
	if err := s.store.Update(ctx, next, c.Status, false, act); err != nil {
		return nil, s.staleConflict("mark sent", err)
	}
	logger.Info(ctx, "contract sent", "to", c.Email)
	return s.Get(ctx, id)
}

func (s *ContractService) Cancel(ctx context.Context, id int64, meta RequestMeta) (*model.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(model.StatusCancelled) {
		return nil, &StateConflictError{Reason: fmt.Sprintf("A %s contract cannot be cancelled.", strings.ToLower(c.Status.Label()))}
	}
	now := s.clock()
	next := c.Clone()
	next.Status = model.StatusCancelled
	next.UpdatedAt = now
	act := meta.activity(model.ActionStatusChanged, fmt.Sprintf("Status changed from %s to %s", c.Status, model.StatusCancelled), now)
	if err := s.store.Update(ctx, next, c.Status, false, act); err != nil {
		return nil, s.staleConflict("cancel contract", err)
	}
	return s.Get(ctx, id)
}

// RegenerateToken issues a new link. The previous token stops resolving immediately.
func (s *ContractService) RegenerateToken(ctx context.Context, id int64, meta RequestMeta) (*model.Contract, error) {
	for attempt := 1; ; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}
		now := s.clock()
		act := meta.activity(model.ActionTokenRegenerated, "Access link regenerated", now)
		err = s.store.UpdateToken(ctx, id, token, s.tokens.ExpiresAt(now), act)
		if errors.Is(err, ErrDuplicate) && attempt < maxKeyAttempts {
			continue
		}
		if err != nil {
			return nil, persistence("regenerate token", err)
		}
		return s.Get(ctx, id)
	}
}

// GenerateDocuments renders the documents for the contract's current state.
func (s *ContractService) GenerateDocuments(ctx context.Context, id int64) (*model.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.docs == nil {
		return nil, errors.New("document generation is not configured")
	}
	if _, err := s.generate(ctx, c, c.Status == model.StatusSigned); err != nil {
		return nil, err
	}
	return c, nil
}

// generate renders documents and records their locations on c and in the store.
func (s *ContractService) generate(ctx context.Context, c *model.Contract, signed bool) (model.DocumentPaths, error) {
	paths, err := s.docs.GenerateAll(ctx, c, signed)
	if err != nil {
		return paths, fmt.Errorf("generate documents: %w", err)
	}
	if err := s.store.SetDocuments(ctx, c.ID, paths); err != nil {
		return paths, persistence("save document paths", err)
	}
	c.Documents = c.Documents.Merge(paths)
	return paths, nil
}

// Document returns the bytes of one stored document of the contract.
func (s *ContractService) Document(ctx context.Context, c *model.Contract, kind string) ([]byte, string, error) {
	loc := documentLocation(c.Documents, kind)
	if loc == "" {
		return nil, "", &NotFoundError{Message: "Document not found."}
	}
	data, err := s.artifacts.Open(ctx, loc)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	return data, loc, nil
}

type presigner interface {
	PresignedURL(ctx context.Context, location string) (string, error)
}

// DocumentLink returns a time limited download URL when the artifact store can issue one.
// An empty URL means the caller should stream the bytes from Document instead.
func (s *ContractService) DocumentLink(ctx context.Context, c *model.Contract, kind string) (string, error) {
	loc := documentLocation(c.Documents, kind)
	if loc == "" {
		return "", &NotFoundError{Message: "Document not found."}
	}
	p, ok := s.artifacts.(presigner)
	if !ok {
		return "", nil
	}
	return p.PresignedURL(ctx, loc)
}

func documentLocation(d model.DocumentPaths, kind string) string {
	switch kind {
	case "cover-letter":
		return d.CoverLetter
	case "contract":
		return d.Contract
	case "invoice":
		return d.Invoice
	case "signed-contract":
		return d.SignedContract
	}
	return ""
}

func (s *ContractService) RecordPayment(ctx context.Context, id int64, in PaymentInput, meta RequestMeta) (*model.Contract, error) {
	var fields model.FieldErrors
	if !in.Type.Valid() {
		fields = append(fields, model.FieldError{Field: "type", Message: "must be deposit or balance"})
	}
	if !in.Method.Valid() {
		fields = append(fields, model.FieldError{Field: "method", Message: "must be check, cash or card"})
	}
	if in.Amount <= 0 {
		fields = append(fields, model.FieldError{Field: "amount", Message: "must be greater than zero"})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Message: "Invalid payment data.", Fields: fields}
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusSigned {
		return nil, &StateConflictError{Reason: "Payments can only be recorded for signed contracts."}
	}

	now := s.clock()
	p := model.Payment{
		Paid:           true,
		Method:         in.Method,
		PaidAt:         &now,
		AmountReceived: finance.Round2(in.Amount),
		Notes:          strings.TrimSpace(in.Notes),
	}
	desc := fmt.Sprintf("%s payment of %s received by %s", in.Type, finance.FormatCurrency(p.AmountReceived), in.Method.Label())
	if err := s.store.RecordPayment(ctx, id, in.Type, p, meta.activity(model.ActionPaymentRecorded, desc, now)); err != nil {
		return nil, s.staleConflict("record payment", err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.SendReceipt {
		if err := s.notifier.SendPaymentReceipt(ctx, updated, in.Type, p.AmountReceived, in.Method); err != nil {
			logger.Error(logger.WithContractID(ctx, id), "payment receipt email failed", "error", err)
		}
	}
	return updated, nil
}

// Delete removes the contract with its items and activity, then its document files.
func (s *ContractService) Delete(ctx context.Context, id int64) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return persistence("delete contract", err)
	}
	if s.artifacts == nil {
		return nil
	}
	ctx = logger.WithContractID(ctx, id)
	for _, loc := range c.Documents.All() {
		if err := s.artifacts.Remove(ctx, loc); err != nil {
			logger.Warn(ctx, "remove document failed", "location", loc, "error", err)
		}
	}
	return nil
}

func (s *ContractService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, &ValidationError{Message: "Unknown status filter."}
	}
	res, err := s.store.List(ctx, q)
	return res, persistence("list contracts", err)
}

func (s *ContractService) Statistics(ctx context.Context) (*Stats, error) {
	st, err := s.store.Statistics(ctx, s.now())
	return st, persistence("contract statistics", err)
}

func (s *ContractService) Activity(ctx context.Context, id int64) ([]model.Activity, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	acts, err := s.store.Activity(ctx, id, activityLimit)
	return acts, persistence("list activity", err)
}

// recordSignature stores the signature. A lost race is reported with the reason the
// contract can no longer be signed.
func (s *ContractService) recordSignature(ctx context.Context, c *model.Contract, image, name string, meta RequestMeta) error {
	now := s.clock()
	sig := Signature{Token: c.AccessToken, Image: image, Name: name, IP: meta.IP, SignedAt: now}
	desc := fmt.Sprintf("Contract signed by %s from %s", name, meta.IP)
	err := s.store.RecordSignature(ctx, c.ID, sig, meta.activity(model.ActionSigned, desc, now))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrStale) {
		return persistence("record signature", err)
	}

	cur, getErr := s.store.Get(ctx, c.ID)
	if getErr != nil {
		return persistence("record signature", getErr)
	}
	if cur.AccessToken != c.AccessToken {
		return &NotFoundError{Message: MsgContractNotFound}
	}
	if d := s.tokens.CanSign(cur); !d.Valid {
		return &StateConflictError{Reason: d.Reason}
	}
	return &StateConflictError{Reason: MsgAlreadySigned}
}

// afterSignature regenerates signed documents and sends the confirmation emails.
// Failures are logged and never undo the signature.
func (s *ContractService) afterSignature(ctx context.Context, id int64) {
	ctx = logger.WithContractID(ctx, id)
	c, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Error(ctx, "reload signed contract failed", "error", err)
		return
	}

	if s.docs != nil {
		if _, err := s.generate(ctx, c, true); err != nil {
			logger.Error(ctx, "signed document generation failed", "error", err)
		}
	}

	var attachments []Attachment
	if s.artifacts != nil {
		attachments, err = documentAttachments(ctx, s.artifacts, c, c.Documents.SignedContract, c.Documents.Invoice)
		if err != nil {
			logger.Error(ctx, "load signed documents failed", "error", err)
		}
	}
	if err := s.notifier.SendSignatureConfirmation(ctx, c, attachments); err != nil {
		logger.Error(ctx, "signature confirmation email failed", "error", err)
	}
	if err := s.notifier.SendAdminNotification(ctx, c); err != nil {
		logger.Error(ctx, "admin notification email failed", "error", err)
	}
}
