package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
)

const (
	signaturePrefix   = "data:image/png;base64,"
	maxSignatureBytes = 512000

	minSignerName = 2
	maxSignerName = 255
)

// Client facing messages of the public signing endpoint.
const (
	MsgInvalidLink      = "Invalid contract link."
	MsgTooManyAttempts  = "Too many signature attempts. Please try again later."
	MsgInvalidSignature = "Invalid signature data."
	MsgInvalidName      = "Please enter a valid name."
	MsgSaveFailed       = "Failed to save signature. Please try again."
	MsgSigned           = "Contract signed successfully! A confirmation email has been sent to your email address."
)

var base64Payload = regexp.MustCompile(`^[a-zA-Z0-9/\r\n+]*={0,2}$`)

type SignRequest struct {
	Token      string `json:"token" form:"token"`
	SignedName string `json:"signed_name" form:"signed_name"`
	Signature  string `json:"signature" form:"signature"`
}

// SignatureWorkflow runs a client signing attempt end to end.
type SignatureWorkflow struct {
	contracts *ContractService
	limiter   AttemptLimiter
}

func NewSignatureWorkflow(contracts *ContractService, limiter AttemptLimiter) *SignatureWorkflow {
	return &SignatureWorkflow{contracts: contracts, limiter: limiter}
}

// Sign validates the request and records the signature. Checks run in a fixed order and
// the first failure is returned. Only the signature write changes contract state.
func (w *SignatureWorkflow) Sign(ctx context.Context, req SignRequest, meta RequestMeta) (*model.Contract, error) {
	c, err := w.contracts.GetByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, c.ID)

	if d := w.contracts.tokens.CanSign(c); !d.Valid {
		return nil, &StateConflictError{Reason: d.Reason}
	}

	allowed, retryAfter, err := w.limiter.Hit(ctx, meta.IP)
	if err != nil {
		logger.Error(ctx, "signature attempt limiter failed", "error", err)
	} else if !allowed {
		logger.Warn(ctx, "signature attempts exceeded", "ip", meta.IP)
		return nil, &RateLimitError{Message: MsgTooManyAttempts, RetryAfter: retryAfter}
	}

	image, err := SanitizeSignature(req.Signature)
	if err != nil {
		return nil, err
	}
	name, ok := NormalizeSignerName(req.SignedName)
	if !ok {
		return nil, &ValidationError{Message: MsgInvalidName}
	}

	if err := w.contracts.recordSignature(ctx, c, image, name, meta); err != nil {
		if IsPersistence(err) {
			logger.Error(ctx, "record signature failed", "error", err)
		}
		return nil, err
	}
	logger.Info(ctx, "contract signed", "signer", name)

	w.contracts.afterSignature(ctx, c.ID)

	signed, err := w.contracts.Get(ctx, c.ID)
	if err != nil {
		// Already committed. Report success with what was written.
		logger.Error(ctx, "reload signed contract failed", "error", err)
		signed = c.Clone()
		signed.Status = model.StatusSigned
		signed.ClientSignature = image
		signed.ClientSignedName = name
		signed.ClientSignedIP = meta.IP
	}
	return signed, nil
}

// SanitizeSignature checks a PNG data URL and returns it in canonical form.
func SanitizeSignature(data string) (string, error) {
	invalid := &ValidationError{Message: MsgInvalidSignature}

	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, signaturePrefix) {
		return "", invalid
	}
	payload := data[len(signaturePrefix):]
	if payload == "" || !base64Payload.MatchString(payload) {
		return "", invalid
	}
	payload = strings.NewReplacer("\r", "", "\n", "").Replace(payload)

	decoded, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil || len(decoded) == 0 || len(decoded) > maxSignatureBytes {
		return "", invalid
	}
	if http.DetectContentType(decoded) != "image/png" {
		return "", invalid
	}
	return signaturePrefix + payload, nil
}

// NormalizeSignerName collapses whitespace and checks the length in characters.
func NormalizeSignerName(name string) (string, bool) {
	name = strings.Join(strings.Fields(name), " ")
	n := utf8.RuneCountInString(name)
	if n < minSignerName || n > maxSignerName {
		return "", false
	}
	return name, true
}
