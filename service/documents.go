package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/model"
)

const (
	documentContentType = "text/html; charset=utf-8"
	pdfContentType      = "application/pdf"
)

// DocumentContentType returns the MIME type of a stored document from its extension.
func DocumentContentType(loc string) string {
	if strings.EqualFold(path.Ext(loc), ".pdf") {
		return pdfContentType
	}
	return documentContentType
}

// DocumentGenerator renders the contract documents and returns where they were stored.
type DocumentGenerator interface {
	// GenerateAll renders cover letter, contract and invoice, or the signed contract and
	// invoice when signed is set. Only the produced paths are non-empty.
	GenerateAll(ctx context.Context, c *model.Contract, signed bool) (model.DocumentPaths, error)
}

// HTMLDocuments renders documents as standalone HTML files into an ArtifactStore.
type HTMLDocuments struct {
	artifacts ArtifactStore
	business  config.BusinessConfig
	now       func() time.Time
}

func NewHTMLDocuments(artifacts ArtifactStore, business config.BusinessConfig) *HTMLDocuments {
	return &HTMLDocuments{artifacts: artifacts, business: business, now: time.Now}
}

func (d *HTMLDocuments) GenerateAll(ctx context.Context, c *model.Contract, signed bool) (model.DocumentPaths, error) {
	var paths model.DocumentPaths
	var err error

	if signed {
		data := d.data(c, "Signed Contract "+c.ContractNumber)
		data.Signed = true
		data.SignatureImage = template.URL(c.ClientSignature)
		if paths.SignedContract, err = d.render(ctx, c, "signed-contract", tplContract, data); err != nil {
			return paths, err
		}
	} else {
		if paths.CoverLetter, err = d.render(ctx, c, "cover-letter", tplCoverLetter, d.data(c, "Cover Letter")); err != nil {
			return paths, err
		}
		if paths.Contract, err = d.render(ctx, c, "contract", tplContract, d.data(c, "Contract "+c.ContractNumber)); err != nil {
			return paths, err
		}
	}
	if paths.Invoice, err = d.render(ctx, c, "invoice", tplInvoice, d.data(c, "Invoice "+c.InvoiceNumber)); err != nil {
		return paths, err
	}
	return paths, nil
}

func (d *HTMLDocuments) data(c *model.Contract, title string) *templateData {
	return &templateData{
		Title:    title,
		Business: d.business,
		Contract: c,
		Totals:   c.Totals(),
		Today:    d.now().Format("January 2, 2006"),
	}
}

func (d *HTMLDocuments) render(ctx context.Context, c *model.Contract, kind string, tpl *template.Template, data *templateData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	key := path.Join(c.ContractNumber, kind+".html")
	loc, err := d.artifacts.Save(ctx, key, buf.Bytes(), documentContentType)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	return loc, nil
}

// documentAttachments loads stored documents as email attachments. Empty locations are skipped.
func documentAttachments(ctx context.Context, artifacts ArtifactStore, c *model.Contract, locations ...string) ([]Attachment, error) {
	var out []Attachment
	for _, loc := range locations {
		if loc == "" {
			continue
		}
		data, err := artifacts.Open(ctx, loc)
		if err != nil {
			return out, err
		}
		out = append(out, Attachment{
			Filename:    c.ContractNumber + "-" + path.Base(loc),
			ContentType: DocumentContentType(loc),
			Data:        data,
		})
	}
	return out, nil
}
