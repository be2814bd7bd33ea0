package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/finance"
)

const signatureImageName = "client-signature"

// PDFDocuments renders the cover letter, contract and invoice as PDF files into an ArtifactStore.
type PDFDocuments struct {
	artifacts ArtifactStore
	business  config.BusinessConfig
	now       func() time.Time
	compress  bool
}

func NewPDFDocuments(artifacts ArtifactStore, business config.BusinessConfig) *PDFDocuments {
	return &PDFDocuments{artifacts: artifacts, business: business, now: time.Now, compress: true}
}

func (d *PDFDocuments) GenerateAll(ctx context.Context, c *model.Contract, signed bool) (model.DocumentPaths, error) {
	var paths model.DocumentPaths
	var err error
	today := d.now().Format("January 2, 2006")

	if signed {
		paths.SignedContract, err = d.render(ctx, c, "signed-contract", "Signed Contract "+c.ContractNumber, func(p *pdfPage) {
			p.contract(c, true)
		})
		if err != nil {
			return paths, err
		}
	} else {
		paths.CoverLetter, err = d.render(ctx, c, "cover-letter", "Cover Letter", func(p *pdfPage) {
			p.coverLetter(c, today)
		})
		if err != nil {
			return paths, err
		}
		paths.Contract, err = d.render(ctx, c, "contract", "Contract "+c.ContractNumber, func(p *pdfPage) {
			p.contract(c, false)
		})
		if err != nil {
			return paths, err
		}
	}
	paths.Invoice, err = d.render(ctx, c, "invoice", "Invoice "+c.InvoiceNumber, func(p *pdfPage) {
		p.invoice(c, today)
	})
	if err != nil {
		return paths, err
	}
	return paths, nil
}

func (d *PDFDocuments) render(ctx context.Context, c *model.Contract, kind, title string, draw func(p *pdfPage)) (string, error) {
	p := d.newPage(c, title)
	draw(p)

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	key := path.Join(c.ContractNumber, kind+".pdf")
	loc, err := d.artifacts.Save(ctx, key, buf.Bytes(), pdfContentType)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	return loc, nil
}

func (d *PDFDocuments) newPage(c *model.Contract, title string) *pdfPage {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(d.compress)
	pdf.SetCreationDate(d.now())
	pdf.SetTitle(title, true)
	pdf.SetAuthor(d.business.Name, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)

	p := &pdfPage{
		Fpdf:     pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		business: d.business,
		totals:   c.Totals(),
	}
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	p.width = pageWidth - left - right

	pdf.SetFooterFunc(p.footer)
	pdf.AddPage()
	return p
}

// pdfPage draws one document. Core fonts only cover cp1252, so text goes through tr.
type pdfPage struct {
	*fpdf.Fpdf
	tr       func(string) string
	business config.BusinessConfig
	totals   finance.Totals
	width    float64
}

func (p *pdfPage) footer() {
	p.SetY(-18)
	p.SetFont("Helvetica", "", 8)
	p.SetTextColor(102, 102, 102)
	p.CellFormat(0, 4, p.tr(joinNonEmpty(" | ", p.business.Name, p.business.Address)), "", 1, "C", false, 0, "")
	p.CellFormat(0, 4, p.tr(joinNonEmpty(" | ", p.business.Phone, p.business.Email)), "", 0, "C", false, 0, "")
}

func (p *pdfPage) heading(s string) {
	p.SetFont("Helvetica", "B", 16)
	p.SetTextColor(196, 18, 48)
	p.MultiCell(0, 8, p.tr(s), "", "L", false)
	p.Ln(2)
}

func (p *pdfPage) section(s string) {
	p.Ln(3)
	p.SetFont("Helvetica", "B", 12)
	p.SetTextColor(51, 51, 51)
	p.CellFormat(0, 7, p.tr(s), "B", 1, "L", false, 0, "")
	p.Ln(1)
}

func (p *pdfPage) para(s string) {
	if s == "" {
		return
	}
	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(51, 51, 51)
	p.MultiCell(0, 5, p.tr(s), "", "L", false)
	p.Ln(1)
}

func (p *pdfPage) row(label, value string) {
	p.SetTextColor(51, 51, 51)
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(p.width*0.4, 6, p.tr(label), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.MultiCell(0, 6, p.tr(value), "", "L", false)
}

func (p *pdfPage) amount(label string, v float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	p.SetTextColor(51, 51, 51)
	p.SetFont("Helvetica", style, 10)
	p.CellFormat(p.width*0.7, 6, p.tr(label), "B", 0, "L", false, 0, "")
	p.CellFormat(0, 6, finance.FormatCurrency(v), "B", 1, "R", false, 0, "")
}

func (p *pdfPage) coverLetter(c *model.Contract, today string) {
	p.para(today)
	p.Ln(2)
	p.para(strings.Join([]string{
		c.ContactPersonName,
		c.ClientCompanyName,
		c.StreetAddress,
		fmt.Sprintf("%s, %s %s", c.City, c.State, c.ZipCode),
	}, "\n"))
	p.Ln(2)
	p.para("Dear " + c.ContactPersonName + ",")

	msg := c.CoverLetterMessage
	if msg == "" {
		msg = fmt.Sprintf("Thank you for choosing %s for %s. Please find the performance contract and invoice enclosed.", p.business.Name, c.EventName)
	}
	p.para(msg)
	p.Ln(2)
	p.para("Sincerely,\n" + p.business.Name)
}

func (p *pdfPage) contract(c *model.Contract, signed bool) {
	p.heading("Performance Contract #" + c.ContractNumber)

	p.section("Client")
	p.para(strings.Join([]string{
		c.ClientCompanyName,
		c.ContactPersonName,
		fmt.Sprintf("%s, %s, %s %s", c.StreetAddress, c.City, c.State, c.ZipCode),
		joinNonEmpty(" | ", c.Phone, c.Email),
	}, "\n"))

	p.section("Performance")
	p.row("Event", c.EventName)
	p.row("Date", formatDate(c.PerformanceDate))
	p.row("Load-in", finance.FormatClock(c.LoadInTime))
	for _, set := range p.totals.SetTimes {
		p.row(fmt.Sprintf("Set %d", set.Number), finance.FormatClock(set.Start)+" - "+finance.FormatClock(set.End))
	}
	p.row("Venue", joinNonEmpty(" ", c.VenueName, c.VenueAddress, c.VenueCity, c.VenueState, c.VenueZip))
	p.row("Setting", fmt.Sprintf("%s, stage: %s", c.InsideOutside, c.StageAvailable))
	p.row("Sound / Lights / Music between sets", fmt.Sprintf("%s / %s / %s", c.SoundSystem, c.Lights, c.MusicBetweenSets))
	p.row("Audience rating", c.AudienceRating)

	p.section("Services")
	p.para(c.ServicesDescription)
	if c.Attire != "" {
		p.para("Attire: " + c.Attire)
	}

	p.section("Compensation")
	p.amount("Base compensation", c.BaseCompensation, false)
	if c.MileageTravelFee != 0 {
		p.amount("Mileage / travel", c.MileageTravelFee, false)
	}
	if p.totals.EarlyLoadinFee != 0 {
		p.amount("Early load-in", p.totals.EarlyLoadinFee, false)
	}
	p.amount("Total compensation", p.totals.TotalCompensation, true)
	p.amount("Deposit ("+finance.FormatPercent(c.DepositPercentage)+")", p.totals.DepositAmount, false)
	p.amount("Balance due", p.totals.BalanceDue, false)
	p.Ln(2)
	p.para(c.AdditionalCompensation)

	if c.AdditionalContractNotes != "" {
		p.section("Notes")
		p.para(c.AdditionalContractNotes)
	}

	p.section("Signatures")
	p.para("Performer: " + p.business.Name)
	if !signed {
		p.para("Client: ______________________")
		return
	}
	p.para(fmt.Sprintf("Client: %s, signed %s from %s", c.ClientSignedName, formatStamp(c.ClientSignedAt), c.ClientSignedIP))
	p.signature(c.ClientSignature)
}

// signature places the client's PNG signature below the current line.
func (p *pdfPage) signature(dataURL string) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, signaturePrefix))
	if err != nil || len(raw) == 0 {
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(signatureImageName, opts, bytes.NewReader(raw))
	p.ImageOptions(signatureImageName, p.GetX(), p.GetY(), 60, 0, true, opts, 0, "")
}

func (p *pdfPage) invoice(c *model.Contract, today string) {
	p.heading("Invoice #" + c.InvoiceNumber)
	p.para(fmt.Sprintf("Contract #%s | %s", c.ContractNumber, today))
	p.para(fmt.Sprintf("Bill to: %s, %s", c.ClientCompanyName, c.ContactPersonName))
	p.Ln(2)

	p.amount(fmt.Sprintf("Performance: %s (%s)", c.EventName, formatDate(c.PerformanceDate)), c.BaseCompensation, false)
	if c.MileageTravelFee != 0 {
		p.amount("Mileage / travel", c.MileageTravelFee, false)
	}
	if p.totals.EarlyLoadinFee != 0 {
		p.amount("Early load-in", p.totals.EarlyLoadinFee, false)
	}
	p.amount("Total", p.totals.TotalCompensation, true)
	p.amount("Deposit due", p.totals.DepositAmount, false)
	p.amount("Balance due", p.totals.BalanceDue, false)

	if days := p.business.PaymentTermsDay; days > 0 {
		p.Ln(2)
		p.para(fmt.Sprintf("Payment terms: the balance is due %d days before the performance date.", days))
	}

	if len(c.LineItems) == 0 {
		return
	}
	p.section("Additional items")
	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(245, 245, 245)
	p.CellFormat(p.width*0.6, 6, "Description", "B", 0, "L", true, 0, "")
	p.CellFormat(p.width*0.15, 6, "Qty", "B", 0, "R", true, 0, "")
	p.CellFormat(0, 6, "Unit price", "B", 1, "R", true, 0, "")
	p.SetFont("Helvetica", "", 10)
	for _, it := range c.LineItems {
		p.CellFormat(p.width*0.6, 6, p.tr(it.Description), "", 0, "L", false, 0, "")
		p.CellFormat(p.width*0.15, 6, strconv.FormatFloat(it.Quantity, 'f', -1, 64), "", 0, "R", false, 0, "")
		p.CellFormat(0, 6, finance.FormatCurrency(it.UnitPrice), "", 1, "R", false, 0, "")
	}
	p.amount("Items total", p.totals.LineItemsTotal, true)
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
