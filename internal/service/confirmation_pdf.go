package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/iliyamo/table-reservation/internal/model"
)

// compressPDF toggles stream compression; tests switch it off to inspect
// the rendered text.
var compressPDF = true

// ConfirmationPDF renders an A4 confirmation slip for r and returns the
// document bytes together with a download file name.  Times are shown in
// loc, the restaurant's time zone.  Guest-supplied text is converted to
// the cp1252 encoding of the core fonts; characters outside it print as
// dots.
func ConfirmationPDF(r *model.Reservation, restaurant string, loc *time.Location) ([]byte, string, error) {
	if r == nil {
		return nil, "", fmt.Errorf("%w: nil reservation", ErrInvalidRequest)
	}
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compressPDF)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Reservation confirmation", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(orDash(restaurant)))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 13)
	pdf.Cell(0, 8, "Reservation confirmation")
	pdf.Ln(12)

	start := r.StartsAt.In(loc)
	end := r.EndsAt.In(loc)
	lines := []string{
		"Reference : " + r.Reference,
		"Status    : " + r.Status,
		"Date      : " + start.Format("Monday, 2 January 2006"),
		"Time      : " + start.Format("15:04") + " - " + end.Format("15:04"),
		"Table     : " + orDash(r.TableLabel),
		fmt.Sprintf("Party     : %d", r.PartySize),
		"Name      : " + orDash(r.ContactName),
		"Phone     : " + orDash(r.ContactPhone),
	}
	if r.ContactEmail != nil {
		lines = append(lines, "Email     : "+*r.ContactEmail)
	}
	pdf.SetFont("Courier", "", 12)
	for _, s := range lines {
		pdf.Cell(0, 7, tr(s))
		pdf.Ln(7)
	}
	if r.Notes != nil && strings.TrimSpace(*r.Notes) != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr("Notes: "+*r.Notes), "", "", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	switch r.Status {
	case model.StatusPending:
		msg := "This reservation is held pending a deposit."
		if r.HoldExpiresAt != nil {
			msg += " The hold lapses at " + r.HoldExpiresAt.In(loc).Format("15:04 on 2 Jan") + "."
		}
		pdf.MultiCell(0, 6, msg, "", "", false)
	case model.StatusCancelled:
		pdf.MultiCell(0, 6, "This reservation has been cancelled.", "", "", false)
	default:
		pdf.MultiCell(0, 6, "Please present this reference on arrival.", "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render confirmation: %w", err)
	}
	ref := r.Reference
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return buf.Bytes(), fmt.Sprintf("reservation-%s.pdf", ref), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
