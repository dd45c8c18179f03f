package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
)

const (
	fontFamily = "Helvetica"
	dateLayout = "2006-01-02"
)

var (
	// brand colour (DC2626)
	brandRGB = [3]int{220, 38, 38}

	nowFunc = time.Now // mockable
)

type pdfDoc struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPDF(orientation, title string, snap settings.Snapshot) *pdfDoc {
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor(snap.SchoolName(), true)
	pdf.SetCreationDate(nowFunc().UTC())
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	doc := &pdfDoc{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, doc.tr(fmt.Sprintf("%s - page %d/{nb}", snap.SchoolName(), pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	return doc
}

func (doc *pdfDoc) letterhead(snap settings.Snapshot) {
	doc.SetFont(fontFamily, "B", 18)
	doc.SetTextColor(brandRGB[0], brandRGB[1], brandRGB[2])
	doc.CellFormat(0, 9, doc.tr(strings.ToUpper(snap.SchoolName())), "", 1, "C", false, 0, "")
	doc.SetFont(fontFamily, "", 9)
	doc.SetTextColor(80, 80, 80)
	contact := fmt.Sprintf("%s | %s | %s", snap.SchoolAddress(), snap.SchoolPhone(), snap.SchoolEmail())
	doc.CellFormat(0, 5, doc.tr(contact), "", 1, "C", false, 0, "")
	doc.SetDrawColor(brandRGB[0], brandRGB[1], brandRGB[2])
	doc.SetLineWidth(0.6)
	y := doc.GetY() + 2
	left, _, right, _ := doc.GetMargins()
	w, _ := doc.GetPageSize()
	doc.Line(left, y, w-right, y)
	doc.SetY(y + 5)
	doc.SetTextColor(0, 0, 0)
}

func (doc *pdfDoc) section(title string) {
	doc.Ln(3)
	doc.SetFont(fontFamily, "B", 12)
	doc.SetTextColor(brandRGB[0], brandRGB[1], brandRGB[2])
	doc.CellFormat(0, 7, doc.tr(title), "B", 1, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.Ln(1)
}

// field writes a label/value line; empty values are shown as a dash.
func (doc *pdfDoc) field(label, value string) {
	if value == "" {
		value = "-"
	}
	doc.SetFont(fontFamily, "B", 10)
	doc.CellFormat(55, 6, doc.tr(label), "", 0, "L", false, 0, "")
	doc.SetFont(fontFamily, "", 10)
	doc.MultiCell(0, 6, doc.tr(value), "", "L", false)
}

func (doc *pdfDoc) paragraph(text string) {
	doc.SetFont(fontFamily, "", 11)
	doc.MultiCell(0, 6, doc.tr(text), "", "J", false)
	doc.Ln(2)
}

func (doc *pdfDoc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering pdf")
	}
	return buf.Bytes(), nil
}

// Meta describes an exported listing.
type Meta struct {
	Title       string
	Filters     string // human readable description of the filters applied
	GeneratedBy string
	Settings    settings.Snapshot
}

func (m Meta) title() string {
	if m.Title == "" {
		return "Applications Report"
	}
	return m.Title
}

// ApplicationsPDF renders a listing of applications. An empty listing renders a "No applications" line.
func ApplicationsPDF(apps []application.Application, meta Meta) ([]byte, error) {
	doc := newPDF("L", meta.title(), meta.Settings)
	doc.AddPage()
	doc.letterhead(meta.Settings)

	doc.SetFont(fontFamily, "B", 14)
	doc.CellFormat(0, 8, doc.tr(meta.title()), "", 1, "L", false, 0, "")
	doc.SetFont(fontFamily, "", 9)
	info := fmt.Sprintf("Generated %s", nowFunc().UTC().Format("2006-01-02 15:04 UTC"))
	if meta.GeneratedBy != "" {
		info += " by " + meta.GeneratedBy
	}
	info += fmt.Sprintf(" - %d application(s)", len(apps))
	doc.CellFormat(0, 5, doc.tr(info), "", 1, "L", false, 0, "")
	if meta.Filters != "" {
		doc.CellFormat(0, 5, doc.tr("Filters: "+meta.Filters), "", 1, "L", false, 0, "")
	}
	doc.Ln(3)

	if len(apps) == 0 {
		doc.SetFont(fontFamily, "I", 11)
		doc.CellFormat(0, 10, "No applications", "", 1, "C", false, 0, "")
		return doc.bytes()
	}

	headers := []string{"Number", "Name", "Phone", "Email", "Branch", "Course", "Status", "Applied"}
	widths := []float64{38, 45, 30, 55, 24, 37, 24, 24}
	printHeader := func() {
		doc.SetFont(fontFamily, "B", 9)
		doc.SetFillColor(brandRGB[0], brandRGB[1], brandRGB[2])
		doc.SetTextColor(255, 255, 255)
		for i, h := range headers {
			doc.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetTextColor(0, 0, 0)
		doc.SetFont(fontFamily, "", 8)
	}
	printHeader()

	_, pageHeight := doc.GetPageSize()
	_, _, _, bottom := doc.GetMargins()
	for i, a := range apps {
		if doc.GetY()+6 > pageHeight-bottom {
			doc.AddPage()
			printHeader()
		}
		fill := i%2 == 1
		doc.SetFillColor(245, 245, 245)
		row := []string{
			a.ApplicationNumber,
			a.FullName(),
			a.Phone,
			a.Email,
			string(a.Branch),
			a.Course,
			a.Status.Label(),
			a.CreatedAt.Format(dateLayout),
		}
		for j, v := range row {
			doc.CellFormat(widths[j], 6, doc.tr(truncate(v, widths[j])), "1", 0, "L", fill, 0, "")
		}
		doc.Ln(-1)
	}
	return doc.bytes()
}

// truncate shortens s so that it roughly fits a cell of width w (mm) at font size 8.
func truncate(s string, w float64) string {
	n := int(w / 1.6)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

// ApplicationPDF renders the full form of one application.
func ApplicationPDF(a application.Application, snap settings.Snapshot) ([]byte, error) {
	doc := newPDF("P", "Application "+a.ApplicationNumber, snap)
	doc.AddPage()
	doc.letterhead(snap)

	doc.SetFont(fontFamily, "B", 14)
	doc.CellFormat(0, 8, "APPLICATION FORM", "", 1, "C", false, 0, "")
	doc.SetFont(fontFamily, "", 10)
	doc.CellFormat(0, 6, doc.tr(fmt.Sprintf("%s - %s", a.ApplicationNumber, a.Status.Label())), "", 1, "C", false, 0, "")

	doc.section("Personal Information")
	doc.field("Full name", a.FullName())
	doc.field("Date of birth", a.DateOfBirth.Format(dateLayout))
	doc.field("Gender", string(a.Gender))
	doc.field("NRC number", a.NRCNumber)
	doc.field("Email", a.Email)
	doc.field("Phone", a.Phone)
	doc.field("WhatsApp", a.WhatsApp)
	doc.field("Address", a.Address)
	doc.field("City / Province", fmt.Sprintf("%s, %s", a.City, a.Province))

	doc.section("Course Information")
	doc.field("Course", a.CourseName())
	doc.field("Branch", string(a.Branch))
	doc.field("Preferred language", a.PreferredLanguage)
	doc.field("Preferred schedule", a.PreferredSchedule)

	doc.section("Background Information")
	doc.field("Education level", a.EducationLevel)
	doc.field("Previous experience", a.PreviousExperience)
	doc.field("Medical conditions", a.MedicalConditions)

	doc.section("Emergency Contact")
	doc.field("Name", a.EmergencyName)
	doc.field("Phone", a.EmergencyPhone)
	doc.field("Relation", a.EmergencyRelation)

	if a.AdminNotes != "" {
		doc.section("Administrative Notes")
		doc.SetFont(fontFamily, "", 10)
		doc.MultiCell(0, 5, doc.tr(a.AdminNotes), "", "L", false)
	}

	doc.Ln(4)
	doc.SetFont(fontFamily, "I", 8)
	doc.CellFormat(0, 5, doc.tr("Submitted "+a.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")
	return doc.bytes()
}

// AcceptanceLetter renders the letter sent to an accepted applicant.
func AcceptanceLetter(a application.Application, st student.Student, snap settings.Snapshot) ([]byte, error) {
	doc := newPDF("P", "Letter of acceptance "+a.ApplicationNumber, snap)
	doc.AddPage()
	doc.letterhead(snap)

	doc.SetFont(fontFamily, "", 11)
	doc.CellFormat(0, 6, "Date: "+nowFunc().UTC().Format("January 2, 2006"), "", 1, "R", false, 0, "")
	doc.CellFormat(0, 6, doc.tr("Reference: "+a.ApplicationNumber), "", 1, "R", false, 0, "")
	doc.Ln(4)

	doc.SetFont(fontFamily, "", 11)
	doc.MultiCell(0, 6, doc.tr(fmt.Sprintf("%s\n%s\n%s, %s", a.FullName(), a.Address, a.City, a.Province)), "", "L", false)
	doc.Ln(6)

	doc.SetFont(fontFamily, "B", 14)
	doc.CellFormat(0, 8, "LETTER OF ACCEPTANCE", "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.paragraph(fmt.Sprintf("Dear %s,", a.FullName()))
	doc.paragraph(fmt.Sprintf(
		"We are pleased to inform you that your application to %s has been accepted. "+
			"You have been enrolled in the %s course at our %s branch.",
		snap.SchoolName(), a.CourseName(), a.Branch,
	))

	doc.section("Enrollment Details")
	doc.field("Student number", st.StudentNumber)
	doc.field("Application number", a.ApplicationNumber)
	doc.field("Course", a.CourseName())
	doc.field("Branch", string(a.Branch))
	doc.field("Enrollment date", st.EnrollmentDate.Format(dateLayout))

	doc.section("Next Steps")
	doc.paragraph("1. Visit our branch office within 7 days to complete your enrollment.\n" +
		"2. Bring your original NRC, 2 photocopies and 2 passport-sized photographs.\n" +
		"3. Settle the course fees or agree on a payment plan.\n" +
		"4. Receive your training schedule and attend the orientation session.")

	doc.paragraph(fmt.Sprintf("For any question, contact us on %s or %s.", snap.SchoolPhone(), snap.SchoolEmail()))
	doc.Ln(6)
	doc.paragraph("Sincerely,")
	doc.SetFont(fontFamily, "B", 11)
	doc.CellFormat(0, 6, doc.tr("The Admissions Office, "+snap.SchoolName()), "", 1, "L", false, 0, "")
	return doc.bytes()
}

// ReceiptPDF renders the receipt of a payment.
func ReceiptPDF(p student.Payment, st student.Student, snap settings.Snapshot) ([]byte, error) {
	doc := newPDF("P", "Receipt "+p.PaymentNumber, snap)
	doc.AddPage()
	doc.letterhead(snap)

	doc.SetFont(fontFamily, "B", 14)
	title := "PAYMENT RECEIPT"
	if p.Status == student.PaymentReversed {
		title += " (REVERSED)"
	}
	doc.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	doc.Ln(2)

	currency := snap.Currency()
	doc.section("Received From")
	doc.field("Student", st.FullName())
	doc.field("Student number", st.StudentNumber)
	doc.field("Course", application.CourseName(st.Course))
	doc.field("Branch", string(st.Branch))

	doc.section("Payment")
	doc.field("Receipt number", p.PaymentNumber)
	doc.field("Date", p.PaymentDate.Format(dateLayout))
	doc.field("Amount", fmt.Sprintf("%s %s", currency, p.Amount))
	doc.field("Method", strings.ReplaceAll(string(p.Method), "_", " "))
	doc.field("Reference", p.Reference)

	doc.section("Balance")
	doc.field("Total fee", fmt.Sprintf("%s %s", currency, st.TotalFee))
	doc.field("Amount paid", fmt.Sprintf("%s %s", currency, st.AmountPaid))
	doc.field("Balance due", fmt.Sprintf("%s %s", currency, st.Balance()))
	return doc.bytes()
}
