package export

import (
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/student"
)

// Content types of the rendered documents
const (
	ContentTypePDF   = "application/pdf"
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// status cell fills
var statusFills = map[string]string{
	string(application.StatusAccepted): "D4EDDA",
	string(application.StatusRejected): "F8D7DA",
	string(application.StatusPending):  "FFF3CD",
	string(student.PaymentPaid):        "D4EDDA",
	string(student.PaymentOverdue):     "F8D7DA",
	string(student.PaymentReversed):    "F8D7DA",
}

type column struct {
	header string
	width  float64
}

// workbook is a single sheet excel file with a styled, frozen and filterable header row.
type workbook struct {
	f       *excelize.File
	sheet   string
	columns []column
	row     int
	border  int
	fills   map[string]int // {colour: style ID}
}

func newWorkbook(sheet string, columns []column) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	wb := &workbook{f: f, sheet: sheet, columns: columns, row: 1, fills: make(map[string]int)}

	borders := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"DC2626"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    borders,
	})
	if err != nil {
		return nil, err
	}
	if wb.border, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    borders,
	}); err != nil {
		return nil, err
	}
	for colour := range uniqueFills() {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{colour}, Pattern: 1},
			Alignment: &excelize.Alignment{Vertical: "top"},
			Border:    borders,
		})
		if err != nil {
			return nil, err
		}
		wb.fills[colour] = id
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err = f.SetCellValue(sheet, cell, c.header); err != nil {
			return nil, err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err = f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err = f.SetCellStyle(sheet, first, last, header); err != nil {
		return nil, err
	}
	return wb, nil
}

func uniqueFills() map[string]struct{} {
	set := make(map[string]struct{})
	for _, c := range statusFills {
		set[c] = struct{}{}
	}
	return set
}

// append writes a data row; the cell at statusCol (0-based, -1 for none) is coloured by value.
func (wb *workbook) append(statusCol int, values ...interface{}) error {
	wb.row++
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, wb.row)
		if err := wb.f.SetCellValue(wb.sheet, cell, v); err != nil {
			return err
		}
		style := wb.border
		if i == statusCol {
			if s, ok := v.(string); ok {
				if colour, ok := statusFills[s]; ok {
					style = wb.fills[colour]
				}
			}
		}
		if err := wb.f.SetCellStyle(wb.sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// bytes freezes the header row, adds the auto filter and renders the file.
func (wb *workbook) bytes() ([]byte, error) {
	defer wb.f.Close()

	if err := wb.f.SetPanes(wb.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "freezing header")
	}
	last, _ := excelize.CoordinatesToCellName(len(wb.columns), wb.row)
	if err := wb.f.AutoFilter(wb.sheet, "A1:"+last, nil); err != nil {
		return nil, errors.Wrap(err, "adding auto filter")
	}
	buf, err := wb.f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "rendering excel")
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

// ApplicationsExcel renders applications as a spreadsheet. An empty listing renders the header row only.
func ApplicationsExcel(apps []application.Application) ([]byte, error) {
	wb, err := newWorkbook("Applications", []column{
		{"ID", 8}, {"Number", 22}, {"First Name", 15}, {"Last Name", 15}, {"Email", 25}, {"Phone", 15},
		{"WhatsApp", 15}, {"Date of Birth", 12}, {"Gender", 10}, {"NRC Number", 15}, {"Address", 30},
		{"City", 15}, {"Province", 15}, {"Branch", 12}, {"Course", 20}, {"Preferred Language", 12},
		{"Previous Experience", 25}, {"Emergency Contact", 20}, {"Emergency Phone", 15},
		{"Medical Conditions", 25}, {"Status", 12}, {"Date Applied", 18}, {"Admin Notes", 30},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating workbook")
	}
	for _, a := range apps {
		if err = wb.append(20,
			a.ID, a.ApplicationNumber, a.FirstName, a.LastName, a.Email, a.Phone,
			a.WhatsApp, formatDate(a.DateOfBirth), string(a.Gender), a.NRCNumber, a.Address,
			a.City, a.Province, string(a.Branch), a.CourseName(), a.PreferredLanguage,
			a.PreviousExperience, a.EmergencyName, a.EmergencyPhone,
			a.MedicalConditions, string(a.Status), a.CreatedAt.UTC().Format("2006-01-02 15:04"), a.AdminNotes,
		); err != nil {
			return nil, errors.Wrapf(err, "writing application %d", a.ID)
		}
	}
	return wb.bytes()
}

// StudentsExcel renders students as a spreadsheet, amounts in kwacha.
func StudentsExcel(students []student.Student) ([]byte, error) {
	wb, err := newWorkbook("Students", []column{
		{"ID", 8}, {"Student Number", 18}, {"Full Name", 22}, {"Email", 25}, {"Phone", 15},
		{"Branch", 12}, {"Course", 20}, {"Enrollment Date", 14}, {"Start Date", 12}, {"End Date", 12},
		{"Status", 12}, {"Payment Status", 14}, {"Total Fee", 12}, {"Amount Paid", 12}, {"Balance", 12},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating workbook")
	}
	for _, s := range students {
		var start, end string
		if s.CourseStartDate != nil {
			start = formatDate(*s.CourseStartDate)
		}
		if s.CourseEndDate != nil {
			end = formatDate(*s.CourseEndDate)
		}
		if err = wb.append(11,
			s.ID, s.StudentNumber, s.FullName(), s.Email, s.Phone,
			string(s.Branch), application.CourseName(s.Course), formatDate(s.EnrollmentDate), start, end,
			string(s.Status), string(s.PaymentStatus), s.TotalFee.Kwacha(), s.AmountPaid.Kwacha(), s.Balance().Kwacha(),
		); err != nil {
			return nil, errors.Wrapf(err, "writing student %d", s.ID)
		}
	}
	return wb.bytes()
}

// PaymentsExcel renders payments as a spreadsheet, amounts in kwacha.
func PaymentsExcel(payments []student.Payment) ([]byte, error) {
	wb, err := newWorkbook("Payments", []column{
		{"ID", 8}, {"Payment Number", 20}, {"Student Number", 18}, {"Branch", 12}, {"Amount", 12},
		{"Method", 15}, {"Reference", 18}, {"Payment Date", 14}, {"Status", 12}, {"Notes", 30},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating workbook")
	}
	for _, p := range payments {
		if err = wb.append(8,
			p.ID, p.PaymentNumber, p.StudentNumber, string(p.Branch), p.Amount.Kwacha(),
			string(p.Method), p.Reference, formatDate(p.PaymentDate), string(p.Status), p.Notes,
		); err != nil {
			return nil, errors.Wrapf(err, "writing payment %d", p.ID)
		}
	}
	return wb.bytes()
}
