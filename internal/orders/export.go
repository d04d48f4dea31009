package orders

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/promoshop/promoshop/internal/models"
)

type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatXLS ExportFormat = "xls"
)

// ExportDateLayout mirrors an en-US locale date-time string.
const ExportDateLayout = "1/2/2006, 3:04:05 PM"

var ExportColumns = []string{
	"Order ID",
	"Customer",
	"Phone",
	"Address",
	"Product",
	"Quantity",
	"Unit Price",
	"Total Price",
	"Savings",
	"Status",
	"Payment Status",
	"Payment Method",
	"Date",
}

func ParseExportFormat(value string) (ExportFormat, error) {
	switch format := ExportFormat(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatCSV, FormatXLS:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", value)
	}
}

func (f ExportFormat) ContentType() string {
	if f == FormatXLS {
		return "application/vnd.ms-excel; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// ExportFilename names the artifact after the export date, e.g. orders-2026-10-15.csv.
func ExportFilename(format ExportFormat, now time.Time) string {
	return "orders-" + now.Format("2006-01-02") + "." + string(format)
}

func FormatPaymentMethod(method string) string {
	if method == models.PaymentMethodCashOnDelivery {
		return "COD"
	}
	return strings.ReplaceAll(method, "_", " ")
}

func FormatExportDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ExportDateLayout)
}

const utf8BOM = "\uFEFF"

type cellKind int

const (
	cellText cellKind = iota
	cellInteger
	cellMoney
)

type exportCell struct {
	value string
	kind  cellKind
}

func exportCells(order models.Order, loc *time.Location) []exportCell {
	return []exportCell{
		{value: order.ID},
		{value: order.CustomerName},
		{value: order.Phone},
		{value: order.Address},
		{value: order.CampaignTitle},
		{value: strconv.Itoa(order.Quantity), kind: cellInteger},
		{value: order.UnitPrice.StringFixed(2), kind: cellMoney},
		{value: order.TotalPrice().StringFixed(2), kind: cellMoney},
		{value: order.Savings().StringFixed(2), kind: cellMoney},
		{value: string(order.Status)},
		{value: string(order.PaymentStatus)},
		{value: FormatPaymentMethod(order.PaymentMethod)},
		{value: FormatExportDate(order.CreatedAt, loc)},
	}
}

// WriteExport renders rows in format. rows must already be the filtered,
// sorted view; nothing here filters again.
func WriteExport(ctx context.Context, w io.Writer, format ExportFormat, rows []models.Order, loc *time.Location) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows, loc)
	case FormatXLS:
		return XLSTable(rows, loc).Render(ctx, w)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteCSV writes a UTF-8 (with BOM) CSV. Text cells are always quoted.
func WriteCSV(w io.Writer, rows []models.Order, loc *time.Location) error {
	buf := bufio.NewWriter(w)

	if _, err := buf.WriteString(utf8BOM + strings.Join(ExportColumns, ",") + "\n"); err != nil {
		return err
	}

	line := make([]string, len(ExportColumns))
	for _, order := range rows {
		for i, cell := range exportCells(order, loc) {
			if cell.kind != cellText {
				line[i] = cell.value
				continue
			}
			line[i] = quoteCSV(cell.value)
		}
		if _, err := buf.WriteString(strings.Join(line, ",") + "\n"); err != nil {
			return err
		}
	}

	return buf.Flush()
}

func quoteCSV(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

const xlsHead = `<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:x="urn:schemas-microsoft-com:office:excel" xmlns="http://www.w3.org/TR/REC-html40">
<head>
<meta charset="utf-8">
<!--[if gte mso 9]><xml><x:ExcelWorkbook><x:ExcelWorksheets><x:ExcelWorksheet><x:Name>Orders</x:Name><x:WorksheetOptions><x:DisplayGridlines/></x:WorksheetOptions></x:ExcelWorksheet></x:ExcelWorksheets></x:ExcelWorkbook></xml><![endif]-->
<style>
table { border-collapse: collapse; font-family: Arial, sans-serif; font-size: 11pt; }
th { background: #1f2937; color: #ffffff; font-weight: bold; }
th, td { border: 1px solid #d1d5db; padding: 4px 8px; }
td.num { mso-number-format: "0\.00"; text-align: right; }
td.qty { mso-number-format: "0"; text-align: right; }
td.text { mso-number-format: "\@"; }
</style>
</head>
<body>
<table>
`

const xlsTail = "</table>\n</body>\n</html>\n"

// XLSTable renders rows as an HTML table that spreadsheet tools open as a sheet.
func XLSTable(rows []models.Order, loc *time.Location) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		buf := bufio.NewWriter(w)

		var b strings.Builder
		b.WriteString(xlsHead)
		b.WriteString("<thead><tr>")
		for _, column := range ExportColumns {
			b.WriteString("<th>" + templ.EscapeString(column) + "</th>")
		}
		b.WriteString("</tr></thead>\n<tbody>\n")
		if _, err := buf.WriteString(b.String()); err != nil {
			return err
		}

		for _, order := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			b.Reset()
			b.WriteString("<tr>")
			for _, cell := range exportCells(order, loc) {
				class := "text"
				switch cell.kind {
				case cellInteger:
					class = "qty"
				case cellMoney:
					class = "num"
				}
				b.WriteString(`<td class="` + class + `">` + templ.EscapeString(cell.value) + "</td>")
			}
			b.WriteString("</tr>\n")
			if _, err := buf.WriteString(b.String()); err != nil {
				return err
			}
		}

		if _, err := buf.WriteString("</tbody>\n" + xlsTail); err != nil {
			return err
		}
		return buf.Flush()
	})
}
