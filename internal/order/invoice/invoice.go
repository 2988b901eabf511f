// Package invoice renders a paid order as a one-page PDF.
package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/Skotchmaster/storefront/internal/order/models"
	"github.com/Skotchmaster/storefront/pkg/money"
)

var ErrNotPaid = errors.New("order is not paid")

type Seller struct {
	Name    string
	Address string
}

func Render(o *models.Order, seller Seller) ([]byte, error) {
	if o.Status != models.StatusPaid || o.PaidAt == nil {
		return nil, ErrNotPaid
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+o.ID, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(seller.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if seller.Address != "" {
		pdf.MultiCell(0, 5, tr(seller.Address), "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Invoice "+o.ID, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Date: "+o.PaidAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Customer: "+tr(o.Email), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	widths := []float64{95, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Item", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range o.Items {
		pdf.CellFormat(widths[0], 7, tr(it.Title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money.Format(it.UnitPrice, o.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money.Format(it.UnitPrice*int64(it.Quantity), o.Currency), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, money.Format(o.Total, o.Currency), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", o.ID, err)
	}
	return buf.Bytes(), nil
}
