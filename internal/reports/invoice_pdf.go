package reports

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"b2bmarket/internal/models"
)

// WriteInvoicePDF renders a single-page invoice for a captured payment with a
// QR code of the payment id in the header.
func WriteInvoicePDF(w io.Writer, issuer string, p *models.Payment) error {
	png, err := qrcode.Encode(p.PaymentID, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("qr encode: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	const qrName = "payment-qr"
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrName, opts, bytes.NewReader(png))
	pdf.ImageOptions(qrName, 165, 10, 35, 35, false, opts, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(150, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(150, 6, issuer)
	pdf.Ln(6)
	pdf.Cell(150, 6, fmt.Sprintf("Payment ID: %s", p.PaymentID))
	pdf.Ln(6)
	if p.GatewayOrderID != "" {
		pdf.Cell(150, 6, fmt.Sprintf("Order ID: %s", p.GatewayOrderID))
		pdf.Ln(6)
	}
	pdf.Cell(150, 6, fmt.Sprintf("Date: %s", p.CreatedAt.Format("02-Jan-2006")))
	pdf.Ln(6)
	pdf.Cell(150, 6, fmt.Sprintf("Billed to: %s", p.BuyerEmail))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(35, 8, "Requirement", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(55, 8, "Seller", "1", 0, "L", true, 0, "")
	pdf.CellFormat(15, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, item := range p.OrderDetails.Items {
		pdf.CellFormat(35, 8, item.ReqID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, truncate(item.ProductName, 34), "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 8, truncate(item.SellerEmail, 30), "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%.2f", item.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(165, 8, fmt.Sprintf("Total (%s)", p.Currency))
	pdf.CellFormat(25, 8, fmt.Sprintf("%.2f", p.Amount), "1", 1, "R", false, 0, "")
	pdf.Cell(165, 8, "Status")
	pdf.CellFormat(25, 8, p.Status, "1", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
