/*
Package pdf renders bills as printable invoice documents.

PURPOSE:
  Produces a self-contained HTML document for one bill, ready for the
  browser's print-to-PDF flow. Rendering is pure: a bill and its customer
  go in, bytes come out, nothing is persisted.

SEE ALSO:
  - api/handlers.go: Serves the rendered document
*/
package pdf

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/Sarab71/cases-software/billing"
)

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; padding: 20px; }
      h1 { text-align: center; }
      table { width: 100%; border-collapse: collapse; margin-top: 20px; }
      th, td { border: 1px solid #ddd; padding: 8px; text-align: center; }
      .total { font-size: 16px; margin-top: 20px; text-align: right; }
    </style>
  </head>
  <body>
    <h1>INVOICE</h1>
    <p>Invoice Number: {{.InvoiceNumber}}</p>
    <p>Date: {{.Date}}</p>
    <p>Customer Name: {{.CustomerName}}</p>
    <p>Address: {{.CustomerAddress}}</p>

    <table>
      <thead>
        <tr>
          <th>#</th>
          <th>Model No.</th>
          <th>Quantity</th>
          <th>Rate</th>
          <th>Discount</th>
          <th>Total</th>
        </tr>
      </thead>
      <tbody>
        {{range .Rows}}<tr>
          <td>{{.Index}}</td>
          <td>{{.ModelNumber}}</td>
          <td>{{.Quantity}}</td>
          <td>{{.Rate}}</td>
          <td>{{.Discount}}%</td>
          <td>&#8377;{{.Total}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <p class="total"><strong>Grand Total: &#8377;{{.GrandTotal}}</strong></p>
  </body>
</html>
`))

type invoiceRow struct {
	Index       int
	ModelNumber string
	Quantity    string
	Rate        string
	Discount    string
	Total       string
}

type invoiceData struct {
	InvoiceNumber   int64
	Date            string
	CustomerName    string
	CustomerAddress string
	Rows            []invoiceRow
	GrandTotal      string // rounded to the whole currency unit for display
}

// RenderInvoice produces the printable HTML document for a bill.
func RenderInvoice(bill *billing.Bill, customer *billing.Customer) ([]byte, error) {
	data := invoiceData{
		InvoiceNumber:   bill.InvoiceNumber,
		Date:            bill.Date.Format("02/01/2006"),
		CustomerName:    customer.Name,
		CustomerAddress: customer.Address,
		GrandTotal:      billing.RoundCurrency(bill.GrandTotal).String(),
	}
	for i, item := range bill.Items {
		data.Rows = append(data.Rows, invoiceRow{
			Index:       i + 1,
			ModelNumber: item.ModelNumber,
			Quantity:    item.Quantity.String(),
			Rate:        item.Rate.String(),
			Discount:    item.Discount.String(),
			Total:       item.TotalAmount.String(),
		})
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}
