package report

import (
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ReceiptLine is one printed row.
type ReceiptLine struct {
	Name      string
	Quantity  float64
	Unit      string
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Receipt is everything printed for one transaction.
type Receipt struct {
	StoreName     string
	TransactionID string
	IssuedAt      time.Time
	PaymentMethod string
	CustomerType  string
	DineOption    string
	Lines         []ReceiptLine
	Total         decimal.Decimal
	Cancelled     bool
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.StoreName}} receipt</title>
<style>body{font-family:monospace;width:72mm}td.n{text-align:right}h1{font-size:16px}</style>
</head><body>
<h1>{{.StoreName}}</h1>
<p>{{.IssuedAt}}<br>#{{.TransactionID}}</p>
{{if .Cancelled}}<p><strong>CANCELLED</strong></p>{{end}}
<table>
{{range .Lines}}<tr><td>{{.Name}}</td><td class="n">{{.Quantity}} {{.Unit}}</td><td class="n">{{.UnitPrice}}</td><td class="n">{{.Total}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{.Total}}</strong></p>
<p>{{.PaymentMethod}} · {{.CustomerType}}{{if .DineOption}} · {{.DineOption}}{{end}}</p>
</body></html>`))

type receiptView struct {
	StoreName     string
	TransactionID string
	IssuedAt      string
	PaymentMethod string
	CustomerType  string
	DineOption    string
	Lines         []receiptLineView
	Total         string
	Cancelled     bool
}

type receiptLineView struct {
	Name      string
	Quantity  string
	Unit      string
	UnitPrice string
	Total     string
}

// ReceiptHTML renders receipt with numbers formatted for tag.
func ReceiptHTML(receipt Receipt, tag language.Tag) (string, error) {
	p := message.NewPrinter(tag)
	view := receiptView{
		StoreName:     receipt.StoreName,
		TransactionID: receipt.TransactionID,
		IssuedAt:      receipt.IssuedAt.Format("2006-01-02 15:04"),
		PaymentMethod: receipt.PaymentMethod,
		CustomerType:  receipt.CustomerType,
		DineOption:    strings.ReplaceAll(receipt.DineOption, "_", " "),
		Total:         Money(p, receipt.Total),
		Cancelled:     receipt.Cancelled,
	}
	for _, line := range receipt.Lines {
		view.Lines = append(view.Lines, receiptLineView{
			Name:      line.Name,
			Quantity:  p.Sprint(number.Decimal(line.Quantity, number.MaxFractionDigits(3))),
			Unit:      line.Unit,
			UnitPrice: Money(p, line.UnitPrice),
			Total:     Money(p, line.Total),
		})
	}
	var b strings.Builder
	if err := receiptTemplate.Execute(&b, view); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Money formats an amount with two decimals and locale grouping.
func Money(p *message.Printer, amount decimal.Decimal) string {
	return p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}
