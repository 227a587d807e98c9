package sales

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/units"
)

var (
	ErrTransactionNotFound = fmt.Errorf("sale transaction not found: %w", httpx.ErrNotFound)
	ErrAlreadyCancelled    = fmt.Errorf("sale transaction already cancelled: %w", httpx.ErrConflict)
	ErrInvalidRange        = fmt.Errorf("invalid report range: %w", httpx.ErrValidation)
	ErrEmptyTransaction    = errors.New("sale transaction has no lines")
	ErrReceiptsDisabled    = errors.New("receipt rendering is not configured")
)

// Record is one persisted sale line. Lines of one checkout share TransactionID.
type Record struct {
	ID              int64           `json:"id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	Kind            string          `json:"kind"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        float64         `json:"quantity"`
	UnitType        units.Type      `json:"unit_type"`
	Cost            decimal.Decimal `json:"cost"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethodID int64           `json:"payment_method_id"`
	PaymentMethod   string          `json:"payment_method"`
	CustomerTypeID  int64           `json:"customer_type_id"`
	CustomerType    string          `json:"customer_type"`
	DineOption      string          `json:"dine_option,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Cancelled       bool            `json:"cancelled"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
}

// LineCost is the cost snapshot multiplied by the sold quantity.
func (r Record) LineCost() decimal.Decimal {
	return r.Cost.Mul(decimal.NewFromFloat(r.Quantity))
}

// Transaction groups the lines of one checkout.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	PaymentMethod string          `json:"payment_method"`
	CustomerType  string          `json:"customer_type"`
	DineOption    string          `json:"dine_option,omitempty"`
	Lines         []Record        `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Cancelled     bool            `json:"cancelled"`
}

// GroupTransactions folds records into transactions, keeping the order in
// which each transaction first appears.
func GroupTransactions(records []Record) []Transaction {
	index := make(map[uuid.UUID]int)
	var out []Transaction
	for _, rec := range records {
		i, ok := index[rec.TransactionID]
		if !ok {
			i = len(out)
			index[rec.TransactionID] = i
			out = append(out, Transaction{
				ID:            rec.TransactionID,
				CreatedAt:     rec.CreatedAt,
				PaymentMethod: rec.PaymentMethod,
				CustomerType:  rec.CustomerType,
				DineOption:    rec.DineOption,
				Total:         decimal.Zero,
				Cancelled:     true,
			})
		}
		tx := &out[i]
		tx.Lines = append(tx.Lines, rec)
		tx.Total = tx.Total.Add(rec.Total)
		if !rec.Cancelled {
			tx.Cancelled = false
		}
		if rec.CreatedAt.Before(tx.CreatedAt) {
			tx.CreatedAt = rec.CreatedAt
		}
	}
	return out
}

// ListFilter narrows the transaction listing. To is exclusive.
type ListFilter struct {
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// DaySummary aggregates non-cancelled lines of one calendar day.
type DaySummary struct {
	Date         string          `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Cost         decimal.Decimal `json:"cost"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Transactions int             `json:"transactions"`
}

// PaymentSummary aggregates non-cancelled lines per payment method.
type PaymentSummary struct {
	PaymentMethod string          `json:"payment_method"`
	Revenue       decimal.Decimal `json:"revenue"`
	Transactions  int             `json:"transactions"`
}

// Summary is the daily sales report for a date range.
type Summary struct {
	From           string           `json:"from"`
	To             string           `json:"to"`
	Days           []DaySummary     `json:"days"`
	PaymentMethods []PaymentSummary `json:"payment_methods"`
	Revenue        decimal.Decimal  `json:"revenue"`
	Cost           decimal.Decimal  `json:"cost"`
	GrossProfit    decimal.Decimal  `json:"gross_profit"`
	Transactions   int              `json:"transactions"`
}

const dateLayout = "2006-01-02"

// Summarize builds the report over records, skipping cancelled lines. Days
// are bucketed in loc.
func Summarize(records []Record, from, to time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{
		From:        from.In(loc).Format(dateLayout),
		To:          to.In(loc).Format(dateLayout),
		Days:        []DaySummary{},
		Revenue:     decimal.Zero,
		Cost:        decimal.Zero,
		GrossProfit: decimal.Zero,
	}
	days := map[string]*DaySummary{}
	methods := map[string]*PaymentSummary{}
	dayTx := map[string]map[uuid.UUID]struct{}{}
	methodTx := map[string]map[uuid.UUID]struct{}{}
	allTx := map[uuid.UUID]struct{}{}

	for _, rec := range records {
		if rec.Cancelled {
			continue
		}
		date := rec.CreatedAt.In(loc).Format(dateLayout)
		d, ok := days[date]
		if !ok {
			d = &DaySummary{Date: date, Revenue: decimal.Zero, Cost: decimal.Zero, GrossProfit: decimal.Zero}
			days[date] = d
			dayTx[date] = map[uuid.UUID]struct{}{}
		}
		m, ok := methods[rec.PaymentMethod]
		if !ok {
			m = &PaymentSummary{PaymentMethod: rec.PaymentMethod, Revenue: decimal.Zero}
			methods[rec.PaymentMethod] = m
			methodTx[rec.PaymentMethod] = map[uuid.UUID]struct{}{}
		}
		cost := rec.LineCost()
		d.Revenue = d.Revenue.Add(rec.Total)
		d.Cost = d.Cost.Add(cost)
		m.Revenue = m.Revenue.Add(rec.Total)
		s.Revenue = s.Revenue.Add(rec.Total)
		s.Cost = s.Cost.Add(cost)
		dayTx[date][rec.TransactionID] = struct{}{}
		methodTx[rec.PaymentMethod][rec.TransactionID] = struct{}{}
		allTx[rec.TransactionID] = struct{}{}
	}

	for date, d := range days {
		d.GrossProfit = d.Revenue.Sub(d.Cost)
		d.Transactions = len(dayTx[date])
		s.Days = append(s.Days, *d)
	}
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i].Date < s.Days[j].Date })

	s.PaymentMethods = make([]PaymentSummary, 0, len(methods))
	for name, m := range methods {
		m.Transactions = len(methodTx[name])
		s.PaymentMethods = append(s.PaymentMethods, *m)
	}
	sort.Slice(s.PaymentMethods, func(i, j int) bool {
		return s.PaymentMethods[i].PaymentMethod < s.PaymentMethods[j].PaymentMethod
	})

	s.GrossProfit = s.Revenue.Sub(s.Cost)
	s.Transactions = len(allTx)
	return s
}
