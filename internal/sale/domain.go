// Package sale implements the sale composition workflow: a draft assembled
// from one client and a list of product line items, kept consistent with
// known stock figures, and submitted to the remote backend as a single record.
package sale

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date. The backend speaks ISO dates without a time
// component, so Date marshals as "2006-01-02".
type Date struct {
	time.Time
}

// Today returns the current calendar date.
func Today() Date {
	return Date{Time: time.Now()}
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Client is a customer as reported by the backend. It is only referenced
// from a sale, never edited here.
type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"nome"`
	TaxID   string `json:"cpfOuCnpj"`
	Phone   string `json:"telefone,omitempty"`
	Address string `json:"endereco,omitempty"`
}

// Product is a catalog entry as reported by the backend. Stock is nil when
// the backend does not know the available quantity; stock figures may be
// stale relative to concurrent sales and are not reconciled here.
type Product struct {
	ID        int64    `json:"idProduto"`
	Name      string   `json:"nome"`
	Type      *string  `json:"tipo,omitempty"`
	ExpiresAt *Date    `json:"validade,omitempty"`
	Price     float64  `json:"preco"`
	CostPrice *float64 `json:"precoCusto,omitempty"`
	Stock     *float64 `json:"quantidadeEstoque,omitempty"`
}

// LineItem is one product entry within a sale. UnitPrice defaults to the
// product's sale price at add time and stays independently editable;
// UnitCost is copied once and never changes afterwards.
type LineItem struct {
	Product   Product  `json:"produto"`
	UnitPrice float64  `json:"precoUnitario"`
	UnitCost  *float64 `json:"custoUnitario"`
	Quantity  float64  `json:"quantidade"`
}

// Subtotal returns quantity times unit price for this line.
func (li LineItem) Subtotal() float64 {
	return li.Quantity * li.UnitPrice
}

// Sale is the record posted to the backend at submission time. The backend
// owns it from then on.
type Sale struct {
	Date   Date       `json:"data"`
	Client Client     `json:"cliente"`
	Total  float64    `json:"valorTotal"`
	Items  []LineItem `json:"itens"`
}

// Draft is a point-in-time snapshot of an in-progress sale. Total is always
// derived from the items, never carried independently.
type Draft struct {
	Date   Date       `json:"data"`
	Client *Client    `json:"cliente"`
	Items  []LineItem `json:"itens"`
	Total  float64    `json:"valorTotal"`
}
