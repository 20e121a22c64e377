// Package erp talks to the Business Central back office: menu and
// stock reads plus invoice posting. The collaborator is modeled as an
// interface with two implementations, a remote OData client used when
// tenant/company credentials are configured and a fixture
// implementation ("demo mode") used when they are not, so handlers
// never branch on configuration themselves.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Item is a raw posItems row as the back office returns it.
type Item struct {
	ID               string  `json:"id"`
	Number           string  `json:"number"`
	DisplayName      string  `json:"displayName"`
	UnitPrice        float64 `json:"unitPrice"`
	ItemCategoryCode string  `json:"itemCategoryCode"`
	GTIN             string  `json:"gtin"`
	Inventory        float64 `json:"inventory"`
}

// Category is a menu category shown on the terminals.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MenuItem is an item shaped for the terminals: keyed by item number,
// with the back-office GUID carried along for invoice lines.
type MenuItem struct {
	ID         string   `json:"id"`
	BCItemID   string   `json:"bcItemId,omitempty"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	CategoryID string   `json:"categoryId"`
	Inventory  float64  `json:"inventory"`
	GTIN       *string  `json:"gtin"`
	Mods       []string `json:"mods"`
}

// Menu is the full categories-plus-items payload.
type Menu struct {
	Categories []Category `json:"categories"`
	Items      []MenuItem `json:"items"`
}

// InvoiceLine is one line of a sale. Terminals have historically sent
// the item reference under several names, so decoding accepts the
// aliases and normalizes to ItemID (back-office GUID, preferred) or
// Number.
type InvoiceLine struct {
	ItemID    string
	Number    string
	Quantity  float64
	UnitPrice *float64
}

// UnmarshalJSON accepts itemId/bcItemId for the GUID and
// number/no/itemNo/itemNumber/id for the item number.
func (l *InvoiceLine) UnmarshalJSON(raw []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	str := func(keys ...string) string {
		for _, k := range keys {
			v, ok := m[k]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				return s
			}
			// Numeric ids come through as numbers; stringify them.
			var n float64
			if err := json.Unmarshal(v, &n); err == nil {
				return strconv.FormatFloat(n, 'f', -1, 64)
			}
		}
		return ""
	}
	l.ItemID = str("itemId", "bcItemId")
	l.Number = str("number", "no", "itemNo", "itemNumber", "id")
	l.Quantity = 1
	if v, ok := m["quantity"]; ok {
		var q float64
		if err := json.Unmarshal(v, &q); err == nil && q != 0 {
			l.Quantity = q
		}
	}
	if v, ok := m["unitPrice"]; ok {
		var p float64
		if err := json.Unmarshal(v, &p); err == nil {
			l.UnitPrice = &p
		}
	}
	return nil
}

// InvoiceRequest is a sale to post: header fields plus lines.
type InvoiceRequest struct {
	CustomerNo             string        `json:"customerNo"`
	ExternalDocumentNumber string        `json:"externalDocumentNumber"`
	PostingDate            string        `json:"postingDate"`
	Lines                  []InvoiceLine `json:"lines"`
}

// InvoiceResult reports the created document.
type InvoiceResult struct {
	InvoiceID string `json:"invoiceId"`
	Posted    bool   `json:"posted"`
}

// UpstreamError carries the back office's own status and text through
// to the caller; the bridge does not retry ERP calls.
type UpstreamError struct {
	Step   string // create | add-line | post | fetch
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("erp %s failed: %d %s", e.Step, e.Status, e.Body)
}

// BadLineError marks an invoice line that carries neither a GUID nor
// an item number; handlers map it to a 400.
type BadLineError struct{ Index int }

func (e *BadLineError) Error() string {
	return fmt.Sprintf("invoice line %d missing itemId/number", e.Index)
}

// Client is the collaborator contract consumed by the handlers.
type Client interface {
	Items(ctx context.Context) ([]Item, error)
	Menu(ctx context.Context) (*Menu, error)
	Stock(ctx context.Context) (map[string]float64, error)
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error)
}
