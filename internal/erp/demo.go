package erp

import "context"

// Demo is the fixture implementation selected when no tenant/company
// configuration is present. It returns deterministic placeholder data
// so the terminals work end to end without a back office.
type Demo struct{}

// NewDemo returns the fixture client.
func NewDemo() *Demo { return &Demo{} }

func (Demo) Items(context.Context) ([]Item, error) {
	return []Item{
		{ID: "1", Number: "PIZZA01", DisplayName: "Margherita", UnitPrice: 800, ItemCategoryCode: "PIZZA", Inventory: 99},
	}, nil
}

func (Demo) Menu(context.Context) (*Menu, error) {
	return &Menu{
		Categories: []Category{
			{ID: "PIZZA", Name: "Pizza"},
			{ID: "DRINKS", Name: "Drinks"},
		},
		Items: []MenuItem{
			{ID: "PIZZA01", Name: "Margherita", Price: 800, CategoryID: "PIZZA", Inventory: 99, Mods: []string{}},
			{ID: "DRINK01", Name: "Soda", Price: 200, CategoryID: "DRINKS", Inventory: 999, Mods: []string{}},
		},
	}, nil
}

func (Demo) Stock(context.Context) (map[string]float64, error) {
	return map[string]float64{"PIZZA01": 99, "DRINK01": 999}, nil
}

func (Demo) CreateInvoice(context.Context, InvoiceRequest) (*InvoiceResult, error) {
	return &InvoiceResult{InvoiceID: "DEMO-INVOICE", Posted: true}, nil
}
