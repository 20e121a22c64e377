package model

import (
	"strconv"
	"time"
)

// Table statuses. Tables only ever move between these three values;
// clients send the whole table record back when they change one.
const (
	TableFree     = "free"
	TableOccupied = "occupied"
	TableReserved = "reserved"
)

// Ticket statuses. There is no terminal status: a finished ticket is
// deleted from the collection rather than transitioned.
const (
	TicketNew        = "NEW"
	TicketInProgress = "IN_PROGRESS"
	TicketReady      = "READY"
)

// CartLine is one open line item on a table's cart. Price is the unit
// price; Payer names the split the line belongs to.
//
// Fields:
//
//	ID    - menu item identifier (ERP item number).
//	Name  - display name at time of ordering.
//	Price - unit price.
//	Qty   - quantity ordered.
//	Mods  - free-text modifiers ("no onions", ...).
//	Payer - split label this line is billed to.
type CartLine struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Qty   int      `json:"qty"`
	Mods  []string `json:"mods,omitempty"`
	Payer string   `json:"payer,omitempty"`
}

// Table is one dining table with its open cart. The Total field is a
// denormalized cache: the bridge stores whatever the client computed
// and never recomputes it itself.
//
// Fields:
//
//	ID           - stable numeric id assigned at bootstrap (1..N).
//	Name         - display label derived from the id ("T3").
//	Seats        - seat count.
//	Status       - free | occupied | reserved.
//	Waiter       - assigned staff member, nil when unassigned.
//	Total        - client-computed cart total.
//	Cart         - open line items.
//	Splits       - named bill splits active on the table.
//	DefaultPayer - split that new lines default into.
type Table struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Seats        int        `json:"seats"`
	Status       string     `json:"status"`
	Waiter       *string    `json:"waiter"`
	Total        float64    `json:"total"`
	Cart         []CartLine `json:"cart"`
	Splits       []string   `json:"splits"`
	DefaultPayer string     `json:"defaultPayer"`
}

// TicketItem is one line of a kitchen ticket.
type TicketItem struct {
	Name string   `json:"name"`
	Qty  int      `json:"qty"`
	Mods []string `json:"mods,omitempty"`
}

// Ticket is a kitchen work order. Table holds a display reference
// (a table name or a walk-in customer name), not a foreign key.
type Ticket struct {
	ID        string       `json:"id"`
	Table     string       `json:"table"`
	CreatedAt string       `json:"createdAt"`
	Status    string       `json:"status"`
	Items     []TicketItem `json:"items"`
	Note      string       `json:"note"`
}

// PosState is the aggregate the bridge owns: every table, every live
// kitchen ticket, and the timestamp of the last mutation. Tickets are
// kept newest-first.
type PosState struct {
	Tables    []Table  `json:"tables"`
	Tickets   []Ticket `json:"tickets"`
	UpdatedAt string   `json:"updatedAt"`
}

// DefaultTableCount is the number of tables bootstrapped when no
// persisted state exists.
const DefaultTableCount = 16

// DefaultTables builds the bootstrap table set: T1..Tn, free, with a
// seat count cycling 2..5 and a single "Main" split.
func DefaultTables(n int) []Table {
	tables := make([]Table, n)
	for i := range tables {
		tables[i] = Table{
			ID:           i + 1,
			Name:         "T" + strconv.Itoa(i+1),
			Seats:        i%4 + 2,
			Status:       TableFree,
			Cart:         []CartLine{},
			Splits:       []string{"Main"},
			DefaultPayer: "Main",
		}
	}
	return tables
}

// DefaultState is the state used when nothing has been persisted yet
// or the persisted document cannot be parsed.
func DefaultState() PosState {
	return PosState{
		Tables:    DefaultTables(DefaultTableCount),
		Tickets:   []Ticket{},
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Clone returns a deep copy of the state. The store hands clones to
// handlers and to the broadcast hub so that no caller ever holds a
// reference into the authoritative aggregate.
func (s PosState) Clone() PosState {
	out := PosState{
		Tables:    make([]Table, len(s.Tables)),
		Tickets:   make([]Ticket, len(s.Tickets)),
		UpdatedAt: s.UpdatedAt,
	}
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	for i, t := range s.Tickets {
		out.Tickets[i] = t.clone()
	}
	return out
}

// Clone returns a deep copy of the table, including its cart lines
// and splits.
func (t Table) Clone() Table {
	c := t
	if t.Waiter != nil {
		w := *t.Waiter
		c.Waiter = &w
	}
	c.Cart = make([]CartLine, len(t.Cart))
	for i, l := range t.Cart {
		c.Cart[i] = l
		c.Cart[i].Mods = append([]string(nil), l.Mods...)
	}
	c.Splits = append([]string(nil), t.Splits...)
	return c
}

func (t Ticket) clone() Ticket {
	c := t
	c.Items = make([]TicketItem, len(t.Items))
	for i, it := range t.Items {
		c.Items[i] = it
		c.Items[i].Mods = append([]string(nil), it.Mods...)
	}
	return c
}
