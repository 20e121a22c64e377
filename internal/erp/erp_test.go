package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoFixtures(t *testing.T) {
	d := NewDemo()
	ctx := context.Background()

	menu, err := d.Menu(ctx)
	require.NoError(t, err)
	assert.Len(t, menu.Categories, 2)
	assert.Len(t, menu.Items, 2)
	assert.Equal(t, "PIZZA01", menu.Items[0].ID)

	stock, err := d.Stock(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(99), stock["PIZZA01"])

	res, err := d.CreateInvoice(ctx, InvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "DEMO-INVOICE", res.InvoiceID)
	assert.True(t, res.Posted)
}

func TestInvoiceLineAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want InvoiceLine
	}{
		{
			name: "guid preferred",
			body: `{"itemId":"guid-1","quantity":2}`,
			want: InvoiceLine{ItemID: "guid-1", Quantity: 2},
		},
		{
			name: "bcItemId alias",
			body: `{"bcItemId":"guid-2"}`,
			want: InvoiceLine{ItemID: "guid-2", Quantity: 1},
		},
		{
			name: "number under id",
			body: `{"id":"PIZZA01","quantity":3}`,
			want: InvoiceLine{Number: "PIZZA01", Quantity: 3},
		},
		{
			name: "itemNo alias",
			body: `{"itemNo":"DRINK01"}`,
			want: InvoiceLine{Number: "DRINK01", Quantity: 1},
		},
		{
			name: "numeric id stringified",
			body: `{"id":1001}`,
			want: InvoiceLine{Number: "1001", Quantity: 1},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got InvoiceLine
			require.NoError(t, json.Unmarshal([]byte(tc.body), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInvoiceLineUnitPrice(t *testing.T) {
	var line InvoiceLine
	require.NoError(t, json.Unmarshal([]byte(`{"number":"PIZZA01","unitPrice":800}`), &line))
	require.NotNil(t, line.UnitPrice)
	assert.Equal(t, float64(800), *line.UnitPrice)
}

// fakeBackOffice serves just enough OData for the remote client:
// a token endpoint, paged item listing, categories, and the invoice
// create/line/post flow.
func fakeBackOffice(t *testing.T) *Remote {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})

	// Items are served across two pages to exercise nextLink walking.
	mux.HandleFunc("/companies(c-1)/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{"id": "g2", "number": "DRINK01", "displayName": "Soda", "unitPrice": 200, "inventory": 999}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{{"id": "g1", "number": "PIZZA01", "displayName": "Margherita", "unitPrice": 800, "itemCategoryCode": "PIZZA", "inventory": 99}},
			"@odata.nextLink": srv.URL + "/companies(c-1)/items?page=2",
		})
	})

	mux.HandleFunc("/companies(c-1)/itemCategories", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{{"code": "PIZZA", "displayName": "Pizza"}},
		})
	})

	mux.HandleFunc("/companies(c-1)/salesInvoices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "inv-1"})
	})
	mux.HandleFunc("/companies(c-1)/salesInvoices(inv-1)/salesInvoiceLines", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Item", body["lineType"])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/companies(c-1)/salesInvoices(inv-1)/post", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	remote := NewRemote(Config{
		TenantID:  "t-1",
		CompanyID: "c-1",
		TokenURL:  srv.URL + "/token",
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
	})
	return remote
}

func TestRemoteMenuFollowsPages(t *testing.T) {
	remote := fakeBackOffice(t)

	menu, err := remote.Menu(context.Background())
	require.NoError(t, err)
	require.Len(t, menu.Items, 2)
	assert.Equal(t, "PIZZA01", menu.Items[0].ID)
	assert.Equal(t, "g1", menu.Items[0].BCItemID)
	assert.Equal(t, "PIZZA", menu.Items[0].CategoryID)
	// The second item has no category code; it lands in a passthrough
	// category that was added on the fly.
	assert.Equal(t, "UNCATEGORIZED", menu.Items[1].CategoryID)
	assert.Len(t, menu.Categories, 2)
}

func TestRemoteStockFromItemInventory(t *testing.T) {
	remote := fakeBackOffice(t)

	stock, err := remote.Stock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(99), stock["PIZZA01"])
	assert.Equal(t, float64(999), stock["DRINK01"])
}

func TestRemoteCreateInvoice(t *testing.T) {
	remote := fakeBackOffice(t)

	price := 800.0
	res, err := remote.CreateInvoice(context.Background(), InvoiceRequest{
		ExternalDocumentNumber: "12345678",
		Lines:                  []InvoiceLine{{ItemID: "g1", Quantity: 2, UnitPrice: &price}},
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", res.InvoiceID)
	assert.True(t, res.Posted)
}

func TestRemoteCreateInvoiceRejectsEmptyLine(t *testing.T) {
	remote := fakeBackOffice(t)

	_, err := remote.CreateInvoice(context.Background(), InvoiceRequest{
		Lines: []InvoiceLine{{Quantity: 1}},
	})
	var badLine *BadLineError
	require.ErrorAs(t, err, &badLine)
	assert.Equal(t, 0, badLine.Index)
}

func TestRemoteSurfacesUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tenant suspended", http.StatusForbidden)
	})

	remote := NewRemote(Config{
		TenantID:  "t-1",
		CompanyID: "c-1",
		TokenURL:  srv.URL + "/token",
		BaseURL:   srv.URL,
	})
	_, err := remote.Items(context.Background())
	var up *UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusForbidden, up.Status)
	assert.Contains(t, up.Body, "tenant suspended")
}

func TestNewCachedWithoutRedisReturnsInner(t *testing.T) {
	inner := NewDemo()
	assert.Same(t, Client(inner), NewCached(inner, nil, time.Minute))
}

func TestConfigured(t *testing.T) {
	assert.False(t, Config{}.Configured())
	assert.False(t, Config{TenantID: "t"}.Configured())
	assert.True(t, Config{TenantID: "t", CompanyID: "c"}.Configured())
}
