package erp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/robertos-pos/bc-bridge/internal/guard"
)

// Config carries everything the remote client needs. Configured
// reports false when the tenant or company id is missing, which is
// the signal to fall back to demo mode.
type Config struct {
	Auth            string // "oauth" (default) or "basic"
	TenantID        string
	Environment     string // e.g. "Production"
	Region          string // API host, e.g. "api.businesscentral.dynamics.com"
	CompanyID       string
	ClientID        string
	ClientSecret    string
	Username        string // basic auth only
	Password        string // basic auth only
	LocationCode    string // optional stock location filter
	DefaultCustomer string // customer number used when a sale names none
	TokenURL        string // override for tests; derived from TenantID when empty
	BaseURL         string // override for tests; derived from Region/TenantID/Environment when empty
	Timeout         time.Duration
}

// Configured reports whether enough configuration is present to reach
// a real back office.
func (c Config) Configured() bool {
	return c.TenantID != "" && c.CompanyID != ""
}

// Remote is the OData client for a configured back office. OAuth
// tokens are cached until shortly before expiry; every call is
// bounded by the configured timeout.
type Remote struct {
	cfg  Config
	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewRemote builds the remote client.
func NewRemote(cfg Config) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Region == "" {
		cfg.Region = "api.businesscentral.dynamics.com"
	}
	if cfg.Environment == "" {
		cfg.Environment = "Production"
	}
	if cfg.DefaultCustomer == "" {
		cfg.DefaultCustomer = "CASH"
	}
	return &Remote{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (r *Remote) baseURL() string {
	if r.cfg.BaseURL != "" {
		return r.cfg.BaseURL
	}
	return fmt.Sprintf("https://%s/v2.0/%s/%s/api/v2.0", r.cfg.Region, r.cfg.TenantID, r.cfg.Environment)
}

func (r *Remote) companyPath() string {
	return "companies(" + r.cfg.CompanyID + ")"
}

// authHeader returns the Authorization value, fetching and caching an
// OAuth client-credentials token when needed.
func (r *Remote) authHeader(ctx context.Context) (string, error) {
	if strings.EqualFold(r.cfg.Auth, "basic") {
		if r.cfg.Username == "" || r.cfg.Password == "" {
			return "", fmt.Errorf("erp basic auth: missing username/password")
		}
		cred := base64.StdEncoding.EncodeToString([]byte(r.cfg.Username + ":" + r.cfg.Password))
		return "Basic " + cred, nil
	}

	r.mu.Lock()
	if r.token != "" && time.Now().Before(r.tokenExp.Add(-time.Minute)) {
		tok := r.token
		r.mu.Unlock()
		return "Bearer " + tok, nil
	}
	r.mu.Unlock()

	tokenURL := r.cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", r.cfg.TenantID)
	}
	form := url.Values{
		"client_id":     {r.cfg.ClientID},
		"client_secret": {r.cfg.ClientSecret},
		"scope":         {"https://api.businesscentral.dynamics.com/.default"},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &UpstreamError{Step: "fetch", Status: resp.StatusCode, Body: "oauth token error: " + string(body)}
	}
	var tok struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	r.mu.Lock()
	r.token = tok.AccessToken
	r.tokenExp = time.Now().Add(ttl)
	r.mu.Unlock()
	return "Bearer " + tok.AccessToken, nil
}

// pagedGet fetches every page of an OData collection, following
// @odata.nextLink until exhausted.
func (r *Remote) pagedGet(ctx context.Context, pathWithQuery string) ([]json.RawMessage, error) {
	auth, err := r.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	next := r.baseURL() + "/" + pathWithQuery
	var out []json.RawMessage
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", auth)
		resp, err := r.http.Do(req)
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &UpstreamError{Step: "fetch", Status: resp.StatusCode, Body: string(body)}
		}
		var page struct {
			Value    []json.RawMessage `json:"value"`
			NextLink string            `json:"@odata.nextLink"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		next = page.NextLink
	}
	return out, nil
}

// do issues a mutating request against the company and returns the
// response; callers own status handling.
func (r *Remote) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	auth, err := r.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL()+"/"+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", auth)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return r.http.Do(req)
}

// odataQuote escapes a string literal for an OData $filter.
func odataQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Items returns the raw item rows.
func (r *Remote) Items(ctx context.Context) ([]Item, error) {
	rows, err := r.pagedGet(ctx, r.companyPath()+"/items?$select=id,number,displayName,unitPrice,itemCategoryCode,gtin,inventory")
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, raw := range rows {
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Menu joins items with their categories into the terminal-facing
// shape. Items without a display name are dropped; unknown category
// codes get a passthrough category so nothing disappears from the
// screen.
func (r *Remote) Menu(ctx context.Context) (*Menu, error) {
	items, err := r.Items(ctx)
	if err != nil {
		return nil, err
	}
	catRows, err := r.pagedGet(ctx, r.companyPath()+"/itemCategories?$select=code,displayName")
	if err != nil {
		return nil, err
	}

	cats := make([]Category, 0, len(catRows))
	known := map[string]bool{}
	for _, raw := range catRows {
		var c struct {
			Code        string `json:"code"`
			DisplayName string `json:"displayName"`
		}
		if err := json.Unmarshal(raw, &c); err != nil || c.Code == "" {
			continue
		}
		name := c.DisplayName
		if name == "" {
			name = c.Code
		}
		cats = append(cats, Category{ID: c.Code, Name: name})
		known[c.Code] = true
	}

	menu := &Menu{Categories: cats, Items: []MenuItem{}}
	for _, it := range items {
		if it.DisplayName == "" {
			continue
		}
		catID := it.ItemCategoryCode
		if catID == "" {
			catID = "UNCATEGORIZED"
		}
		if !known[catID] {
			menu.Categories = append(menu.Categories, Category{ID: catID, Name: catID})
			known[catID] = true
		}
		var gtin *string
		if it.GTIN != "" {
			g := it.GTIN
			gtin = &g
		}
		menu.Items = append(menu.Items, MenuItem{
			ID:         it.Number,
			BCItemID:   it.ID,
			Name:       it.DisplayName,
			Price:      it.UnitPrice,
			CategoryID: catID,
			Inventory:  it.Inventory,
			GTIN:       gtin,
			Mods:       []string{},
		})
	}
	return menu, nil
}

// Stock maps item number to available quantity. When the items API
// exposes inventory directly that is used; otherwise remaining
// quantities are aggregated from item ledger entries, optionally
// filtered to the configured location.
func (r *Remote) Stock(ctx context.Context) (map[string]float64, error) {
	rows, err := r.pagedGet(ctx, r.companyPath()+"/items?$select=number,inventory")
	if err != nil {
		return nil, err
	}
	hasInventory := false
	stock := map[string]float64{}
	for _, raw := range rows {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if _, ok := m["inventory"]; ok {
			hasInventory = true
		}
		var row struct {
			Number    string  `json:"number"`
			Inventory float64 `json:"inventory"`
		}
		if err := json.Unmarshal(raw, &row); err == nil && row.Number != "" {
			stock[row.Number] = row.Inventory
		}
	}
	if hasInventory {
		return stock, nil
	}

	filter := "remainingQuantity ne 0"
	if r.cfg.LocationCode != "" {
		filter = "locationCode eq " + odataQuote(r.cfg.LocationCode) + " and " + filter
	}
	ledgers, err := r.pagedGet(ctx, r.companyPath()+"/itemLedgerEntries?$select=itemNumber,locationCode,remainingQuantity&$filter="+url.QueryEscape(filter))
	if err != nil {
		return nil, err
	}
	agg := map[string]float64{}
	for _, raw := range ledgers {
		var row struct {
			ItemNumber        string  `json:"itemNumber"`
			RemainingQuantity float64 `json:"remainingQuantity"`
		}
		if err := json.Unmarshal(raw, &row); err != nil || row.ItemNumber == "" {
			continue
		}
		agg[row.ItemNumber] += row.RemainingQuantity
	}
	return agg, nil
}

// resolveItemID looks up the back-office GUID for an item number.
func (r *Remote) resolveItemID(ctx context.Context, number string) (string, error) {
	q := r.companyPath() + "/items?$top=1&$select=id,number&$filter=" + url.QueryEscape("number eq "+odataQuote(number))
	rows, err := r.pagedGet(ctx, q)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	var row struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rows[0], &row); err != nil {
		return "", err
	}
	return row.ID, nil
}

// CreateInvoice creates a sales invoice, adds its lines, then posts
// it, trying both posting action routes the API has shipped under.
func (r *Remote) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error) {
	customer := req.CustomerNo
	if customer == "" {
		customer = r.cfg.DefaultCustomer
	}
	extDoc := req.ExternalDocumentNumber
	if extDoc == "" {
		extDoc = guard.SaleNo()
	}
	postingDate := req.PostingDate
	if postingDate == "" {
		postingDate = time.Now().UTC().Format("2006-01-02")
	}

	resp, err := r.do(ctx, http.MethodPost, r.companyPath()+"/salesInvoices", map[string]any{
		"customerNumber":         customer,
		"externalDocumentNumber": extDoc,
		"postingDate":            postingDate,
	})
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Step: "create", Status: resp.StatusCode, Body: string(body)}
	}
	var invoice struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &invoice); err != nil {
		return nil, err
	}

	for i, line := range req.Lines {
		itemID := line.ItemID
		if itemID == "" && line.Number != "" {
			if resolved, err := r.resolveItemID(ctx, line.Number); err == nil {
				itemID = resolved
			}
		}
		if itemID == "" && line.Number == "" {
			return nil, &BadLineError{Index: i}
		}
		lineBody := map[string]any{
			"lineType": "Item",
			"quantity": line.Quantity,
		}
		if itemID != "" {
			lineBody["itemId"] = itemID
		} else {
			lineBody["number"] = line.Number
		}
		if line.UnitPrice != nil {
			lineBody["unitPrice"] = *line.UnitPrice
		}
		lineResp, err := r.do(ctx, http.MethodPost, r.companyPath()+"/salesInvoices("+invoice.ID+")/salesInvoiceLines", lineBody)
		if err != nil {
			return nil, err
		}
		lineRaw, _ := io.ReadAll(lineResp.Body)
		lineResp.Body.Close()
		if lineResp.StatusCode != http.StatusCreated && lineResp.StatusCode != http.StatusOK {
			return nil, &UpstreamError{Step: "add-line", Status: lineResp.StatusCode, Body: string(lineRaw)}
		}
	}

	// The posting action has lived under two routes across API
	// versions; only surface an error after both were tried.
	var lastStatus int
	var lastBody string
	for _, action := range []string{"post", "Microsoft.NAV.post"} {
		postResp, err := r.do(ctx, http.MethodPost, r.companyPath()+"/salesInvoices("+invoice.ID+")/"+action, nil)
		if err != nil {
			return nil, err
		}
		raw, _ := io.ReadAll(postResp.Body)
		postResp.Body.Close()
		if postResp.StatusCode >= 200 && postResp.StatusCode < 300 {
			return &InvoiceResult{InvoiceID: invoice.ID, Posted: true}, nil
		}
		lastStatus = postResp.StatusCode
		lastBody = string(raw)
	}
	return nil, &UpstreamError{Step: "post", Status: lastStatus, Body: lastBody}
}
