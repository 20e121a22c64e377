package config // package config loads bridge configuration from environment variables

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robertos-pos/bc-bridge/internal/erp"
)

// UserCred is one terminal account as declared in POS_USERS. The
// password is plain here and hashed when the auth handler is built,
// never stored beyond that.
type UserCred struct {
	ID       string
	Name     string
	Username string
	Password string
	Role     string
}

// Config holds all runtime settings. Unlike a service that refuses to
// start on missing variables, the bridge defaults everything: with a
// completely empty environment it comes up in demo mode on one LAN
// port, which is the contract the terminals rely on.
type Config struct {
	Env     string // deployment label reported by /health
	Port    string // HTTP port to listen on
	DataDir string // directory holding the persisted POS state

	JWTSecret  string        // secret signing session tokens
	SessionTTL time.Duration // session token lifetime
	BcryptCost int           // bcrypt cost for hashing configured passwords
	Users      []UserCred    // terminal accounts

	AllowedOrigins []string // CORS origins allowed to call the bridge

	PrinterWSURL      string        // printer process websocket URL; empty disables the relay
	PrinterAckTimeout time.Duration // how long a forwarded print waits for its ack
	PrinterRetry      time.Duration // reconnect interval after a printer disconnect

	CacheTTL time.Duration // Redis TTL for ERP menu/stock responses

	ERP erp.Config // back-office connection; unconfigured means demo mode
}

// Load reads the environment and returns a complete Config.
func Load() Config {
	return Config{
		Env:     getenv("APP_ENV", "dev"),
		Port:    getenv("BRIDGE_PORT", getenv("PORT", "5050")),
		DataDir: getenv("DATA_DIR", "data"),

		JWTSecret:  getenv("JWT_SECRET", "change-me-dev"),
		SessionTTL: parseDur(getenv("SESSION_TTL", "168h")), // 7 days
		BcryptCost: atoi(getenv("BCRYPT_COST", "10")),
		Users:      parseUsers(getenv("POS_USERS", "")),

		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:5173")),

		PrinterWSURL:      getenv("PRINTER_WS_URL", "ws://localhost:4000/ws"),
		PrinterAckTimeout: parseDur(getenv("PRINTER_ACK_TIMEOUT", "10s")),
		PrinterRetry:      parseDur(getenv("PRINTER_RETRY", "3s")),

		CacheTTL: parseDur(getenv("CACHE_TTL", "30s")),

		ERP: erp.Config{
			Auth:            strings.ToLower(getenv("BC_AUTH", "oauth")),
			TenantID:        os.Getenv("BC_TENANT_ID"),
			Environment:     getenv("BC_ENV", "Production"),
			Region:          getenv("BC_REGION", "api.businesscentral.dynamics.com"),
			CompanyID:       os.Getenv("BC_COMPANY_ID"),
			ClientID:        os.Getenv("BC_CLIENT_ID"),
			ClientSecret:    os.Getenv("BC_CLIENT_SECRET"),
			Username:        os.Getenv("BC_USERNAME"),
			Password:        os.Getenv("BC_PASSWORD"),
			LocationCode:    os.Getenv("BC_LOCATION_CODE"),
			DefaultCustomer: getenv("BC_DEFAULT_CUSTOMER", "CASH"),
			Timeout:         parseDur(getenv("BC_TIMEOUT", "15s")),
		},
	}
}

// parseUsers reads "id:username:password:name:role" records separated
// by semicolons. An empty value yields the built-in demo accounts.
func parseUsers(s string) []UserCred {
	if s == "" {
		return []UserCred{
			{ID: "u1", Name: "Admin", Username: "admin", Password: "1234", Role: "admin"},
			{ID: "u2", Name: "Anne (Waiter)", Username: "anne", Password: "1234", Role: "waiter"},
		}
	}
	var users []UserCred
	for _, rec := range strings.Split(s, ";") {
		parts := strings.Split(strings.TrimSpace(rec), ":")
		if len(parts) != 5 {
			continue
		}
		users = append(users, UserCred{
			ID:       parts[0],
			Username: parts[1],
			Password: parts[2],
			Name:     parts[3],
			Role:     parts[4],
		})
	}
	return users
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getenv returns the variable's value or the default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
