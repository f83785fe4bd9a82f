package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/shopengine/orderflow/internal/core/domain"
)

// defaultShippingMethods holds illustrative fees; real deployments override
// them through SHIPPING_METHODS.
const defaultShippingMethods = "std:100:7,exp:200:3,smd:300:1"

type Config struct {
	HTTPAddr  string
	MySQLDSN  string
	RedisAddr string

	DispatchWorkers   int
	DispatchQueueSize int
	DispatchTimeout   time.Duration

	PushEndpoint string
	PushAPIKey   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	Currency currency.Unit
	Shipping domain.ShippingTable
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:     getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/orderflow?parseTime=true"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		PushEndpoint: getenv("PUSH_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		PushAPIKey:   os.Getenv("PUSH_API_KEY"),
		SMTPHost:     getenv("SMTP_HOST", "localhost"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getenv("EMAIL_FROM", "orders@example.com"),
	}

	var err error
	if cfg.DispatchWorkers, err = getenvInt("DISPATCH_WORKERS", 10); err != nil {
		return nil, err
	}
	if cfg.DispatchQueueSize, err = getenvInt("DISPATCH_QUEUE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = getenvDuration("DISPATCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getenvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	code := getenv("CURRENCY", "USD")
	cfg.Currency, err = currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("CURRENCY[%s] is not valid: %w", code, err)
	}

	cfg.Shipping, err = ParseShippingTable(getenv("SHIPPING_METHODS", defaultShippingMethods), cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("parse SHIPPING_METHODS: %w", err)
	}

	return cfg, nil
}

// ParseShippingTable parses a "code:fee:transitDays" comma list, e.g.
// "std:100:7,exp:200:3,smd:300:1".
func ParseShippingTable(spec string, unit currency.Unit) (domain.ShippingTable, error) {
	table := make(domain.ShippingTable)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed entry %q, want code:fee:transitDays", entry)
		}

		fee, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("entry %q: fee: %w", entry, err)
		}
		days, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("entry %q: transit days: %w", entry, err)
		}
		if days < 0 {
			return nil, fmt.Errorf("entry %q: transit days must not be negative", entry)
		}

		table[parts[0]] = domain.ShippingOption{
			Fee:         domain.NewMoney(fee, unit),
			TransitDays: days,
		}
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("no shipping methods configured")
	}

	return table, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s[%s] is not an integer: %w", key, v, err)
	}
	return parsed, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s[%s] is not a duration: %w", key, v, err)
	}
	return parsed, nil
}
