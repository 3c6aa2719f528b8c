package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for TTLs,
// a float for the reservation payment policy.
type Config struct {
	Env                 string        // application environment (e.g. "dev", "prod")
	Port                string        // HTTP port to listen on
	DBUser              string        // database username
	DBPass              string        // database password (optional)
	DBHost              string        // database host address
	DBPort              string        // database port number
	DBName              string        // database name
	JWTSecret           string        // secret used to verify JWTs issued by the identity service
	GatewayBaseURL      string        // payment gateway API base URL
	GatewaySecret       string        // payment gateway API secret key
	GatewayWebhookKey   string        // shared secret for webhook signature checks (empty disables)
	GatewayTimeout      time.Duration // timeout for synchronous gateway calls
	Currency            string        // ISO 4217 currency for all charges
	PendingTTL          time.Duration // how long an unpaid PENDING booking holds its room
	ExpireSweepEvery    time.Duration // interval of the background pending-expiry sweep
	ReserveMinPaidRatio float64       // fraction of total price that must be paid to reserve
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:                 must("APP_ENV"),      // environment (dev/test/prod)
		Port:                must("APP_PORT"),     // port to bind the HTTP server
		DBUser:              must("DB_USER"),      // database user
		DBPass:              os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:              must("DB_HOST"),      // database host
		DBPort:              must("DB_PORT"),      // database port
		DBName:              must("DB_NAME"),      // database name
		JWTSecret:           must("JWT_SECRET"),
		GatewayBaseURL:      must("GATEWAY_BASE_URL"),
		GatewaySecret:       must("GATEWAY_SECRET_KEY"),
		GatewayWebhookKey:   os.Getenv("GATEWAY_WEBHOOK_SECRET"), // empty skips signature checks (dev only)
		GatewayTimeout:      envDur("GATEWAY_TIMEOUT", 10*time.Second),
		Currency:            envStr("PAYMENT_CURRENCY", "PHP"),
		PendingTTL:          envDur("BOOKING_PENDING_TTL", 30*time.Minute),
		ExpireSweepEvery:    envDur("BOOKING_EXPIRE_SWEEP_EVERY", 5*time.Minute),
		ReserveMinPaidRatio: envFloat("RESERVE_MIN_PAID_RATIO", 1.0),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envFloat parses an optional float environment variable, falling back
// to the default on absence or parse failure.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid float for %s: %q, using default %v", key, v, def)
		return def
	}
	return f
}
