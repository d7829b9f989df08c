package config

import "time"

const (
	DefaultHTTPPort          = "8080"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultPGMaxConns        = 10
	DefaultPGMinConns        = 1
	DefaultStatementTimeout  = 5 * time.Second
	DefaultTxTimeout         = 10 * time.Second
	DefaultPublishTimeout    = 2 * time.Second
	DefaultInvalidationTopic = "booking-update"
	DefaultCacheRefresh      = 5 * time.Minute
	DefaultMaxStayDays       = 3
	DefaultHorizonMonths     = 1
)
