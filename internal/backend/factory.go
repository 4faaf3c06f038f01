// Package backend picks the outer adapters a binary runs with: the ledger
// the worker mirrors payments into and the broker the server publishes to.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"feedesk/internal/amqp"
	"feedesk/internal/config"
	"feedesk/internal/sheets"
	gsheet "feedesk/internal/sheets/google"
	"feedesk/internal/sheets/memory"
)

// LedgerType names the ledger implementation in use.
type LedgerType string

const (
	SheetsLedger LedgerType = "sheets"
	MemoryLedger LedgerType = "memory"
)

// Config holds what the factory needs from the application config.
type Config struct {
	GoogleSpreadsheetID      string
	GoogleLedgerSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return Config{
		GoogleSpreadsheetID:      c.GoogleSpreadsheetID,
		GoogleLedgerSheet:        c.GoogleLedgerSheet,
		GoogleServiceAccountJSON: c.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: c.GoogleServiceAccountFile,
		AMQPURL:                  c.AMQPURL,
		AMQPExchange:             c.AMQPExchange,
		AMQPQueue:                c.AMQPQueue,
	}, nil
}

// Type reports which ledger NewLedger will build.
func (c Config) Type() LedgerType {
	if c.GoogleSpreadsheetID != "" {
		return SheetsLedger
	}
	return MemoryLedger
}

// NewLedger builds the Google Sheets ledger when a spreadsheet is configured
// and the in-memory one otherwise.
func NewLedger(ctx context.Context, c Config, logger *slog.Logger) (sheets.LedgerWriter, LedgerType, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Type() {
	case SheetsLedger:
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   c.GoogleSpreadsheetID,
			LedgerSheet:     c.GoogleLedgerSheet,
			CredentialsJSON: c.GoogleServiceAccountJSON,
			CredentialsFile: c.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
		}
		logger.Info("Initialized Google Sheets ledger", "sheet", c.GoogleLedgerSheet)
		return client, SheetsLedger, nil
	default:
		logger.Warn("No spreadsheet configured, mirroring payments to the in-memory ledger")
		return memory.New(), MemoryLedger, nil
	}
}

// NewBroker connects to AMQP when a URL is configured. A nil client with a
// nil error means AMQP is disabled; a failed connection is an error.
func NewBroker(c Config, logger *slog.Logger) (*amqp.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.AMQPURL == "" {
		logger.Info("AMQP disabled, ledger sync relies on the pending sweep")
		return nil, nil
	}

	client, err := amqp.NewClient(c.AMQPURL, c.AMQPExchange, c.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	logger.Info("Initialized AMQP client", "exchange", c.AMQPExchange, "queue", c.AMQPQueue)
	return client, nil
}
