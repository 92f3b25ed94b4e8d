package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// tables are truncated between tests. label_templates keeps its seed rows.
var tables = []string{
	"stocktake_lines", "stocktakes",
	"label_print_logs", "sensitive_read_logs",
	"dispatch_lines", "dispatch_orders",
	"asset_transactions", "assets", "lots",
	"resource_transactions", "donation_sources", "resources",
	"storage_locations", "warehouses",
}

// IntegrationSuite provides a migrated PostgreSQL database for integration
// tests.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    if testutil.ShortMode() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container, applies the
// migrations and connects
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	log := logger.Nop()

	container, err := getOrCreateContainer(ctx, log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{Container: container, DB: db, Logger: log}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context, log *logger.Logger) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx)
		if containerErr != nil {
			return
		}
		containerErr = globalContainer.Migrate(log)
	})

	return globalContainer, containerErr
}

// Reset empties every data table. Call it at the start of each test.
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	query := fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", "))
	if _, err := s.DB.ExecContext(context.Background(), query); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// Close closes the suite's connection pool
func (s *IntegrationSuite) Close() error {
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// ShortMode reports whether -short was passed. Usable from TestMain, where
// testing.Short panics before flags are parsed.
func ShortMode() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-test.short" || arg == "-test.short=true" {
			return true
		}
	}
	return false
}

// SkipIfShort skips integration tests in -short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
