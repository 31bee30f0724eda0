package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/metrics"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSource provides canned collections and records the calls that were made.
type MockSource struct {
	mu sync.Mutex

	Products    []model.Product
	Payables    []model.Payable
	Receivables []model.Receivable
	Customers   []model.Customer
	Checks      []model.Check

	ProductsErr    error
	PayablesErr    error
	ReceivablesErr error
	CustomersErr   error
	ChecksErr      error

	StoreSettings *common.Settings
	SettingsErr   error
	SettingsCalls int
}

func (s *MockSource) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.Products, s.ProductsErr
}

func (s *MockSource) ListPayables(ctx context.Context) ([]model.Payable, error) {
	return s.Payables, s.PayablesErr
}

func (s *MockSource) ListReceivables(ctx context.Context) ([]model.Receivable, error) {
	return s.Receivables, s.ReceivablesErr
}

func (s *MockSource) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.Customers, s.CustomersErr
}

func (s *MockSource) ListChecks(ctx context.Context) ([]model.Check, error) {
	return s.Checks, s.ChecksErr
}

func (s *MockSource) Settings(ctx context.Context, fallback *time.Location) (*common.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SettingsCalls++
	if s.SettingsErr != nil {
		return nil, s.SettingsErr
	}
	if s.StoreSettings != nil {
		return s.StoreSettings, nil
	}
	return common.DefaultSettings(fallback), nil
}

// basicSource has no check accessor at all.
type basicSource struct {
	products []model.Product
}

func (s *basicSource) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, nil
}

func (s *basicSource) ListPayables(ctx context.Context) ([]model.Payable, error) {
	return nil, nil
}

func (s *basicSource) ListReceivables(ctx context.Context) ([]model.Receivable, error) {
	return nil, nil
}

func (s *basicSource) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return nil, nil
}

// newMockSource returns a source with at least one qualifying record in every category.
func newMockSource() *MockSource {
	return &MockSource{
		Products: []model.Product{
			product("1", 2, 5),
			product("2", 0, 5),
			product("3", 50, 5),
		},
		Payables: []model.Payable{
			payable("10", 5),
			payable("11", -2),
			payable("12", 20),
		},
		Receivables: []model.Receivable{
			receivable("20", -45),
			receivable("21", -3),
		},
		Customers: []model.Customer{
			{ID: "30", Name: "Ana", BirthDate: "1990-03-15"},
			{ID: "31", Name: "Bruno", BirthDate: "not a date"},
		},
		Checks: []model.Check{
			check("40", 1),
		},
	}
}

func newTestLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func newTestPipeline(source Source, m *metrics.Metrics) (*Pipeline, *test.Hook) {
	log, hook := newTestLogger()
	cfg := PipelineConfig{
		Location:    time.UTC,
		SettingsTTL: time.Hour,
		Clock:       func() time.Time { return testNow },
	}
	return NewPipeline(source, cfg, log, m), hook
}

func notificationIDs(snapshot *model.Snapshot) []string {
	ids := make([]string, 0, len(snapshot.Notifications))
	for _, n := range snapshot.Notifications {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestPipelineRun(t *testing.T) {
	assert := assert.New(t)
	pipeline, _ := newTestPipeline(newMockSource(), nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal([]string{
		"stock-2",
		"bill-11",
		"receivable-20",
		"stock-1",
		"receivable-21",
		"bill-10",
		"birthday-30",
		"check-40",
	}, notificationIDs(snapshot))

	assert.Equal(model.Counts{
		LowStock:           2,
		UpcomingBills:      2,
		OverdueReceivables: 2,
		Birthdays:          1,
		PendingChecks:      1,
		Total:              8,
	}, snapshot.Counts)
	assert.Equal(testNow, snapshot.GeneratedAt)
	assert.NotEmpty(snapshot.CycleID)
	assert.Empty(snapshot.Unavailable)
}

func TestPipelineDeterministic(t *testing.T) {
	assert := assert.New(t)
	pipeline, _ := newTestPipeline(newMockSource(), nil)

	first, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(notificationIDs(first), notificationIDs(second))
	assert.Equal(first.Notifications, second.Notifications)
	assert.Equal(first.Counts, second.Counts)
	assert.NotEqual(first.CycleID, second.CycleID)
}

func TestPipelineInvariants(t *testing.T) {
	assert := assert.New(t)
	pipeline, _ := newTestPipeline(newMockSource(), nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// Identifiers are unique.
	seen := make(map[string]bool)
	for _, n := range snapshot.Notifications {
		assert.Falsef(seen[n.ID], "duplicate notification ID %s", n.ID)
		seen[n.ID] = true
	}

	// Severities never decrease in urgency along the list.
	for i := 1; i < len(snapshot.Notifications); i++ {
		assert.LessOrEqual(snapshot.Notifications[i-1].Severity.Rank(), snapshot.Notifications[i].Severity.Rank())
	}

	// Counts are consistent with the list.
	assert.Equal(len(snapshot.Notifications), snapshot.Counts.Total)
	sum := 0
	for _, category := range model.Categories() {
		sum += snapshot.Counts.Get(category)
	}
	assert.Equal(snapshot.Counts.Total, sum)
}

func TestPipelineCheckFetchFailure(t *testing.T) {
	assert := assert.New(t)
	source := newMockSource()
	source.ChecksErr = errors.New("relation checks: permission denied")
	m := metrics.New(prometheus.NewRegistry())
	pipeline, hook := newTestPipeline(source, m)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(0, snapshot.Counts.PendingChecks)
	assert.Equal(2, snapshot.Counts.LowStock)
	assert.Equal(2, snapshot.Counts.UpcomingBills)
	assert.Equal(2, snapshot.Counts.OverdueReceivables)
	assert.Equal(1, snapshot.Counts.Birthdays)
	assert.Equal(7, snapshot.Counts.Total)
	assert.Equal([]model.Category{model.CategoryPendingChecks}, snapshot.Unavailable)

	// The failure must have been logged and counted.
	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["category"] == model.CategoryPendingChecks {
			logged = true
		}
	}
	assert.True(logged, "the fetch failure was not logged")
	assert.Equal(float64(1), testutil.ToFloat64(m.FetchFailures.WithLabelValues(string(model.CategoryPendingChecks))))
}

func TestPipelineEveryFetchFails(t *testing.T) {
	assert := assert.New(t)
	source := newMockSource()
	fetchErr := errors.New("backend offline")
	source.ProductsErr = fetchErr
	source.PayablesErr = fetchErr
	source.ReceivablesErr = fetchErr
	source.CustomersErr = fetchErr
	source.ChecksErr = fetchErr
	pipeline, _ := newTestPipeline(source, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(snapshot.Notifications)
	assert.Equal(model.Counts{}, snapshot.Counts)
	assert.Equal(model.Categories(), snapshot.Unavailable)
}

func TestPipelineChecksCollectionUnavailable(t *testing.T) {
	assert := assert.New(t)
	source := newMockSource()
	source.ChecksErr = common.ErrCollectionUnavailable
	pipeline, hook := newTestPipeline(source, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(0, snapshot.Counts.PendingChecks)
	assert.Empty(snapshot.Unavailable, "a missing collection is not a failure")

	for _, entry := range hook.AllEntries() {
		assert.NotEqual(logrus.ErrorLevel, entry.Level, "unexpected error logged: %s", entry.Message)
	}
}

func TestPipelineWithoutCheckAccessor(t *testing.T) {
	assert := assert.New(t)
	source := &basicSource{products: []model.Product{product("1", 0, 1)}}
	pipeline, _ := newTestPipeline(source, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(1, snapshot.Counts.LowStock)
	assert.Equal(0, snapshot.Counts.PendingChecks)
	assert.Empty(snapshot.Unavailable)
}

// panickingSource panics while listing customers.
type panickingSource struct {
	basicSource
}

func (s *panickingSource) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var customers map[string][]model.Customer
	customers["all"] = nil
	return nil, nil
}

func TestPipelineFetchPanic(t *testing.T) {
	assert := assert.New(t)
	source := &panickingSource{basicSource{products: []model.Product{product("1", 0, 1)}}}
	pipeline, _ := newTestPipeline(source, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(1, snapshot.Counts.LowStock)
	assert.Equal([]model.Category{model.CategoryBirthdays}, snapshot.Unavailable)
}

func TestPipelineCancelledContext(t *testing.T) {
	pipeline, _ := newTestPipeline(newMockSource(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshot, err := pipeline.Run(ctx)
	assert.Error(t, err)
	assert.Nil(t, snapshot)
}

func TestPipelineCachesSettings(t *testing.T) {
	assert := assert.New(t)
	source := newMockSource()
	source.StoreSettings = &common.Settings{StoreName: "Mercadinho Central", Location: time.UTC}
	pipeline, _ := newTestPipeline(source, nil)

	for i := 0; i < 3; i++ {
		snapshot, err := pipeline.Run(context.Background())
		require.NoError(t, err)
		assert.Equal("Mercadinho Central", snapshot.StoreName)
	}
	assert.Equal(1, source.SettingsCalls)

	pipeline.InvalidateSettings()
	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(2, source.SettingsCalls)
}

func TestPipelineSettingsFailureUsesDefaults(t *testing.T) {
	assert := assert.New(t)
	source := newMockSource()
	source.SettingsErr = errors.New("settings table locked")
	pipeline, _ := newTestPipeline(source, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(8, snapshot.Counts.Total)
	assert.Equal("", snapshot.StoreName)
}

func TestPipelineUsesStoreTimeZone(t *testing.T) {
	assert := assert.New(t)

	// 01:00 UTC on the 16th is still the 15th in the store's time zone.
	source := &MockSource{
		Customers:     []model.Customer{{ID: "1", Name: "Ana", BirthDate: "1990-03-15"}},
		StoreSettings: &common.Settings{Location: time.FixedZone("BRT", -3*60*60)},
	}
	log, _ := newTestLogger()
	cfg := PipelineConfig{
		Location:    time.UTC,
		SettingsTTL: time.Hour,
		Clock:       func() time.Time { return time.Date(2024, time.March, 16, 1, 0, 0, 0, time.UTC) },
	}
	pipeline := NewPipeline(source, cfg, log, nil)

	snapshot, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(1, snapshot.Counts.Birthdays)
}
