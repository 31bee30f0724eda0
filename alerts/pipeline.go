package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdv-retail/business-alerts/cache"
	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/metrics"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/pdv-retail/business-alerts/alerts"

// Source provides the collections that notifications are derived from. Every method must return
// a finite, possibly empty, list.
type Source interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListPayables(ctx context.Context) ([]model.Payable, error)
	ListReceivables(ctx context.Context) ([]model.Receivable, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

// CheckSource is implemented by sources that keep track of checks. A Source that doesn't
// implement it is treated as having no checks.
type CheckSource interface {
	ListChecks(ctx context.Context) ([]model.Check, error)
}

// SettingsSource is implemented by sources that store per-store settings.
type SettingsSource interface {
	Settings(ctx context.Context, fallback *time.Location) (*common.Settings, error)
}

// PipelineConfig holds the pipeline configuration.
type PipelineConfig struct {
	// Location is the time zone used when the store hasn't configured one.
	Location *time.Location

	// SettingsTTL is how long store settings are cached.
	SettingsTTL time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Location:    time.UTC,
		SettingsTTL: 10 * time.Minute,
		Clock:       time.Now,
	}
}

// Pipeline runs a single refresh cycle: fetch, classify and aggregate.
type Pipeline struct {
	source   Source
	location *time.Location
	now      func() time.Time
	settings *cache.TTL[*common.Settings]
	log      *logrus.Entry
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewPipeline creates a new pipeline reading from source. The metrics may be nil.
func NewPipeline(source Source, cfg PipelineConfig, log *logrus.Entry, m *metrics.Metrics) *Pipeline {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Pipeline{
		source:   source,
		location: cfg.Location,
		now:      cfg.Clock,
		settings: cache.NewTTL[*common.Settings](cfg.SettingsTTL, cache.Clock(cfg.Clock)),
		log:      log,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
}

// InvalidateSettings forces the store settings to be reloaded on the next cycle.
func (p *Pipeline) InvalidateSettings() {
	p.settings.Invalidate()
}

// fetched holds the collections retrieved for one cycle.
type fetched struct {
	products    []model.Product
	payables    []model.Payable
	receivables []model.Receivable
	customers   []model.Customer
	checks      []model.Check
	failed      [5]bool
}

// unavailable lists the categories whose fetch failed, in classifier order.
func (f *fetched) unavailable() []model.Category {
	var result []model.Category
	for i, category := range model.Categories() {
		if f.failed[i] {
			result = append(result, category)
		}
	}
	return result
}

// Run executes one refresh cycle. Collection failures never fail the cycle; an error is returned
// only if ctx ended before the cycle completed, in which case the results must be discarded.
func (p *Pipeline) Run(ctx context.Context) (*model.Snapshot, error) {
	ctx, span := p.tracer.Start(ctx, "alerts.refresh")
	defer span.End()

	cycleID := uuid.New().String()
	span.SetAttributes(attribute.String("alerts.cycle_id", cycleID))
	log := p.log.WithField("cycle_id", cycleID)

	settings := p.loadSettings(ctx, log)
	collections := p.fetch(ctx, log)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "refresh cycle abandoned")
		return nil, errors.Wrap(err, "refresh cycle abandoned")
	}

	e := NewEvaluation(p.now(), settings.Location)
	classifications := []Classification{
		ClassifyProducts(collections.products, e),
		ClassifyPayables(collections.payables, e),
		ClassifyReceivables(collections.receivables, e),
		ClassifyCustomers(collections.customers, e),
		ClassifyChecks(collections.checks, e),
	}
	for _, c := range classifications {
		for _, s := range c.Skipped {
			log.WithFields(logrus.Fields{
				"category":  c.Category,
				"record_id": s.RecordID,
				"reason":    s.Reason,
			}).Debug("record skipped")
		}
	}

	notifications, counts := Aggregate(classifications...)
	span.SetAttributes(attribute.Int("alerts.notifications", counts.Total))

	return &model.Snapshot{
		CycleID:       cycleID,
		StoreName:     settings.StoreName,
		GeneratedAt:   e.Now,
		Notifications: notifications,
		Counts:        counts,
		Unavailable:   collections.unavailable(),
	}, nil
}

// loadSettings returns the cached store settings, falling back to the defaults.
func (p *Pipeline) loadSettings(ctx context.Context, log *logrus.Entry) *common.Settings {
	source, ok := p.source.(SettingsSource)
	if !ok {
		return common.DefaultSettings(p.location)
	}

	settings, err := p.settings.GetOrLoad(ctx, func(ctx context.Context) (*common.Settings, error) {
		return source.Settings(ctx, p.location)
	})
	if err != nil {
		log.WithError(err).Warn("unable to load the store settings, using defaults")
		return common.DefaultSettings(p.location)
	}
	return settings
}

// fetch retrieves all five collections concurrently and waits for every fetch to finish.
func (p *Pipeline) fetch(ctx context.Context, log *logrus.Entry) *fetched {
	result := &fetched{}
	var g errgroup.Group

	fetchInto(ctx, &g, p, log, 0, p.source.ListProducts, &result.products, &result.failed)
	fetchInto(ctx, &g, p, log, 1, p.source.ListPayables, &result.payables, &result.failed)
	fetchInto(ctx, &g, p, log, 2, p.source.ListReceivables, &result.receivables, &result.failed)
	fetchInto(ctx, &g, p, log, 3, p.source.ListCustomers, &result.customers, &result.failed)
	if checks, ok := p.source.(CheckSource); ok {
		fetchInto(ctx, &g, p, log, 4, checks.ListChecks, &result.checks, &result.failed)
	}

	// Every fetch absorbs its own failure, so Wait never returns an error.
	_ = g.Wait()
	return result
}

// fetchInto starts a fetch of one collection. A failure leaves dest empty and marks the category
// as failed, unless the source reports that the collection doesn't exist at all.
func fetchInto[T any](
	ctx context.Context,
	g *errgroup.Group,
	p *Pipeline,
	log *logrus.Entry,
	index int,
	list func(context.Context) ([]T, error),
	dest *[]T,
	failed *[5]bool,
) {
	category := model.Categories()[index]
	log = log.WithField("category", category)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while fetching: %v", r)
			}
			if err != nil {
				failed[index] = true
				*dest = nil
				if ctx.Err() == nil {
					log.WithError(err).Error("unable to fetch the collection")
					if p.metrics != nil {
						p.metrics.IncrementFetchFailures(category)
					}
				}
			}
			err = nil
		}()

		records, err := list(ctx)
		if errors.Is(err, common.ErrCollectionUnavailable) {
			log.Debug("collection unavailable, treating it as empty")
			return nil
		}
		if err != nil {
			return err
		}
		*dest = records
		return nil
	})
}
