package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
)

const (
	bullishThreshold    = 5.0
	bearishThreshold    = -5.0
	surplusRatio        = 1.1
	deficitRatio        = 0.9
	priceAlertMinMove   = 5.0
	defaultTimeframe    = "30d"
	priceUnitPerQuintal = "INR/quintal"
)

var marketTimeframes = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

var regionMultipliers = map[string]float64{
	"north":   1.00,
	"south":   1.05,
	"east":    0.95,
	"west":    1.02,
	"central": 0.98,
}

// RegionMultiplier returns 1.0 for any region outside the table.
func RegionMultiplier(region string) float64 {
	if m, ok := regionMultipliers[strings.ToLower(strings.TrimSpace(region))]; ok {
		return m
	}
	return 1.0
}

type cropMarket struct {
	BasePrice  float64
	Volatility float64 // fractional band, 0.1 means ±10%
	Production float64 // thousand tonnes per season
	Demand     float64
}

var cropMarkets = map[string]cropMarket{
	"rice":      {BasePrice: 2183, Volatility: 0.08, Production: 135000, Demand: 125000},
	"wheat":     {BasePrice: 2275, Volatility: 0.06, Production: 112000, Demand: 108000},
	"maize":     {BasePrice: 2090, Volatility: 0.10, Production: 36000, Demand: 38000},
	"cotton":    {BasePrice: 6620, Volatility: 0.12, Production: 5700, Demand: 5500},
	"sugarcane": {BasePrice: 315, Volatility: 0.05, Production: 490000, Demand: 410000},
	"soybean":   {BasePrice: 4600, Volatility: 0.10, Production: 13000, Demand: 16000},
	"tomato":    {BasePrice: 1500, Volatility: 0.30, Production: 20500, Demand: 19000},
	"onion":     {BasePrice: 1800, Volatility: 0.25, Production: 30000, Demand: 27000},
	"potato":    {BasePrice: 1200, Volatility: 0.20, Production: 60000, Demand: 57000},
	"chickpea":  {BasePrice: 5440, Volatility: 0.08, Production: 12000, Demand: 13500},
}

// TrackedCrops lists the crops with a price table entry, sorted.
func TrackedCrops() []string {
	crops := make([]string, 0, len(cropMarkets))
	for crop := range cropMarkets {
		crops = append(crops, crop)
	}
	slices.Sort(crops)
	return crops
}

// MarketDataSource supplies prices, series and balances for tracked crops.
type MarketDataSource interface {
	Name() models.DataSource
	Quote(crop, region string, now time.Time) (models.MarketPriceSample, error)
	Series(crop string, days int, now time.Time) ([]models.PricePoint, error)
	Balance(crop string) (production, demand float64, err error)
}

// SyntheticMarketSource perturbs the static price table with random noise.
// Values are mocked and only reproducible when a seeded rng is injected.
type SyntheticMarketSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSyntheticMarketSource(rng *rand.Rand) *SyntheticMarketSource {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &SyntheticMarketSource{rng: rng}
}

func (s *SyntheticMarketSource) Name() models.DataSource { return models.SourceSynthetic }

// noise returns a uniform value in [-band, band].
func (s *SyntheticMarketSource) noise(band float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.rng.Float64()*2 - 1) * band
}

func lookupCrop(crop string) (cropMarket, error) {
	m, ok := cropMarkets[crop]
	if !ok {
		return cropMarket{}, invalid("crop", "no market data for crop %q", crop)
	}
	return m, nil
}

func (s *SyntheticMarketSource) Quote(crop, region string, now time.Time) (models.MarketPriceSample, error) {
	m, err := lookupCrop(crop)
	if err != nil {
		return models.MarketPriceSample{}, err
	}

	previous := round(m.BasePrice*RegionMultiplier(region), 2)
	current := round(previous*(1+s.noise(m.Volatility)), 2)
	change := round(current-previous, 2)
	return models.MarketPriceSample{
		Crop:          crop,
		Region:        region,
		CurrentPrice:  current,
		PreviousPrice: previous,
		Change:        change,
		ChangePercent: round(change/previous*100, 2),
		Unit:          priceUnitPerQuintal,
		Timestamp:     now.UTC(),
		Source:        models.SourceSynthetic,
	}, nil
}

// Series walks the price from a perturbed base with a small random drift.
// The last point is today.
func (s *SyntheticMarketSource) Series(crop string, days int, now time.Time) ([]models.PricePoint, error) {
	m, err := lookupCrop(crop)
	if err != nil {
		return nil, err
	}

	drift := s.noise(m.Volatility) / float64(days)
	price := m.BasePrice * (1 + s.noise(m.Volatility/2))
	floor := m.BasePrice * 0.3
	start := now.UTC().AddDate(0, 0, -(days - 1))

	series := make([]models.PricePoint, 0, days)
	for i := 0; i < days; i++ {
		if i > 0 {
			price = math.Max(floor, price*(1+drift+s.noise(m.Volatility/5)))
		}
		series = append(series, models.PricePoint{
			Date:  start.AddDate(0, 0, i).Format(time.DateOnly),
			Price: round(price, 2),
		})
	}
	return series, nil
}

func (s *SyntheticMarketSource) Balance(crop string) (float64, float64, error) {
	m, err := lookupCrop(crop)
	if err != nil {
		return 0, 0, err
	}
	production := math.Round(m.Production * (1 + s.noise(0.05)))
	demand := math.Round(m.Demand * (1 + s.noise(0.03)))
	return production, demand, nil
}

// ClassifyTrend compares the last point of the series against the first.
// Only the endpoints matter, not the size of the moves in between.
func ClassifyTrend(series []models.PricePoint) (models.Trend, float64) {
	if len(series) < 2 || series[0].Price == 0 {
		return models.TrendStable, 0
	}
	first, last := series[0].Price, series[len(series)-1].Price
	change := (last - first) / first * 100
	switch {
	case change > bullishThreshold:
		return models.TrendBullish, round(change, 2)
	case change < bearishThreshold:
		return models.TrendBearish, round(change, 2)
	default:
		return models.TrendStable, round(change, 2)
	}
}

// Volatility is the coefficient of variation of the series in percent.
func Volatility(series []models.PricePoint) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, p := range series {
		sum += p.Price
	}
	mean := sum / float64(len(series))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, p := range series {
		sq += (p.Price - mean) * (p.Price - mean)
	}
	return round(math.Sqrt(sq/float64(len(series)))/mean*100, 2)
}

func ClassifyBalance(ratio float64) models.SupplyStatus {
	switch {
	case ratio > surplusRatio:
		return models.SupplySurplus
	case ratio < deficitRatio:
		return models.SupplyDeficit
	default:
		return models.SupplyBalanced
	}
}

var balanceOutlooks = map[models.SupplyStatus]string{
	models.SupplySurplus:  "Supply exceeds demand, expect softer prices. Consider storage or staggered selling.",
	models.SupplyDeficit:  "Demand exceeds supply, prices are likely to firm up. Favourable window for selling.",
	models.SupplyBalanced: "Supply and demand are balanced, prices should stay near current levels.",
}

// PriceAlertNotifier receives price moves large enough to alert on.
type PriceAlertNotifier interface {
	SendPriceAlert(ctx context.Context, sample models.MarketPriceSample) (int, error)
}

type IMarketService interface {
	GetCurrentPrices(ctx context.Context, crop, region string) ([]models.MarketPriceSample, error)
	GetMarketTrends(ctx context.Context, crop, timeframe string) (*models.MarketTrend, error)
	GetDemandSupplyAnalysis(ctx context.Context, crop string) (*models.DemandSupplyAnalysis, error)
	NotifyPriceMovements(ctx context.Context, samples []models.MarketPriceSample) int
}

type MarketService struct {
	cfg      config.MarketConfig
	store    repository.Store
	source   MarketDataSource
	notifier PriceAlertNotifier
	now      func() time.Time
}

func NewMarketService(cfg config.MarketConfig, store repository.Store, source MarketDataSource, notifier PriceAlertNotifier) *MarketService {
	if source == nil {
		source = NewSyntheticMarketSource(nil)
	}
	if !strings.EqualFold(cfg.Provider, string(models.SourceSynthetic)) {
		slog.Warn("Market provider not supported, using synthetic prices", "provider", cfg.Provider)
	}
	return &MarketService{
		cfg:      cfg,
		store:    store,
		source:   source,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *MarketService) ProviderName() models.DataSource {
	return s.source.Name()
}

func normalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

// GetCurrentPrices quotes one crop, or every tracked crop when crop is empty.
func (s *MarketService) GetCurrentPrices(ctx context.Context, crop, region string) ([]models.MarketPriceSample, error) {
	crop = normalizeCrop(crop)
	region = strings.ToLower(strings.TrimSpace(region))

	crops := TrackedCrops()
	if crop != "" {
		if _, err := lookupCrop(crop); err != nil {
			return nil, err
		}
		crops = []string{crop}
	}

	key := repository.MarketPricesKey(crop, region)
	var cached []models.MarketPriceSample
	if err := repository.GetJSON(ctx, s.store, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		slog.Warn("Market cache read failed", "key", key, "error", err)
	}

	now := s.now()
	samples := make([]models.MarketPriceSample, 0, len(crops))
	for _, c := range crops {
		sample, err := s.source.Quote(c, region, now)
		if err != nil {
			return nil, fmt.Errorf("failed to quote %s: %w", c, err)
		}
		samples = append(samples, sample)
	}

	if err := repository.SetJSON(ctx, s.store, key, samples, s.cfg.PricesTTL); err != nil {
		slog.Warn("Market cache write failed", "key", key, "error", err)
	}
	return samples, nil
}

func (s *MarketService) GetMarketTrends(ctx context.Context, crop, timeframe string) (*models.MarketTrend, error) {
	crop = normalizeCrop(crop)
	if crop == "" {
		return nil, invalid("crop", "is required")
	}
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	if timeframe == "" {
		timeframe = defaultTimeframe
	}
	days, ok := marketTimeframes[timeframe]
	if !ok {
		return nil, invalid("timeframe", "must be one of 7d, 30d, 90d")
	}

	series, err := s.source.Series(crop, days, s.now())
	if err != nil {
		return nil, err
	}

	trend, change := ClassifyTrend(series)
	result := &models.MarketTrend{
		Crop:          crop,
		Timeframe:     timeframe,
		Series:        series,
		Trend:         trend,
		ChangePercent: change,
		Volatility:    Volatility(series),
		Source:        s.source.Name(),
	}
	var sum float64
	result.Low = math.Inf(1)
	result.High = math.Inf(-1)
	for _, p := range series {
		sum += p.Price
		result.Low = math.Min(result.Low, p.Price)
		result.High = math.Max(result.High, p.Price)
	}
	result.Average = round(sum/float64(len(series)), 2)
	return result, nil
}

func (s *MarketService) GetDemandSupplyAnalysis(ctx context.Context, crop string) (*models.DemandSupplyAnalysis, error) {
	crop = normalizeCrop(crop)
	if crop == "" {
		return nil, invalid("crop", "is required")
	}

	production, demand, err := s.source.Balance(crop)
	if err != nil {
		return nil, err
	}
	if demand <= 0 {
		return nil, fmt.Errorf("market source returned non-positive demand for %s", crop)
	}

	ratio := round(production/demand, 3)
	status := ClassifyBalance(ratio)
	return &models.DemandSupplyAnalysis{
		Crop:       crop,
		Production: production,
		Demand:     demand,
		Ratio:      ratio,
		Status:     status,
		Outlook:    balanceOutlooks[status],
		Source:     s.source.Name(),
	}, nil
}

// NotifyPriceMovements raises a price alert for every sample that moved at
// least 5% and returns how many subscribers were notified.
func (s *MarketService) NotifyPriceMovements(ctx context.Context, samples []models.MarketPriceSample) int {
	if s.notifier == nil {
		return 0
	}
	log := slog.With("operation", "MarketService.NotifyPriceMovements")

	notified := 0
	for _, sample := range samples {
		if math.Abs(sample.ChangePercent) < priceAlertMinMove {
			continue
		}
		n, err := s.notifier.SendPriceAlert(ctx, sample)
		if err != nil {
			log.Warn("Failed to send price alert", "crop", sample.Crop, "region", sample.Region, "error", err)
			continue
		}
		notified += n
	}
	return notified
}
