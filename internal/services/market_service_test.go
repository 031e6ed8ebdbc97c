package services

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPriceNotifier struct {
	mu      sync.Mutex
	samples []models.MarketPriceSample
}

func (r *recordingPriceNotifier) SendPriceAlert(_ context.Context, sample models.MarketPriceSample) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
	return 2, nil
}

func newTestMarketService(t *testing.T, notifier PriceAlertNotifier) *MarketService {
	t.Helper()
	cfg := config.MarketConfig{Provider: "synthetic", PricesTTL: 15 * time.Minute}
	svc := NewMarketService(cfg, repository.NewMemoryStore(), NewSyntheticMarketSource(rand.New(rand.NewPCG(3, 4))), notifier)
	svc.now = func() time.Time { return testNow }
	return svc
}

func series(prices ...float64) []models.PricePoint {
	points := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = models.PricePoint{Date: testNow.AddDate(0, 0, i).Format(time.DateOnly), Price: p}
	}
	return points
}

func TestClassifyTrend_OnlyEndpointsMatter(t *testing.T) {
	trend, change := ClassifyTrend(series(100, 300, 20, 106))
	assert.Equal(t, models.TrendBullish, trend)
	assert.Equal(t, 6.0, change)

	trend, _ = ClassifyTrend(series(100, 500, 1, 94))
	assert.Equal(t, models.TrendBearish, trend)

	trend, _ = ClassifyTrend(series(100, 10, 900, 105))
	assert.Equal(t, models.TrendStable, trend)

	trend, _ = ClassifyTrend(series(100, 95))
	assert.Equal(t, models.TrendStable, trend)

	trend, change = ClassifyTrend(series(100))
	assert.Equal(t, models.TrendStable, trend)
	assert.Equal(t, 0.0, change)
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(series(50, 50, 50)))
	assert.Equal(t, 0.0, Volatility(nil))
	// mean 100, population stdev 10
	assert.Equal(t, 10.0, Volatility(series(90, 110)))
}

func TestClassifyBalance(t *testing.T) {
	assert.Equal(t, models.SupplySurplus, ClassifyBalance(1.2))
	assert.Equal(t, models.SupplyDeficit, ClassifyBalance(0.85))
	assert.Equal(t, models.SupplyBalanced, ClassifyBalance(1.1))
	assert.Equal(t, models.SupplyBalanced, ClassifyBalance(0.9))
}

func TestRegionMultiplier(t *testing.T) {
	assert.Equal(t, 1.05, RegionMultiplier("South"))
	assert.Equal(t, 0.95, RegionMultiplier("east"))
	assert.Equal(t, 1.0, RegionMultiplier("atlantis"))
	assert.Equal(t, 1.0, RegionMultiplier(""))
}

func TestGetCurrentPrices(t *testing.T) {
	svc := newTestMarketService(t, nil)
	ctx := context.Background()

	prices, err := svc.GetCurrentPrices(ctx, "Wheat", "south")
	require.NoError(t, err)
	require.Len(t, prices, 1)

	p := prices[0]
	assert.Equal(t, "wheat", p.Crop)
	assert.InDelta(t, 2275*1.05, p.PreviousPrice, 0.01)
	assert.InDelta(t, p.PreviousPrice, p.CurrentPrice, p.PreviousPrice*0.06+0.01)
	assert.InDelta(t, p.CurrentPrice-p.PreviousPrice, p.Change, 0.011)
	assert.Equal(t, models.SourceSynthetic, p.Source)
	assert.Equal(t, testNow, p.Timestamp)

	again, err := svc.GetCurrentPrices(ctx, "wheat", "South")
	require.NoError(t, err)
	assert.Equal(t, p.CurrentPrice, again[0].CurrentPrice, "second call must be served from cache")

	all, err := svc.GetCurrentPrices(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, len(TrackedCrops()))

	_, err = svc.GetCurrentPrices(ctx, "durian", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetMarketTrends(t *testing.T) {
	svc := newTestMarketService(t, nil)
	ctx := context.Background()

	trend, err := svc.GetMarketTrends(ctx, "onion", "")
	require.NoError(t, err)
	assert.Equal(t, "30d", trend.Timeframe)
	require.Len(t, trend.Series, 30)
	assert.Equal(t, testNow.Format(time.DateOnly), trend.Series[29].Date)

	want, change := ClassifyTrend(trend.Series)
	assert.Equal(t, want, trend.Trend)
	assert.Equal(t, change, trend.ChangePercent)
	assert.LessOrEqual(t, trend.Low, trend.Average)
	assert.GreaterOrEqual(t, trend.High, trend.Average)

	week, err := svc.GetMarketTrends(ctx, "rice", "7d")
	require.NoError(t, err)
	assert.Len(t, week.Series, 7)

	_, err = svc.GetMarketTrends(ctx, "rice", "1y")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.GetMarketTrends(ctx, "", "7d")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetDemandSupplyAnalysis(t *testing.T) {
	svc := newTestMarketService(t, nil)

	analysis, err := svc.GetDemandSupplyAnalysis(context.Background(), "sugarcane")
	require.NoError(t, err)
	assert.Equal(t, models.SupplySurplus, analysis.Status)
	assert.Equal(t, ClassifyBalance(analysis.Ratio), analysis.Status)
	assert.NotEmpty(t, analysis.Outlook)

	analysis, err = svc.GetDemandSupplyAnalysis(context.Background(), "soybean")
	require.NoError(t, err)
	assert.Equal(t, models.SupplyDeficit, analysis.Status)
}

func TestNotifyPriceMovements(t *testing.T) {
	notifier := &recordingPriceNotifier{}
	svc := newTestMarketService(t, notifier)

	samples := []models.MarketPriceSample{
		{Crop: "tomato", ChangePercent: 12.5},
		{Crop: "rice", ChangePercent: 1.2},
		{Crop: "onion", ChangePercent: -5},
	}
	notified := svc.NotifyPriceMovements(context.Background(), samples)

	assert.Equal(t, 4, notified)
	require.Len(t, notifier.samples, 2)
	assert.Equal(t, "tomato", notifier.samples[0].Crop)
	assert.Equal(t, "onion", notifier.samples[1].Crop)

	assert.Equal(t, 0, newTestMarketService(t, nil).NotifyPriceMovements(context.Background(), samples))
}
