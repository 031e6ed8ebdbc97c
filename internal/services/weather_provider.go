package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/models"

	"golang.org/x/time/rate"
)

const (
	weatherRequestTimeout = 15 * time.Second
	maxForecastDays       = 7
	defaultForecastDays   = 5
)

// WeatherProvider is implemented by the live OpenWeather integration and by
// SyntheticDataSource.
type WeatherProvider interface {
	Name() models.DataSource
	CurrentWeather(ctx context.Context, location string) (*models.WeatherObservation, error)
	Forecast(ctx context.Context, location string, days int) ([]models.ForecastDay, error)
}

// OpenWeatherProvider talks to the OpenWeather 2.5 REST API.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewOpenWeatherProvider(cfg config.WeatherConfig) *OpenWeatherProvider {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &OpenWeatherProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: weatherRequestTimeout},
		limiter: rate.NewLimiter(limit, max(cfg.RequestsPerMinute/6, 1)),
	}
}

func (p *OpenWeatherProvider) Name() models.DataSource { return models.SourceOpenWeather }

type openWeatherCurrent struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

type openWeatherForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// locationParams accepts either "lat,lon" or a place name.
func locationParams(location string) url.Values {
	params := url.Values{}
	if parts := strings.Split(location, ","); len(parts) == 2 {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat == nil && errLon == nil {
			params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
			params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
			return params
		}
	}
	params.Set("q", location)
	return params
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, params url.Values, target any) error {
	if p.apiKey == "" {
		return fmt.Errorf("OpenWeather API key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("OpenWeather rate limit wait: %w", err)
	}
	params.Set("appid", p.apiKey)
	params.Set("units", "metric")

	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenWeather %s returned status %d: %s", endpoint, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("error unmarshaling %s: %w", endpoint, err)
	}
	return nil
}

func (p *OpenWeatherProvider) CurrentWeather(ctx context.Context, location string) (*models.WeatherObservation, error) {
	var data openWeatherCurrent
	if err := p.get(ctx, "weather", locationParams(location), &data); err != nil {
		return nil, err
	}

	description := ""
	if len(data.Weather) > 0 {
		description = data.Weather[0].Description
	}
	name := data.Name
	if name == "" {
		name = location
	}

	return &models.WeatherObservation{
		Location:      name,
		Temperature:   data.Main.Temp,
		TempMin:       data.Main.TempMin,
		TempMax:       data.Main.TempMax,
		FeelsLike:     data.Main.FeelsLike,
		Humidity:      data.Main.Humidity,
		Pressure:      data.Main.Pressure,
		WindSpeed:     data.Wind.Speed,
		WindDirection: data.Wind.Deg,
		Cloudiness:    data.Clouds.All,
		Description:   description,
		Timestamp:     time.Unix(data.Dt, 0).UTC(),
		Coordinates:   models.Coordinates{Lat: data.Coord.Lat, Lon: data.Coord.Lon},
		Source:        models.SourceOpenWeather,
	}, nil
}

// Forecast folds the 3-hourly forecast list into calendar days (UTC).
func (p *OpenWeatherProvider) Forecast(ctx context.Context, location string, days int) ([]models.ForecastDay, error) {
	params := locationParams(location)
	params.Set("cnt", strconv.Itoa(days*8))

	var data openWeatherForecast
	if err := p.get(ctx, "forecast", params, &data); err != nil {
		return nil, err
	}
	if len(data.List) == 0 {
		return nil, fmt.Errorf("no forecast entries returned from API")
	}

	type accumulator struct {
		min, max, tempSum, humSum, windSum, rain float64
		n                                        int
		description                              string
	}
	byDate := map[string]*accumulator{}
	for _, item := range data.List {
		date := time.Unix(item.Dt, 0).UTC().Format(time.DateOnly)
		acc, ok := byDate[date]
		if !ok {
			acc = &accumulator{min: math.Inf(1), max: math.Inf(-1)}
			byDate[date] = acc
		}
		acc.min = math.Min(acc.min, item.Main.TempMin)
		acc.max = math.Max(acc.max, item.Main.TempMax)
		acc.tempSum += item.Main.Temp
		acc.humSum += item.Main.Humidity
		acc.windSum += item.Wind.Speed
		acc.rain += item.Rain.ThreeHour
		acc.n++
		if acc.description == "" && len(item.Weather) > 0 {
			acc.description = item.Weather[0].Description
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	result := make([]models.ForecastDay, 0, len(dates))
	for _, date := range dates {
		acc := byDate[date]
		n := float64(acc.n)
		result = append(result, models.ForecastDay{
			Date:          date,
			TempMin:       round(acc.min, 1),
			TempMax:       round(acc.max, 1),
			TempAvg:       round(acc.tempSum/n, 1),
			Humidity:      round(acc.humSum/n, 1),
			Precipitation: round(acc.rain, 1),
			WindSpeed:     round(acc.windSum/n, 1),
			Description:   acc.description,
		})
	}
	return result, nil
}

var syntheticDescriptions = []string{"clear sky", "few clouds", "scattered clouds", "overcast clouds", "light rain", "moderate rain"}

// SyntheticDataSource produces bounded random weather. It is the explicit
// stand-in when no provider key is configured or the provider fails.
type SyntheticDataSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSyntheticDataSource uses rng when given, otherwise a time seeded source.
func NewSyntheticDataSource(rng *rand.Rand, now func() time.Time) *SyntheticDataSource {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if now == nil {
		now = time.Now
	}
	return &SyntheticDataSource{rng: rng, now: now}
}

func (s *SyntheticDataSource) Name() models.DataSource { return models.SourceSynthetic }

func (s *SyntheticDataSource) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *SyntheticDataSource) CurrentWeather(_ context.Context, location string) (*models.WeatherObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp := round(s.between(20, 35), 1)
	humidity := math.Round(s.between(40, 90))
	obs := &models.WeatherObservation{
		Location:      location,
		Temperature:   temp,
		TempMin:       round(temp-s.between(2, 6), 1),
		TempMax:       round(temp+s.between(1, 4), 1),
		FeelsLike:     HeatIndex(temp, humidity),
		Humidity:      humidity,
		Pressure:      math.Round(s.between(1000, 1025)),
		WindSpeed:     round(s.between(0, 15), 1),
		WindDirection: math.Round(s.between(0, 360)),
		Cloudiness:    math.Round(s.between(0, 100)),
		Description:   syntheticDescriptions[s.rng.IntN(len(syntheticDescriptions))],
		Timestamp:     s.now().UTC(),
		Source:        models.SourceSynthetic,
	}
	if params := locationParams(location); params.Has("lat") {
		obs.Coordinates.Lat, _ = strconv.ParseFloat(params.Get("lat"), 64)
		obs.Coordinates.Lon, _ = strconv.ParseFloat(params.Get("lon"), 64)
	}
	return obs, nil
}

func (s *SyntheticDataSource) Forecast(_ context.Context, _ string, days int) ([]models.ForecastDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now().UTC()
	result := make([]models.ForecastDay, 0, days)
	for i := 0; i < days; i++ {
		tempMin := round(s.between(18, 26), 1)
		tempMax := round(tempMin+s.between(4, 9), 1)
		precipitation := 0.0
		if s.rng.Float64() < 0.4 {
			precipitation = round(s.between(0, 10), 1)
		}
		result = append(result, models.ForecastDay{
			Date:          start.AddDate(0, 0, i).Format(time.DateOnly),
			TempMin:       tempMin,
			TempMax:       tempMax,
			TempAvg:       round((tempMin+tempMax)/2, 1),
			Humidity:      math.Round(s.between(40, 90)),
			Precipitation: precipitation,
			WindSpeed:     round(s.between(0, 15), 1),
			Description:   syntheticDescriptions[s.rng.IntN(len(syntheticDescriptions))],
		})
	}
	return result, nil
}

// selectWeatherProvider picks the configured provider. A missing API key
// forces the synthetic source.
func selectWeatherProvider(cfg config.WeatherConfig, synthetic *SyntheticDataSource) WeatherProvider {
	if strings.EqualFold(cfg.Provider, string(models.SourceOpenWeather)) && cfg.APIKey != "" {
		return NewOpenWeatherProvider(cfg)
	}
	if cfg.Provider != string(models.SourceSynthetic) {
		slog.Warn("Weather provider unavailable, using synthetic data", "provider", cfg.Provider, "api_key_set", cfg.APIKey != "")
	}
	return synthetic
}
