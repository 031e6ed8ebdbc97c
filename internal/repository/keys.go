package repository

import (
	"fmt"
	"time"

	"farm-advisory/shared/utils"
)

const (
	SensorRetention      = 30 * 24 * time.Hour
	NotificationListCap  = 100
	subscriberIndexKey   = "notification:subscribers"
	dailyAggregateLayout = time.DateOnly
)

func WeatherCurrentKey(location string) string {
	return "weather:current:" + utils.NormalizeKeyPart(location)
}

func WeatherForecastKey(location string, days int) string {
	return fmt.Sprintf("weather:forecast:%s:%d", utils.NormalizeKeyPart(location), days)
}

func MarketPricesKey(crop, region string) string {
	if crop == "" {
		crop = "all"
	}
	if region == "" {
		region = "all"
	}
	return fmt.Sprintf("market:prices:%s:%s", utils.NormalizeKeyPart(crop), utils.NormalizeKeyPart(region))
}

func SensorReadingKey(farmID, sensorID string, ts time.Time) string {
	return fmt.Sprintf("sensor:%s:%s:%d", farmID, sensorID, ts.UnixMilli())
}

func SensorLatestKey(farmID, sensorType string) string {
	return fmt.Sprintf("sensor:latest:%s:%s", farmID, sensorType)
}

func SensorDailyKey(farmID, sensorType string, day time.Time) string {
	return fmt.Sprintf("sensor:daily:%s:%s:%s", farmID, sensorType, day.UTC().Format(dailyAggregateLayout))
}

func NotificationListKey(userID string) string {
	return "notification:user:" + userID
}

func SubscriptionKey(userID string) string {
	return "subscription:" + userID
}

func FarmSubscribersKey(farmID string) string {
	return "notification:farm:" + farmID
}

func FarmProfileKey(farmID string) string {
	return "farm:profile:" + farmID
}
