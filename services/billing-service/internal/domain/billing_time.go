package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerTenthHour = 360

var tenthHour = decimal.New(1, -1)

// RoundUpToTenthHour переводит секунды в часы с округлением вверх до 0.1 часа.
// 0 секунд дает 0.0, любая положительная длительность не меньше 0.1.
func RoundUpToTenthHour(seconds int64) decimal.Decimal {
	if seconds <= 0 {
		return decimal.New(0, -1)
	}
	tenths := (seconds + secondsPerTenthHour - 1) / secondsPerTenthHour
	return decimal.New(tenths, -1)
}

// IsTenthHourAligned проверяет кратность 0.1 часа
func IsTenthHourAligned(hours decimal.Decimal) bool {
	return hours.Mod(tenthHour).IsZero()
}

// RoundMoney округляет сумму до центов (половина вверх)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DateIn возвращает календарную дату момента t в зоне loc (полночь UTC)
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend проверяет субботу или воскресенье
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
