// Package clock абстрагирует получение текущего времени, чтобы расчеты
// длительности таймеров можно было проверять детерминированно.
package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real возвращает системные часы
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

// FakeClock детерминированные часы для тестов. Время стоит на месте,
// пока не вызван Advance или Set. Безопасен для конкурентного использования.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake создает FakeClock с заданным начальным временем
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now возвращает текущее фиктивное время
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance сдвигает время вперед на d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set устанавливает текущее время
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
