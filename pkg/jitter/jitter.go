// Package jitter — задержки между повторами со случайной добавкой, чтобы повторы
// разных клиентов не совпадали по времени.
package jitter

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultFactor — добавка до 50% от базовой задержки.
const DefaultFactor = 0.5

// Duration возвращает d, увеличенную на случайную долю в [0, factor).
func Duration(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}

// Backoff — экспоненциальная задержка: Base, 2*Base, 4*Base... но не больше Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Exponential создаёт Backoff с DefaultFactor.
func Exponential(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, Factor: DefaultFactor}
}

// Step возвращает задержку без случайной добавки. attempt считается с нуля.
func (b Backoff) Step(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Delay — Step с добавкой.
func (b Backoff) Delay(attempt int) time.Duration {
	return Duration(b.Step(attempt), b.Factor)
}

// Sleep ждёт d или отмены контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
