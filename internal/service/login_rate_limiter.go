package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter cuenta logins fallidos por clave (username o username|IP).
// Allow se consulta antes de verificar la contraseña; solo RecordFailure
// suma intentos y Reset los borra tras un login exitoso. Una clave vacía no
// se limita: la rechaza la verificación de credenciales.
type LoginRateLimiter interface {
	Allow(ctx context.Context, key string) bool
	RecordFailure(ctx context.Context, key string)
	Reset(ctx context.Context, key string)
}

type memoryLoginRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	failures  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginRateLimiter crea un rate limiter en memoria con ventana deslizante.
func NewLoginRateLimiter(window time.Duration, max int) LoginRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryLoginRateLimiter{
		window:   window,
		max:      max,
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *memoryLoginRateLimiter) Allow(_ context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	recent := failuresAfter(l.failures[key], cutoff)
	if len(recent) == 0 {
		delete(l.failures, key)
		return true
	}
	l.failures[key] = recent
	return len(recent) < l.max
}

func (l *memoryLoginRateLimiter) RecordFailure(_ context.Context, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	l.failures[key] = append(failuresAfter(l.failures[key], now.Add(-l.window)), now)
}

func (l *memoryLoginRateLimiter) Reset(_ context.Context, key string) {
	key = strings.TrimSpace(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
}

// sweep borra, como mucho una vez por ventana, las claves sin fallos recientes.
// Así el mapa no crece con cada username inventado por un cliente.
func (l *memoryLoginRateLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, entries := range l.failures {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.failures, key)
		}
	}
}

func failuresAfter(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
