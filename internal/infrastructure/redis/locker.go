package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/domain"
)

var _ inventory.KeyLocker = (*KeyLocker)(nil)

const lockPrefix = "kardex:lock:"

// LockerConfig TTL del bloqueo y presupuesto de espera para obtenerlo.
type LockerConfig struct {
	TTL     time.Duration // vida máxima del bloqueo si el proceso muere
	Wait    time.Duration // tiempo total de espera antes de reportar conflicto
	Backoff time.Duration // espera entre intentos
}

// KeyLocker bloqueo distribuido sobre redislock. Serializa el registro de movimientos
// de la misma pareja (bodega, producto) entre varias instancias de la API.
type KeyLocker struct {
	client *redislock.Client
	cfg    LockerConfig
	log    zerolog.Logger
}

// NewKeyLocker construye el locker. Valores en cero toman TTL 5s, espera 2s y backoff 25ms.
func NewKeyLocker(rdb *goredis.Client, cfg LockerConfig, log zerolog.Logger) *KeyLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 25 * time.Millisecond
	}
	return &KeyLocker{client: redislock.New(rdb), cfg: cfg, log: log}
}

// Lock obtiene las claves en el orden recibido. Si alguna falla libera las ya obtenidas.
func (l *KeyLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	retries := int(l.cfg.Wait / l.cfg.Backoff)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.Backoff), retries),
	}

	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.log.Warn().Err(err).Str("key", held[i].Key()).Msg("liberar bloqueo redis")
			}
		}
	}

	for _, key := range keys {
		lock, err := l.client.Obtain(ctx, lockPrefix+key, l.cfg.TTL, opts)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("redis: bloqueo %s: %w", key, domain.ErrConcurrencyConflict)
			}
			return nil, fmt.Errorf("redis: obtener bloqueo %s: %w", key, err)
		}
		held = append(held, lock)
	}
	return release, nil
}
