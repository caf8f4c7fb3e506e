// Package database connects the backing services at startup with a fixed
// interval retry policy.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRetries = 5
	DefaultDelay   = 5 * time.Second
)

var ErrRetriesExhausted = errors.New("exhausted all retries")

// Target 一個需要在啟動時連線的服務
type Target struct {
	Name    string
	Connect func(ctx context.Context) error
}

// Connector 固定間隔重試，沒有 jitter 也沒有指數退避
type Connector struct {
	Retries int
	Delay   time.Duration
	Logger  zerolog.Logger
	// Sleep 與 Exit 可在測試中替換
	Sleep func(ctx context.Context, d time.Duration) error
	Exit  func(code int)
}

func NewConnector(retries int, delay time.Duration, logger zerolog.Logger) *Connector {
	if retries < 1 {
		retries = DefaultRetries
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Connector{
		Retries: retries,
		Delay:   delay,
		Logger:  logger,
		Sleep:   sleepContext,
		Exit:    os.Exit,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 連線直到成功或重試次數用盡
func (c *Connector) Run(ctx context.Context, target Target) error {
	log := c.Logger.With().Str("target", target.Name).Logger()
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	retries := c.Retries
	for retries > 0 {
		log.Info().Msg("connecting")
		err := target.Connect(ctx)
		if err == nil {
			log.Info().Msg("connected")
			return nil
		}

		retries--
		log.Error().Err(err).Int("retries_left", retries).Msg("connection failed")
		if retries == 0 {
			break
		}

		log.Info().Dur("delay", c.Delay).Msgf("retrying in %s", c.Delay)
		if err := sleep(ctx, c.Delay); err != nil {
			return fmt.Errorf("%s: %w", target.Name, err)
		}
	}

	log.Error().Msg("exhausted all retries")
	return fmt.Errorf("%s: %w", target.Name, ErrRetriesExhausted)
}

// MustConnect 同時連線所有服務，任一失敗即以 exit code 1 結束程式
func (c *Connector) MustConnect(ctx context.Context, targets ...Target) {
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			return c.Run(gctx, target)
		})
	}

	if err := g.Wait(); err != nil {
		c.Logger.Error().Err(err).Msg("startup connection failed, exiting")
		exit := c.Exit
		if exit == nil {
			exit = os.Exit
		}
		exit(1)
	}
}
