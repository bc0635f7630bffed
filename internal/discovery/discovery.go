// Package discovery turns on-chain creation events into tokens the bot has
// not considered before.
package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

const DefaultBatchSize = 50

// Source supplies creation events and block times. The live gateway and the
// fixture chain both implement it.
type Source interface {
	CreationEvents(ctx context.Context, limit int) []models.CreationEvent
	BlockTime(ctx context.Context, block uint64) (time.Time, error)
}

// CurveReader is consulted for enrichment when enabled.
type CurveReader interface {
	CurveState(ctx context.Context, token string) *models.CurveState
}

// SeenStore persists the seen-set across restarts.
type SeenStore interface {
	LoadSeen(ctx context.Context) ([]string, error)
	MarkSeen(ctx context.Context, addrs ...string) error
}

type Options struct {
	BatchSize int
	// Enrich fills liquidity and market cap from the bonding curve.
	Enrich bool
}

type Discovery struct {
	src   Source
	store SeenStore
	opts  Options
	now   func() time.Time
	log   zerolog.Logger

	mu     sync.Mutex
	seen   map[string]struct{}
	warmed bool
}

func New(src Source, store SeenStore, opts Options) *Discovery {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Discovery{
		src:   src,
		store: store,
		opts:  opts,
		now:   time.Now,
		log:   logging.Component("discovery"),
		seen:  make(map[string]struct{}),
	}
}

// WithClock replaces the clock used when a block time is unavailable.
func (d *Discovery) WithClock(now func() time.Time) *Discovery {
	d.now = now
	return d
}

// Warm loads the persisted seen-set. NewTokens calls it on first use.
func (d *Discovery) Warm(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warmLocked(ctx)
}

func (d *Discovery) warmLocked(ctx context.Context) error {
	if d.store == nil {
		d.warmed = true
		return nil
	}
	addrs, err := d.store.LoadSeen(ctx)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		d.seen[strings.ToLower(a)] = struct{}{}
	}
	d.warmed = true
	d.log.Info().Int("seen", len(d.seen)).Msg("seen-set loaded")
	return nil
}

// SeenCount reports the size of the seen-set.
func (d *Discovery) SeenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// NewTokens returns tokens from the latest creation events that were never
// returned before, newest first. Tokens without a pool are included; callers
// check Tradable before trading.
func (d *Discovery) NewTokens(ctx context.Context) []models.Token {
	lg := logging.Ctx(ctx, d.log)
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.warmed {
		if err := d.warmLocked(ctx); err != nil {
			lg.Warn().Err(err).Msg("seen-set load failed, using in-memory set")
		}
	}

	events := d.src.CreationEvents(ctx, d.opts.BatchSize)

	var (
		tokens []models.Token
		fresh  []string
	)
	for _, ev := range events {
		key := strings.ToLower(ev.Token)
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		fresh = append(fresh, key)

		tok := d.toToken(ctx, ev)
		lg.Info().Str("symbol", tok.Symbol).Str("token", tok.Address).
			Bool("tradable", tok.Tradable()).Msg("new token discovered")
		tokens = append(tokens, tok)
	}

	if len(fresh) > 0 && d.store != nil {
		if err := d.store.MarkSeen(ctx, fresh...); err != nil {
			lg.Warn().Err(err).Int("count", len(fresh)).Msg("persisting seen tokens failed")
		}
	}
	lg.Debug().Int("events", len(events)).Int("new", len(tokens)).Msg("discovery pass complete")
	return tokens
}

func (d *Discovery) toToken(ctx context.Context, ev models.CreationEvent) models.Token {
	tok := models.Token{
		Address:     ev.Token,
		Symbol:      orDefault(ev.Symbol, "UNK"),
		Name:        orDefault(ev.Name, "Unknown"),
		Pool:        normalizePool(ev.Pool),
		Creator:     ev.Creator,
		TokenURI:    ev.TokenURI,
		BlockNumber: ev.BlockNumber,
	}

	ts, err := d.src.BlockTime(ctx, ev.BlockNumber)
	if err != nil {
		d.log.Debug().Err(err).Uint64("block", ev.BlockNumber).Msg("block time unavailable, using now")
		ts = d.now()
	}
	tok.LaunchTimestamp = ts

	if d.opts.Enrich {
		d.enrich(ctx, &tok)
	}
	return tok
}

// enrich approximates liquidity with the real base reserve and market cap
// as twice that. Unknown curve state leaves both unset.
func (d *Discovery) enrich(ctx context.Context, tok *models.Token) {
	cr, ok := d.src.(CurveReader)
	if !ok {
		return
	}
	st := cr.CurveState(ctx, tok.Address)
	if st == nil || st.RealBaseReserve == nil {
		return
	}
	liq := chain.FromWei(st.RealBaseReserve)
	mcap := liq * 2
	tok.Liquidity = &liq
	tok.MarketCap = &mcap
}

// normalizePool maps the zero address to no pool.
func normalizePool(pool string) string {
	if strings.Trim(strings.TrimPrefix(strings.ToLower(pool), "0x"), "0") == "" {
		return ""
	}
	return pool
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
