// internal/tgbot/bot.go
package tgbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/monitor"
	"github.com/solwatch/dlmm-sentinel/internal/notify"
	"github.com/solwatch/dlmm-sentinel/internal/pools"
	"github.com/solwatch/dlmm-sentinel/internal/storage"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
	"go.uber.org/zap"
)

const (
	pollTimeoutSec = 30
	pollRetryDelay = 5 * time.Second
)

// step is the position of a chat in the /track dialogue.
type step int

const (
	stepNone step = iota
	stepAwaitingPool
	stepAwaitingWallet
)

type chatState struct {
	step   step
	market string
	// listed snapshots the pool list shown to the user, so numeric choices
	// resolve against what they actually saw.
	listed []pools.Entry
}

// Bot runs the Telegram command loop: /track registers a wallet's positions
// in a pool, /pools shows the curated pool list.
type Bot struct {
	tg         *notify.Telegram
	store      storage.Storage
	chain      monitor.ChainReader
	reconciler *monitor.Reconciler
	registry   *pools.Registry
	logger     *zap.Logger

	mu     sync.Mutex
	states map[int64]*chatState
}

func New(tg *notify.Telegram, store storage.Storage, chain monitor.ChainReader, reconciler *monitor.Reconciler, registry *pools.Registry, logger *zap.Logger) *Bot {
	return &Bot{
		tg:         tg,
		store:      store,
		chain:      chain,
		reconciler: reconciler,
		registry:   registry,
		logger:     logger.Named("tgbot"),
		states:     make(map[int64]*chatState),
	}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Command bot started")
	var offset int64

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Command bot stopped")
			return ctx.Err()
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("Command bot stopped")
				return ctx.Err()
			}
			b.logger.Warn("Failed to poll updates", zap.Error(err))
			time.Sleep(pollRetryDelay)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *notify.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		b.clearState(chatID)
		b.reply(ctx, chatID,
			"👋 I watch your DLMM liquidity positions and alert you when they leave range, change value by 10% or run into impermanent loss.\n\n"+
				"/track — start tracking a wallet's positions in a pool\n"+
				"/pools — list popular pools\n"+
				"/cancel — abort the current dialogue")

	case text == "/pools":
		b.reply(ctx, chatID, b.renderPools(ctx))

	case text == "/cancel":
		b.clearState(chatID)
		b.reply(ctx, chatID, "Cancelled.")

	case text == "/track":
		listed := b.registry.List(ctx)
		b.setState(chatID, &chatState{step: stepAwaitingPool, listed: listed})
		b.reply(ctx, chatID, b.renderPools(ctx)+"\n\nSend a pool number or paste a pair address.")

	default:
		b.continueDialogue(ctx, msg, text)
	}
}

func (b *Bot) continueDialogue(ctx context.Context, msg *notify.Message, text string) {
	chatID := msg.Chat.ID
	state := b.getState(chatID)
	if state == nil {
		b.reply(ctx, chatID, "Unknown command. Try /track or /pools.")
		return
	}

	switch state.step {
	case stepAwaitingPool:
		market, ok := b.registry.Lookup(text, state.listed)
		if !ok {
			b.reply(ctx, chatID, "That doesn't look like a pool number or a valid pair address. Try again or /cancel.")
			return
		}
		state.market = market
		state.step = stepAwaitingWallet
		b.reply(ctx, chatID, "Now send the wallet address that holds the positions.")

	case stepAwaitingWallet:
		wallet, err := solana.PublicKeyFromBase58(text)
		if err != nil {
			b.reply(ctx, chatID, "That's not a valid Solana address. Try again or /cancel.")
			return
		}
		b.clearState(chatID)
		b.startTracking(ctx, msg, state.market, wallet)
	}
}

// startTracking registers the user and snapshots their current on-chain
// positions in the chosen market.
func (b *Bot) startTracking(ctx context.Context, msg *notify.Message, market string, wallet solana.PublicKey) {
	chatID := msg.Chat.ID

	err := b.store.UpsertUser(ctx, &models.User{
		TelegramID: msg.From.ID,
		ChatID:     chatID,
		PublicKey:  wallet.String(),
	})
	if err != nil {
		b.logger.Error("Failed to upsert user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		b.reply(ctx, chatID, "Something went wrong saving your subscription. Please try again.")
		return
	}
	user, err := b.store.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("Failed to load user after upsert", zap.Error(err))
		b.reply(ctx, chatID, "Something went wrong saving your subscription. Please try again.")
		return
	}

	marketKey, err := solana.PublicKeyFromBase58(market)
	if err != nil {
		b.reply(ctx, chatID, "That pair address is malformed.")
		return
	}

	chainPositions, err := b.chain.GetUserPositions(ctx, wallet, marketKey)
	if err != nil {
		b.logger.Warn("Failed to scan wallet positions", zap.Error(err))
		b.reply(ctx, chatID, "Couldn't read the chain right now. Please try /track again in a minute.")
		return
	}
	if len(chainPositions) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf(
			"No positions found for <code>%s</code> in that pool. Open a position first, then /track again.",
			wallet.String()))
		return
	}

	meta, err := b.chain.GetPoolMetadata(ctx, marketKey)
	if err != nil {
		b.logger.Warn("Failed to fetch pool metadata", zap.Error(err))
		b.reply(ctx, chatID, "Couldn't read the pool's token metadata. Please try /track again in a minute.")
		return
	}

	created, err := b.reconciler.Reconcile(ctx, user.ID, market, chainPositions, meta)
	if err != nil {
		b.logger.Error("Failed to register positions", zap.Error(err))
		b.reply(ctx, chatID, "Something went wrong registering the positions. Please try again.")
		return
	}

	total := len(chainPositions)
	if len(created) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Already tracking all %d position(s) in that pool. ✅", total))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf(
		"Now tracking %d position(s) in that pool (%d newly added). You'll hear from me when something moves. ✅",
		total, len(created)))
}

func (b *Bot) renderPools(ctx context.Context) string {
	entries := b.registry.List(ctx)

	var sb strings.Builder
	sb.WriteString("🏊 <b>Popular pools</b>\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. <b>%s</b> <code>%s</code>", i+1, e.Name, e.Address)
		if e.Live {
			fmt.Fprintf(&sb, " (bin step %d, active bin %d)", e.BinStep, e.ActiveBin)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.tg.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) getState(chatID int64) *chatState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[chatID]
}

func (b *Bot) setState(chatID int64, state *chatState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[chatID] = state
}

func (b *Bot) clearState(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, chatID)
}
