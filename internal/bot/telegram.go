package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gold-rush/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const (
	defaultHistoryRows = 5
	maxHistoryRows     = 20
	queryTimeout       = 5 * time.Second
)

type MetalQuerier interface {
	LatestPerSymbol(ctx context.Context) ([]*domain.PriceSnapshot, error)
	HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error)
}

func StartTelegramBot(query MetalQuerier) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/latest", func(c tele.Context) error {
		return c.Send(withTimeout(func(ctx context.Context) string { return latestMessage(ctx, query) }))
	})
	b.Handle("/price", func(c tele.Context) error {
		return c.Send(withTimeout(func(ctx context.Context) string { return priceMessage(ctx, query, c.Args()) }))
	})
	b.Handle("/history", func(c tele.Context) error {
		return c.Send(withTimeout(func(ctx context.Context) string { return historyMessage(ctx, query, c.Args()) }))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func withTimeout(fn func(ctx context.Context) string) string {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return fn(ctx)
}

func latestMessage(ctx context.Context, query MetalQuerier) string {
	snapshots, err := query.LatestPerSymbol(ctx)
	if err != nil {
		return fmt.Sprintf("Error loading latest prices: %v", err)
	}
	if len(snapshots) == 0 {
		return "No prices stored yet."
	}

	var b strings.Builder
	b.WriteString("Latest spot prices\n")
	for _, s := range snapshots {
		fmt.Fprintf(&b, "%s (%s): %s %s per %s\n", s.DisplayName(), s.Symbol, s.PriceString(), s.QuoteCurrency, s.NominalRaw)
	}
	return strings.TrimRight(b.String(), "\n")
}

func priceMessage(ctx context.Context, query MetalQuerier, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /price XAU\nKnown metals: %s", strings.Join(domain.KnownMetals(), ", "))
	}
	symbol := domain.NormalizeSymbol(args[0])
	if !domain.ValidSymbol(symbol) {
		return fmt.Sprintf("Invalid symbol: %s", args[0])
	}

	snapshots, err := query.HistoryForSymbol(ctx, symbol, 1)
	if err != nil {
		return fmt.Sprintf("Error loading price for %s: %v", symbol, err)
	}
	if len(snapshots) == 0 {
		return fmt.Sprintf("No prices stored for %s", symbol)
	}

	s := snapshots[0]
	return fmt.Sprintf("%s (%s)\nPrice: %s %s per %s\nAs of: %s",
		s.DisplayName(), s.Symbol, s.PriceString(), s.QuoteCurrency, s.NominalRaw,
		s.ProviderTimestampUTC.Format(time.RFC3339))
}

func historyMessage(ctx context.Context, query MetalQuerier, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /history XAU [rows, max %d]", maxHistoryRows)
	}
	symbol := domain.NormalizeSymbol(args[0])
	if !domain.ValidSymbol(symbol) {
		return fmt.Sprintf("Invalid symbol: %s", args[0])
	}
	rows := defaultHistoryRows
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			rows = min(n, maxHistoryRows)
		}
	}

	snapshots, err := query.HistoryForSymbol(ctx, symbol, rows)
	if err != nil {
		return fmt.Sprintf("Error loading history for %s: %v", symbol, err)
	}
	if len(snapshots) == 0 {
		return fmt.Sprintf("No prices stored for %s", symbol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s history (newest first)\n", symbol)
	for _, s := range snapshots {
		fmt.Fprintf(&b, "%s  %s %s\n", s.ProviderTimestampUTC.Format("2006-01-02 15:04"), s.PriceString(), s.QuoteCurrency)
	}
	return strings.TrimRight(b.String(), "\n")
}
