package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orglogo-scraper/config"
	"orglogo-scraper/db"
	"orglogo-scraper/filter"
	"orglogo-scraper/logo"
	"orglogo-scraper/models"
	"orglogo-scraper/scheduler"
)

// cacheTTL is how long a stored logo answers a request without a new resolution
const cacheTTL = 7 * 24 * time.Hour

const helpText = "Commands:\n/start - Start the bot\n/help - Show this help\n\n" +
	"Send me an organization website (for example https://example.org) and I will look for its logo."

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot that resolves logos on request",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runBot(ctx, cfg)
	},
}

// requestStore is the part of the database the message handler needs
type requestStore interface {
	CreateRequest(userID int64, telegramMessageID int, website string) (*db.Request, error)
	GetOrganization(website string) (*models.Organization, error)
}

type botHandler struct {
	bot            scheduler.Sender
	store          requestStore
	filter         *filter.Filter
	allowed        map[int64]bool
	spreadsheetURL string
}

func runBot(ctx context.Context, cfg *config.Config) error {
	botToken := os.Getenv(cfg.Telegram.TokenEnv)
	if botToken == "" {
		return fmt.Errorf("%s environment variable is not set", cfg.Telegram.TokenEnv)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	log.Info().Str("account", bot.Self.UserName).Msg("authorized on Telegram")

	database, err := db.NewDB(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info().Msg("database initialized")

	resolver, cleanup, err := newResolver(cfg.Resolver)
	if err != nil {
		return err
	}
	defer cleanup()

	var appender scheduler.SheetAppender
	if cfg.Sheets.SpreadsheetURL != "" {
		writer, err := newSheetWriter(ctx, cfg.Sheets)
		if err != nil {
			log.Warn().Err(err).Msg("Google Sheets export disabled")
		} else {
			appender = writer
		}
	}

	sched := scheduler.NewScheduler(database, bot, resolver, appender, cfg.Telegram.PollInterval)
	sched.Start(ctx)
	defer sched.Stop()
	log.Info().Dur("interval", cfg.Telegram.PollInterval).Msg("scheduler started")

	if cfg.Telegram.AdminID != 0 {
		if _, err := bot.Send(tgbotapi.NewMessage(cfg.Telegram.AdminID, "🚀 Service started successfully!")); err != nil {
			log.Warn().Err(err).Int64("admin", cfg.Telegram.AdminID).Msg("failed to send startup notification")
		}
	}

	h := newBotHandler(bot, database, filter.NewFilter(&cfg.Filter), cfg.Telegram.AllowedUsers, cfg.Sheets.SpreadsheetURL)

	// start from the latest update to skip old ones
	updateConfig := tgbotapi.NewUpdate(-1)
	updateConfig.Timeout = 60
	updates := bot.GetUpdatesChan(updateConfig)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down bot")
			return nil
		case update := <-updates:
			if update.Message != nil {
				h.handleMessage(update.Message)
			}
		}
	}
}

func newBotHandler(bot scheduler.Sender, store requestStore, f *filter.Filter, allowedUsers []int64, spreadsheetURL string) *botHandler {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &botHandler{
		bot:            bot,
		store:          store,
		filter:         f,
		allowed:        allowed,
		spreadsheetURL: spreadsheetURL,
	}
}

func (h *botHandler) send(chatID int64, text string) (tgbotapi.Message, error) {
	msg, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("error sending message")
	}
	return msg, err
}

func (h *botHandler) handleMessage(m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	userID := m.From.ID
	chatID := m.Chat.ID

	if !h.allowed[userID] {
		log.Warn().Int64("user", userID).Msg("unauthorized user attempted to use bot")
		h.send(chatID, "Sorry, you are not authorized to use this bot.")
		return
	}

	if m.IsCommand() {
		switch m.Command() {
		case "start":
			h.send(chatID, "Welcome! Send me an organization website and I will find its logo.")
			if h.spreadsheetURL != "" {
				sent, err := h.send(chatID, fmt.Sprintf("📊 Spreadsheet: %s", h.spreadsheetURL))
				if err == nil {
					h.bot.Send(tgbotapi.PinChatMessageConfig{ChatID: chatID, MessageID: sent.MessageID})
				}
			}
		case "help":
			h.send(chatID, helpText)
		default:
			h.send(chatID, "Unknown command. Use /help for available commands.")
		}
		return
	}

	website := strings.TrimSpace(m.Text)
	if website == "" {
		h.send(chatID, "Please send me an organization website.")
		return
	}
	website = logo.EnsureScheme(website)
	if !h.filter.IsOrganizationWebsite(website) {
		h.send(chatID, "This looks like a social network, platform or document link. Please send the organization's own website.")
		return
	}

	if org, err := h.store.GetOrganization(website); err != nil {
		log.Warn().Err(err).Str("website", website).Msg("failed to read cached organization")
	} else if org != nil && org.HasLogo() && time.Since(org.ResolvedAt) < cacheTTL {
		caption := fmt.Sprintf("✅ Logo for %s (cached)\nStrategy: %s, confidence %.2f", website, org.Strategy, org.Confidence)
		scheduler.SendLogo(h.bot, chatID, m.MessageID, website, caption, *org)
		return
	}

	sent, err := h.send(chatID, "📝 Request received! Your request has been queued and will be processed shortly.")
	if err != nil {
		return
	}

	req, err := h.store.CreateRequest(userID, sent.MessageID, website)
	if err != nil {
		log.Error().Err(err).Msg("error creating request")
		h.bot.Send(tgbotapi.NewEditMessageText(chatID, sent.MessageID, fmt.Sprintf("❌ Error: Failed to create request: %v", err)))
		return
	}
	log.Info().Int("request", req.ID).Int64("user", userID).Str("website", website).Msg("created request")
}
