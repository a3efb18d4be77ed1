package scheduler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"orglogo-scraper/db"
	"orglogo-scraper/logo"
	"orglogo-scraper/models"
)

// Store is the request queue and organization storage
type Store interface {
	ClaimNextRequest() (*db.Request, error)
	FinishRequest(requestID int, status, logo, errMsg string) error
	SaveOrganization(org models.Organization) error
}

// Sender delivers Telegram messages; *tgbotapi.BotAPI implements it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Resolver finds the logo of a website
type Resolver interface {
	Resolve(ctx context.Context, website string) (*logo.Candidate, error)
}

// SheetAppender exports resolved organizations
type SheetAppender interface {
	AppendOrganizations(ctx context.Context, orgs []models.Organization) error
}

// Scheduler processes logo requests queued in the database
type Scheduler struct {
	store    Store
	bot      Sender
	resolver Resolver
	writer   SheetAppender
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler. writer may be nil.
func NewScheduler(store Store, bot Sender, resolver Resolver, writer SheetAppender, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		store:    store,
		bot:      bot,
		resolver: resolver,
		writer:   writer,
		interval: interval,
	}
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop stops the scheduler and waits for the current request to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain the queue before waiting for the next tick
			for ctx.Err() == nil && s.processNextRequest(ctx) {
			}
		}
	}
}

// processNextRequest handles one queued request. Returns false when the
// queue is empty or unreachable.
func (s *Scheduler) processNextRequest(ctx context.Context) bool {
	req, err := s.store.ClaimNextRequest()
	if err != nil {
		log.Error().Err(err).Msg("error getting next request")
		return false
	}
	if req == nil {
		return false
	}

	logger := log.With().Int("request", req.ID).Int64("user", req.UserID).Str("website", req.Website).Logger()
	logger.Info().Msg("processing request")

	candidate, err := s.resolver.Resolve(ctx, req.Website)
	if errors.Is(err, context.Canceled) {
		// shutting down: put the request back in the queue for the next run
		logger.Info().Msg("resolution interrupted, requeueing request")
		if updateErr := s.store.FinishRequest(req.ID, db.StatusCreated, "", ""); updateErr != nil {
			logger.Error().Err(updateErr).Msg("error requeueing request")
		}
		return false
	}
	if err != nil {
		logger.Error().Err(err).Msg("resolution failed")
		if updateErr := s.store.FinishRequest(req.ID, db.StatusFailed, "", err.Error()); updateErr != nil {
			logger.Error().Err(updateErr).Msg("error updating request status to failed")
		}
		s.sendText(req, fmt.Sprintf("❌ Error processing request: %v", err))
		return true
	}

	org := models.Organization{
		Website:    req.Website,
		ResolvedAt: time.Now().UTC(),
	}
	if candidate != nil {
		org.Logo = candidate.URL
		org.Confidence = candidate.Confidence
		org.Strategy = candidate.Strategy
	}

	if err := s.store.SaveOrganization(org); err != nil {
		logger.Warn().Err(err).Msg("failed to save organization")
	}
	if err := s.store.FinishRequest(req.ID, db.StatusDone, org.Logo, ""); err != nil {
		logger.Error().Err(err).Msg("error updating request status to done")
	}
	if s.writer != nil && org.HasLogo() {
		if err := s.writer.AppendOrganizations(ctx, []models.Organization{org}); err != nil {
			logger.Warn().Err(err).Msg("failed to write to Google Sheets")
		}
	}

	s.reply(req, org)
	return true
}

func (s *Scheduler) reply(req *db.Request, org models.Organization) {
	caption := fmt.Sprintf("✅ Logo for %s\nStrategy: %s, confidence %.2f", req.Website, org.Strategy, org.Confidence)
	SendLogo(s.bot, req.UserID, req.TelegramMessageID, req.Website, caption, org)
}

// sendText sends a status message to Telegram
func (s *Scheduler) sendText(req *db.Request, text string) {
	sendText(s.bot, req.UserID, req.TelegramMessageID, text)
}

// SendLogo sends the logo itself when Telegram can display it, and a text
// message otherwise. Inline data URIs go out as a document.
func SendLogo(bot Sender, chatID int64, replyTo int, website, caption string, org models.Organization) {
	if !org.HasLogo() {
		sendText(bot, chatID, replyTo, fmt.Sprintf("🔍 No logo found for %s", website))
		return
	}

	if name, data, ok := decodeDataURI(org.Logo); ok {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
		doc.Caption = caption
		doc.ReplyToMessageID = replyTo
		if _, err := bot.Send(doc); err == nil {
			return
		}
		sendText(bot, chatID, replyTo, caption+"\n(inline image could not be sent)")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(org.Logo))
	photo.Caption = caption
	photo.ReplyToMessageID = replyTo
	if _, err := bot.Send(photo); err != nil {
		// SVG and ICO files are rejected as photos
		log.Debug().Err(err).Str("logo", org.Logo).Msg("photo rejected, sending link")
		sendText(bot, chatID, replyTo, caption+"\n"+org.Logo)
	}
}

func sendText(bot Sender, chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	if _, err := bot.Send(msg); err != nil {
		log.Error().Err(err).Msg("error sending status update")
	}
}

var dataExtensions = map[string]string{
	"image/svg+xml": "svg",
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/x-icon":  "ico",
}

// decodeDataURI unpacks a base64 data URI into a file name and its bytes
func decodeDataURI(uri string) (string, []byte, bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}

	ext, ok := dataExtensions[strings.TrimSuffix(meta, ";base64")]
	if !ok {
		ext = "bin"
	}
	return "logo." + ext, data, true
}
