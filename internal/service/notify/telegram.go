package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	phttp "github.com/Altav1sta/stocks-checker/pkg/http"
	"github.com/Altav1sta/stocks-checker/pkg/logger"
)

// TelegramNotifier delivers level signals to every registered chat via the
// Bot API. A 403 from the API means the chat blocked the bot; it is pruned
// from the registry and the delivery counts as done for that chat.
type TelegramNotifier struct {
	apiURL   string
	token    string
	client   *phttp.Client
	registry drepo.ChatRegistry
	metrics  drepo.Metrics
	log      *logger.Logger

	pollWG   sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewTelegramNotifier(
	apiURL, token string,
	registry drepo.ChatRegistry,
	metrics drepo.Metrics,
	log *logger.Logger,
) *TelegramNotifier {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		apiURL:   strings.TrimRight(apiURL, "/"),
		token:    token,
		client:   phttp.NewClient(phttp.WithTimeout(10 * time.Second)),
		registry: registry,
		metrics:  metrics,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Notify formats the signal and sends it to every registered chat. Fails
// with ErrNoRecipients when the registry is empty so callers can retry once
// someone registers.
func (t *TelegramNotifier) Notify(ctx context.Context, sig *models.LevelSignal) error {
	text := fmt.Sprintf("%s is near level %.2f (price %.2f)", sig.Ticker, sig.Level, sig.Price)
	if err := t.Broadcast(ctx, text); err != nil {
		return err
	}
	t.metrics.RecordSignalSent("telegram", sig.Ticker)
	return nil
}

// Broadcast sends a text message to every registered chat.
func (t *TelegramNotifier) Broadcast(ctx context.Context, text string) error {
	chats, err := t.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("telegram list chats: %w", err)
	}
	if len(chats) == 0 {
		return drepo.ErrNoRecipients
	}

	var delivered int
	for _, chat := range chats {
		if err := t.sendMessage(ctx, chat.ID, text); err != nil {
			if isForbidden(err) {
				// the chat blocked the bot; prune it
				_ = t.registry.Remove(ctx, chat.ID)
				t.log.Warn("chat pruned", logger.Int64("chat_id", chat.ID))
				continue
			}
			t.metrics.RecordError("telegram_send")
			t.log.Error("telegram send failed", logger.Int64("chat_id", chat.ID), logger.Error(err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("telegram broadcast: no chat reachable")
	}
	return nil
}

type forbiddenError struct{ chatID int64 }

func (e *forbiddenError) Error() string {
	return fmt.Sprintf("telegram: forbidden for chat %d", e.chatID)
}

func isForbidden(err error) bool {
	_, ok := err.(*forbiddenError)
	return ok
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	resp, err := t.client.SendRequest(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token),
		Body: map[string]interface{}{
			"chat_id": chatID,
			"text":    text,
		},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden {
		return &forbiddenError{chatID: chatID}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}
	return nil
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"chat"`
	} `json:"message"`
}

type tgUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

// StartUpdatesPoller long-polls getUpdates and maintains the chat registry
// from /start and /stop commands.
func (t *TelegramNotifier) StartUpdatesPoller(ctx context.Context) {
	t.pollWG.Add(1)
	go func() {
		defer t.pollWG.Done()
		var offset int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			default:
			}

			var resp tgUpdatesResponse
			err := t.client.SendAndParse(ctx, &phttp.RequestOptions{
				Method: phttp.MethodGet,
				URL:    fmt.Sprintf("%s/bot%s/getUpdates", t.apiURL, t.token),
				QueryParams: map[string][]string{
					"offset":  {fmt.Sprintf("%d", offset)},
					"timeout": {"25"},
				},
			}, &resp)
			if err != nil {
				t.metrics.RecordError("telegram_poll")
				time.Sleep(3 * time.Second)
				continue
			}
			for _, u := range resp.Result {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				if u.Message == nil {
					continue
				}
				t.handleCommand(ctx, u)
			}
		}
	}()
}

func (t *TelegramNotifier) handleCommand(ctx context.Context, u tgUpdate) {
	cmd := strings.TrimSpace(u.Message.Text)
	chatID := u.Message.Chat.ID
	switch {
	case strings.HasPrefix(cmd, "/start"):
		chat := models.Chat{ID: chatID, Username: u.Message.Chat.Username, CreatedAt: time.Now()}
		if err := t.registry.Add(ctx, chat); err != nil {
			t.log.Error("chat register failed", logger.Int64("chat_id", chatID), logger.Error(err))
			return
		}
		_ = t.sendMessage(ctx, chatID, "Subscribed to level signals.")
		t.log.Info("chat registered", logger.Int64("chat_id", chatID))
	case strings.HasPrefix(cmd, "/stop"):
		if err := t.registry.Remove(ctx, chatID); err != nil {
			t.log.Error("chat remove failed", logger.Int64("chat_id", chatID), logger.Error(err))
			return
		}
		_ = t.sendMessage(ctx, chatID, "Unsubscribed.")
		t.log.Info("chat removed", logger.Int64("chat_id", chatID))
	}
}

// StopUpdatesPoller terminates the getUpdates loop.
func (t *TelegramNotifier) StopUpdatesPoller() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.pollWG.Wait()
}
