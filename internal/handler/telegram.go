package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/internal/service/srs"
	"github.com/romanzh1/quizzr-srs/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultReminderInterval = time.Hour
	telegramForecastDays    = 7

	callbackDeck  = "deck"
	callbackShow  = "show"
	callbackRate  = "rate"
	callbackSkip  = "skip_all"
	callbackSplit = "_"
)

type TelegramHandler struct {
	api              *tgbotapi.BotAPI
	service          models.Service
	reminderInterval time.Duration

	// chat id -> last reminder time, owned by the reminder goroutine
	lastReminder map[int64]time.Time
}

func NewTelegramHandler(token string, service models.Service, reminderInterval time.Duration) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	if reminderInterval <= 0 {
		reminderInterval = defaultReminderInterval
	}

	return &TelegramHandler{
		api:              api,
		service:          service,
		reminderInterval: reminderInterval,
		lastReminder:     make(map[int64]time.Time),
	}, nil
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		h.handleStart(ctx, update)
	case "stop":
		h.handleStop(ctx, update)
	case "due":
		h.handleDue(ctx, update)
	case "forecast":
		h.handleForecast(ctx, update)
	case "decks":
		h.handleDecks(ctx, update)
	case "review":
		h.handleReview(ctx, update)
	case "help":
		h.handleHelp(update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Неизвестная команда. Используй /help")
	}
}

// Start polls updates until ctx is cancelled and returns once the reminder
// loop has exited too.
func (h *TelegramHandler) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.api.GetUpdatesChan(u)

	zap.L().Info("bot started", zap.String("username", h.api.Self.UserName))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReminderScheduler(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			zap.L().Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}

			h.handleUpdate(ctx, update)
		}
	}
}

func (h *TelegramHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if update.Message.From == nil {
			zap.L().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	case update.Message != nil:
		h.sendMessage(update.Message.Chat.ID, "Я понимаю только команды. Используй /help")
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil {
			zap.L().Warn("received callback without user or message")
			return
		}
		h.handleCallback(ctx, update)
	}
}

func (h *TelegramHandler) handleStart(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if err := h.service.SubscribeReminders(ctx, userID, chatID); err != nil {
		zap.L().Error("subscribe reminders", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, "Произошла ошибка. Попробуй позже.")
		return
	}

	text := `Привет! 👋

Я помогу повторять карточки по системе интервальных повторений (SM-2).
Буду напоминать, когда карточки готовы к повторению.

Используй /decks, чтобы выбрать колоду.`

	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleStop(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID

	if err := h.service.UnsubscribeReminders(ctx, userID); err != nil {
		zap.L().Error("unsubscribe reminders", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(update.Message.Chat.ID, "Произошла ошибка. Попробуй позже.")
		return
	}

	h.sendMessage(update.Message.Chat.ID, "Напоминания отключены. Включить снова: /start")
}

func (h *TelegramHandler) handleDue(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID

	counts, err := h.service.CountDue(ctx, userID)
	if err != nil {
		zap.L().Error("count due", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(update.Message.Chat.ID, "Не удалось посчитать карточки. Попробуй позже.")
		return
	}

	text := fmt.Sprintf("📚 Сейчас к повторению: <b>%d</b>\nВ ближайшие 24 часа: <b>%d</b>", counts.DueNow, counts.Upcoming24h)
	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleForecast(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID

	forecast, err := h.service.Forecast(ctx, userID, telegramForecastDays)
	if err != nil {
		zap.L().Error("forecast", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(update.Message.Chat.ID, "Не удалось построить прогноз. Попробуй позже.")
		return
	}

	h.sendMessage(update.Message.Chat.ID, formatForecast(forecast))
}

func (h *TelegramHandler) handleDecks(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	decks, err := h.service.ListDecks(ctx, userID)
	if err != nil {
		zap.L().Error("list decks", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, "Не удалось получить колоды. Попробуй позже.")
		return
	}

	if len(decks) == 0 {
		h.sendMessage(chatID, "У тебя пока нет колод.")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(decks))
	for _, deck := range decks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(deck.Name, callbackData(callbackDeck, deck.ID)),
		))
	}

	h.sendMessageWithKeyboard(chatID, "Выбери колоду:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *TelegramHandler) handleReview(ctx context.Context, update tgbotapi.Update) {
	deckID, err := strconv.ParseInt(strings.TrimSpace(update.Message.CommandArguments()), 10, 64)
	if err != nil || deckID <= 0 {
		h.sendMessage(update.Message.Chat.ID, "Укажи номер колоды: /review 3\nСписок колод: /decks")
		return
	}

	h.sendNextCard(ctx, update.Message.From.ID, update.Message.Chat.ID, deckID)
}

func (h *TelegramHandler) handleHelp(update tgbotapi.Update) {
	text := `📖 Команды:

/start - включить напоминания
/stop - отключить напоминания
/decks - выбрать колоду
/review &lt;колода&gt; - повторять карточки колоды
/due - сколько карточек ждут повторения
/forecast - прогноз повторений на неделю
/help - эта справка`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleCallback(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	action, ids, err := parseCallback(callback.Data)
	switch {
	case err != nil:
		zap.L().Warn("unknown callback data", zap.String("data", callback.Data), zap.Int64("user_id", userID))
		h.sendMessage(chatID, "Неизвестная команда. Используй /help для списка доступных команд.")
	case action == callbackSkip:
		h.sendMessage(chatID, "Хорошо, продолжим позже. 👋")
	case action == callbackDeck:
		h.sendNextCard(ctx, userID, chatID, ids[0])
	case action == callbackShow:
		h.handleShowAnswer(ctx, userID, chatID, ids[0], ids[1])
	default:
		h.handleRate(ctx, userID, chatID, strings.TrimPrefix(action, callbackRate+callbackSplit), ids[0], ids[1])
	}

	callbackConfig := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(callbackConfig); err != nil {
		zap.L().Error("send callback answer", zap.Error(err), zap.String("callback_id", callback.ID))
	}
}

// sendNextCard shows the front of the first card of the deck's study session.
func (h *TelegramHandler) sendNextCard(ctx context.Context, userID, chatID, deckID int64) {
	session, err := h.service.GetStudySession(ctx, userID, deckID, 1, 1)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.sendMessage(chatID, "Колода не найдена. Список колод: /decks")
			return
		}
		zap.L().Error("get study session", zap.Error(err), zap.Int64("telegram_id", userID), zap.Int64("deck_id", deckID))
		h.sendMessage(chatID, "Не удалось получить карточки. Попробуй позже.")
		return
	}

	if len(session.Cards) == 0 {
		h.sendMessage(chatID, "🎉 Все карточки колоды повторены. Возвращайся позже!")
		return
	}

	card := session.Cards[0]
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Показать ответ", callbackData(callbackShow, deckID, card.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Закончить", callbackSkip),
		),
	)

	h.sendMessageWithKeyboard(chatID, fmt.Sprintf("❓ <b>%s</b>", escapeHTML(card.Front)), keyboard)
}

func (h *TelegramHandler) handleShowAnswer(ctx context.Context, userID, chatID, deckID, cardID int64) {
	card, err := h.service.GetCard(ctx, userID, deckID, cardID)
	if err != nil {
		zap.L().Error("get card", zap.Error(err), zap.Int64("telegram_id", userID), zap.Int64("card_id", cardID))
		h.sendMessage(chatID, "Карточка не найдена.")
		return
	}

	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(Ratings))
	for _, rating := range Ratings {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
			ratingLabels[rating],
			callbackData(callbackRate+callbackSplit+string(rating), deckID, cardID),
		))
	}

	text := fmt.Sprintf("❓ <b>%s</b>\n\n💡 %s\n\nНасколько легко вспомнил?", escapeHTML(card.Front), escapeHTML(card.Back))
	h.sendMessageWithKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(buttons))
}

func (h *TelegramHandler) handleRate(ctx context.Context, userID, chatID int64, rating string, deckID, cardID int64) {
	quality, err := QualityFromRating(rating)
	if err != nil {
		zap.L().Warn("unknown rating", zap.String("rating", rating), zap.Int64("telegram_id", userID))
		return
	}

	if _, err = h.service.GetCard(ctx, userID, deckID, cardID); err != nil {
		h.sendMessage(chatID, "Карточка не найдена.")
		return
	}

	schedule, err := h.service.RecordReview(ctx, userID, cardID, quality, nil)
	if err != nil {
		zap.L().Error("record review", zap.Error(err), zap.Int64("telegram_id", userID), zap.Int64("card_id", cardID), zap.Int("quality", quality))
		h.sendMessage(chatID, "Ошибка при сохранении ответа.")
		return
	}

	h.sendMessage(chatID, reviewResultText(Rating(rating), schedule))
	h.sendNextCard(ctx, userID, chatID, deckID)
}

var ratingLabels = map[Rating]string{
	RatingAgain: "🔴 Again",
	RatingHard:  "🟡 Hard",
	RatingGood:  "🟢 Good",
	RatingEasy:  "✅ Easy",
}

var phaseLabels = map[srs.Phase]string{
	srs.PhaseLearning: "📘 Учим",
	srs.PhaseReview:   "🔁 Повторяем",
	srs.PhaseMastered: "🏆 Выучено",
}

func reviewResultText(rating Rating, schedule *models.Schedule) string {
	if rating == RatingAgain {
		return "🔴 Forgot! Повторим завтра."
	}

	days := schedule.IntervalDays
	text := fmt.Sprintf("%s! Следующее повторение через %d %s.", ratingLabels[rating], days, pluralRu(days, "день", "дня", "дней"))
	if label, ok := phaseLabels[srs.PhaseOf(schedule)]; ok {
		text += "\n" + label
	}
	return text
}

func callbackData(action string, ids ...int64) string {
	parts := make([]string, 0, len(ids)+1)
	parts = append(parts, action)
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, callbackSplit)
}

// parseCallback splits callback data built by callbackData into the action
// and its ids, checking the id count each action expects.
func parseCallback(data string) (string, []int64, error) {
	if data == callbackSkip {
		return callbackSkip, nil, nil
	}

	parts := strings.Split(data, callbackSplit)

	var action string
	var want int
	switch {
	case parts[0] == callbackDeck:
		action, want = callbackDeck, 1
	case parts[0] == callbackShow:
		action, want = callbackShow, 2
	case parts[0] == callbackRate && len(parts) > 1:
		if _, err := QualityFromRating(parts[1]); err != nil {
			return "", nil, err
		}
		action, want = callbackRate+callbackSplit+parts[1], 2
		parts = parts[1:]
	default:
		return "", nil, fmt.Errorf("callback %q: %w", data, models.ErrInvalidArgument)
	}

	if len(parts) != want+1 {
		return "", nil, fmt.Errorf("callback %q: %w", data, models.ErrInvalidArgument)
	}

	ids := make([]int64, 0, want)
	for _, p := range parts[1:] {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return "", nil, fmt.Errorf("callback %q: %w", data, models.ErrInvalidArgument)
		}
		ids = append(ids, id)
	}

	return action, ids, nil
}

func formatForecast(forecast []models.ForecastDay) string {
	var b strings.Builder
	b.WriteString("📅 Прогноз повторений:\n")
	for _, day := range forecast {
		fmt.Fprintf(&b, "\n%s: <b>%d</b>", day.Date, day.Count)
	}
	return b.String()
}

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		zap.L().Error("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) sendMessageWithKeyboard(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		zap.L().Error("send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) startReminderScheduler(ctx context.Context) {
	ticker := time.NewTicker(h.reminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.checkAndSendReminders(ctx, now.UTC())
		}
	}
}

// checkAndSendReminders sends each subscribed chat with due cards at most one reminder per day.
func (h *TelegramHandler) checkAndSendReminders(ctx context.Context, now time.Time) {
	subs, err := h.service.ListReminderSubscriptions(ctx)
	if err != nil {
		zap.L().Error("list reminder subscriptions", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if !shouldRemind(h.lastReminder[sub.ChatID], now) {
			continue
		}

		counts, err := h.service.CountDue(ctx, sub.OwnerID)
		if err != nil {
			zap.L().Error("count due for reminder", zap.Error(err), zap.Int64("telegram_id", sub.OwnerID))
			continue
		}

		if counts.DueNow > 0 {
			h.sendMessage(sub.ChatID, formatReminderMessage(counts.DueNow))
			h.lastReminder[sub.ChatID] = now
		}
	}
}

func shouldRemind(last, now time.Time) bool {
	return last.IsZero() || !utils.DatesEqual(last, now)
}

func formatReminderMessage(count int) string {
	return fmt.Sprintf("🔔 У тебя %d %s на повторение.\nИспользуй /decks для начала.", count, pluralRu(count, "карточка", "карточки", "карточек"))
}

func pluralRu(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	default:
		return many
	}
}
