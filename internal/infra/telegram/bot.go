package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zetalvx/mediagate/internal/domain/enums"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

type CommandUpdate struct {
	ChatID  int64
	UserID  int64
	Command string
	Args    string
}

type TextUpdate struct {
	ChatID int64
	UserID int64
	Text   string
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Data       string
}

// ChannelPostUpdate is a media post from a channel the bot watches. FileRef is
// empty when the post carries no supported media.
type ChannelPostUpdate struct {
	ChannelUsername string
	FileRef         string
	Kind            enums.ContentKind
}

type Handlers struct {
	OnCommand     func(context.Context, CommandUpdate) error
	OnText        func(context.Context, TextUpdate) error
	OnCallback    func(context.Context, CallbackUpdate) error
	OnChannelPost func(context.Context, ChannelPostUpdate) error
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api: api,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.ChannelPost != nil && handlers.OnChannelPost != nil {
				post := decodeChannelPost(update.ChannelPost)
				if post.FileRef != "" {
					if err := handlers.OnChannelPost(ctx, post); err != nil {
						return err
					}
				}
				continue
			}

			if update.Message != nil && update.Message.From != nil {
				if update.Message.IsCommand() && handlers.OnCommand != nil {
					err := handlers.OnCommand(ctx, CommandUpdate{
						ChatID:  update.Message.Chat.ID,
						UserID:  update.Message.From.ID,
						Command: update.Message.Command(),
						Args:    update.Message.CommandArguments(),
					})
					if err != nil {
						return err
					}
					continue
				}

				text := strings.TrimSpace(update.Message.Text)
				if text != "" && handlers.OnText != nil {
					err := handlers.OnText(ctx, TextUpdate{
						ChatID: update.Message.Chat.ID,
						UserID: update.Message.From.ID,
						Text:   text,
					})
					if err != nil {
						return err
					}
				}
			}

			if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
				chatID := int64(0)
				if update.CallbackQuery.Message != nil {
					chatID = update.CallbackQuery.Message.Chat.ID
				}
				err := handlers.OnCallback(ctx, CallbackUpdate{
					CallbackID: update.CallbackQuery.ID,
					ChatID:     chatID,
					UserID:     update.CallbackQuery.From.ID,
					Data:       update.CallbackQuery.Data,
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

func decodeChannelPost(msg *tgbotapi.Message) ChannelPostUpdate {
	post := ChannelPostUpdate{
		ChannelUsername: msg.Chat.UserName,
	}

	switch {
	case msg.Video != nil:
		post.FileRef = msg.Video.FileID
		post.Kind = enums.ContentKindVideo
	case len(msg.Photo) > 0:
		// Highest resolution rendition.
		post.FileRef = msg.Photo[len(msg.Photo)-1].FileID
		post.Kind = enums.ContentKindPhoto
	case msg.Document != nil:
		post.FileRef = msg.Document.FileID
		post.Kind = enums.ContentKindDocument
	case msg.Audio != nil:
		post.FileRef = msg.Audio.FileID
		post.Kind = enums.ContentKindAudio
	case msg.Voice != nil:
		post.FileRef = msg.Voice.FileID
		post.Kind = enums.ContentKindVoice
	case msg.Sticker != nil:
		post.FileRef = msg.Sticker.FileID
		post.Kind = enums.ContentKindSticker
	}

	return post
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendTextToChannel(ctx context.Context, channel, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("channel is required")
	}

	msg := tgbotapi.NewMessageToChannel(channel, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}

	_ = ctx
	return nil
}

// SendItem delivers a catalog item by file reference, with forwarding and
// saving disabled on the receiving side.
func (b *Bot) SendItem(ctx context.Context, chatID int64, fileRef string, kind enums.ContentKind) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || strings.TrimSpace(fileRef) == "" {
		return fmt.Errorf("invalid send item payload")
	}

	file := tgbotapi.FileID(fileRef)

	var msg tgbotapi.Chattable
	switch kind {
	case enums.ContentKindVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.ProtectContent = true
		msg = cfg
	case enums.ContentKindPhoto:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.ProtectContent = true
		msg = cfg
	case enums.ContentKindDocument:
		cfg := tgbotapi.NewDocument(chatID, file)
		cfg.ProtectContent = true
		msg = cfg
	case enums.ContentKindAudio:
		cfg := tgbotapi.NewAudio(chatID, file)
		cfg.ProtectContent = true
		msg = cfg
	case enums.ContentKindVoice:
		cfg := tgbotapi.NewVoice(chatID, file)
		cfg.ProtectContent = true
		msg = cfg
	case enums.ContentKindSticker:
		cfg := tgbotapi.NewSticker(chatID, file)
		msg = cfg
	default:
		return fmt.Errorf("unsupported content kind: %s", kind)
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send content item: %w", err)
	}

	_ = ctx
	return nil
}

// SendMenu presents the persistent two-button reply keyboard.
func (b *Bot) SendMenu(ctx context.Context, chatID int64, text string, buttons []string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	row := make([]tgbotapi.KeyboardButton, 0, len(buttons))
	for _, label := range buttons {
		row = append(row, tgbotapi.NewKeyboardButton(label))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	keyboard := tgbotapi.NewReplyKeyboard(row)
	keyboard.ResizeKeyboard = true
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send menu message: %w", err)
	}

	_ = ctx
	return nil
}

// SendInlineButton sends text with a single inline callback button.
func (b *Bot) SendInlineButton(ctx context.Context, chatID int64, text, label, data string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send inline button message: %w", err)
	}

	_ = ctx
	return nil
}

// SendPayButton sends text with a single inline URL button.
func (b *Bot) SendPayButton(ctx context.Context, chatID int64, text, label, url string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(label, url),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send pay button message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// IsMember implements the membership oracle against Telegram's chat member
// API. Left and kicked count as not a member; an API failure is returned as an
// error so the caller can treat the verdict as unknown.
func (b *Bot) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if b == nil || b.api == nil {
		return false, fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(channel) == "" || userID <= 0 {
		return false, fmt.Errorf("invalid membership check payload")
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}

	switch member.Status {
	case "left", "kicked":
		return false, nil
	}

	_ = ctx
	return true, nil
}
