// Package telegram is a thin Bot API client. Only the methods this bot
// needs are wrapped; everything goes through a single JSON POST helper.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return NewClientWithAPIURL(token, defaultAPIURL)
}

// NewClientWithAPIURL points the client at a different API host, used by
// tests to talk to a local fake server.
func NewClientWithAPIURL(token, apiURL string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("%s/bot%s/", apiURL, token),
		// Long polling holds the connection open for up to pollTimeout
		// seconds, so the transport timeout must sit above it.
		httpClient: &http.Client{Timeout: 35 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: encoding %s request: %v", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: building %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %v", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %v", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, apiResp.Description)
	}

	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("telegram: decoding %s result: %v", method, err)
		}
	}
	return nil
}

type SendMessageParams struct {
	ChatID      int64       `json:"chat_id"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) error {
	if params.ParseMode == "" {
		params.ParseMode = "Markdown"
	}
	return c.call(ctx, "sendMessage", params, nil)
}

type editMessageTextParams struct {
	ChatID      int64       `json:"chat_id"`
	MessageID   int64       `json:"message_id"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	params := editMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: "Markdown",
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return c.call(ctx, "editMessageText", params, nil)
}

type banChatMemberParams struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", banChatMemberParams{ChatID: chatID, UserID: userID}, nil)
}

type unbanChatMemberParams struct {
	ChatID       int64 `json:"chat_id"`
	UserID       int64 `json:"user_id"`
	OnlyIfBanned bool  `json:"only_if_banned"`
}

func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return c.call(ctx, "unbanChatMember", unbanChatMemberParams{ChatID: chatID, UserID: userID, OnlyIfBanned: onlyIfBanned}, nil)
}

type createChatInviteLinkParams struct {
	ChatID      int64 `json:"chat_id"`
	MemberLimit int   `json:"member_limit,omitempty"`
}

func (c *Client) CreateChatInviteLink(ctx context.Context, chatID int64, memberLimit int) (string, error) {
	var link ChatInviteLink
	err := c.call(ctx, "createChatInviteLink", createChatInviteLinkParams{ChatID: chatID, MemberLimit: memberLimit}, &link)
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

type answerCallbackQueryParams struct {
	CallbackQueryID string `json:"callback_query_id"`
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryParams{CallbackQueryID: callbackQueryID}, nil)
}

type getUpdatesParams struct {
	Offset  int64 `json:"offset,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", getUpdatesParams{Offset: offset, Timeout: timeoutSeconds}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}
