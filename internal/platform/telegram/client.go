// Package telegram is a thin Bot API client. It covers only the methods the
// bot uses; responses are decoded into the narrow types in types.go.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiBase = "https://api.telegram.org"

type Client struct {
	httpClient *http.Client
	token      string
}

func NewClient(token string) *Client {
	return &Client{
		// Long polling holds the connection open for the poll timeout, so
		// the client timeout must sit above it.
		httpClient: &http.Client{Timeout: 65 * time.Second},
		token:      token,
	}
}

type tgResponse[T any] struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Result      T      `json:"result"`
}

// SendOptions tunes an outgoing message. Zero value sends plain text.
type SendOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
	ReplyMarkup           *InlineKeyboardMarkup
}

// GetMe verifies the token and returns the bot account. Used by the watchdog
// as a liveness probe.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var result tgResponse[User]
	if err := c.call(ctx, "getMe", url.Values{}, &result); err != nil {
		return nil, fmt.Errorf("getMe: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("getMe: telegram API error: %s", result.Description)
	}
	return &result.Result, nil
}

// GetUpdates long-polls for updates after offset. timeout is the server-side
// hold in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(timeout)},
		"allowed_updates": {`["message","callback_query"]`},
	}
	var result tgResponse[[]Update]
	if err := c.call(ctx, "getUpdates", params, &result); err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("getUpdates: telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	if opts != nil {
		if opts.ParseMode != "" {
			params.Set("parse_mode", opts.ParseMode)
		}
		if opts.DisableWebPagePreview {
			params.Set("disable_web_page_preview", "true")
		}
		if opts.ReplyMarkup != nil {
			markup, err := json.Marshal(opts.ReplyMarkup)
			if err != nil {
				return nil, fmt.Errorf("sendMessage: encode markup: %w", err)
			}
			params.Set("reply_markup", string(markup))
		}
	}
	var result tgResponse[Message]
	if err := c.call(ctx, "sendMessage", params, &result); err != nil {
		return nil, fmt.Errorf("sendMessage: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("sendMessage: telegram API error: %s", result.Description)
	}
	return &result.Result, nil
}

// EditMessageText rewrites a previously sent message, dropping its inline
// keyboard unless opts provides a new one.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *SendOptions) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"text":       {text},
	}
	if opts != nil {
		if opts.ParseMode != "" {
			params.Set("parse_mode", opts.ParseMode)
		}
		if opts.ReplyMarkup != nil {
			markup, err := json.Marshal(opts.ReplyMarkup)
			if err != nil {
				return fmt.Errorf("editMessageText: encode markup: %w", err)
			}
			params.Set("reply_markup", string(markup))
		}
	}
	var result tgResponse[json.RawMessage]
	if err := c.call(ctx, "editMessageText", params, &result); err != nil {
		return fmt.Errorf("editMessageText: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("editMessageText: telegram API error: %s", result.Description)
	}
	return nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := url.Values{"callback_query_id": {callbackID}}
	if text != "" {
		params.Set("text", text)
	}
	var result tgResponse[bool]
	if err := c.call(ctx, "answerCallbackQuery", params, &result); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("answerCallbackQuery: telegram API error: %s", result.Description)
	}
	return nil
}

// SendDocument uploads an in-memory file as a document attachment.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("sendDocument: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	defer resp.Body.Close()

	var result tgResponse[Message]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("sendDocument: decode response: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("sendDocument: telegram API error: %s", result.Description)
	}
	return nil
}

// GetFile resolves a file_id into a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	params := url.Values{"file_id": {fileID}}
	var result tgResponse[File]
	if err := c.call(ctx, "getFile", params, &result); err != nil {
		return nil, fmt.Errorf("getFile: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("getFile: telegram API error: %s", result.Description)
	}
	return &result.Result, nil
}

// DownloadFile fetches the content behind a GetFile path.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", apiBase, c.token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
