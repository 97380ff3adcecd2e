package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sku-media-api/pkg/config"
	appErrors "github.com/noah-isme/sku-media-api/pkg/errors"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// TelegramService delivers archives and notifications through the Bot API.
// Documents above the API's size ceiling are split into raw byte chunks and
// sent as numbered parts, with the caption attached to the final part only.
type TelegramService struct {
	token    string
	chatID   string
	apiBase  string
	maxBytes int64
	client   *http.Client
	metrics  *MetricsService
	logger   *zap.Logger
}

func NewTelegramService(cfg config.TelegramConfig, metrics *MetricsService, logger *zap.Logger) *TelegramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultTelegramAPIBase
	}
	maxBytes := cfg.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	return &TelegramService{
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  apiBase,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 2 * time.Minute},
		metrics:  metrics,
		logger:   logger,
	}
}

// Configured reports whether bot credentials are present.
func (s *TelegramService) Configured() bool {
	return s.token != "" && s.chatID != ""
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendArchive ships the ZIP to the configured chat, splitting it into parts
// when it exceeds the document size ceiling. Returns the message IDs in send
// order.
func (s *TelegramService) SendArchive(ctx context.Context, zipName string, data []byte, caption string) ([]int64, error) {
	if !s.Configured() {
		return nil, appErrors.Clone(appErrors.ErrMessagingAPI, "telegram bot is not configured")
	}

	if int64(len(data)) <= s.maxBytes {
		id, err := s.SendDocument(ctx, zipName, data, caption)
		if err == nil {
			return []int64{id}, nil
		}
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) || appErr.Code != appErrors.ErrFileTooLarge.Code {
			return nil, err
		}
		// The API rejected the single document; fall through to chunking.
	}

	chunks := splitChunks(data, s.maxBytes)
	base := strings.TrimSuffix(zipName, ".zip")
	ids := make([]int64, 0, len(chunks))
	for i, chunk := range chunks {
		partName := fmt.Sprintf("%s_part%d.zip", base, i+1)
		partCaption := ""
		if i == len(chunks)-1 {
			partCaption = caption
		}
		id, err := s.SendDocument(ctx, partName, chunk, partCaption)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SendDocument uploads one document via multipart form.
func (s *TelegramService) SendDocument(ctx context.Context, name string, data []byte, caption string) (int64, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", s.chatID); err != nil {
		return 0, fmt.Errorf("build telegram request: %w", err)
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return 0, fmt.Errorf("build telegram request: %w", err)
		}
		if err := mw.WriteField("parse_mode", "HTML"); err != nil {
			return 0, fmt.Errorf("build telegram request: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("document", name)
	if err != nil {
		return 0, fmt.Errorf("build telegram request: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return 0, fmt.Errorf("build telegram request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("build telegram request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return 0, fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrMessagingAPI.Code, appErrors.ErrMessagingAPI.Status, "telegram request failed")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return 0, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("document %q exceeds the size limit", name))
	}
	var parsed telegramResponse
	if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr == nil && !parsed.OK && parsed.Description != "" {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return 0, appErrors.Clone(appErrors.ErrMessagingAPI, fmt.Sprintf("telegram returned %d: %s", resp.StatusCode, parsed.Description))
		}
		return 0, appErrors.Clone(appErrors.ErrMessagingAPI, parsed.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, appErrors.Clone(appErrors.ErrMessagingAPI, fmt.Sprintf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	if !parsed.OK {
		return 0, appErrors.Clone(appErrors.ErrMessagingAPI, "telegram reported failure")
	}

	s.metrics.RecordTelegramDocument()
	s.logger.Info("document sent",
		zap.String("name", name),
		zap.Int("bytes", len(data)),
		zap.Int64("messageId", parsed.Result.MessageID),
		zap.String("bot", tokenPrefix(s.token)),
	)
	return parsed.Result.MessageID, nil
}

// SendMessage posts an HTML-formatted text message to the configured chat.
func (s *TelegramService) SendMessage(ctx context.Context, text string) error {
	if !s.Configured() {
		return appErrors.Clone(appErrors.ErrMessagingAPI, "telegram bot is not configured")
	}

	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrMessagingAPI.Code, appErrors.ErrMessagingAPI.Status, "telegram request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return appErrors.Clone(appErrors.ErrMessagingAPI, fmt.Sprintf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	return nil
}

// splitChunks slices data into consecutive pieces of at most chunkSize bytes.
func splitChunks(data []byte, chunkSize int64) [][]byte {
	if chunkSize <= 0 || int64(len(data)) <= chunkSize {
		return [][]byte{data}
	}
	var chunks [][]byte
	for offset := int64(0); offset < int64(len(data)); offset += chunkSize {
		end := offset + chunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		chunks = append(chunks, data[offset:end])
	}
	return chunks
}

func tokenPrefix(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10]
}
