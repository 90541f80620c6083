package mockflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"chatflow-tutor/internal/chat"
	"chatflow-tutor/internal/database"
	"chatflow-tutor/internal/messaging"
	"chatflow-tutor/internal/storage"
	"chatflow-tutor/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaxUploadBytes = 50 << 20

	defaultPageSize  = 5
	maxPageSize      = 100
	messageAtLayout  = "2006-01-02 15:04:05"
	uploadKeyLayout  = "20060102_150405"
	invalidRequest   = "Invalid request"
	uploadSuccessMsg = "Media uploaded successfully"
)

type Service struct {
	db        *gorm.DB
	storage   storage.Provider
	publisher messaging.Publisher
	flow      Flow
	publicURL string
	now       func() time.Time
}

// NewService builds the handlers of the development chat-flow service.
// publicURL prefixes the links returned for uploads; when empty the request
// host is used.
func NewService(db *gorm.DB, store storage.Provider, pub messaging.Publisher, publicURL string, replyDelay time.Duration) *Service {
	return &Service{
		db:        db,
		storage:   store,
		publisher: pub,
		flow:      Flow{ReplyDelay: replyDelay},
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/chatflows/{account}", func(r chi.Router) {
		r.Post("/start/", RestHandler(s.Chat))
		r.Get("/start/", RestHandler(s.History))
		r.Get("/chat-notifications/", RestHandler(s.Notifications))
	})

	r.With(middleware.RequestSize(MaxUploadBytes+1<<20)).Post("/upload-media/", RestHandler(s.UploadMedia))
	r.Get("/media/{account}/{key}", s.Media)
}

type chatResponse struct {
	Response any `json:"response"`
}

type historyRecord struct {
	ID        uint   `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	MessageAt string `json:"message_at"`
}

type historyData struct {
	Results []historyRecord `json:"results"`
	Next    bool            `json:"next"`
}

type historyResponse struct {
	Status string      `json:"status"`
	Data   historyData `json:"data"`
}

type historyParams struct {
	SessionID string `schema:"session_id"`
	Limit     int    `schema:"limit"`
	Offset    int    `schema:"offset"`
}

type notificationParams struct {
	SessionID string `schema:"session_id"`
}

type uploadResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    api.UploadData `json:"data"`
}

// mediaMetadata is stored with human media messages and is also their
// history payload.
type mediaMetadata struct {
	Message   string `json:"message"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

func (s *Service) Chat(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message is required")
	}

	ctx := r.Context()
	account := chi.URLParam(r, "account")

	session, err := database.EnsureChatSession(ctx, s.db, req.SessionID, account)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load chat session")
	}

	human, err := s.humanMessage(req)
	if err != nil {
		return nil, err
	}
	if err := database.SaveChatMessage(ctx, s.db, human); err != nil {
		slog.Error("error saving message", "session_id", req.SessionID, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to save message")
	}

	turn, err := s.flow.Respond(session.State, req)
	if err != nil {
		slog.Error("error building reply", "session_id", req.SessionID, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to build reply")
	}

	if turn.Stored != "" {
		bot := &database.ChatHistory{SessionID: req.SessionID, Sender: api.SenderBot, Message: turn.Stored, MessageAt: s.now().UTC()}
		if err := database.SaveChatMessage(ctx, s.db, bot); err != nil {
			slog.Error("error saving reply", "session_id", req.SessionID, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to save reply")
		}
	}

	if turn.NextState != "" {
		payload := messaging.StateTaskPayload{SessionID: req.SessionID, State: turn.NextState, Delay: turn.StateDelay}
		if err := s.publisher.PublishStateTask(ctx, payload); err != nil {
			slog.Error("error publishing state task", "session_id", req.SessionID, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue state change")
		}
	}

	for _, d := range turn.Deferred {
		payload := messaging.ReplyTaskPayload{
			Account:   account,
			SessionID: req.SessionID,
			Sender:    d.Sender,
			Message:   d.Message,
			Delay:     d.Delay,
		}
		if err := s.publisher.PublishReplyTask(ctx, payload); err != nil {
			slog.Error("error publishing reply task", "session_id", req.SessionID, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue reply")
		}
	}

	slog.Info("handled chat message", "session_id", req.SessionID, "state", session.State, "deferred", len(turn.Deferred))
	return chatResponse{Response: turn.Response}, nil
}

func (s *Service) humanMessage(req api.ChatRequest) (*database.ChatHistory, error) {
	msg := &database.ChatHistory{
		SessionID: req.SessionID,
		Sender:    api.SenderHuman,
		Message:   req.Message,
		MessageAt: s.now().UTC(),
	}
	if req.MediaType == "" {
		return msg, nil
	}

	meta, err := json.Marshal(mediaMetadata{MediaURL: req.Message, MediaType: req.MediaType})
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to encode media message")
	}
	msg.Message = string(meta)
	msg.Metadata = datatypes.JSON(meta)
	return msg, nil
}

func (s *Service) History(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[historyParams](r)
	if err != nil {
		return nil, err
	}
	if params.SessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}
	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Offset < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "offset must not be negative")
	}

	ctx := r.Context()

	history, more, err := database.ListChatHistory(ctx, s.db, params.SessionID, params.Limit, params.Offset)
	if err != nil {
		slog.Error("error listing chat history", "session_id", params.SessionID, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load chat history")
	}

	// Reading the history is what acknowledges pending replies.
	if err := database.ClearNotifications(ctx, s.db, params.SessionID); err != nil {
		slog.Error("error clearing notifications", "session_id", params.SessionID, "error", err)
	}

	results := make([]historyRecord, 0, len(history))
	for _, h := range history {
		results = append(results, historyRecord{
			ID:        h.ID,
			Sender:    h.Sender,
			Message:   h.Message,
			MessageAt: h.MessageAt.UTC().Format(messageAtLayout),
		})
	}

	return historyResponse{Status: "success", Data: historyData{Results: results, Next: more}}, nil
}

func (s *Service) Notifications(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[notificationParams](r)
	if err != nil {
		return nil, err
	}
	if params.SessionID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}

	session, err := database.EnsureChatSession(r.Context(), s.db, params.SessionID, chi.URLParam(r, "account"))
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load chat session")
	}

	return api.NotificationStatus{CurrentState: session.State, NotificationCount: session.NotificationCount}, nil
}

func (s *Service) UploadMedia(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ValidationError(http.StatusRequestEntityTooLarge, invalidRequest, `{"files": ["File is too large"]}`)
		}
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form")
	}

	if r.FormValue("upload_type") != api.UploadTypeCustomer {
		return nil, ValidationError(http.StatusBadRequest, invalidRequest, `{"upload_type": ["Unsupported upload type"]}`)
	}
	account := r.FormValue("account_name")
	if account == "" {
		return nil, ValidationError(http.StatusBadRequest, invalidRequest, `{"account_name": ["This field is required"]}`)
	}

	file, header, err := r.FormFile("files")
	if err != nil {
		return nil, ValidationError(http.StatusBadRequest, invalidRequest, `{"files": ["No file was submitted"]}`)
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if chat.ClassifyMedia(chat.MediaTypeForFile(name)) == chat.MediaOther {
		return nil, ValidationError(http.StatusBadRequest, invalidRequest, `{"files": ["Unsupported file type"]}`)
	}

	key := fmt.Sprintf("%s_%s", s.now().UTC().Format(uploadKeyLayout), name)
	size, err := s.storage.PutObject(r.Context(), account, key, file)
	if err != nil {
		slog.Error("error storing upload", "account", account, "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to store file")
	}

	link := fmt.Sprintf("%s/api/v1/media/%s/%s", s.baseURL(r), url.PathEscape(account), url.PathEscape(key))
	slog.Info("stored upload", "account", account, "key", key, "size", size)

	return uploadResponse{Success: true, Message: uploadSuccessMsg, Data: api.UploadData{URL: link}}, nil
}

func (s *Service) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (s *Service) Media(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	key := chi.URLParam(r, "key")

	obj, info, err := s.storage.OpenObject(r.Context(), account, key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			renderError(w, r, CodedErrorf(http.StatusBadRequest, "invalid media key"))
			return
		}
		renderError(w, r, CodedErrorf(http.StatusNotFound, "media not found"))
		return
	}
	defer obj.Close()

	http.ServeContent(w, r, info.Name, time.Time{}, obj)
}

func marshalEntries(list []api.ReplyEntry) (string, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("error encoding reply entries: %w", err)
	}
	return string(data), nil
}
