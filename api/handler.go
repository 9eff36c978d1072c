package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/format"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/pipeline"
	"github.com/kbukum/asrgate/server"
	"github.com/kbukum/asrgate/util"
)

// Upload field names, in lookup order.
var uploadFields = []string{"audio_file", "file"}

// Transcriber runs one transcription request.
type Transcriber interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// KeyManager is the key store as seen by the API.
type KeyManager interface {
	Authorize(candidate string) error
	Reload() (int, error)
	Count() int
}

// ModelStatus reports whether a model is loaded and which.
type ModelStatus interface {
	Loaded() (bool, string)
}

// slotReporter is implemented by transcribers that bound concurrency.
type slotReporter interface {
	Slots() (inUse, limit int)
}

// Config configures the handler.
type Config struct {
	ServiceName string
	KeyHeader   string
	MaxBodySize string
}

// Handler serves the gateway endpoints.
type Handler struct {
	transcriber Transcriber
	keys        KeyManager
	models      ModelStatus
	cfg         Config
	maxUpload   int64
	log         *logger.Logger
}

// NewHandler creates a Handler logging to log.
func NewHandler(cfg Config, transcriber Transcriber, keys KeyManager, models ModelStatus, log *logger.Logger) *Handler {
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = "X-API-Key"
	}
	return &Handler{
		transcriber: transcriber,
		keys:        keys,
		models:      models,
		cfg:         cfg,
		maxUpload:   util.ParseSize(cfg.MaxBodySize, 200<<20),
		log:         log,
	}
}

// Transcribe handles POST /transcribe. The key is checked before the
// multipart body is parsed.
func (h *Handler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()
	out, err := h.transcriber.Run(ctx, pipeline.Request{
		ID:     logger.RequestIDFromContext(ctx),
		APIKey: c.GetHeader(h.cfg.KeyHeader),
		Decode: h.decode(c),
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	resp := out.Response
	c.Header("X-Transcription-Strategy", out.Strategy.String())
	if resp.ContentType == format.ContentTypeText {
		c.Data(resp.Status, resp.ContentType, []byte(resp.Text))
		return
	}
	c.JSON(resp.Status, resp.Body)
}

// decode reads the multipart form into the request. Query parameters come
// first, form values are appended after them.
func (h *Handler) decode(c *gin.Context) func(*pipeline.Request) error {
	return func(req *pipeline.Request) error {
		form, err := c.MultipartForm()
		if err != nil {
			return h.formError(err)
		}

		values := url.Values{}
		for k, vs := range c.Request.URL.Query() {
			values[k] = append(values[k], vs...)
		}
		for k, vs := range form.Value {
			values[k] = append(values[k], vs...)
		}
		req.Params = values

		if fh := firstFile(form); fh != nil {
			req.Upload = &pipeline.Upload{
				Filename: fh.Filename,
				Open:     func() (io.ReadCloser, error) { return fh.Open() },
			}
		}
		return nil
	}
}

func (h *Handler) formError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return errors.PayloadTooLarge(h.maxUpload)
	}
	if stderrors.Is(err, http.ErrNotMultipart) || stderrors.Is(err, http.ErrMissingBoundary) {
		return errors.MissingField(uploadFields[0])
	}
	return errors.InvalidParameter("body", "malformed multipart form").WithCause(err)
}

func firstFile(form *multipart.Form) *multipart.FileHeader {
	for _, name := range uploadFields {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// ReloadKeys handles POST /keys/reload.
func (h *Handler) ReloadKeys(c *gin.Context) {
	n, err := h.keys.Reload()
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("key reload failed", logger.ErrorFields("reload_keys", err))
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("keys reloaded", logger.Fields("count", n))
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("reloaded %d keys", n),
		"count":   n,
	})
}

// KeyCount handles GET /keys/count.
func (h *Handler) KeyCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.keys.Count()})
}

// healthExtras adds the model status to /health. current_model is null
// until a model is loaded.
func (h *Handler) healthExtras(context.Context) map[string]any {
	loaded, model := h.models.Loaded()
	var current any
	if loaded {
		current = model
	}
	return map[string]any{
		"model_loaded":  loaded,
		"current_model": current,
	}
}

// runtimeExtras adds inference slot usage to /metrics when available.
func (h *Handler) runtimeExtras(context.Context) map[string]any {
	r, ok := h.transcriber.(slotReporter)
	if !ok {
		return nil
	}
	inUse, limit := r.Slots()
	return map[string]any{
		"inference_slots": map[string]any{"in_use": inUse, "max": limit},
		"api_keys":        h.keys.Count(),
	}
}
