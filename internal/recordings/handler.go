package recordings

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ringline/backend/pkg/queue"
	"github.com/ringline/backend/pkg/response"
	"github.com/ringline/backend/pkg/storage"
)

// Multipart field names for uploads.
const (
	FieldVideo = "videoFile"
	FieldAudio = "audioFile"
)

// Processor runs the recording pipeline for one upload.
type Processor interface {
	Process(ctx context.Context, up Upload) (*Result, error)
}

// CleanupQueue accepts media objects whose deletion has to be reconciled later.
type CleanupQueue interface {
	EnqueueMediaCleanup(ctx context.Context, payload queue.MediaCleanupPayload) error
}

// DeleteRequest is the body for POST /recording/delete.
type DeleteRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Handler handles recording upload, fetch and delete endpoints.
type Handler struct {
	pipeline  Processor
	media     storage.Store
	messages  MessageStore
	cleanup   CleanupQueue // optional
	maxUpload int64
	logger    *zap.Logger
}

// NewHandler creates a recordings handler. maxUpload bounds the request body in bytes (0 = unbounded).
func NewHandler(pipeline Processor, media storage.Store, messages MessageStore, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: pipeline, media: media, messages: messages, maxUpload: maxUpload, logger: logger}
}

// SetCleanupQueue sets the optional queue used when a media file could not be removed.
func (h *Handler) SetCleanupQueue(q CleanupQueue) { h.cleanup = q }

// Upload handles POST /uploads: one videoFile plus audioFile / audioFile1..N tracks.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	form, err := c.MultipartForm()
	if err != nil {
		h.formError(c, err)
		return
	}

	videos := form.File[FieldVideo]
	audio := AudioFiles(form.File)
	if len(videos) != 1 || len(audio) == 0 {
		response.BadRequest(c, "missing required files")
		return
	}

	up := Upload{
		SenderID:   c.PostForm("senderId"),
		ReceiverID: c.PostForm("receiverId"),
		Timming:    c.PostForm("timming"),
		Video:      trackFrom(videos[0]),
	}
	for _, fh := range audio {
		up.Audio = append(up.Audio, trackFrom(fh))
	}

	res, err := h.pipeline.Process(c.Request.Context(), up)
	if errors.Is(err, ErrValidation) {
		response.BadRequest(c, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
		return
	}
	if err != nil {
		// details are logged by the pipeline
		response.Internal(c, "error processing files")
		return
	}
	response.OK(c, gin.H{
		"message":     "Video updated successfully.",
		"recordingId": res.RecordingID,
		"filePath":    res.FilePath,
	})
}

// Fetch handles GET /recording/:filename. Range requests are honored so
// players can seek: seekable bodies go through http.ServeContent, and stores
// implementing storage.RangeOpener serve the range themselves.
func (h *Handler) Fetch(c *gin.Context) {
	name := c.Param("filename")
	if storage.ValidateKey(name) != nil {
		response.BadRequest(c, "invalid filename")
		return
	}
	body, obj, err := h.open(c.Request.Context(), name, c.GetHeader("Range"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.NotFound(c, "recording not found")
		return
	case errors.Is(err, storage.ErrInvalidRange):
		c.Header("Content-Range", "bytes */*")
		response.Fail(c, http.StatusRequestedRangeNotSatisfiable, "invalid range")
		return
	case err != nil:
		h.logger.Error("open recording failed", zap.Error(err), zap.String("file_path", name))
		response.Internal(c, "failed to read recording")
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	c.Header("Accept-Ranges", "bytes")
	if rs, ok := body.(io.ReadSeeker); ok {
		c.Header("Content-Type", obj.ContentType)
		http.ServeContent(c.Writer, c.Request, name, obj.ModTime, rs)
		return
	}

	status := http.StatusOK
	if obj.ContentRange != "" {
		status = http.StatusPartialContent
		c.Header("Content-Range", obj.ContentRange)
	}
	size := obj.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(status, size, obj.ContentType, body, nil)
}

func (h *Handler) open(ctx context.Context, name, byteRange string) (io.ReadCloser, storage.Object, error) {
	if ranged, ok := h.media.(storage.RangeOpener); ok && byteRange != "" {
		return ranged.OpenRange(ctx, name, byteRange)
	}
	return h.media.Open(ctx, name)
}

// Delete handles POST /recording/delete with {"filename": ...}.
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.delete(c, req.Filename)
}

// DeleteByParam handles DELETE /recording/:filename.
func (h *Handler) DeleteByParam(c *gin.Context) {
	h.delete(c, c.Param("filename"))
}

// delete removes the message record first (source of truth), then the file.
// A file that cannot be removed is logged and queued for cleanup; the request still succeeds.
func (h *Handler) delete(c *gin.Context, name string) {
	if storage.ValidateKey(name) != nil {
		response.BadRequest(c, "invalid filename")
		return
	}
	ctx := c.Request.Context()
	n, err := h.messages.DeleteByFilePath(ctx, name)
	if err != nil {
		h.logger.Error("delete recording message failed", zap.Error(err), zap.String("file_path", name))
		response.Internal(c, "failed to delete recording")
		return
	}
	if err := h.media.Remove(context.WithoutCancel(ctx), name); err != nil {
		h.logger.Warn("delete recording file failed", zap.Error(err), zap.String("file_path", name))
		if h.cleanup != nil {
			if qErr := h.cleanup.EnqueueMediaCleanup(context.WithoutCancel(ctx), queue.MediaCleanupPayload{Key: name, Reason: "delete"}); qErr != nil {
				h.logger.Error("enqueue media cleanup failed", zap.Error(qErr), zap.String("file_path", name))
			}
		}
	}
	response.OK(c, gin.H{"message": "Recording Deleted successfully!", "deleted": n})
}

// formError maps a failed multipart read to a response. Only a request that is
// not multipart at all counts as missing files; a body that stopped arriving is
// a timeout, and anything else is a malformed body.
func (h *Handler) formError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	var netErr net.Error
	switch {
	case errors.As(err, &tooLarge):
		response.TooLarge(c, "upload too large")
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		response.BadRequest(c, "missing required files")
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, io.ErrUnexpectedEOF):
		h.logger.Warn("upload body incomplete", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		response.Fail(c, http.StatusRequestTimeout, "upload incomplete")
	default:
		h.logger.Warn("malformed upload body", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		response.BadRequest(c, "malformed upload")
	}
}

func trackFrom(fh *multipart.FileHeader) Track {
	return Track{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open:     func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// AudioFiles returns the audio parts in order: every "audioFile" part as sent,
// then "audioFile1", "audioFile2", ... by number.
func AudioFiles(files map[string][]*multipart.FileHeader) []*multipart.FileHeader {
	out := append([]*multipart.FileHeader(nil), files[FieldAudio]...)
	type numbered struct {
		n   int
		fhs []*multipart.FileHeader
	}
	var rest []numbered
	for field, fhs := range files {
		suffix, ok := strings.CutPrefix(field, FieldAudio)
		if !ok || suffix == "" {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			continue
		}
		rest = append(rest, numbered{n: n, fhs: fhs})
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].n < rest[j].n })
	for _, r := range rest {
		out = append(out, r.fhs...)
	}
	return out
}
