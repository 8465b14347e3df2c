package handle

import (
	"errors"
	"net/http"

	"paste-ocr/api/internal/logging"
	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/payload"
	"paste-ocr/api/internal/ratelimit"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errBadForm      = errors.New("request form cannot be parsed")
)

const msgInternal = "Internal Server Error"

// statusTable is the single place client-visible statuses and messages come from.
// The first matching entry wins; anything unmatched is a 500.
var statusTable = []struct {
	err  error
	code int
	msg  string
}{
	{payload.ErrMissingData, http.StatusBadRequest, "Bad Request: No image data in request"},
	{payload.ErrMalformedEnvelope, http.StatusBadRequest, "Bad Request: Invalid image data"},
	{errBadForm, http.StatusBadRequest, "Bad Request: Invalid image data"},
	{payload.ErrInvalidEncoding, http.StatusBadRequest, "Bad Request: Invalid base64 encoding"},
	{payload.ErrPayloadTooLarge, http.StatusBadRequest, "Bad Request: Image is too large"},
	{errBodyTooLarge, http.StatusBadRequest, "Bad Request: Image is too large"},
	{payload.ErrUnsupportedFormat, http.StatusBadRequest, "Bad Request: The image is not supported"},
	{ocr.ErrUnreadableImage, http.StatusBadRequest, "Bad Request: The image is not supported"},
	{ocr.ErrUnsupportedLanguage, http.StatusBadRequest, "Bad Request: Unsupported language"},
	{ocr.ErrLanguageUnavailable, http.StatusBadRequest, "Bad Request: Unsupported language"},
	{ocr.ErrNoText, http.StatusBadRequest, "Bad Request: No text found in the image"},
	{ocr.ErrTimedOut, http.StatusRequestTimeout, "Request Timeout: Text recognition took too long"},
	{ocr.ErrCanceled, http.StatusRequestTimeout, "Request Timeout: Text recognition took too long"},
}

// Status maps an error to the response status and body.
func Status(err error) (int, string) {
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return http.StatusTooManyRequests, "Too Many Requests: Rate limit exceeded (" + le.Decision.Rule.String() + ")"
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.code, e.msg
		}
	}
	return http.StatusInternalServerError, msgInternal
}

// Fail writes the mapped response. Internal detail goes to the log only.
func (h *Handle) Fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := Status(err)
	log := logging.FromContext(r.Context(), h.log)
	if code >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", r.URL.Path, "status", code, "err", err)
	} else {
		log.Infow("request rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeText(w, code, msg)
}
