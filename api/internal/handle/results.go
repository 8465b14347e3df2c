package handle

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"paste-ocr/api/internal/logging"
	"paste-ocr/api/internal/ocr"
)

// Results handles POST /results: form fields data ("<prefix>,<base64>") and an
// optional language. Admission control runs before this handler.
func (h *Handle) Results(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := h.parseForm(r); err != nil {
		h.Fail(w, r, err)
		return
	}

	img, lang, err := h.validator.Validate(r.PostFormValue("data"), r.PostFormValue("language"))
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	log := logging.FromContext(r.Context(), h.log)
	out := h.runner.Execute(r.Context(), img, lang)
	if err := out.AsError(); err != nil {
		log.Warnw("recognition did not succeed",
			"outcome", out.Kind.String(), "failure", out.Failure.String(), "elapsed", out.Elapsed, "err", out.Err)
		h.Fail(w, r, err)
		return
	}

	text, err := ocr.CleanText(out.Text)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	log.Infow("recognized", "format", img.Format, "bytes", len(img.Data), "language", lang, "chars", len(text), "elapsed", out.Elapsed)
	writeText(w, http.StatusOK, text)
}

func (h *Handle) parseForm(r *http.Request) error {
	var err error
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(h.maxBody)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: over %d bytes", errBodyTooLarge, mbe.Limit)
	}
	return fmt.Errorf("%w: %v", errBadForm, err)
}
