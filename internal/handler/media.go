package handler

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	e "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/logger"
	"github.com/friendlychat-dev/friendlychat/internal/utils"
)

var errMediaNotFound = &e.ErrorWithStatusCode{Message: "Media not found", StatusCode: http.StatusNotFound}

// ServeMedia streams a stored image blob. Paths are flat file names
// assigned at upload time; anything that tries to climb out of the
// media root is rejected.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		utils.WriteErrorAndStatusCode(w, errMediaNotFound)
		return
	}

	blob, err := h.media.Read(name)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, errMediaNotFound)
		return
	}
	defer blob.Close()

	if ctype := contentTypeForExt(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, blob); err != nil {
		logger.Log.Debug("media stream interrupted", "file", name, "err", err)
	}
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".jpeg", ".jpg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}
