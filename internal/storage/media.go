package storage

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// Media classes a proof file can belong to.
const (
	MediaImage = "image"
	MediaAudio = "audio"
	MediaVideo = "video"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrMediaMismatch    = errors.New("declared type does not match content")
)

// proofTypes lists the sniffed types accepted as proofs. SVG and anything
// else a browser may run as a document is left out on purpose.
var proofTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/heic",
	"image/heif",
	"audio/mpeg",
	"audio/wav",
	"audio/ogg",
	"audio/aac",
	"audio/flac",
	"audio/amr",
	"audio/x-m4a",
	"video/mp4",
	"video/quicktime",
	"video/webm",
	"video/x-matroska",
	"video/3gpp",
	"video/x-msvideo",
	"video/mpeg",
}

// Media is the sniffed identity of an uploaded file.
type Media struct {
	MIME  string
	Class string
}

// SniffMedia detects the type of data from its content. A declared type
// other than the generic octet-stream must agree with what was detected.
func SniffMedia(data []byte, declared string) (Media, error) {
	detected := mimetype.Detect(data)

	var m Media
	for _, t := range proofTypes {
		if detected.Is(t) {
			m = Media{MIME: t, Class: t[:strings.IndexByte(t, '/')]}
			break
		}
	}
	if m.MIME == "" {
		return Media{}, errors.Wrap(ErrUnsupportedMedia, detected.String())
	}

	declared = baseType(declared)
	if declared == "" || declared == "application/octet-stream" {
		return m, nil
	}
	if !detected.Is(declared) {
		return Media{}, errors.Wrapf(ErrMediaMismatch, "declared %s, content is %s", declared, m.MIME)
	}
	return m, nil
}

// InlineSafe reports whether a stored object may be rendered by the browser.
func InlineSafe(contentType string) bool {
	ct := baseType(contentType)
	for _, t := range proofTypes {
		if ct == t {
			return true
		}
	}
	return false
}

func baseType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if t, _, err := mime.ParseMediaType(contentType); err == nil {
		return t
	}
	return strings.ToLower(contentType)
}
