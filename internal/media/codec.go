package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrCodec            = errors.New("codec error")
	ErrUnsupportedMedia = errors.New("unsupported media")
)

const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// Image is raw image bytes plus the name it arrived with. The name only
// drives MIME inference.
type Image struct {
	Data     []byte
	Filename string
}

func (i Image) MIME() string {
	return MIMEFromFilename(i.Filename)
}

// MIMEFromFilename maps .png to image/png and everything else to image/jpeg.
func MIMEFromFilename(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".png") {
		return MIMEPNG
	}
	return MIMEJPEG
}

// EncodeImage returns a self-contained data URL for data.
func EncodeImage(data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %w: empty image", ErrCodec, ErrUnsupportedMedia)
	}
	if mime == "" {
		mime = MIMEJPEG
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBinaryPayload is the inverse of EncodeBase64. Surrounding whitespace
// is ignored.
func DecodeBinaryPayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrCodec)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrCodec, err)
	}
	return data, nil
}

// ParseDataURL splits a base64 data URL back into its MIME type and bytes.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data url", ErrCodec)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: data url has no payload", ErrCodec)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: data url is not base64", ErrCodec)
	}
	data, err := DecodeBinaryPayload(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}
