package covers

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// MaxImageBytes caps the size of a single cover image.
const MaxImageBytes = 10 << 20

var uploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Image is a decoded cover ready to be stored.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DataURI re-encodes the image inline so it can be kept on the book when it
// can't be uploaded.
func (img *Image) DataURI() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// IsDataURI reports whether s holds an inline image rather than a URL.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI decodes a base64 data URI. The declared media type is ignored
// in favour of sniffing the bytes.
func ParseDataURI(s string) (*Image, error) {
	if !IsDataURI(s) {
		return nil, errcodes.ValidationError("Cover image must be a data URI.")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errcodes.ValidationError("Cover image data URI must be base64 encoded.")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return nil, errcodes.ValidationError("Cover image is too large.")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errcodes.ValidationError("Cover image data URI isn't valid base64.")
	}
	return newImage(data)
}

// ReadImage reads an uploaded file, rejecting anything that isn't one of the
// accepted image types.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	img, err := newImage(data)
	if err != nil {
		return nil, err
	}
	if !uploadTypes[img.ContentType] {
		return nil, errcodes.ValidationError("Cover image must be a JPEG, PNG, WebP or GIF.")
	}
	return img, nil
}

func newImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errcodes.ValidationError("Cover image is empty.")
	}
	if len(data) > MaxImageBytes {
		return nil, errcodes.ValidationError("Cover image is too large.")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, errcodes.ValidationError("Cover image must be an image.")
	}
	contentType, _, _ := strings.Cut(mt.String(), ";")
	return &Image{
		Data:        bytes.Clone(data),
		ContentType: contentType,
		Ext:         mt.Extension(),
	}, nil
}
