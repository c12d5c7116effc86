package sdk

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/juju/errors"
)

// EncodeImage returns data as a base64 data URI, the form the server stores
// images in. The media type is sniffed and must be an image.
func EncodeImage(data []byte) (string, error) {
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", errors.NotValidf("image of type %s", mediaType)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// EncodeImageFile reads and encodes the image at path.
func EncodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Trace(err)
	}
	return EncodeImage(data)
}
