package pdf

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Kind tells the converter what to do with an input file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindRaster
	KindDocument
)

// Format is the detected input type.
type Format struct {
	Kind Kind
	MIME string
}

// Raster MIME types the vision services accept as-is.
var rasterMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/heic": true,
	"image/heif": true,
}

var extMIMEs = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

// DetectFormat sniffs the first 512 bytes of path and falls back to the
// file extension for types the sniffer does not know (HEIC/HEIF).
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Format{}, err
	}

	return classify(http.DetectContentType(head[:n]), filepath.Ext(path)), nil
}

func classify(sniffed, ext string) Format {
	mime := strings.TrimSpace(strings.SplitN(sniffed, ";", 2)[0])
	if f, ok := formatFor(mime); ok {
		return f
	}
	if mime == "application/octet-stream" {
		if byExt, ok := extMIMEs[strings.ToLower(ext)]; ok {
			if f, ok := formatFor(byExt); ok {
				return f
			}
		}
	}
	return Format{Kind: KindUnsupported, MIME: mime}
}

func formatFor(mime string) (Format, bool) {
	switch {
	case mime == "application/pdf":
		return Format{Kind: KindDocument, MIME: mime}, true
	case rasterMIMEs[mime]:
		return Format{Kind: KindRaster, MIME: mime}, true
	}
	return Format{}, false
}
