package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/models"
)

const (
	// DefaultMediaType is used when nothing better can be determined.
	DefaultMediaType = "image/jpeg"
	// DefaultQuality is the JPEG quality applied to camera captures.
	DefaultQuality = 90
)

// CameraCapture is a frame taken with the device camera.
type CameraCapture struct {
	Image image.Image
}

// GallerySelection is an existing picture chosen by the user. When Reader is
// nil the picture is opened by URI.
type GallerySelection struct {
	URI      string
	MimeType string
	Reader   io.Reader
}

// Source holds exactly one of the two ways a meal photo can arrive.
type Source struct {
	Camera  *CameraCapture
	Gallery *GallerySelection
}

// Opener opens a gallery URI for reading.
type Opener func(uri string) (io.ReadCloser, error)

// Options configures a Packager.
type Options struct {
	Quality      int
	MaxDimension int // longest edge for camera captures, 0 disables scaling
	Open         Opener
}

// Packager turns camera captures and gallery selections into upload payloads.
type Packager struct {
	quality      int
	maxDimension int
	open         Opener
}

func NewPackager(opts Options) *Packager {
	p := &Packager{
		quality:      opts.Quality,
		maxDimension: opts.MaxDimension,
		open:         opts.Open,
	}
	if p.quality < 1 || p.quality > 100 {
		p.quality = DefaultQuality
	}
	if p.open == nil {
		p.open = func(uri string) (io.ReadCloser, error) { return os.Open(uri) }
	}
	return p
}

// Package converts src into an ImagePayload.
func (p *Packager) Package(src Source) (*models.ImagePayload, error) {
	switch {
	case src.Camera == nil && src.Gallery == nil:
		return nil, apperrors.New(apperrors.KindInvalidInput, "imaging.package", "no image source provided")
	case src.Camera != nil && src.Gallery != nil:
		return nil, apperrors.New(apperrors.KindInvalidInput, "imaging.package", "both camera and gallery sources provided")
	case src.Camera != nil:
		return p.fromCamera(src.Camera)
	default:
		return p.fromGallery(src.Gallery)
	}
}

func (p *Packager) fromCamera(c *CameraCapture) (*models.ImagePayload, error) {
	const op = "imaging.camera"
	if c.Image == nil {
		return nil, apperrors.New(apperrors.KindPayloadCreation, op, "camera capture has no image")
	}

	img := scaleDown(c.Image, p.maxDimension)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, apperrors.Wrap(apperrors.KindPayloadCreation, op, "failed to encode camera capture", err)
	}
	if buf.Len() == 0 {
		return nil, apperrors.New(apperrors.KindPayloadCreation, op, "encoded camera capture is empty")
	}

	return &models.ImagePayload{
		Data:      buf.Bytes(),
		MediaType: DefaultMediaType,
		Filename:  "meal-" + uuid.New().String() + ".jpg",
	}, nil
}

func (p *Packager) fromGallery(g *GallerySelection) (*models.ImagePayload, error) {
	const op = "imaging.gallery"

	data, err := p.readGallery(g)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPayloadCreation, op, "failed to read gallery image", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindPayloadCreation, op, "gallery image is empty")
	}

	mediaType := ResolveMediaType(g.MimeType, g.URI, data)
	return &models.ImagePayload{
		Data:      data,
		MediaType: mediaType,
		Filename:  galleryFilename(g.URI, mediaType),
	}, nil
}

func (p *Packager) readGallery(g *GallerySelection) ([]byte, error) {
	if g.Reader != nil {
		return io.ReadAll(g.Reader)
	}
	if g.URI == "" {
		return nil, fmt.Errorf("gallery selection has neither reader nor uri")
	}
	rc, err := p.open(g.URI)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ResolveMediaType picks the best known media type: the declared one when it
// parses, then the URI extension, then the content itself, then the default.
func ResolveMediaType(declared, uri string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if ext := path.Ext(uri); ext != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
			if mt, _, err := mime.ParseMediaType(byExt); err == nil {
				return mt
			}
		}
	}
	if len(data) > 0 {
		if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
			return detected.String()
		}
	}
	return DefaultMediaType
}

func galleryFilename(uri, mediaType string) string {
	if uri != "" {
		if base := path.Base(strings.ReplaceAll(uri, "\\", "/")); base != "." && base != "/" {
			return base
		}
	}
	ext := ".jpg"
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 && mediaType != DefaultMediaType {
		ext = exts[0]
	}
	return "meal-" + uuid.New().String() + ext
}

// scaleDown shrinks img so its longest edge is at most maxDim.
func scaleDown(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = h * maxDim / w
	} else {
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
