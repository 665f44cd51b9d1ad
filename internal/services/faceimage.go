package services

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/openseva/seva-backend/internal/clients/faceid"
)

const (
	labelMatched    = "PARTICIPANT"
	labelNotMatched = "PARTICIPANT NOT FOUND"
)

var (
	annotationFontOnce sync.Once
	annotationFont     font.Face
)

// loadAnnotationFont loads the TTF named by ANNOTATION_FONT once. When the
// env var is unset or the file is unreadable, gg's built-in face is used.
func loadAnnotationFont() font.Face {
	annotationFontOnce.Do(func() {
		path := strings.TrimSpace(os.Getenv("ANNOTATION_FONT"))
		if path == "" {
			return
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return
		}
		parsed, err := truetype.Parse(raw)
		if err != nil {
			return
		}
		annotationFont = truetype.NewFace(parsed, &truetype.Options{Size: 24})
	})
	return annotationFont
}

// annotateFaceCheck renders the audit image for one verification: the best
// candidate's bounding box and a verdict label, or a banner when no face was
// found. Returns PNG bytes.
func annotateFaceCheck(raw []byte, face *faceid.Face, matched bool) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode evidence image: %w", err)
	}

	dc := gg.NewContextForImage(img)
	if ff := loadAnnotationFont(); ff != nil {
		dc.SetFontFace(ff)
	}

	if matched {
		dc.SetRGB(0, 0.8, 0.2)
	} else {
		dc.SetRGB(0.9, 0.1, 0.1)
	}

	if face == nil {
		dc.SetLineWidth(0)
		dc.DrawRectangle(0, 0, float64(dc.Width()), 40)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(labelNotMatched, float64(dc.Width())/2, 20, 0.5, 0.35)
	} else {
		dc.SetLineWidth(4)
		dc.DrawRectangle(float64(face.X), float64(face.Y), float64(face.W), float64(face.H))
		dc.Stroke()

		label := labelNotMatched
		if matched {
			label = labelMatched
		}
		labelY := float64(face.Y) - 10
		if labelY < 14 {
			labelY = float64(face.Y+face.H) + 20
		}
		dc.DrawStringAnchored(label, float64(face.X), labelY, 0, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}
