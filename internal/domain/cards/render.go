package cards

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"
	"unicode"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Card image size in pixels, ID-1 proportions.
const (
	Width  = 1012
	Height = 638

	margin = 40
	bandH  = 150
)

var (
	background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	bandColor  = color.NRGBA{R: 14, G: 92, B: 99, A: 255}
	ink        = color.NRGBA{R: 33, G: 37, B: 41, A: 255}
	muted      = color.NRGBA{R: 108, G: 117, B: 125, A: 255}
	white      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Face is what gets printed on a card.
type Face struct {
	OrganizationName string
	MemberName       string
	Code             string
	ParentCode       string
	Category         string
	Status           string
	ValidUntil       *time.Time
}

// Render draws the card and encodes it as PNG.
func Render(f Face) ([]byte, error) {
	img := imaging.New(Width, Height, background)
	img = imaging.Paste(img, imaging.New(Width, bandH, bandColor), image.Pt(0, 0))

	img = text(img, f.OrganizationName, 5, white, margin, 40)
	img = text(img, "MEMBER CARD", 2, white, margin, 110)

	img = text(img, f.MemberName, 4, ink, margin, 190)
	img = text(img, "Code: "+f.Code, 3, ink, margin, 290)
	if f.ParentCode != "" {
		img = text(img, "Dependent of "+f.ParentCode, 2, muted, margin, 345)
	}
	category := f.Category
	if category == "" {
		category = "-"
	}
	img = text(img, "Category: "+category, 3, ink, margin, 390)
	valid := "-"
	if f.ValidUntil != nil {
		valid = f.ValidUntil.UTC().Format("2006-01-02")
	}
	img = text(img, "Valid until: "+valid, 3, ink, margin, 460)
	img = text(img, "Status: "+f.Status, 2, muted, margin, 560)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// text draws s with the 7x13 bitmap face scaled by scale, with its top-left
// corner at (x, y). Text wider than the card is cut.
func text(dst *image.NRGBA, s string, scale int, c color.Color, x, y int) *image.NRGBA {
	face := basicfont.Face7x13
	s = clip(ascii(s), (Width-x-margin)/(face.Advance*scale))
	if s == "" {
		return dst
	}
	w := font.MeasureString(face, s).Ceil()
	h := face.Height
	glyphs := imaging.New(w, h, color.NRGBA{})
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)
	big := imaging.Resize(glyphs, w*scale, h*scale, imaging.NearestNeighbor)
	return imaging.Overlay(dst, big, image.Pt(x, y), 1.0)
}

func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// ascii folds s onto printable ASCII, the only glyphs the bitmap face has.
// Accents are stripped; anything else becomes '?'.
func ascii(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, folded)
}
