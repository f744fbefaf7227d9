// Package domain declares the persisted models of the auto-reply backend:
// auto-reply modules and their content, channels, profiles and profile
// connections, users, and remote-control entries.
//
// Every model is described by a model.Schema whose fields carry the short
// storage keys used on disk (for example "kw" for a module keyword and "ch"
// for the owning channel). Typed wrappers (Module, Channel, Profile, ...)
// embed the generic *model.Model and expose the fields with Go types, so
// callers never index by field name outside this package.
//
// Enumerations serialise as their integer code and permission bit sets as
// their integer composite.
package domain

import (
	"net/url"
	"regexp"

	"github.com/tbourn/go-autoreply-backend/internal/model"
)

// ContentType discriminates the payload of a Content.
type ContentType int

const (
	ContentText ContentType = iota
	ContentImage
	ContentLineSticker
)

// ContentTypes lists every content type in code order.
var ContentTypes = []ContentType{ContentText, ContentImage, ContentLineSticker}

func (t ContentType) String() string {
	switch t {
	case ContentText:
		return "TEXT"
	case ContentImage:
		return "IMAGE"
	case ContentLineSticker:
		return "LINE_STICKER"
	}
	return "UNKNOWN"
}

// ParseContentType resolves a name as produced by String.
func ParseContentType(s string) (ContentType, bool) {
	for _, t := range ContentTypes {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

var stickerID = regexp.MustCompile(`^[0-9]+$`)

// ContentSchema is a (body, type) pair. The body must be non-empty text, an
// absolute http(s) URL for images, or a numeric sticker id.
var ContentSchema = func() *model.Schema {
	s := model.NewSchema("Content",
		model.Text("Content", "c", model.IsRequired()),
		model.Enum("ContentType", "t", ContentTypes),
	)
	s.Validity = func(m *model.Model) model.ValidityResult {
		c := ContentOf(m)
		switch {
		case c.Body == "":
			return model.ValidityContentEmpty
		case c.Type == ContentImage && !isHTTPURL(c.Body):
			return model.ValidityContentNotURL
		case c.Type == ContentLineSticker && !stickerID.MatchString(c.Body):
			return model.ValidityContentNotSticker
		}
		return model.ValidityOK
	}
	return s
}()

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Content is the value form of a content model.
type Content struct {
	Body string      `json:"content"`
	Type ContentType `json:"content_type"`
}

// Text is shorthand for a TEXT content.
func Text(body string) Content { return Content{Body: body, Type: ContentText} }

// ContentOf reads a content model. A nil model yields the zero Content.
func ContentOf(m *model.Model) Content {
	if m == nil {
		return Content{}
	}
	return Content{
		Body: m.String("Content"),
		Type: model.Value[ContentType](m, "ContentType"),
	}
}

// Values renders c as application values for ContentSchema.
func (c Content) Values() model.Values {
	return model.Values{"Content": c.Body, "ContentType": c.Type}
}

// Model builds and validates the content model.
func (c Content) Model() (*model.Model, error) {
	return ContentSchema.FromApp(c.Values())
}

func contentValues(cs []Content) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = c.Values()
	}
	return out
}

func contentsOf(xs []any) []Content {
	out := make([]Content, 0, len(xs))
	for _, x := range xs {
		if m, ok := x.(*model.Model); ok {
			out = append(out, ContentOf(m))
		}
	}
	return out
}
