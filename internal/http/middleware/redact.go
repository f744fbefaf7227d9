package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// RedactOptions extends the built-in masks. Header and query parameter names
// match case-insensitively.
type RedactOptions struct {
	MaskHeaders     []string
	MaskQueryParams []string
}

var (
	defaultMaskHeaders = []string{"authorization", "cookie", "set-cookie", "x-api-key", "x-line-signature"}
	// Platform access tokens and webhook secrets travel as query parameters
	// when adapters call back into the admin API.
	defaultMaskParams = []string{"token", "access_token", "channel_token", "secret", "signature"}

	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so 24-char hex object ids never match.
	phoneRE = regexp.MustCompile(`\+?\b\d{2,4}[ .-]?\d{3,4}[ .-]?\d{4}\b`)
)

type redactor struct {
	maskHeaders map[string]struct{}
	maskParams  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{maskHeaders: map[string]struct{}{}, maskParams: map[string]struct{}{}}
	add := func(set map[string]struct{}, names []string) {
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	add(r.maskHeaders, defaultMaskHeaders)
	add(r.maskHeaders, opts.MaskHeaders)
	add(r.maskParams, defaultMaskParams)
	add(r.maskParams, opts.MaskQueryParams)
	return r
}

// value scrubs e-mail addresses and phone numbers from free text.
func (r *redactor) value(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// query masks secret parameters and scrubs the rest. Unparseable queries are
// scrubbed as plain text. Keys come out sorted.
func (r *redactor) query(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return r.value(raw)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		_, secret := r.maskParams[strings.ToLower(k)]
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if secret {
				b.WriteString(redacted)
			} else {
				b.WriteString(r.value(v))
			}
		}
	}
	return b.String()
}

func (r *redactor) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.maskHeaders[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = r.value(strings.Join(vv, ", "))
	}
	return out
}
