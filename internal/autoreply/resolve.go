package autoreply

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/observability"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/store"
)

// Response is one content to render. StaleRef is set when the module is a
// reference whose target is no longer active, so the module's own copy of
// the responses is used instead.
type Response struct {
	Content  domain.Content `json:"content"`
	StaleRef bool           `json:"stale_ref"`
}

// GetResponses resolves a keyword in channel. It returns nothing when no
// active module matches or the module is cooling down. Matching modules
// have their call count and last-used time bumped in the background, even
// during cooldown.
func (m *Manager) GetResponses(ctx context.Context, keyword string, ctype domain.ContentType, channel oid.ID) ([]Response, error) {
	ctx, span := m.start(ctx, "GetResponses",
		attribute.String("channel.id", channel.Hex()),
		attribute.String("keyword.type", ctype.String()),
	)
	defer span.End()

	found, err := m.Modules.FindOneCasted(ctx, activeAt(channel, domain.Content{Body: keyword, Type: ctype}))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	mod := domain.AsModule(found)
	if mod == nil {
		observability.AutoReplyResolves.WithLabelValues("miss").Inc()
		return nil, nil
	}

	now := m.now()
	m.Modules.UpdateOneAsync(store.ByID(mod.ID()), store.Update{
		Inc: map[string]int{"c": 1},
		Max: map[string]any{"l": now},
	})

	if cd := mod.Cooldown(); cd > 0 && !mod.LastUsed().IsZero() && now.Sub(mod.LastUsed()) < cd {
		observability.AutoReplyResolves.WithLabelValues("cooldown").Inc()
		span.SetAttributes(attribute.Bool("cooldown", true))
		return nil, nil
	}

	contents, stale, err := m.responsesOf(ctx, mod)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	observability.AutoReplyResolves.WithLabelValues("hit").Inc()

	out := make([]Response, len(contents))
	for i, c := range contents {
		out[i] = Response{Content: c, StaleRef: stale}
	}
	return out, nil
}

// responsesOf follows at most one reference hop. A reference never points
// at another reference, so a chain is treated as stale.
func (m *Manager) responsesOf(ctx context.Context, mod *domain.Module) ([]domain.Content, bool, error) {
	if !mod.IsReference() {
		return mod.Responses(), false, nil
	}
	target, err := m.Modules.FindOneCasted(ctx, store.ByID(mod.ReferTo()))
	if err != nil {
		return nil, false, err
	}
	t := domain.AsModule(target)
	if t == nil || !t.Active() || t.IsReference() {
		return mod.Responses(), true, nil
	}
	return t.Responses(), false, nil
}
