package autoreply

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/store"
)

// GetConnList lists the modules of channel in creation order. A non-empty
// keyword restricts the list to that keyword content.
func (m *Manager) GetConnList(ctx context.Context, channel oid.ID, keyword string, activeOnly bool) ([]*domain.Module, error) {
	ctx, span := m.start(ctx, "GetConnList", attribute.String("channel.id", channel.Hex()))
	defer span.End()

	parts := []store.Filter{store.Eq("ch", channel)}
	if keyword != "" {
		parts = append(parts, store.Eq("kw.c", keyword))
	}
	if activeOnly {
		parts = append(parts, store.Eq("at", true))
	}
	ms, err := m.Modules.FindAll(ctx, store.And(parts...), store.FindOptions{Sort: []store.Sort{store.Asc(model.KeyID)}})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return wrap(ms), nil
}

// GetConnListOIDs fetches modules by id, in the order of ids. Unknown ids
// are skipped.
func (m *Manager) GetConnListOIDs(ctx context.Context, ids []oid.ID) ([]*domain.Module, error) {
	ctx, span := m.start(ctx, "GetConnListOIDs", attribute.Int("ids", len(ids)))
	defer span.End()

	if len(ids) == 0 {
		return []*domain.Module{}, nil
	}
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	ms, err := m.Modules.FindAll(ctx, store.In(model.KeyID, vals...), store.FindOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	byID := make(map[oid.ID]*domain.Module, len(ms))
	for _, x := range ms {
		byID[x.ID()] = domain.AsModule(x)
	}
	out := make([]*domain.Module, 0, len(ids))
	for _, id := range ids {
		if x, ok := byID[id]; ok {
			out = append(out, x)
		}
	}
	return out, nil
}

// ModuleStats is one row of the module usage ranking.
type ModuleStats struct {
	Module *domain.Module
	Rank   string
}

// GetModuleCountStats ranks the modules of channel by call count, most used
// first, older modules first among equal counts. limit <= 0 means no limit.
func (m *Manager) GetModuleCountStats(ctx context.Context, channel oid.ID, limit int) ([]ModuleStats, error) {
	ctx, span := m.start(ctx, "GetModuleCountStats", attribute.String("channel.id", channel.Hex()))
	defer span.End()

	ms, err := m.Modules.FindAll(ctx, store.Eq("ch", channel), store.FindOptions{
		Sort:  []store.Sort{store.Desc("c"), store.Asc(model.KeyID)},
		Limit: limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	mods := wrap(ms)
	ranks := RankStrings(len(mods), func(i, j int) bool {
		return mods[i].CalledCount() == mods[j].CalledCount()
	})
	out := make([]ModuleStats, len(mods))
	for i, x := range mods {
		out[i] = ModuleStats{Module: x, Rank: ranks[i]}
	}
	return out, nil
}

// KeywordStats is one row of the unique keyword ranking.
type KeywordStats struct {
	Keyword domain.Content `json:"keyword"`
	// TotalCount sums the calls of every module that ever held the keyword.
	TotalCount int `json:"total_count"`
	// ModuleCount is how many modules, active or not, held the keyword.
	ModuleCount int    `json:"module_count"`
	Rank        string `json:"rank"`
}

type keywordRow struct {
	Content     string
	ContentType int
	TotalCount  int64
	ModuleCount int64
}

// GetUniqueKeywordCountStats ranks the distinct keywords of channel by the
// total call count across all their modules. Ties on the total share a "T"
// rank; within a tie, keywords held by more modules come first, then by
// keyword content. limit <= 0 means no limit.
func (m *Manager) GetUniqueKeywordCountStats(ctx context.Context, channel oid.ID, limit int) ([]KeywordStats, error) {
	ctx, span := m.start(ctx, "GetUniqueKeywordCountStats", attribute.String("channel.id", channel.Hex()))
	defer span.End()

	cols := make([]string, 3)
	for i, path := range []string{"kw.c", "kw.t", "c"} {
		col, err := m.Modules.Column(path)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		cols[i] = col
	}
	kc, kt, cnt := cols[0], cols[1], cols[2]

	q, err := m.Modules.Query(ctx, store.Eq("ch", channel))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	q = q.Select(kc + " AS content, " + kt + " AS content_type, " +
		"COALESCE(SUM(" + cnt + "), 0) AS total_count, COUNT(*) AS module_count").
		Group(kc + ", " + kt).
		Order("total_count DESC, module_count DESC, content ASC, content_type ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []keywordRow
	if err := q.Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	ranks := RankStrings(len(rows), func(i, j int) bool {
		return rows[i].TotalCount == rows[j].TotalCount
	})
	out := make([]KeywordStats, len(rows))
	for i, r := range rows {
		out[i] = KeywordStats{
			Keyword:     domain.Content{Body: r.Content, Type: domain.ContentType(r.ContentType)},
			TotalCount:  int(r.TotalCount),
			ModuleCount: int(r.ModuleCount),
			Rank:        ranks[i],
		}
	}
	return out, nil
}

func wrap(ms []*model.Model) []*domain.Module {
	out := make([]*domain.Module, len(ms))
	for i, x := range ms {
		out[i] = domain.AsModule(x)
	}
	return out
}
