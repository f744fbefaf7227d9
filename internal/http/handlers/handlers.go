package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-autoreply-backend/internal/autoreply"
	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/utils"
)

// ModuleService is the read side of the auto-reply engine.
// *autoreply.Manager satisfies it.
type ModuleService interface {
	GetConnList(ctx context.Context, channel oid.ID, keyword string, activeOnly bool) ([]*domain.Module, error)
	GetConnListOIDs(ctx context.Context, ids []oid.ID) ([]*domain.Module, error)
	GetModuleCountStats(ctx context.Context, channel oid.ID, limit int) ([]autoreply.ModuleStats, error)
	GetUniqueKeywordCountStats(ctx context.Context, channel oid.ID, limit int) ([]autoreply.KeywordStats, error)
}

// SessionService looks up remote-control sessions.
// *remotecontrol.Registry satisfies it.
type SessionService interface {
	GetCurrent(ctx context.Context, user, src oid.ID, updateExpiry bool) *domain.RemoteControlEntry
}

// Handlers groups the admin endpoints.
type Handlers struct {
	modules  ModuleService
	sessions SessionService
}

// New binds the handlers to their services.
func New(modules ModuleService, sessions SessionService) *Handlers {
	return &Handlers{modules: modules, sessions: sessions}
}

const (
	defaultStatsLimit = 20
	maxStatsLimit     = 500
	maxIDsPerLookup   = 100
)

//
// DTOs
//

// ContentView is a keyword or response.
type ContentView struct {
	Content     string `json:"content" example:"hello"`
	ContentType string `json:"content_type" example:"TEXT"`
}

func contentView(c domain.Content) ContentView {
	return ContentView{Content: c.Body, ContentType: c.Type.String()}
}

// ModuleView is an auto-reply module as served by the API.
type ModuleView struct {
	ID              string        `json:"id" example:"65f0a1b2c3d4e5f6a7b8c9d0"`
	ChannelID       string        `json:"channel_id"`
	Keyword         ContentView   `json:"keyword"`
	Responses       []ContentView `json:"responses"`
	CreatorID       string        `json:"creator_id"`
	Pinned          bool          `json:"pinned"`
	Private         bool          `json:"private"`
	CooldownSeconds int           `json:"cooldown_seconds"`
	TagIDs          []string      `json:"tag_ids,omitempty"`
	Active          bool          `json:"active"`
	CalledCount     int           `json:"called_count"`
	LastUsed        *time.Time    `json:"last_used,omitempty"`
	ReferTo         string        `json:"refer_to,omitempty"`
	RemoverID       string        `json:"remover_id,omitempty"`
	RemovedAt       *time.Time    `json:"removed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func hexOrEmpty(id oid.ID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func moduleView(m *domain.Module) ModuleView {
	v := ModuleView{
		ID:              m.ID().Hex(),
		ChannelID:       m.ChannelOID().Hex(),
		Keyword:         contentView(m.Keyword()),
		CreatorID:       m.CreatorOID().Hex(),
		Pinned:          m.Pinned(),
		Private:         m.Private(),
		CooldownSeconds: int(m.Cooldown() / time.Second),
		Active:          m.Active(),
		CalledCount:     m.CalledCount(),
		LastUsed:        timeOrNil(m.LastUsed()),
		ReferTo:         hexOrEmpty(m.ReferTo()),
		RemoverID:       hexOrEmpty(m.RemoverOID()),
		RemovedAt:       timeOrNil(m.RemovedAt()),
		CreatedAt:       m.CreatedAt(),
	}
	for _, r := range m.Responses() {
		v.Responses = append(v.Responses, contentView(r))
	}
	for _, id := range m.TagIDs() {
		v.TagIDs = append(v.TagIDs, id.Hex())
	}
	return v
}

func moduleViews(ms []*domain.Module) []ModuleView {
	out := make([]ModuleView, 0, len(ms))
	for _, m := range ms {
		out = append(out, moduleView(m))
	}
	return out
}

// ListModulesResponse wraps a module list.
type ListModulesResponse struct {
	Modules []ModuleView `json:"modules"`
}

// ModuleStatsRow is one row of the module usage ranking.
type ModuleStatsRow struct {
	Rank   string     `json:"rank" example:"T1"`
	Module ModuleView `json:"module"`
}

// ModuleStatsResponse wraps the module usage ranking.
type ModuleStatsResponse struct {
	Stats []ModuleStatsRow `json:"stats"`
}

// KeywordStatsRow is one row of the keyword ranking.
type KeywordStatsRow struct {
	Rank        string      `json:"rank" example:"2"`
	Keyword     ContentView `json:"keyword"`
	TotalCount  int         `json:"total_count"`
	ModuleCount int         `json:"module_count"`
}

// KeywordStatsResponse wraps the keyword ranking.
type KeywordStatsResponse struct {
	Stats []KeywordStatsRow `json:"stats"`
}

// SessionView is a live remote-control session.
type SessionView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SourceChannelID string    `json:"source_channel_id"`
	TargetChannelID string    `json:"target_channel_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	Locale          string    `json:"locale,omitempty" example:"zh-TW"`
}

//
// Helpers
//

// pathID parses the named path parameter, failing the request when it is
// not an object id.
func pathID(c *gin.Context, name string) (oid.ID, bool) {
	id, err := oid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidID, name+" must be a 24-character hex id")
		return oid.Nil, false
	}
	return id, true
}

func statsLimit(c *gin.Context) int {
	return utils.Clamp(utils.AtoiDefault(c.Query("limit"), defaultStatsLimit), 1, maxStatsLimit)
}

//
// Handlers
//

// ListModules godoc
// @ID          listChannelModules
// @Summary     List a channel's auto-reply modules
// @Description Returns the modules of a channel in creation order, optionally filtered by keyword and activity. Supports weak ETag via If-None-Match.
// @Tags        Modules
// @Produce     json
// @Param       channel        path    string  true  "Channel id"                  example(65f0a1b2c3d4e5f6a7b8c9d0)
// @Param       keyword        query   string  false "Exact keyword"
// @Param       active_only    query   bool    false "Only active modules"         default(true)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListModulesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /channels/{channel}/modules [get]
func (h *Handlers) ListModules(c *gin.Context) {
	channel, good := pathID(c, "channel")
	if !good {
		return
	}
	mods, err := h.modules.GetConnList(c.Request.Context(), channel,
		c.Query("keyword"), utils.BoolDefault(c.Query("active_only"), true))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	hashes := make([]uint64, len(mods))
	for i, m := range mods {
		hashes[i] = m.Hash()
	}
	if notModified(c, etagOf("modules:"+channel.Hex(), hashes)) {
		return
	}
	ok(c, ListModulesResponse{Modules: moduleViews(mods)})
}

// GetModules godoc
// @ID          getModules
// @Summary     Fetch modules by id
// @Description Returns the requested modules in request order. Unknown ids are skipped.
// @Tags        Modules
// @Produce     json
// @Param       ids  query  string  true  "Comma-separated module ids (max 100)"
// @Success     200  {object}  handlers.ListModulesResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /modules [get]
func (h *Handlers) GetModules(c *gin.Context) {
	raw := utils.SplitList(c.Query("ids"))
	if len(raw) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids is required")
		return
	}
	if len(raw) > maxIDsPerLookup {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "too many ids")
		return
	}
	ids := oid.ParseList(raw)
	if len(ids) != len(raw) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidID, "ids must be 24-character hex ids")
		return
	}
	mods, err := h.modules.GetConnListOIDs(c.Request.Context(), ids)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, ListModulesResponse{Modules: moduleViews(mods)})
}

// ModuleStats godoc
// @ID          channelModuleStats
// @Summary     Rank a channel's modules by usage
// @Description Most called first; ties share a "T"-prefixed rank.
// @Tags        Stats
// @Produce     json
// @Param       channel  path   string  true   "Channel id"
// @Param       limit    query  int     false  "Rows to return"  minimum(1) maximum(500) default(20)
// @Success     200  {object}  handlers.ModuleStatsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /channels/{channel}/stats/modules [get]
func (h *Handlers) ModuleStats(c *gin.Context) {
	channel, good := pathID(c, "channel")
	if !good {
		return
	}
	stats, err := h.modules.GetModuleCountStats(c.Request.Context(), channel, statsLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	resp := ModuleStatsResponse{Stats: make([]ModuleStatsRow, 0, len(stats))}
	for _, s := range stats {
		resp.Stats = append(resp.Stats, ModuleStatsRow{Rank: s.Rank, Module: moduleView(s.Module)})
	}
	ok(c, resp)
}

// KeywordStats godoc
// @ID          channelKeywordStats
// @Summary     Rank a channel's keywords by usage
// @Description Sums the calls of every module, active or not, that held each keyword.
// @Tags        Stats
// @Produce     json
// @Param       channel  path   string  true   "Channel id"
// @Param       limit    query  int     false  "Rows to return"  minimum(1) maximum(500) default(20)
// @Success     200  {object}  handlers.KeywordStatsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /channels/{channel}/stats/keywords [get]
func (h *Handlers) KeywordStats(c *gin.Context) {
	channel, good := pathID(c, "channel")
	if !good {
		return
	}
	stats, err := h.modules.GetUniqueKeywordCountStats(c.Request.Context(), channel, statsLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	resp := KeywordStatsResponse{Stats: make([]KeywordStatsRow, 0, len(stats))}
	for _, s := range stats {
		resp.Stats = append(resp.Stats, KeywordStatsRow{
			Rank:        s.Rank,
			Keyword:     contentView(s.Keyword),
			TotalCount:  s.TotalCount,
			ModuleCount: s.ModuleCount,
		})
	}
	ok(c, resp)
}

// GetSession godoc
// @ID          getRemoteControlSession
// @Summary     Current remote-control session
// @Description Returns the live session of a user on a source channel. Looking it up does not extend it.
// @Tags        RemoteControl
// @Produce     json
// @Param       user    path  string  true  "User id"
// @Param       source  path  string  true  "Source channel id"
// @Success     200  {object}  handlers.SessionView
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /remote-control/{user}/{source} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	user, good := pathID(c, "user")
	if !good {
		return
	}
	src, good := pathID(c, "source")
	if !good {
		return
	}
	e := h.sessions.GetCurrent(c.Request.Context(), user, src, false)
	if e == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no active session")
		return
	}
	ok(c, SessionView{
		ID:              e.ID().Hex(),
		UserID:          e.UserOID().Hex(),
		SourceChannelID: e.SourceChannelOID().Hex(),
		TargetChannelID: e.TargetChannelOID().Hex(),
		ExpiresAt:       e.ExpiryUTC(),
		Locale:          e.LocaleCode(),
	})
}
