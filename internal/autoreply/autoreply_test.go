package autoreply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/profile"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/validate"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	db       *gorm.DB
	m        *Manager
	profiles *profile.Manager
	clock    *clock
	channel  oid.ID
	user     oid.ID
}

func newFixture(t *testing.T, cv validate.ContentValidator) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	profiles := profile.NewManager(db, nil)
	if err := profiles.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate profiles: %v", err)
	}
	m := NewManager(db, nil, profiles, cv, Options{ShortWindow: 5 * time.Second})
	if err := m.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate modules: %v", err)
	}
	c := &clock{t: t0}
	m.Now = c.Now
	return &fixture{db: db, m: m, profiles: profiles, clock: c, channel: oid.New(), user: oid.New()}
}

func (f *fixture) add(t *testing.T, kw string, responses ...string) store.Result {
	t.Helper()
	args := AddArgs{Keyword: domain.Text(kw), ChannelOID: f.channel, CreatorOID: f.user}
	for _, r := range responses {
		args.Responses = append(args.Responses, domain.Text(r))
	}
	return f.m.AddConn(context.Background(), args)
}

func (f *fixture) grantPinned(t *testing.T, user oid.ID) {
	t.Helper()
	ctx := context.Background()
	r := f.profiles.CreateProfile(ctx, profile.ProfileValues{
		ChannelOID: f.channel, Name: "pin-" + user.Hex(), Permission: domain.AccessPinned,
	})
	require.True(t, r.OK(), "create profile: %v", r.Err)
	require.True(t, f.profiles.ConnectUser(ctx, user, f.channel, r.Model.ID()).OK())
}

func bodies(cs []domain.Content) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Body
	}
	return out
}

func TestOverwriteWithinShortWindowDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	require.Equal(t, outcome.OInserted, f.add(t, "A", "B").Outcome)
	f.clock.t = t0.Add(time.Second)
	r := f.add(t, "A", "C")
	require.Equal(t, outcome.OInserted, r.Outcome, "err: %v", r.Err)

	all, err := f.m.GetConnList(ctx, f.channel, "A", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Active())
	assert.Equal(t, []string{"C"}, bodies(all[0].Responses()))
}

func TestOverwriteAfterLongWindowKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	f.clock.t = t0.Add(-30 * 24 * time.Hour)
	first := f.add(t, "A", "B")
	require.Equal(t, outcome.OInserted, first.Outcome)

	f.clock.t = t0
	other := oid.New()
	r := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("A"), Responses: []domain.Content{domain.Text("C")},
		ChannelOID: f.channel, CreatorOID: other,
	})
	require.Equal(t, outcome.OInserted, r.Outcome, "err: %v", r.Err)

	all, err := f.m.GetConnList(ctx, f.channel, "A", false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	old, cur := all[0], all[1]
	assert.Equal(t, first.Model.ID(), old.ID())
	assert.False(t, old.Active())
	assert.Equal(t, other, old.RemoverOID())
	assert.WithinDuration(t, t0, old.RemovedAt(), time.Second)
	assert.True(t, cur.Active())

	active, err := f.m.GetConnList(ctx, f.channel, "A", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r.Model.ID(), active[0].ID())
}

// failModuleInserts returns a func that makes the next module INSERT on db
// fail.
func failModuleInserts(t *testing.T, db *gorm.DB) func() {
	t.Helper()
	armed := false
	err := db.Callback().Raw().Before("gorm:raw").Register("test:fail_module_insert", func(tx *gorm.DB) {
		if armed && strings.HasPrefix(tx.Statement.SQL.String(), `INSERT INTO "auto_reply_modules"`) {
			armed = false
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
	return func() { armed = true }
}

func TestOverwriteFailureKeepsPriorActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	f.clock.t = t0.Add(-30 * 24 * time.Hour)
	old := f.add(t, "A", "B")
	require.Equal(t, outcome.OInserted, old.Outcome)
	f.clock.t = t0
	fresh := f.add(t, "Q", "R")
	require.Equal(t, outcome.OInserted, fresh.Outcome)

	failNext := failModuleInserts(t, f.db)
	f.clock.t = t0.Add(time.Second)
	for _, kw := range []string{"A", "Q"} {
		failNext()
		r := f.add(t, kw, "new")
		assert.Equal(t, outcome.XInsertUnknown, r.Outcome, "keyword %s", kw)
	}

	for kw, want := range map[string]oid.ID{"A": old.Model.ID(), "Q": fresh.Model.ID()} {
		all, err := f.m.GetConnList(ctx, f.channel, kw, false)
		require.NoError(t, err)
		require.Len(t, all, 1, "keyword %s", kw)
		assert.Equal(t, want, all[0].ID())
		assert.True(t, all[0].Active())
		assert.True(t, all[0].RemoverOID().IsZero())
	}

	r := f.add(t, "A", "C")
	require.Equal(t, outcome.OInserted, r.Outcome, "err: %v", r.Err)
}

// interleave runs before once, on the first permission check, which sits
// between the existence read and the write in AddConn.
type interleave struct {
	PermissionChecker
	before func()
}

func (i *interleave) UserHasPermission(ctx context.Context, user, channel oid.ID, perm domain.Permission) (bool, error) {
	if fn := i.before; fn != nil {
		i.before = nil
		fn()
	}
	return i.PermissionChecker.UserHasPermission(ctx, user, channel, perm)
}

func TestConcurrentOverwriteLoserSeesDataExists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	f.grantPinned(t, f.user)

	f.clock.t = t0.Add(-30 * 24 * time.Hour)
	prior := f.add(t, "A", "old")
	require.Equal(t, outcome.OInserted, prior.Outcome)
	f.clock.t = t0

	other := oid.New()
	var winner store.Result
	f.m.Perms = &interleave{PermissionChecker: f.profiles, before: func() {
		winner = f.m.AddConn(ctx, AddArgs{
			Keyword: domain.Text("A"), Responses: []domain.Content{domain.Text("winner")},
			ChannelOID: f.channel, CreatorOID: other,
		})
	}}
	loser := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("A"), Responses: []domain.Content{domain.Text("loser")},
		ChannelOID: f.channel, CreatorOID: f.user, Pinned: true,
	})

	require.Equal(t, outcome.OInserted, winner.Outcome, "err: %v", winner.Err)
	require.Equal(t, outcome.ODataExists, loser.Outcome, "err: %v", loser.Err)
	assert.Equal(t, winner.Model.ID(), loser.Model.ID())

	active, err := f.m.GetConnList(ctx, f.channel, "A", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, winner.Model.ID(), active[0].ID())
	assert.Equal(t, []string{"winner"}, bodies(active[0].Responses()))

	all, err := f.m.GetConnList(ctx, f.channel, "A", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, prior.Model.ID(), all[0].ID())
	assert.Equal(t, other, all[0].RemoverOID())
}

func TestShortWindowCoversSubSecondCreation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	f.clock.t = t0.Add(900 * time.Millisecond)
	require.Equal(t, outcome.OInserted, f.add(t, "A", "B").Outcome)
	// 4.6s after the first add, inside the 5s window
	f.clock.t = t0.Add(5*time.Second + 500*time.Millisecond)
	require.Equal(t, outcome.OInserted, f.add(t, "A", "C").Outcome)

	all, err := f.m.GetConnList(ctx, f.channel, "A", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"C"}, bodies(all[0].Responses()))
}

func TestPinnedRequiresCapability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	pinned := AddArgs{
		Keyword: domain.Text("rules"), Responses: []domain.Content{domain.Text("be nice")},
		ChannelOID: f.channel, CreatorOID: f.user, Pinned: true,
	}

	r := f.m.AddConn(ctx, pinned)
	assert.Equal(t, outcome.XInsufficientPermission, r.Outcome)
	assert.ErrorIs(t, r.Err, ErrInsufficientPermission)
	n, err := f.m.Modules.Count(ctx, store.All())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.grantPinned(t, f.user)
	r = f.m.AddConn(ctx, pinned)
	require.Equal(t, outcome.OInserted, r.Outcome, "err: %v", r.Err)

	// an unprivileged user cannot overwrite or remove it
	stranger := oid.New()
	over := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("rules"), Responses: []domain.Content{domain.Text("anything goes")},
		ChannelOID: f.channel, CreatorOID: stranger,
	})
	assert.Equal(t, outcome.XPinnedContentExisted, over.Outcome)
	assert.Equal(t, outcome.XInsufficientPermission, f.m.ModuleMarkInactive(ctx, "rules", f.channel, stranger))

	assert.Equal(t, outcome.ODataUpdated, f.m.ModuleMarkInactive(ctx, "rules", f.channel, f.user))
	assert.Equal(t, outcome.XNotFound, f.m.ModuleMarkInactive(ctx, "rules", f.channel, f.user))
}

func TestMarkInactiveKeepsOldModules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	f.clock.t = t0.Add(-time.Hour)
	require.True(t, f.add(t, "hi", "hello").OK())
	f.clock.t = t0

	assert.Equal(t, outcome.ODataUpdated, f.m.ModuleMarkInactive(ctx, "hi", f.channel, f.user))

	all, err := f.m.GetConnList(ctx, f.channel, "", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active())
	assert.Equal(t, f.user, all[0].RemoverOID())

	got, err := f.m.GetResponses(ctx, "hi", domain.ContentText, f.channel)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCooldownStillCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	r := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("ping"), Responses: []domain.Content{domain.Text("pong")},
		ChannelOID: f.channel, CreatorOID: f.user, CooldownSec: 1,
	})
	require.True(t, r.OK(), "err: %v", r.Err)
	id := r.Model.ID()

	count := func() int {
		ms, err := f.m.GetConnListOIDs(ctx, []oid.ID{id})
		require.NoError(t, err)
		require.Len(t, ms, 1)
		return ms[0].CalledCount()
	}

	got, err := f.m.GetResponses(ctx, "ping", domain.ContentText, f.channel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pong", got[0].Content.Body)
	assert.Equal(t, 1, count())

	got, err = f.m.GetResponses(ctx, "ping", domain.ContentText, f.channel)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, count())

	f.clock.t = t0.Add(1300 * time.Millisecond)
	got, err = f.m.GetResponses(ctx, "ping", domain.ContentText, f.channel)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, count())

	ms, err := f.m.GetConnListOIDs(ctx, []oid.ID{id})
	require.NoError(t, err)
	assert.WithinDuration(t, f.clock.t, ms[0].LastUsed(), time.Second)
}

func TestGetResponsesMissAndContentType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	require.True(t, f.add(t, "123", "text reply").OK())

	got, err := f.m.GetResponses(ctx, "123", domain.ContentLineSticker, f.channel)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.m.GetResponses(ctx, "123", domain.ContentText, oid.New())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.m.GetResponses(ctx, "123", domain.ContentText, f.channel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].StaleRef)
}

// setCount forces the call counter of a module.
func setCount(t *testing.T, m *Manager, r store.Result, n int) {
	t.Helper()
	require.True(t, r.OK(), "add: %v", r.Err)
	u := m.Modules.UpdateOneOutcome(context.Background(), store.ByID(r.Model.ID()), store.Set(map[string]any{"c": n}))
	require.True(t, u.OK(), "set count: %v", u.Err)
}

func TestUniqueKeywordRanking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	day := 24 * time.Hour

	f.clock.t = t0.Add(-60 * day)
	setCount(t, f.m, f.add(t, "A", "a1"), 3)
	f.clock.t = t0.Add(-30 * day)
	setCount(t, f.m, f.add(t, "A", "a2"), 2)
	setCount(t, f.m, f.add(t, "C", "c1"), 0)
	f.clock.t = t0
	setCount(t, f.m, f.add(t, "A", "a3"), 2)
	setCount(t, f.m, f.add(t, "B", "b"), 9)
	setCount(t, f.m, f.add(t, "C", "c2"), 0)
	setCount(t, f.m, f.add(t, "D", "d"), 0)

	stats, err := f.m.GetUniqueKeywordCountStats(ctx, f.channel, 0)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	type row struct {
		kw           string
		total, count int
		rank         string
	}
	got := make([]row, len(stats))
	for i, s := range stats {
		got[i] = row{s.Keyword.Body, s.TotalCount, s.ModuleCount, s.Rank}
		assert.Equal(t, domain.ContentText, s.Keyword.Type)
	}
	assert.Equal(t, []row{
		{"B", 9, 1, "1"},
		{"A", 7, 3, "2"},
		{"C", 0, 2, "T3"},
		{"D", 0, 1, "T3"},
	}, got)

	top, err := f.m.GetUniqueKeywordCountStats(ctx, f.channel, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "C", top[2].Keyword.Body)
	assert.Equal(t, []string{"1", "2", "3"}, []string{top[0].Rank, top[1].Rank, top[2].Rank})
}

func TestModuleCountStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	x := f.add(t, "x", "1")
	f.clock.t = t0.Add(time.Second)
	y := f.add(t, "y", "1")
	f.clock.t = t0.Add(2 * time.Second)
	z := f.add(t, "z", "1")
	setCount(t, f.m, x, 4)
	setCount(t, f.m, y, 4)
	setCount(t, f.m, z, 1)

	stats, err := f.m.GetModuleCountStats(ctx, f.channel, 0)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, x.Model.ID(), stats[0].Module.ID())
	assert.Equal(t, y.Model.ID(), stats[1].Module.ID())
	assert.Equal(t, "T1", stats[0].Rank)
	assert.Equal(t, "T1", stats[1].Rank)
	assert.Equal(t, "3", stats[2].Rank)

	one, err := f.m.GetModuleCountStats(ctx, f.channel, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "1", one[0].Rank)
}

func TestGetConnListOIDsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	a := f.add(t, "a", "1")
	f.clock.t = t0.Add(time.Second)
	b := f.add(t, "b", "1")
	require.True(t, a.OK())
	require.True(t, b.OK())

	ms, err := f.m.GetConnListOIDs(ctx, []oid.ID{b.Model.ID(), oid.New(), a.Model.ID()})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, b.Model.ID(), ms[0].ID())
	assert.Equal(t, a.Model.ID(), ms[1].ID())

	ms, err = f.m.GetConnListOIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

type rejectImages struct{}

func (rejectImages) IsImage(context.Context, string) bool { return false }

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{Images: rejectImages{}})
	base := func() AddArgs {
		return AddArgs{
			Keyword: domain.Text("k"), Responses: []domain.Content{domain.Text("r")},
			ChannelOID: f.channel, CreatorOID: f.user,
		}
	}

	cases := []struct {
		name string
		edit func(*AddArgs)
		want outcome.Code
	}{
		{"empty keyword", func(a *AddArgs) { a.Keyword = domain.Text("") }, outcome.XARInvalidKeyword},
		{"no responses", func(a *AddArgs) { a.Responses = nil }, outcome.XARInvalidResponse},
		{"empty response", func(a *AddArgs) { a.Responses = []domain.Content{domain.Text("")} }, outcome.XARInvalidResponse},
		{"image rejected", func(a *AddArgs) {
			a.Responses = []domain.Content{{Body: "https://example.com/a.png", Type: domain.ContentImage}}
		}, outcome.XARInvalidResponse},
		{"bad sticker id", func(a *AddArgs) {
			a.Keyword = domain.Content{Body: "abc", Type: domain.ContentLineSticker}
		}, outcome.XARInvalidKeyword},
		{"too many", func(a *AddArgs) {
			for i := 0; i < domain.DefaultModuleLimits.MaxResponses; i++ {
				a.Responses = append(a.Responses, domain.Text("more"))
			}
		}, outcome.XARTooManyResponses},
		{"negative cooldown", func(a *AddArgs) { a.CooldownSec = -1 }, outcome.XInvalidField},
		{"unknown reference", func(a *AddArgs) { a.ReferOID = oid.New() }, outcome.XARInvalidReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := base()
			tc.edit(&args)
			r := f.m.AddConn(ctx, args)
			assert.Equal(t, tc.want, r.Outcome, "err: %v", r.Err)
		})
	}

	n, err := f.m.Modules.Count(ctx, store.All())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReferenceModules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})

	f.clock.t = t0.Add(-time.Hour)
	target := f.add(t, "origin", "shared answer")
	require.True(t, target.OK())
	f.clock.t = t0

	ref := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("alias"), ChannelOID: f.channel, CreatorOID: f.user, ReferOID: target.Model.ID(),
	})
	require.Equal(t, outcome.OInserted, ref.Outcome, "err: %v", ref.Err)

	// references cannot chain or cross channels
	chained := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("alias2"), ChannelOID: f.channel, CreatorOID: f.user, ReferOID: ref.Model.ID(),
	})
	assert.Equal(t, outcome.XARInvalidReference, chained.Outcome)
	cross := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("alias3"), ChannelOID: oid.New(), CreatorOID: f.user, ReferOID: target.Model.ID(),
	})
	assert.Equal(t, outcome.XARInvalidReference, cross.Outcome)

	got, err := f.m.GetResponses(ctx, "alias", domain.ContentText, f.channel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "shared answer", got[0].Content.Body)
	assert.False(t, got[0].StaleRef)

	// retiring the target leaves the reference on its own copy
	require.Equal(t, outcome.ODataUpdated, f.m.ModuleMarkInactive(ctx, "origin", f.channel, f.user))
	got, err = f.m.GetResponses(ctx, "alias", domain.ContentText, f.channel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "shared answer", got[0].Content.Body)
	assert.True(t, got[0].StaleRef)
}

func TestRankStrings(t *testing.T) {
	vals := []int{9, 7, 7, 7, 3, 0, 0}
	got := RankStrings(len(vals), func(i, j int) bool { return vals[i] == vals[j] })
	assert.Equal(t, []string{"1", "T2", "T2", "T2", "5", "T6", "T6"}, got)
	assert.Empty(t, RankStrings(0, nil))
}

func TestKeywordStatsReportsUnknownColumns(t *testing.T) {
	f := newFixture(t, validate.ContentValidator{})
	f.m.Modules = store.NewCollection(f.db, "auto_reply_modules",
		model.NewSchema("Bare", model.ObjectID("ChannelOid", "ch")), nil)

	_, err := f.m.GetUniqueKeywordCountStats(context.Background(), f.channel, 5)
	assert.ErrorIs(t, err, store.ErrUnknownPath)
}

func TestExcludedOIDsAreStoredButNotConsulted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validate.ContentValidator{})
	excluded := []oid.ID{oid.New(), oid.New()}
	r := f.m.AddConn(ctx, AddArgs{
		Keyword: domain.Text("hey"), Responses: []domain.Content{domain.Text("ho")},
		ChannelOID: f.channel, CreatorOID: f.user, ExcludedOIDs: excluded,
	})
	require.Equal(t, outcome.OInserted, r.Outcome, "err: %v", r.Err)

	ms, err := f.m.GetConnListOIDs(ctx, []oid.ID{r.Model.ID()})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, excluded, ms[0].ExcludedOIDs())

	got, err := f.m.GetResponses(ctx, "hey", domain.ContentText, f.channel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ho", got[0].Content.Body)
}
