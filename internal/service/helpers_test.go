package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/metrics"
	"github.com/sakif/village-gacha/internal/model"
	sqliteRepo "github.com/sakif/village-gacha/internal/repository/sqlite"
	"github.com/sakif/village-gacha/internal/storage"
	"github.com/sakif/village-gacha/internal/village"
)

// =========================================================================
// FIXTURES
// =========================================================================

var kst = time.FixedZone("KST", 9*60*60)

// testVillages is a small catalog; no village is in 경상남도.
var testVillages = []model.Village{
	{ID: 1, Name: "산골마을", SidoName: "강원특별자치도", SigunguName: "평창군", ProgramName: "농촌체험 감자캐기", ImageURL: village.ImageURL(1)},
	{ID: 2, Name: "갯벌마을", SidoName: "전라남도", SigunguName: "신안군", ProgramName: "갯벌체험", ImageURL: village.ImageURL(2)},
	{ID: 3, Name: "한옥마을", SidoName: "강원특별자치도", SigunguName: "강릉시", ProgramName: "전통문화체험", ImageURL: village.ImageURL(3)},
	{ID: 4, Name: "돌담마을", SidoName: "제주특별자치도", SigunguName: "서귀포시", ProgramName: "농촌체험 귤따기", ImageURL: village.ImageURL(4)},
}

// testClock is a settable clock shared by every service in a testEnv.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// testEnv wires every service over one in-memory database.
type testEnv struct {
	db      *sqliteRepo.DB
	catalog *village.Catalog
	clock   *testClock
	images  *storage.LocalStore
	tokens  *auth.TokenService

	auth        *AuthService
	gacha       *GachaService
	villages    *VillageService
	collections *CollectionService
	memories    *MemoryService
	users       *UserService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestEnv starts the clock at 2026-10-17 10:00 KST. The gacha RNG always
// picks the first candidate unless pick is overridden per test.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	logger := newTestLogger()
	catalog := village.New(testVillages)
	clock := &testClock{t: time.Date(2026, 10, 17, 10, 0, 0, 0, kst)}
	day := NewDayPolicy(kst)
	rec := metrics.Nop{}

	env := &testEnv{
		db:      db,
		catalog: catalog,
		clock:   clock,
		images:  images,
		tokens:  tokens,
	}
	// Cost 4 is the bcrypt minimum and keeps the tests fast.
	env.auth = NewAuthService(db.Users(), tokens, auth.NewPasswordServiceWithCost(4), rec, logger)
	env.gacha = NewGachaService(db.Draws(), db.Collections(), catalog, day, rec, logger,
		WithClock(clock.Now),
		WithRand(func(int) int { return 0 }),
	)
	env.villages = NewVillageService(catalog, db.Collections())
	env.collections = NewCollectionService(db.Collections(), catalog, rec, logger)
	env.collections.now = clock.Now
	env.memories = NewMemoryService(db.Memories(), catalog, images, day, logger)
	env.memories.now = clock.Now
	env.users = NewUserService(db.Users(), db.Collections(), db.Memories(), logger)
	return env
}

// signup creates a password user and returns its ID.
func (e *testEnv) signup(t *testing.T, username string) int64 {
	t.Helper()
	u, err := e.auth.Signup(context.Background(), SignupInput{
		Username: username,
		Password: "pw123456",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return u.UserID
}

func ptr[T any](v T) *T { return &v }
