package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/config"
	"github.com/sakif/village-gacha/internal/service"
)

const testCSV = `체험마을명,시도명,시군구명,소재지도로명주소,소재지지번주소,대표전화번호,위도,경도,체험프로그램명,체험프로그램구분
산골마을,강원특별자치도,평창군,강원 평창군 감자로 1,,033-000-0000,37.5,128.4,농촌체험 감자캐기,체험
갯벌마을,전라남도,신안군,전남 신안군 갯벌로 2,,061-000-0000,34.8,126.1,갯벌체험,체험
한옥마을,강원특별자치도,강릉시,강원 강릉시 한옥길 3,,033-111-1111,37.7,128.9,전통문화체험,문화
`

// envelope is the union of the success and error shapes.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "villages.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	return &config.Config{
		DBPath:            ":memory:",
		JWTSecret:         "test-secret-at-least-16-chars!!",
		TokenTTL:          time.Hour,
		LogLevel:          "error",
		LogFormat:         "text",
		DayTimezone:       "Asia/Seoul",
		DailyDrawLimit:    1,
		VillageCSVPath:    csvPath,
		CORSAllowedOrigin: "*",
		ImageStore:        "local",
		UploadDir:         filepath.Join(dir, "uploads"),
		UploadBaseURL:     "/uploads",
	}
}

// newTestServer builds a server over an in-memory database. The gacha
// clock is pinned to 2026-10-17 12:00 KST and always picks the first
// candidate.
func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	noon := time.Date(2026, 10, 17, 12, 0, 0, 0, time.FixedZone("KST", 9*60*60))

	srv, err := New(context.Background(), cfg, logger,
		WithPasswordService(auth.NewPasswordServiceWithCost(4)),
		WithGachaOptions(
			service.WithClock(func() time.Time { return noon }),
			service.WithRand(func(int) int { return 0 }),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// login signs up username and returns a bearer token.
func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"password": "pw123456",
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "pw123456",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	decode(t, rr, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestSignupLoginDrawScenario(t *testing.T) {
	h := newTestServer(t, testConfig(t))

	rr := do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "pw123456", "email": "a@x.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var user struct {
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	env := decode(t, rr, &user)
	assert.True(t, env.Success)
	assert.Equal(t, "회원가입이 완료되었습니다.", env.Message)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "pw123456"})
	require.Equal(t, http.StatusOK, rr.Code)
	var session struct {
		Token string `json:"token"`
		User  struct {
			UserID int64 `json:"userId"`
		} `json:"user"`
	}
	env = decode(t, rr, &session)
	assert.Equal(t, "로그인 성공", env.Message)
	assert.Equal(t, user.UserID, session.User.UserID)
	token := session.Token

	var status struct {
		CanDraw        bool `json:"canDraw"`
		RemainingCount int  `json:"remainingCount"`
	}
	rr = do(t, h, http.MethodGet, "/api/gacha/status", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &status)
	assert.True(t, status.CanDraw)
	assert.Equal(t, 1, status.RemainingCount)

	rr = do(t, h, http.MethodPost, "/api/gacha/draw", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var drawn struct {
		VillageID   int64  `json:"villageId"`
		VillageName string `json:"villageName"`
		IsNew       bool   `json:"isNew"`
		DrawnAt     string `json:"drawnAt"`
	}
	env = decode(t, rr, &drawn)
	assert.Equal(t, "가챠 뽑기 성공", env.Message)
	assert.Equal(t, int64(1), drawn.VillageID)
	assert.Equal(t, "산골마을", drawn.VillageName)
	assert.True(t, drawn.IsNew)
	assert.Equal(t, "2026-10-17T12:00:00+09:00", drawn.DrawnAt)

	rr = do(t, h, http.MethodPost, "/api/gacha/draw", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	env = decode(t, rr, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "DAILY_LIMIT_EXCEEDED", env.Error)

	rr = do(t, h, http.MethodGet, "/api/gacha/status", token, nil)
	decode(t, rr, &status)
	assert.False(t, status.CanDraw)
	assert.Zero(t, status.RemainingCount)
}

func TestDraw_EmptyRegionFails(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	token := login(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/api/gacha/draw", token, map[string]string{"region": "경상남도"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "NO_VILLAGES_AVAILABLE", decode(t, rr, nil).Error)

	// The failed draw did not use up the day.
	rr = do(t, h, http.MethodPost, "/api/gacha/draw", token, map[string]string{"region": "전라남도"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var drawn struct {
		VillageID int64 `json:"villageId"`
	}
	decode(t, rr, &drawn)
	assert.Equal(t, int64(2), drawn.VillageID)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestServer(t, testConfig(t))

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/gacha/status"},
		{http.MethodPost, "/api/gacha/draw"},
		{http.MethodGet, "/api/collections"},
		{http.MethodPost, "/api/collections"},
		{http.MethodGet, "/api/collections/stats"},
		{http.MethodDelete, "/api/collections/1"},
		{http.MethodGet, "/api/memories"},
		{http.MethodPost, "/api/memories"},
		{http.MethodGet, "/api/memories/1"},
		{http.MethodPut, "/api/memories/1"},
		{http.MethodDelete, "/api/memories/1"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodPut, "/api/users/me"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rr := do(t, h, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "UNAUTHORIZED", decode(t, rr, nil).Error)

			rr = do(t, h, rt.method, rt.path, "not-a-jwt", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	login(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice", "password": "pw123456", "email": "other@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "USERNAME_ALREADY_EXISTS", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "al", "password": "pw123456", "email": "al@example.com",
	})
	env := decode(t, rr, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error)
	assert.Equal(t, "username", env.Field)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error)
}

func TestVillages(t *testing.T) {
	h := newTestServer(t, testConfig(t))

	rr := do(t, h, http.MethodGet, "/api/villages?page=1&size=2", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Content []struct {
			VillageID int64  `json:"villageId"`
			ImageURL  string `json:"imageUrl"`
		} `json:"content"`
		TotalElements int64 `json:"totalElements"`
		TotalPages    int   `json:"totalPages"`
		CurrentPage   int   `json:"currentPage"`
		Size          int   `json:"size"`
	}
	decode(t, rr, &page)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.Size)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(3), page.Content[0].VillageID)
	assert.Equal(t, "https://picsum.photos/id/4/800/600", page.Content[0].ImageURL)

	rr = do(t, h, http.MethodGet, "/api/villages?region="+"강원특별자치도"+"&programType="+"전통", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &page)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(3), page.Content[0].VillageID)

	rr = do(t, h, http.MethodGet, "/api/villages?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "page", decode(t, rr, nil).Field)

	rr = do(t, h, http.MethodGet, "/api/villages/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodGet, "/api/villages/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "VILLAGE_NOT_FOUND", decode(t, rr, nil).Error)
}

func TestVillageDetail_CollectedStateNeedsToken(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	token := login(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/api/collections", token, map[string]int64{"villageId": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var detail struct {
		VillageID   int64   `json:"villageId"`
		IsCollected bool    `json:"isCollected"`
		CollectedAt *string `json:"collectedAt"`
	}
	rr = do(t, h, http.MethodGet, "/api/villages/2", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &detail)
	assert.True(t, detail.IsCollected)
	assert.NotNil(t, detail.CollectedAt)

	detail.IsCollected, detail.CollectedAt = false, nil
	rr = do(t, h, http.MethodGet, "/api/villages/2", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &detail)
	assert.False(t, detail.IsCollected)
	assert.Nil(t, detail.CollectedAt)

	// A bad token on an optional-auth route is treated as anonymous.
	rr = do(t, h, http.MethodGet, "/api/villages/2", "garbage", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCollections(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	alice := login(t, h, "alice")
	bob := login(t, h, "bob")

	var entry struct {
		CollectionID int64  `json:"collectionId"`
		VillageName  string `json:"villageName"`
	}
	rr := do(t, h, http.MethodPost, "/api/collections", alice, map[string]int64{"villageId": 1})
	require.Equal(t, http.StatusCreated, rr.Code)
	env := decode(t, rr, &entry)
	assert.Equal(t, "컬렉션에 추가되었습니다.", env.Message)
	assert.Equal(t, "산골마을", entry.VillageName)

	rr = do(t, h, http.MethodPost, "/api/collections", alice, map[string]int64{"villageId": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "ALREADY_COLLECTED", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodPost, "/api/collections", alice, map[string]int64{"villageId": 99})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "VILLAGE_NOT_FOUND", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodPost, "/api/collections", alice, map[string]int64{"villageId": 3})
	require.Equal(t, http.StatusCreated, rr.Code)

	var stats struct {
		TotalCount  int            `json:"totalCount"`
		RegionStats map[string]int `json:"regionStats"`
	}
	rr = do(t, h, http.MethodGet, "/api/collections/stats", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &stats)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, map[string]int{"강원특별자치도": 2}, stats.RegionStats)

	var page struct {
		Content []struct {
			VillageID int64 `json:"villageId"`
		} `json:"content"`
		TotalElements int64 `json:"totalElements"`
	}
	rr = do(t, h, http.MethodGet, "/api/collections", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &page)
	assert.Equal(t, int64(2), page.TotalElements)
	require.Len(t, page.Content, 2)
	assert.Equal(t, int64(1), page.Content[0].VillageID)
	assert.Equal(t, int64(3), page.Content[1].VillageID)

	path := "/api/collections/" + jsonNumber(entry.CollectionID)
	rr = do(t, h, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "COLLECTION_NOT_FOUND", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "컬렉션에서 제거되었습니다.", decode(t, rr, nil).Message)

	rr = do(t, h, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// multipartRequest builds a memory form with an optional image part.
func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type memoryData struct {
	MemoryID  int64  `json:"memoryId"`
	VillageID int64  `json:"villageId"`
	Content   string `json:"content"`
	VisitDate string `json:"visitDate"`
	ImageURL  string `json:"imageUrl"`
	UpdatedAt string `json:"updatedAt"`
}

func TestMemories_JSON(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	alice := login(t, h, "alice")
	bob := login(t, h, "bob")

	var m memoryData
	rr := do(t, h, http.MethodPost, "/api/memories", alice, map[string]any{
		"villageId": 2, "content": "<b>조개</b>를 캤다", "visitDate": "2026-10-01",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	env := decode(t, rr, &m)
	assert.Equal(t, "추억이 저장되었습니다.", env.Message)
	assert.Equal(t, "<b>조개</b>를 캤다", m.Content)
	assert.Equal(t, "2026-10-01", m.VisitDate)
	assert.NotContains(t, rr.Body.String(), "imageUrl")

	path := "/api/memories/" + jsonNumber(m.MemoryID)

	rr = do(t, h, http.MethodGet, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "MEMORY_NOT_FOUND", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodPut, path, alice, map[string]string{"content": "고쳐 씀"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated memoryData
	env = decode(t, rr, &updated)
	assert.Equal(t, "추억이 수정되었습니다.", env.Message)
	assert.Equal(t, "고쳐 씀", updated.Content)
	assert.Equal(t, "2026-10-01", updated.VisitDate)

	rr = do(t, h, http.MethodPost, "/api/memories", alice, map[string]any{"content": "어디였지"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error)

	rr = do(t, h, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "추억이 삭제되었습니다.", decode(t, rr, nil).Message)

	rr = do(t, h, http.MethodGet, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMemories_MultipartImage(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	alice := login(t, h, "alice")

	req := multipartRequest(t, http.MethodPost, "/api/memories", alice,
		map[string]string{"villageId": "1", "content": "감자 사진"}, "potato.png", []byte("png bytes"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var m memoryData
	decode(t, rr, &m)
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	assert.Equal(t, time.Now().In(seoul).Format("2006-01-02"), m.VisitDate, "visit date defaults to today")
	require.True(t, strings.HasPrefix(m.ImageURL, "/uploads/"), m.ImageURL)
	assert.True(t, strings.HasSuffix(m.ImageURL, "_potato.png"), m.ImageURL)

	rr = do(t, h, http.MethodGet, m.ImageURL, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png bytes", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/uploads/", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Replace the photo: the old file stops being served.
	path := "/api/memories/" + jsonNumber(m.MemoryID)
	req = multipartRequest(t, http.MethodPut, path, alice, nil, "second.jpg", []byte("jpg bytes"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated memoryData
	decode(t, rr, &updated)
	assert.Equal(t, "감자 사진", updated.Content)
	assert.NotEqual(t, m.ImageURL, updated.ImageURL)

	rr = do(t, h, http.MethodGet, m.ImageURL, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = multipartRequest(t, http.MethodPost, "/api/memories", alice,
		map[string]string{"villageId": "1", "content": "문서"}, "notes.txt", []byte("text"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decode(t, rr, nil)
	assert.Equal(t, "VALIDATION_ERROR", env.Error)
	assert.Equal(t, "image", env.Field)

	req = multipartRequest(t, http.MethodPost, "/api/memories", alice,
		map[string]string{"villageId": "one", "content": "문서"}, "", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error)
}

func TestUsersMe(t *testing.T) {
	h := newTestServer(t, testConfig(t))
	alice := login(t, h, "alice")
	login(t, h, "bob")

	rr := do(t, h, http.MethodPost, "/api/collections", alice, map[string]int64{"villageId": 1})
	require.Equal(t, http.StatusCreated, rr.Code)

	var profile struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		CollectionCount int    `json:"collectionCount"`
		MemoryCount     int    `json:"memoryCount"`
	}
	rr = do(t, h, http.MethodGet, "/api/users/me", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &profile)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 1, profile.CollectionCount)
	assert.Zero(t, profile.MemoryCount)

	rr = do(t, h, http.MethodPut, "/api/users/me", alice, map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "정보가 수정되었습니다.", decode(t, rr, &profile).Message)
	assert.Equal(t, "new@example.com", profile.Email)

	// Same token, next request: the change is already visible.
	rr = do(t, h, http.MethodGet, "/api/users/me", alice, nil)
	decode(t, rr, &profile)
	assert.Equal(t, "new@example.com", profile.Email)

	rr = do(t, h, http.MethodPut, "/api/users/me", alice, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "EMAIL_ALREADY_EXISTS", decode(t, rr, nil).Error)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, testConfig(t))

	rr := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	login(t, h, "alice")

	rr = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `village_gacha_http_responses_total{status_code="201"} 1`)
	assert.Contains(t, body, `village_gacha_signups_total{provider="password"} 1`)
	assert.Contains(t, body, `village_gacha_logins_total{result="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/gacha/draw", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 2
	h := newTestServer(t, cfg)

	for range 2 {
		rr := do(t, h, http.MethodGet, "/api/villages", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/api/villages", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", decode(t, rr, nil).Error)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Outside /api nothing is limited.
	rr = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGitHubRoutes(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestServer(t, testConfig(t))
		rr := do(t, h, http.MethodGet, "/api/auth/github/login", "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.GitHubClientID = "client-id"
		cfg.GitHubClientSecret = "client-secret"
		cfg.GitHubCallbackURL = "http://localhost:8080/api/auth/github/callback"
		h := newTestServer(t, cfg)

		rr := do(t, h, http.MethodGet, "/api/auth/github/login", "", nil)
		require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "https://github.com/login/oauth/authorize"))

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "oauth_state", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Contains(t, rr.Header().Get("Location"), "state="+cookies[0].Value)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/github/callback?code=abc&state=forged", nil)
		req.AddCookie(cookies[0])
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error)

		req = httptest.NewRequest(http.MethodGet, "/api/auth/github/callback?error=access_denied&state="+cookies[0].Value, nil)
		req.AddCookie(cookies[0])
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestSeedUsers(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedUsers = []string{"demo:demo1234:demo@example.com"}
	h := newTestServer(t, cfg)

	rr := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "demo", "password": "demo1234"})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestNew_BadCatalogPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.VillageCSVPath = filepath.Join(t.TempDir(), "missing.csv")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
