package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanpage-server/internal/pkg"
	redisrepo "fanpage-server/internal/repository/redis"
	"fanpage-server/internal/repository/store/storetest"
	"fanpage-server/internal/service"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newServer(t *testing.T, trustBody bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb, err := redisrepo.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	db := storetest.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := pkg.NewTokenIssuer("test-access", "test-refresh", time.Minute, time.Hour)
	tokens := redisrepo.NewTokenRepository(rdb, time.Minute)
	cache := redisrepo.NewLikeCacheRepository(rdb)
	auth := service.NewAuthService(db)

	engine := InitRouter(Deps{
		DB:     db,
		Logger: logger,
		Issuer: issuer,
		Auth:   auth,
		Users: service.NewUserService(db, service.UserServiceOptions{
			Issuer:               issuer,
			Tokens:               tokens,
			OpenRoleRegistration: true,
			Logger:               logger,
		}),
		Posts:             service.NewPostService(db, auth, cache, logger),
		Comments:          service.NewCommentService(db, auth),
		Likes:             service.NewLikeService(db, auth, cache, &redisrepo.DistLock{RDB: rdb}, logger),
		Tokens:            tokens,
		TrustBodyIdentity: trustBody,
	})
	return &testServer{t: t, engine: engine}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	code, raw := s.raw(method, path, token, body)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw, &out))
	}
	return code, out
}

func (s *testServer) list(method, path, token string) (int, []map[string]any) {
	code, raw := s.raw(method, path, token, nil)
	var out []map[string]any
	if code == http.StatusOK {
		require.NoError(s.t, json.Unmarshal(raw, &out))
	}
	return code, out
}

func (s *testServer) raw(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w.Code, w.Body.Bytes()
}

// signup 注册并登录，返回 access token 和用户 id
func (s *testServer) signup(name, role string) (string, uint64) {
	s.t.Helper()
	code, _ := s.do(http.MethodPost, "/api/register", "", gin.H{
		"username": name, "email": name + "@example.com", "password": "secret", "role": role,
	})
	require.Equal(s.t, http.StatusCreated, code)

	code, body := s.do(http.MethodPost, "/api/login", "", gin.H{"email": name + "@example.com", "password": "secret"})
	require.Equal(s.t, http.StatusOK, code)
	user := body["user"].(map[string]any)
	return body["accessToken"].(string), uint64(user["id"].(float64))
}

func TestApprovalFlow(t *testing.T) {
	s := newServer(t, false)
	userTok, _ := s.signup("alice", "")
	adminTok, _ := s.signup("root", "admin")

	code, post := s.do(http.MethodPost, "/api/posts", userTok, gin.H{
		"title": "Derby day", "content": "2-1 at home", "category": "match report",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "fan blog", post["category"])
	assert.Equal(t, false, post["isApproved"])
	assert.EqualValues(t, 0, post["likes"])
	postPath := fmt.Sprintf("/api/posts/%d", int(post["id"].(float64)))

	code, list := s.list(http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, list)

	code, pending := s.list(http.MethodGet, "/api/moderation/pending", adminTok)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, pending, 1)
	code, _ = s.do(http.MethodGet, "/api/moderation/pending", userTok, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, updated := s.do(http.MethodPut, postPath, adminTok, gin.H{"isApproved": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, updated["isApproved"])

	code, list = s.list(http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	author := list[0]["author"].(map[string]any)
	assert.Equal(t, "alice", author["username"])
	assert.NotContains(t, author, "email")
	assert.NotContains(t, author, "password")
}

func TestTransferNewsRestricted(t *testing.T) {
	s := newServer(t, false)
	userTok, _ := s.signup("alice", "")
	modTok, _ := s.signup("mod", "moderator")

	code, body := s.do(http.MethodPost, "/api/posts", userTok, gin.H{"title": "t", "content": "c", "category": "transfer news"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden: Only admin/moderator can post transfer news directly.", body["msg"])

	code, body = s.do(http.MethodPost, "/api/posts", modTok, gin.H{"title": "t", "content": "c", "category": "transfer news", "isApproved": false})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "transfer news", body["category"])
	assert.Equal(t, true, body["isApproved"])

	code, _ = s.do(http.MethodPost, "/api/posts", modTok, gin.H{"title": "t", "content": "c", "category": "rumours"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthRequiredForMutations(t *testing.T) {
	s := newServer(t, false)
	tok, uid := s.signup("alice", "")

	code, body := s.do(http.MethodPost, "/api/posts", "", gin.H{"title": "t", "content": "c", "authorId": uid})
	assert.Equal(t, http.StatusUnauthorized, code, "body identity is ignored unless trusted")
	assert.Equal(t, "Unauthorized: User ID missing.", body["msg"])

	code, _ = s.do(http.MethodPost, "/api/posts", "garbage", gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/posts", tok, gin.H{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSingleSessionAndLogout(t *testing.T) {
	s := newServer(t, false)
	first, _ := s.signup("alice", "")

	code, body := s.do(http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, code)
	second := body["accessToken"].(string)
	refresh := body["refreshToken"].(string)

	code, _ = s.do(http.MethodPost, "/api/posts", first, gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, code, "older token is replaced by the newer login")

	code, _ = s.do(http.MethodPost, "/api/posts", second, gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusCreated, code)

	code, pair := s.do(http.MethodPost, "/api/token/refresh", "", gin.H{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, code)
	third := pair["accessToken"].(string)

	code, _ = s.do(http.MethodPost, "/api/logout", third, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/posts", third, gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid Credentials", body["msg"])
}

func TestOwnershipAndCascade(t *testing.T) {
	s := newServer(t, false)
	ownerTok, _ := s.signup("alice", "")
	otherTok, _ := s.signup("bob", "")

	_, post := s.do(http.MethodPost, "/api/posts", ownerTok, gin.H{"title": "Mine", "content": "c"})
	postPath := fmt.Sprintf("/api/posts/%d", int(post["id"].(float64)))

	code, comment := s.do(http.MethodPost, postPath+"/comments", otherTok, gin.H{"content": "hi"})
	require.Equal(t, http.StatusCreated, code)
	commentPath := fmt.Sprintf("/api/comments/%d", int(comment["id"].(float64)))

	code, _ = s.do(http.MethodPut, postPath, otherTok, gin.H{"title": "Stolen"})
	assert.Equal(t, http.StatusForbidden, code)
	_, got := s.do(http.MethodGet, postPath, "", nil)
	assert.Equal(t, "Mine", got["title"])

	code, _ = s.do(http.MethodDelete, commentPath, ownerTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, edited := s.do(http.MethodPut, commentPath, otherTok, gin.H{"content": "hello"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", edited["content"])

	code, _ = s.do(http.MethodDelete, postPath, otherTok, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(http.MethodDelete, postPath, ownerTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post and associated comments removed", body["msg"])

	code, _ = s.do(http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, comments := s.list(http.MethodGet, postPath+"/comments", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, comments)
	code, _ = s.do(http.MethodPut, commentPath, otherTok, gin.H{"content": "again"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLikeToggleEndpoints(t *testing.T) {
	s := newServer(t, false)
	adminTok, _ := s.signup("root", "admin")
	fanTok, _ := s.signup("bob", "")

	_, post := s.do(http.MethodPost, "/api/posts", adminTok, gin.H{"title": "t", "content": "c"})
	postPath := fmt.Sprintf("/api/posts/%d", int(post["id"].(float64)))

	code, body := s.do(http.MethodPost, postPath+"/like", fanTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post liked", body["msg"])
	assert.EqualValues(t, 1, body["likes"])

	code, body = s.do(http.MethodGet, postPath+"/likes/count", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["likes"])

	_, got := s.do(http.MethodGet, postPath, "", nil)
	assert.Len(t, got["likedBy"], 1)

	code, body = s.do(http.MethodPost, postPath+"/like", fanTok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post unliked", body["msg"])
	assert.EqualValues(t, 0, body["likes"])

	code, body = s.do(http.MethodGet, postPath+"/likes/count", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["likes"])

	code, _ = s.do(http.MethodPost, "/api/posts/9999/like", fanTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/api/posts/abc/likes/count", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSearchEndpoint(t *testing.T) {
	s := newServer(t, false)
	userTok, _ := s.signup("alice", "")
	adminTok, _ := s.signup("root", "admin")

	s.do(http.MethodPost, "/api/posts", userTok, gin.H{"title": "Striker rumours", "content": "striker striker"})
	s.do(http.MethodPost, "/api/posts", adminTok, gin.H{"title": "Striker signed", "content": "official"})

	code, body := s.do(http.MethodGet, "/api/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Search query (q) is required.", body["msg"])

	code, list := s.list(http.MethodGet, "/api/search?q=striker", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0]["isApproved"])

	code, list = s.list(http.MethodGet, "/api/search?q=striker", adminTok)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 2)

	code, list = s.list(http.MethodGet, "/api/search?q=striker&requesterRole=admin", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1, "claimed roles are ignored unless body identity is trusted")
}

func TestProfileEndpoint(t *testing.T) {
	s := newServer(t, false)
	tok, uid := s.signup("alice", "")
	s.do(http.MethodPost, "/api/posts", tok, gin.H{"title": "t", "content": "c"})

	code, body := s.do(http.MethodGet, fmt.Sprintf("/api/users/%d", uid), "", nil)
	require.Equal(t, http.StatusOK, code)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password")
	assert.Empty(t, body["posts"])

	code, body = s.do(http.MethodGet, fmt.Sprintf("/api/users/%d", uid), tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["posts"], 1)

	code, _ = s.do(http.MethodGet, "/api/users/424242", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTrustedBodyIdentity(t *testing.T) {
	s := newServer(t, true)
	_, userID := s.signup("alice", "")
	_, adminID := s.signup("root", "admin")

	code, post := s.do(http.MethodPost, "/api/posts", "", gin.H{"title": "Report", "content": "c", "authorId": userID})
	require.Equal(t, http.StatusCreated, code)
	postPath := fmt.Sprintf("/api/posts/%d", int(post["id"].(float64)))

	code, list := s.list(http.MethodGet, "/api/posts?requesterRole=moderator", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1)

	code, _ = s.do(http.MethodPut, postPath, "", gin.H{"isApproved": true, "editorId": userID})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPut, postPath, "", gin.H{"isApproved": true, "editorId": adminID})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(http.MethodPost, postPath+"/like", "", gin.H{"userId": adminID})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["likes"])

	code, _ = s.do(http.MethodDelete, postPath, "", gin.H{"deleterId": userID})
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthz(t *testing.T) {
	s := newServer(t, false)
	code, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
