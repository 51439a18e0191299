package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
	"github.com/kustii/board/config"
	"github.com/kustii/board/models"
	"github.com/kustii/board/repository"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/testutil"
	"github.com/kustii/board/utils"
)

type creds struct{ user, pass string }

var (
	asSuper = &creds{"superadmin", "0000"}
	asAdmin = &creds{"admin", "1234"}
	asUser  = &creds{"kim", "pw"}
)

type server struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.OpenDB(t)
	reg := boards.Default()
	uploads := t.TempDir()
	store := storage.NewDiskStore(uploads, UploadsURLPrefix, 5)

	var accounts []auth.Account
	for _, a := range []struct {
		c    *creds
		role auth.Role
	}{{asSuper, auth.RoleSuperAdmin}, {asAdmin, auth.RoleAdmin}, {asUser, auth.RoleUser}} {
		h, err := bcrypt.GenerateFromPassword([]byte(a.c.pass), bcrypt.MinCost)
		require.NoError(t, err)
		accounts = append(accounts, auth.Account{Username: a.c.user, PasswordHash: string(h), Role: a.role})
	}
	provider, err := auth.NewStaticProvider(accounts)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	engine := SetupRouter(Deps{
		Config: config.AppConfig{
			GinMode:        "test",
			AllowedOrigins: []string{"*"},
			UploadDir:      uploads,
			LogLevel:       "error",
		},
		Registry: reg,
		Auth:     provider,
		Posts:    repository.NewPostRepository(db, reg, store, nil),
		Comments: repository.NewCommentRepository(db, reg),
		Cache:    utils.NewCache(rc, 0),
	})
	return &server{t: t, engine: engine, db: db}
}

type upload struct {
	name string
	body string
}

func (s *server) do(method, path string, body io.Reader, contentType string, c *creds) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c != nil {
		req.SetBasicAuth(c.user, c.pass)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) form(method, path string, fields map[string]string, files []upload, c *creds) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.name)
		require.NoError(s.t, err)
		_, err = fw.Write([]byte(f.body))
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())
	return s.do(method, path, &buf, mw.FormDataContentType(), c)
}

func (s *server) json(method, path string, v any, c *creds) *httptest.ResponseRecorder {
	s.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(s.t, err)
	return s.do(method, path, bytes.NewReader(b), "application/json", c)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestForumScenarioOverHTTP(t *testing.T) {
	s := newServer(t)

	w := s.form(http.MethodPost, "/mainbusiness/create/forum", map[string]string{"title": "T1", "content": "C1"}, nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "T1", created["title"])
	assert.Equal(t, "C1", created["content"])
	assert.Equal(t, []any{}, created["files"])
	assert.Equal(t, []any{}, created["comments"])
	assert.EqualValues(t, 0, created["views"])

	w = s.do(http.MethodGet, "/mainbusiness/forum/"+id, nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[models.Post](t, w).Views)

	w = s.json(http.MethodPost, "/mainbusiness/forum/"+id+"/comments", map[string]string{"content": "hello"}, asUser)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	comment := decode[models.CommentNode](t, w)
	assert.False(t, comment.IsAdmin)
	assert.Equal(t, "kim", comment.User)

	w = s.do(http.MethodGet, "/mainbusiness/forum/"+id+"/comments", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.CommentNode](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, comment.ID, list[0].ID)
	assert.False(t, list[0].IsAdmin)

	w = s.do(http.MethodDelete, "/mainbusiness/forum/"+id+"/comments/"+comment.ID, nil, "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Comment deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, "/mainbusiness/forum/"+id+"/comments", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	var n int64
	require.NoError(t, s.db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestStatusCodes(t *testing.T) {
	s := newServer(t)
	fields := map[string]string{"title": "t", "content": "c"}

	w := s.form(http.MethodPost, "/notice/create/news", fields, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))

	w = s.form(http.MethodPost, "/notice/create/news", fields, nil, &creds{"admin", "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.form(http.MethodPost, "/notice/create/news", fields, nil, asUser)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"code":40301,"message":"Not enough permissions"}`, w.Body.String())

	w = s.form(http.MethodPost, "/notice/create/forum", fields, nil, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/notice/bogus", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/notice/news/0190b8a0-0000-7000-8000-000000000000", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":40401,"message":"post not found"}`, w.Body.String())

	w = s.do(http.MethodDelete, "/notice/delete/news/0190b8a0-0000-7000-8000-000000000000", nil, "", asAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(http.MethodPost, "/media/media/x/comments", map[string]string{"content": "hi"}, asUser)
	assert.Equal(t, http.StatusNotFound, w.Code, "media boards expose no comment routes")

	w = s.do(http.MethodGet, "/nowhere", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostLifecycleAndListingCache(t *testing.T) {
	s := newServer(t)
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		w := s.form(http.MethodPost, "/notice/news/create", map[string]string{"title": title, "content": "body"}, nil, asAdmin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		ids = append(ids, decode[models.Post](t, w).ID)
	}

	w := s.do(http.MethodGet, "/notice/news?page=2&limit=2", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.PostPage](t, w)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, ids[2], page.Posts[0].ID)
	assert.Equal(t, 3, page.Posts[0].No)

	w = s.do(http.MethodGet, "/notice/news?page=1&limit=2", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[models.PostPage](t, w).Total)

	w = s.form(http.MethodPut, "/notice/update/news/"+ids[0], map[string]string{"title": "uno", "content": "cuerpo"}, nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "uno", decode[models.Post](t, w).Title)

	w = s.do(http.MethodDelete, "/notice/delete/news/"+ids[1], nil, "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, "/notice/news?page=1&limit=2", nil, "", nil)
	page = decode[models.PostPage](t, w)
	assert.EqualValues(t, 2, page.Total, "writes invalidate cached pages")
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "uno", page.Posts[0].Title)
	assert.Equal(t, ids[2], page.Posts[1].ID)
}

func TestAttachmentsAreServed(t *testing.T) {
	s := newServer(t)
	w := s.form(http.MethodPost, "/mainbusiness/create/essay", map[string]string{"title": "paper", "content": "abstract"},
		[]upload{{name: "paper.txt", body: "full text"}, {name: "notes.txt", body: "notes"}}, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	post := decode[models.Post](t, w)
	require.Len(t, post.Files, 2)
	assert.True(t, strings.HasPrefix(post.Files[0], UploadsURLPrefix+"/"))

	w = s.do(http.MethodGet, post.Files[0], nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "full text", w.Body.String())

	w = s.do(http.MethodGet, "/mainbusiness/essay?limit=5", nil, "", nil)
	page := decode[models.PostPage](t, w)
	require.Len(t, page.Posts, 1)
	assert.True(t, page.Posts[0].HasFiles)
}

func TestIntroductionPages(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/introduction/hello", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	fields := map[string]string{"title": "Greetings", "content": "Welcome"}
	w = s.form(http.MethodPost, "/introduction/update/hello", fields, nil, asAdmin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.form(http.MethodPost, "/introduction/update/hello", fields, nil, asSuper)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/introduction/hello", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Greetings", decode[models.Post](t, w).Title)

	w = s.form(http.MethodPost, "/introduction/update/forum", fields, nil, asSuper)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAmbientEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/health", nil, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.form(http.MethodPost, "/notice/create/notice", map[string]string{"title": "t", "content": "c"}, nil, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/stats", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, stats["post_count"])

	w = s.do(http.MethodGet, "/metrics", nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "board_posts_written_total")
}
