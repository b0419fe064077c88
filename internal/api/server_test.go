package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/auth"
	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/internal/project"
	"github.com/staticnest/staticnest/internal/ratelimit"
	"github.com/staticnest/staticnest/internal/resolver"
	"github.com/staticnest/staticnest/pkg/models"
)

type testServer struct {
	*httptest.Server
	session *http.Cookie
}

// newTestServer wires the full router with runtime orchestration disabled.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()

	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"), log)
	require.NoError(t, err)

	projectsDir := filepath.Join(dir, "projects")
	mgr, err := project.NewManager(store, nil, projectsDir, log)
	require.NoError(t, err)

	authMgr := auth.NewManager("admin", "secret", time.Hour, log)
	limiter := ratelimit.NewLimiter(5, time.Minute)

	router := SetupRoutes(
		NewHandler(mgr, log),
		NewAuthHandler(authMgr, time.Hour, log),
		NewPublicHandler(mgr, resolver.New(store, projectsDir, log), log),
		authMgr,
		limiter,
		false,
		log,
	)

	srv := &testServer{Server: httptest.NewServer(router)}
	t.Cleanup(srv.Close)
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.session != nil {
		req.AddCookie(s.session)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/login", models.LoginRequest{
		Username: "admin",
		Password: "secret",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookie {
			s.session = cookie
			return
		}
	}
	t.Fatal("login response carried no session cookie")
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (s *testServer) createProject(t *testing.T, req models.CreateProjectRequest) models.Project {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/projects", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Project
	decodeData(t, resp, &created)
	return created
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/health", nil)
	env := decodeEnvelope(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/projects"},
		{http.MethodPost, "/api/projects"},
		{http.MethodDelete, "/api/projects/a1b2c3d4e5f60718"},
	} {
		resp := srv.do(t, tc.method, tc.path, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/login", models.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	env := decodeEnvelope(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid credentials", env.Error)
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestServer(t)

	// The limiter allows 5 attempts per address before throttling.
	var last int
	for i := 0; i < 6; i++ {
		resp := srv.do(t, http.MethodPost, "/api/login", models.LoginRequest{
			Username: "admin",
			Password: "wrong",
		})
		resp.Body.Close()
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestAuthCheck(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/auth/check", nil)
	var status map[string]bool
	decodeData(t, resp, &status)
	require.False(t, status["authenticated"])

	srv.login(t)

	resp = srv.do(t, http.MethodGet, "/api/auth/check", nil)
	decodeData(t, resp, &status)
	require.True(t, status["authenticated"])
}

func TestLogout_InvalidatesSession(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	resp := srv.do(t, http.MethodPost, "/api/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/projects", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProjectCRUD(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	created := srv.createProject(t, models.CreateProjectRequest{
		Name:        "Demo",
		Description: "a demo site",
	})
	require.Len(t, created.ID, 16)
	require.Len(t, created.PublicHash, 12)

	// The new project appears in the admin listing with its scaffolded files.
	resp := srv.do(t, http.MethodGet, "/api/projects", nil)
	var views []models.ProjectView
	decodeData(t, resp, &views)
	require.Len(t, views, 1)
	require.True(t, views[0].HasFiles)

	resp = srv.do(t, http.MethodPut, "/api/projects/"+created.ID, map[string]string{
		"description": "updated",
	})
	var updated models.Project
	decodeData(t, resp, &updated)
	require.Equal(t, "updated", updated.Description)
	require.Equal(t, "Demo", updated.Name)

	resp = srv.do(t, http.MethodDelete, "/api/projects/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/projects/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateProject_TypeChangeRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})

	resp := srv.do(t, http.MethodPut, "/api/projects/"+created.ID, map[string]string{
		"type": "external",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndManageFiles(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("files", "about.html")
	require.NoError(t, err)
	_, err = part.Write([]byte("<h1>About</h1>"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/projects/"+created.ID+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(srv.session)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		FilesUploaded int      `json:"filesUploaded"`
		Files         []string `json:"files"`
	}
	decodeData(t, resp, &result)
	require.Equal(t, 1, result.FilesUploaded)
	require.Equal(t, []string{"about.html"}, result.Files)

	resp = srv.do(t, http.MethodGet, "/api/projects/"+created.ID+"/files", nil)
	var files []models.FileInfo
	decodeData(t, resp, &files)
	require.Len(t, files, 4)

	// Renaming onto an existing file is a conflict.
	resp = srv.do(t, http.MethodPut, "/api/projects/"+created.ID+"/files/about.html",
		models.RenameFileRequest{NewName: "index.html"})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/projects/"+created.ID+"/files/about.html", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/projects/"+created.ID+"/files/about.html", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicGallery(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})

	// The gallery needs no session.
	srv.session = nil

	resp := srv.do(t, http.MethodGet, "/api/public/projects", nil)
	var public []models.PublicProject
	decodeData(t, resp, &public)
	require.Len(t, public, 1)
	require.Equal(t, created.PublicHash, public[0].PublicHash)

	resp = srv.do(t, http.MethodGet, "/api/public/projects/"+created.PublicHash, nil)
	var card models.PublicProject
	decodeData(t, resp, &card)
	require.Equal(t, "Demo", card.Name)
}

func TestServeProject_HostedFiles(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)
	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})
	srv.session = nil

	// Bare hash serves the index.
	resp := srv.do(t, http.MethodGet, "/p/"+created.PublicHash, nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "Welcome to Demo")

	resp = srv.do(t, http.MethodGet, "/p/"+created.PublicHash+"/style.css", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css"))
}

func TestServeProject_NotFoundPage(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)
	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})
	srv.session = nil

	for _, path := range []string{
		"/p/ffffffffffff",
		"/p/" + created.PublicHash + "/missing.html",
	} {
		resp := srv.do(t, http.MethodGet, path, nil)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"), path)
		require.Contains(t, string(body), "404")
	}
}

func TestRuntimeDisabled(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t)

	created := srv.createProject(t, models.CreateProjectRequest{Name: "Demo"})

	for _, action := range []string{"start", "stop"} {
		resp := srv.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%s/%s", created.ID, action), nil)
		env := decodeEnvelope(t, resp)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, env.Error, "runtime orchestration is disabled")
	}
}
