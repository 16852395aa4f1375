package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BhargavRaval15/url-shortner/internal/api"
	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockLinkService mocks the link service
type MockLinkService struct {
	mock.Mock
}

func (m *MockLinkService) CreateLink(ctx context.Context, ownerID uuid.UUID, req *model.CreateLinkRequest) (*model.LinkResponse, error) {
	args := m.Called(ctx, ownerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkResponse), args.Error(1)
}

func (m *MockLinkService) Redirect(ctx context.Context, code string, visit model.Visit) (string, error) {
	args := m.Called(ctx, code, visit)
	return args.String(0), args.Error(1)
}

func (m *MockLinkService) ListLinks(ctx context.Context, ownerID uuid.UUID, q model.ListQuery) (*model.LinkPage, error) {
	args := m.Called(ctx, ownerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkPage), args.Error(1)
}

func (m *MockLinkService) GetLink(ctx context.Context, ownerID, id uuid.UUID) (*model.LinkResponse, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkResponse), args.Error(1)
}

func (m *MockLinkService) GetAnalytics(ctx context.Context, ownerID, id uuid.UUID) (*model.AnalyticsResponse, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalyticsResponse), args.Error(1)
}

func (m *MockLinkService) DeleteLink(ctx context.Context, ownerID, id uuid.UUID) error {
	return m.Called(ctx, ownerID, id).Error(0)
}

// MockAuthService mocks login, registration and token checks
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthResponse), args.Error(1)
}

// MockPinger for health checks
type MockPinger struct {
	shouldFail bool
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.shouldFail {
		return assert.AnError
	}
	return nil
}

var testOwner = uuid.New()

// fakeAuth marks every request as coming from testOwner
func fakeAuth(c *gin.Context) {
	c.Set("owner_id", testOwner)
	c.Next()
}

type testEnv struct {
	links  *MockLinkService
	auth   *MockAuthService
	router *gin.Engine
}

func newTestEnv(db, cache api.Pinger) *testEnv {
	links := new(MockLinkService)
	auth := new(MockAuthService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := api.NewHandler(links, auth, db, cache, logger, "http://frontend.test")
	r := gin.New()
	h.RegisterRoutes(r, api.Middlewares{Auth: fakeAuth})
	return &testEnv{links: links, auth: auth, router: r}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         *MockPinger
		cache      api.Pinger
		wantStatus int
		wantDB     string
		wantCache  string
	}{
		{"all healthy", &MockPinger{}, &MockPinger{}, http.StatusOK, "up", "up"},
		{"cache down", &MockPinger{}, &MockPinger{shouldFail: true}, http.StatusServiceUnavailable, "up", "down"},
		{"database down", &MockPinger{shouldFail: true}, &MockPinger{}, http.StatusServiceUnavailable, "down", "up"},
		{"cache disabled", &MockPinger{}, nil, http.StatusOK, "up", "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.db, tt.cache)
			w := env.do(http.MethodGet, "/health", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp struct {
				Status       string            `json:"status"`
				Dependencies map[string]string `json:"dependencies"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantDB, resp.Dependencies["database"])
			assert.Equal(t, tt.wantCache, resp.Dependencies["cache"])
		})
	}
}

func TestHandler_Home(t *testing.T) {
	env := newTestEnv(&MockPinger{}, nil)
	w := env.do(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://frontend.test", w.Header().Get("Location"))
}

func TestHandler_CreateLink(t *testing.T) {
	t.Run("201 with the created link", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		req := &model.CreateLinkRequest{OriginalURL: "https://example.com"}
		env.links.On("CreateLink", mock.Anything, testOwner, req).Return(&model.LinkResponse{
			ShortCode: "abc1234",
			ShortURL:  "http://localhost:8080/abc1234",
		}, nil)

		w := env.do(http.MethodPost, "/api/urls", req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp model.LinkResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "abc1234", resp.ShortCode)
		env.links.AssertExpectations(t)
	})

	t.Run("accepts the camelCase body of the web client", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("CreateLink", mock.Anything, testOwner, &model.CreateLinkRequest{OriginalURL: "https://example.com"}).
			Return(&model.LinkResponse{ShortCode: "abc1234", ShortURL: "http://localhost:8080/abc1234"}, nil)

		w := env.do(http.MethodPost, "/api/urls", json.RawMessage(`{"originalUrl":"https://example.com"}`))

		require.Equal(t, http.StatusCreated, w.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "abc1234", body["shortCode"])
		assert.Equal(t, "http://localhost:8080/abc1234", body["shortUrl"])
	})

	t.Run("binds customAlias and expiresAt", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("CreateLink", mock.Anything, testOwner, mock.MatchedBy(func(r *model.CreateLinkRequest) bool {
			return r.CustomAlias == "promo" && r.ExpiresAt != nil && r.ExpiresAt.Year() == 2030
		})).Return(&model.LinkResponse{ShortCode: "promo"}, nil)

		w := env.do(http.MethodPost, "/api/urls", json.RawMessage(
			`{"originalUrl":"https://example.com","customAlias":"promo","expiresAt":"2030-01-01T00:00:00Z"}`))

		assert.Equal(t, http.StatusCreated, w.Code)
		env.links.AssertExpectations(t)
	})

	t.Run("400 when body is missing the url", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)

		w := env.do(http.MethodPost, "/api/urls", map[string]string{"customAlias": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.links.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{service.ErrInvalidURL, http.StatusBadRequest, "Invalid URL"},
		{fmt.Errorf("%w: too short", service.ErrInvalidAlias), http.StatusBadRequest, "too short"},
		{service.ErrAliasConflict, http.StatusBadRequest, "Custom alias already in use"},
		{service.ErrAllocationExhausted, http.StatusInternalServerError, "Server error"},
		{fmt.Errorf("%w: boom", service.ErrStoreUnavailable), http.StatusInternalServerError, "Server error"},
	}
	for _, tc := range errorCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			env := newTestEnv(&MockPinger{}, nil)
			env.links.On("CreateLink", mock.Anything, testOwner, mock.Anything).Return(nil, tc.err)

			w := env.do(http.MethodPost, "/api/urls", &model.CreateLinkRequest{OriginalURL: "https://example.com", CustomAlias: "x"})

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, decodeError(t, w).Message, tc.wantMsg)
		})
	}
}

func TestHandler_Redirect(t *testing.T) {
	t.Run("302 to the original url", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("Redirect", mock.Anything, "abc1234", mock.MatchedBy(func(v model.Visit) bool {
			return v.UserAgent == "test-agent" && v.IPAddress != ""
		})).Return("https://example.com", nil)

		w := env.do(http.MethodGet, "/abc1234", nil)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com", w.Header().Get("Location"))
		env.links.AssertExpectations(t)
	})

	t.Run("404 not found", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("Redirect", mock.Anything, "missing", mock.Anything).Return("", service.ErrLinkNotFound)

		w := env.do(http.MethodGet, "/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "URL not found", decodeError(t, w).Message)
	})

	t.Run("410 expired", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("Redirect", mock.Anything, "old", mock.Anything).Return("", service.ErrLinkExpired)

		w := env.do(http.MethodGet, "/old", nil)

		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, "URL has expired", decodeError(t, w).Message)
	})
}

func TestHandler_ListLinks(t *testing.T) {
	t.Run("passes paging and search", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("ListLinks", mock.Anything, testOwner, model.ListQuery{Page: 2, Limit: 10, Search: "foo"}).
			Return(&model.LinkPage{URLs: []model.LinkResponse{}, Total: 12, CurrentPage: 2, TotalPages: 2}, nil)

		w := env.do(http.MethodGet, "/api/urls/user?page=2&limit=10&search=foo", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var page model.LinkPage
		require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
		assert.Equal(t, int64(12), page.Total)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("malformed numbers fall back to defaults", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("ListLinks", mock.Anything, testOwner, model.ListQuery{}).
			Return(&model.LinkPage{URLs: []model.LinkResponse{}, CurrentPage: 1}, nil)

		w := env.do(http.MethodGet, "/api/urls/user?page=abc&limit=", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.links.AssertExpectations(t)
	})

	t.Run("500 on store error", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("ListLinks", mock.Anything, testOwner, mock.Anything).Return(nil, service.ErrStoreUnavailable)

		w := env.do(http.MethodGet, "/api/urls/user", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_Analytics(t *testing.T) {
	id := uuid.New()

	t.Run("200 with aggregates", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("GetAnalytics", mock.Anything, testOwner, id).Return(&model.AnalyticsResponse{
			TotalClicks: 3,
			Stats: model.Stats{
				DeviceStats: map[string]int64{"mobile": 2, "desktop": 1},
				ClicksByDay: map[string]int64{"2024-05-01": 3},
			},
		}, nil)

		w := env.do(http.MethodGet, "/api/urls/analytics/"+id.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.EqualValues(t, 3, body["totalClicks"])
		assert.Contains(t, body, "deviceStats")
		assert.Contains(t, body, "clicksByDay")
	})

	t.Run("404 when not owned", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("GetAnalytics", mock.Anything, testOwner, id).Return(nil, service.ErrLinkNotFound)

		w := env.do(http.MethodGet, "/api/urls/analytics/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("404 for a malformed id", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)

		w := env.do(http.MethodGet, "/api/urls/analytics/not-a-uuid", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		env.links.AssertNotCalled(t, "GetAnalytics", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_QRCode(t *testing.T) {
	id := uuid.New()

	t.Run("renders a png", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("GetLink", mock.Anything, testOwner, id).Return(&model.LinkResponse{
			ShortCode: "abc1234",
			ShortURL:  "http://localhost:8080/abc1234",
		}, nil)

		w := env.do(http.MethodGet, "/api/urls/qrcode/"+id.String()+"?size=128", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(w.Body)
		require.NoError(t, err)
		assert.Equal(t, 128, img.Bounds().Dx())
	})

	t.Run("rejects an out of range size", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)

		w := env.do(http.MethodGet, "/api/urls/qrcode/"+id.String()+"?size=5000", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("404 when not owned", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.links.On("GetLink", mock.Anything, testOwner, id).Return(nil, service.ErrLinkNotFound)

		w := env.do(http.MethodGet, "/api/urls/qrcode/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_DeleteLink(t *testing.T) {
	id := uuid.New()

	env := newTestEnv(&MockPinger{}, nil)
	env.links.On("DeleteLink", mock.Anything, testOwner, id).Return(nil).Once()
	env.links.On("DeleteLink", mock.Anything, testOwner, id).Return(service.ErrLinkNotFound).Once()

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/urls/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/urls/"+id.String(), nil).Code)
}

func TestHandler_Auth(t *testing.T) {
	creds := model.Credentials{Email: "user@example.com", Password: "secret1"}
	issued := &model.AuthResponse{Token: "token", User: model.UserInfo{ID: uuid.NewString(), Email: creds.Email}}

	t.Run("login", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.auth.On("Login", mock.Anything, creds).Return(issued, nil)

		w := env.do(http.MethodPost, "/api/auth/login", creds)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp model.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "token", resp.Token)
	})

	t.Run("login with bad credentials", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.auth.On("Login", mock.Anything, creds).Return(nil, service.ErrInvalidCredentials)

		w := env.do(http.MethodPost, "/api/auth/login", creds)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, w).Message)
	})

	t.Run("register", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.auth.On("Register", mock.Anything, creds).Return(issued, nil)

		w := env.do(http.MethodPost, "/api/auth/register", creds)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("register a taken email", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)
		env.auth.On("Register", mock.Anything, creds).Return(nil, service.ErrEmailTaken)

		w := env.do(http.MethodPost, "/api/auth/register", creds)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(&MockPinger{}, nil)

		w := env.do(http.MethodPost, "/api/auth/register", model.Credentials{Email: "not-an-email", Password: "123"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.auth.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}
