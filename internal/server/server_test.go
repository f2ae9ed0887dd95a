package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bazhay.app/wishlist/internal/config"
	"bazhay.app/wishlist/internal/entity"
	"bazhay.app/wishlist/internal/testutil"
	"bazhay.app/wishlist/pkg/auth"
	"bazhay.app/wishlist/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

var testAdmin = uuid.MustParse("0190a1b2-0000-7000-8000-0000000000aa")

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		AllowedOrigins:        "http://localhost:3000",
		JWTSecret:             testSecret,
		SchedulerBackend:      "memory",
		SchedulerPollInterval: time.Second,
		WSPingInterval:        time.Second,
		AdminUserIDs:          []uuid.UUID{testAdmin},
	}
}

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	srv, err := NewServer(testConfig(), Deps{DB: db, Metrics: metrics.New()})
	require.NoError(t, err)
	return srv, db
}

func call(t *testing.T, h http.Handler, method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		token, err := auth.NewTokenParser(testSecret).Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	w := call(t, srv.Handler(), http.MethodGet, "/healthz", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := call(t, srv.Handler(), http.MethodGet, "/metrics", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAPIRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/reservations?wish=" + uuid.NewString(), "/api/notifications"} {
		w := call(t, srv.Handler(), http.MethodGet, path, uuid.Nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestSelectUserRequiresPremium(t *testing.T) {
	srv, db := newTestServer(t)
	owner := testutil.CreateUser(t, db, "Owner")

	w := call(t, srv.Handler(), http.MethodPost, "/api/reservations/"+uuid.NewString()+"/select_user", owner.ID,
		map[string]string{"candidate_id": uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReserveAndReadNotifications(t *testing.T) {
	srv, db := newTestServer(t)
	owner := testutil.CreateUser(t, db, "Owner")
	friend := testutil.CreateUser(t, db, "Friend")
	wish := testutil.CreateWish(t, db, owner, "Bike", entity.AccessEveryone)

	w := call(t, srv.Handler(), http.MethodPost, "/api/reservations", friend.ID, map[string]string{"wish_id": wish.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		ID       uuid.UUID `json:"id"`
		IsClosed bool      `json:"is_closed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.IsClosed)

	w = call(t, srv.Handler(), http.MethodPost, "/api/reservations", friend.ID, map[string]string{"wish_id": wish.ID.String()})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, srv.Handler(), http.MethodGet, "/api/notifications", owner.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []struct {
			MessageEN string `json:"message_en"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Contains(t, list.Data[0].MessageEN, "Bike")
}

func TestNewServerRejectsMissingBackend(t *testing.T) {
	cfg := testConfig()
	cfg.SchedulerBackend = "redis"

	_, err := NewServer(cfg, Deps{DB: testutil.NewDB(t)})
	assert.ErrorIs(t, err, ErrMissingBackend)

	cfg.SchedulerBackend = "amqp"
	_, err = NewServer(cfg, Deps{DB: testutil.NewDB(t)})
	assert.ErrorIs(t, err, ErrMissingBackend)
}

func TestAdminNotificationRoutes(t *testing.T) {
	srv, db := newTestServer(t)
	member := testutil.CreateUser(t, db, "Member")
	body := map[string]any{"message_en": "Maintenance tonight", "message_uk": "Сьогодні техроботи"}

	w := call(t, srv.Handler(), http.MethodPost, "/api/admin/notifications", member.ID, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, srv.Handler(), http.MethodPost, "/api/admin/notifications", testAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, srv.Handler(), http.MethodGet, "/api/notifications", member.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Maintenance tonight")

	w = call(t, srv.Handler(), http.MethodDelete, "/api/admin/notifications/"+created.ID.String(), member.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, srv.Handler(), http.MethodDelete, "/api/admin/notifications/"+created.ID.String(), testAdmin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.EqualValues(t, 0, testutil.Count(t, db, &entity.Notification{}, ""))
}

func TestShutdownClosesLiveSessions(t *testing.T) {
	srv, db := newTestServer(t)
	u := testutil.CreateUser(t, db, "Olena")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpSrv := srv.httpServer(ln.Addr().String())
	go func() { _ = httpSrv.Serve(ln) }()

	token, err := auth.NewTokenParser(testSecret).Issue(u.ID)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/notifications?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, httpSrv.Shutdown(ctx))

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, "server shutting down", closeErr.Text)
}
