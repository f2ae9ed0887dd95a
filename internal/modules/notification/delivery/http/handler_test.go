package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	notifService "bazhay.app/wishlist/internal/modules/notification/service"
	"bazhay.app/wishlist/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noScheduling struct{}

func (noScheduling) ScheduleDelivery(context.Context, uuid.UUID, time.Time) error { return nil }

func TestGetNotifications(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db), noScheduling{}, nil)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "Me")
	first, err := svc.Create(ctx, notifDto.CreateNotificationInput{MessageEN: "one", MessageUK: "один", UserIDs: []uuid.UUID{me.ID}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, notifDto.CreateNotificationInput{MessageEN: "two", MessageUK: "два"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", me.ID.String())
		c.Next()
	})
	r.GET("/notifications", NewNotificationHandler(svc, nil).GetNotifications)

	list := func(query string) (int, []notifDto.NotificationResponse) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications"+query, nil))
		var body struct {
			Data []notifDto.NotificationResponse `json:"data"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w.Code, body.Data
	}

	code, data := list("")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, data, 2)
	assert.Equal(t, "one", data[0].MessageEN)
	assert.Equal(t, "two", data[1].MessageEN)

	code, data = list("?since_id=" + first.ID.String())
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, data, 1)
	assert.Equal(t, "two", data[0].MessageEN)

	code, _ = list("?limit=1000")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = list("?since_id=" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetNotificationsHidesCursorOfOthers(t *testing.T) {
	db := testutil.NewDB(t)
	svc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db), noScheduling{}, nil)

	me := testutil.CreateUser(t, db, "Me")
	other := testutil.CreateUser(t, db, "Other")
	theirs, err := svc.Create(context.Background(), notifDto.CreateNotificationInput{MessageEN: "x", MessageUK: "х", UserIDs: []uuid.UUID{other.ID}})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", me.ID.String())
		c.Next()
	})
	r.GET("/notifications", NewNotificationHandler(svc, nil).GetNotifications)

	for _, id := range []uuid.UUID{theirs.ID, uuid.New()} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications?since_id="+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

type recordingScheduler struct {
	ids []uuid.UUID
}

func (s *recordingScheduler) ScheduleDelivery(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.ids = append(s.ids, id)
	return nil
}

func TestCreateAndCancelNotification(t *testing.T) {
	db := testutil.NewDB(t)
	sched := &recordingScheduler{}
	svc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db), sched, nil)
	target := testutil.CreateUser(t, db, "Target")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewNotificationHandler(svc, nil)
	r.POST("/admin/notifications", h.CreateNotification)
	r.DELETE("/admin/notifications/:id", h.CancelNotification)

	post := func(body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/admin/notifications", &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	del := func(id string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/notifications/"+id, nil))
		return w.Code
	}

	sendAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	w := post(map[string]any{
		"message_en": "Sale <b>today</b>",
		"message_uk": "Знижки сьогодні",
		"user_ids":   []string{target.ID.String()},
		"send_at":    sendAt,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created notifDto.NotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Sale today", created.MessageEN)
	assert.Equal(t, []uuid.UUID{target.ID}, created.Users)
	assert.True(t, sendAt.Equal(created.SendAt))
	assert.Equal(t, []uuid.UUID{created.ID}, sched.ids)

	w = post(map[string]any{"message_en": "only english"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, sched.ids, 1)

	assert.Equal(t, http.StatusNoContent, del(created.ID.String()))
	assert.EqualValues(t, 0, testutil.Count(t, db, &entity.Notification{}, ""))
	assert.Equal(t, http.StatusNotFound, del(created.ID.String()))
	assert.Equal(t, http.StatusBadRequest, del("nope"))
}
