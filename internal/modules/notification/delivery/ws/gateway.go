// Package ws is the live notification gateway: one websocket session per
// connected client, joined to the user's personal group and the broadcast
// group of the channel layer.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"bazhay.app/wishlist/internal/entity"
	notifDto "bazhay.app/wishlist/internal/modules/notification/dto"
	notifService "bazhay.app/wishlist/internal/modules/notification/service"
	userRepo "bazhay.app/wishlist/internal/modules/user/repository"
	"bazhay.app/wishlist/pkg/apperror"
	"bazhay.app/wishlist/pkg/auth"
	"bazhay.app/wishlist/pkg/metrics"
	"bazhay.app/wishlist/pkg/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Close codes sent when a session is refused.
const (
	CloseNoToken      = 4001
	CloseInvalidToken = 4002
)

const (
	WelcomeEN = "Hi there! We're happy to welcome you to Bazhay!"
	WelcomeUK = "Привіт! Ми раді вітати тебе в Bazhay!"

	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type Options struct {
	PingInterval   time.Duration
	AllowedOrigins []string
}

type Gateway struct {
	parser        *auth.TokenParser
	users         userRepo.UserRepository
	notifications notifService.NotificationService
	broker        pubsub.Broker
	metrics       *metrics.Metrics
	log           *zap.Logger
	upgrader      websocket.Upgrader
	pingInterval  time.Duration

	// closing is closed by Close; open sessions end with CloseGoingAway.
	closing   chan struct{}
	closeOnce sync.Once
}

func NewGateway(
	parser *auth.TokenParser,
	users userRepo.UserRepository,
	notifications notifService.NotificationService,
	broker pubsub.Broker,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Gateway{
		parser:        parser,
		users:         users,
		notifications: notifications,
		broker:        broker,
		metrics:       m,
		log:           log.Named("gateway"),
		pingInterval:  opts.PingInterval,
		closing:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Close ends every open session with CloseGoingAway, and sessions opened later
// end the same way. http.Server.Shutdown does not close hijacked connections.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() { close(g.closing) })
}

func (g *Gateway) Handle(c *gin.Context) {
	g.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP upgrades first so refusals reach the client as close frames.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	userID, err := g.parser.Parse(auth.ExtractToken(r))
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			closeWith(conn, CloseNoToken, auth.ErrNoToken.Error())
			return
		}
		closeWith(conn, CloseInvalidToken, auth.ErrInvalidToken.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if _, err := g.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			closeWith(conn, CloseInvalidToken, auth.ErrInvalidToken.Error())
			return
		}
		g.log.Error("load session user", zap.Stringer("user_id", userID), zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}

	sub, err := g.broker.Subscribe(ctx, pubsub.UserGroup(userID), pubsub.BroadcastGroup)
	if err != nil {
		g.log.Error("subscribe session", zap.Stringer("user_id", userID), zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	defer sub.Close()

	g.metrics.SessionOpened()
	defer g.metrics.SessionClosed()
	log := g.log.With(zap.Stringer("user_id", userID))
	log.Debug("session connected")

	greeting, err := g.welcome(ctx, userID)
	if err != nil {
		log.Error("store welcome", zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	if greeting != nil {
		if err := writeEnvelope(conn, greeting); err != nil {
			log.Warn("send welcome", zap.Error(err))
			return
		}
	}

	done := make(chan struct{})
	go g.readPump(ctx, conn, userID, log, done)

	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("write frame", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("write ping", zap.Error(err))
				return
			}
		case <-done:
			log.Debug("session closed")
			return
		case <-g.closing:
			closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}

// welcome stores the one-time greeting in the same transaction that flips the
// user's flag, and returns nil when the user was already greeted.
func (g *Gateway) welcome(ctx context.Context, userID uuid.UUID) (*entity.Notification, error) {
	var greeting *entity.Notification
	err := g.users.Transaction(ctx, func(tx *gorm.DB) error {
		won, err := g.users.WithTx(tx).MarkRegistered(ctx, userID)
		if err != nil || !won {
			return err
		}
		greeting, err = g.notifications.CreateDeliveredInTx(ctx, tx, notifDto.CreateNotificationInput{
			MessageEN: WelcomeEN,
			MessageUK: WelcomeUK,
			UserIDs:   []uuid.UUID{userID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return greeting, nil
}

func writeEnvelope(conn *websocket.Conn, n *entity.Notification) error {
	payload, err := json.Marshal(notifDto.Envelope{Message: notifDto.ToResponse(n)})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump owns reads. Client frames become notifications for the session
// user; they come back through the channel layer once delivered.
func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, userID uuid.UUID, log *zap.Logger, done chan<- struct{}) {
	defer close(done)

	pongWait := 2 * g.pingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		g.receive(ctx, userID, data, log)
	}
}

func (g *Gateway) receive(ctx context.Context, userID uuid.UUID, data []byte, log *zap.Logger) {
	var frame notifDto.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Debug("discard malformed frame", zap.Error(err))
		return
	}

	n, err := g.notifications.Create(ctx, frame.Input(userID))
	if err != nil {
		log.Warn("store client notification", zap.Error(err))
		return
	}
	log.Debug("client notification stored", zap.Stringer("notification_id", n.ID))
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
