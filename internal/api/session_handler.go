package api

import (
	"net/http"
	"time"

	"github.com/ales-api/internal/service"
	"github.com/ales-api/internal/validation"
	"github.com/ales-api/internal/wallet"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	walletSessionKey = "wallet_session"
	walletContextKey = "wallet"

	streamWriteTimeout = 10 * time.Second
	streamBuffer       = 16
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// walletSessionMiddleware attaches the caller's wallet session to the gin
// context. The session id is kept in the signed cookie; unknown ids get a
// fresh session.
func walletSessionMiddleware(registry *wallet.Registry, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		id, _ := cookie.Get(walletSessionKey).(string)

		session := registry.Get(id)
		if session.ID != id {
			cookie.Set(walletSessionKey, session.ID)
			if err := cookie.Save(); err != nil {
				log.Warn().Err(err).Msg("Failed to save session cookie")
			}
		}

		c.Set(walletContextKey, session)
		c.Next()
	}
}

// walletSession returns the session attached by walletSessionMiddleware
func walletSession(c *gin.Context) *wallet.Session {
	return c.MustGet(walletContextKey).(*wallet.Session)
}

// SessionHandler handles wallet session endpoints
type SessionHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(services *service.Services, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		services: services,
		log:      log.With().Str("handler", "session").Logger(),
	}
}

// GetSession handles GET /v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, walletSession(c).State())
}

// ApplyEvent handles POST /v1/session/events
// The browser forwards its wallet provider events here
func (h *SessionHandler) ApplyEvent(c *gin.Context) {
	var ev wallet.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
		return
	}
	if ev.Address != "" && !validation.IsValidAddress(ev.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid event body",
			"details": []validation.ValidationError{{Field: "address", Message: "must be a 20-byte hex address", Value: ev.Address}},
		})
		return
	}

	session := walletSession(c)
	state, err := session.Apply(ev)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Debug().
		Str("session_id", session.ID).
		Str("event", string(ev.Type)).
		Str("status", string(state.Status)).
		Msg("Wallet event applied")

	c.JSON(http.StatusOK, state)
}

// GetWallet handles GET /v1/wallet
// Reports the server signer's connection state
func (h *SessionHandler) GetWallet(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Connection.Session().State())
}

// Stream handles GET /v1/session/stream
// Pushes the current state, then every change, over a websocket
func (h *SessionHandler) Stream(c *gin.Context) {
	session := walletSession(c)

	// The upgrade response is written by the upgrader, so carry the cookie over
	header := http.Header{}
	if cookies := c.Writer.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header["Set-Cookie"] = cookies
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := make(chan wallet.State, streamBuffer)
	unsubscribe := session.Subscribe(func(s wallet.State) {
		select {
		case updates <- s:
		default:
			// Slow reader; it will catch up on the next change
		}
	})
	defer unsubscribe()

	// Reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, session.State()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case s := <-updates:
			if err := h.write(conn, s); err != nil {
				h.log.Debug().Err(err).Str("session_id", session.ID).Msg("Session stream closed")
				return
			}
		}
	}
}

func (h *SessionHandler) write(conn *websocket.Conn, state wallet.State) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(state)
}
