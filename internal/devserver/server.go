// Package devserver is an in-memory stand-in for the chatgogo backend. It
// speaks the same GraphQL contract over HTTP and the same graphql-ws dialect
// for subscriptions, holds everything in maps, and exists for the API tests
// and for running the client against something local.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"chatgogo/client/internal/logging"
	"chatgogo/client/internal/models"
)

// account is a registered user plus server-only fields.
type account struct {
	user         models.User
	password     string
	confirmed    bool
	confirmToken string
}

// room is a two-party chat and its message log.
type room struct {
	id       int64
	userIDs  [2]int64
	messages []models.Message
}

// Server holds all state behind one mutex. Good enough for a fixture.
type Server struct {
	secret []byte
	log    zerolog.Logger

	mu            sync.Mutex
	accounts      map[int64]*account
	accountsEmail map[string]int64
	rooms         map[int64]*room
	nextUserID    int64
	nextRoomID    int64
	nextMessageID int64

	subMu sync.RWMutex
	subs  map[*subscriber]bool
}

// New creates an empty devserver signing tokens with the given secret.
func New(secret string) *Server {
	return &Server{
		secret:        []byte(secret),
		log:           logging.WithComponent("devserver"),
		accounts:      make(map[int64]*account),
		accountsEmail: make(map[string]int64),
		rooms:         make(map[int64]*room),
		subs:          make(map[*subscriber]bool),
	}
}

// Router builds the gin engine: POST /graphql for queries and mutations,
// GET /graphql for the subscription websocket.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/graphql", s.handleGraphQL)
	r.GET("/graphql", s.handleSubscriptions)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	server := &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	s.log.Info().Str("addr", addr).Msg("devserver listening")
	return server.ListenAndServe()
}

// CreateUser registers an account directly, bypassing the register mutation.
// Used for seeding.
func (s *Server) CreateUser(fullName, email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(fullName, email, password)
}

func (s *Server) createUserLocked(fullName, email, password string) models.User {
	s.nextUserID++
	u := models.User{ID: s.nextUserID, FullName: fullName, Email: email}
	s.accounts[u.ID] = &account{user: u, password: password, confirmed: true}
	s.accountsEmail[email] = u.ID
	return u
}

// CreateRoom opens a two-party room directly. Used for seeding.
func (s *Server) CreateRoom(user1, user2 int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoomID++
	s.rooms[s.nextRoomID] = &room{id: s.nextRoomID, userIDs: [2]int64{user1, user2}}
	return s.nextRoomID
}

// InjectMessage appends a message server-side and pushes it to subscribers,
// as if the counterpart had sent it. Used by tests to simulate the push feed.
func (s *Server) InjectMessage(roomID, senderID int64, text string) (models.Message, bool) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, false
	}
	msg := s.appendMessageLocked(r, senderID, text)
	s.mu.Unlock()

	s.broadcast(msg)
	return msg, true
}

// appendMessageLocked assigns the next id and stores the message. Caller
// holds s.mu and broadcasts after releasing it.
func (s *Server) appendMessageLocked(r *room, senderID int64, text string) models.Message {
	s.nextMessageID++
	sender := models.User{ID: senderID}
	if acc, ok := s.accounts[senderID]; ok {
		sender = models.User{ID: acc.user.ID, FullName: acc.user.FullName}
	}
	msg := models.Message{
		ID:     s.nextMessageID,
		RoomID: r.id,
		Text:   text,
		Sender: sender,
		Time:   time.Now().Format(time.RFC3339),
	}
	r.messages = append(r.messages, msg)
	return msg
}

// issueToken signs a session token the way the backend does.
func (s *Server) issueToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
		"iss":     "chatgogo-devserver",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// userIDFromToken validates a token and extracts the subject.
func (s *Server) userIDFromToken(tokenString string) (int64, bool) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	id, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

// bearerUser resolves the Authorization header to a user id, 0 when absent
// or invalid.
func (s *Server) bearerUser(c *gin.Context) int64 {
	h := c.GetHeader("Authorization")
	if len(h) < 8 || h[:7] != "Bearer " {
		return 0
	}
	id, ok := s.userIDFromToken(h[7:])
	if !ok {
		return 0
	}
	return id
}
