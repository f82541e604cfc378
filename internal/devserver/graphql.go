package devserver

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatgogo/client/internal/models"
)

var operationRe = regexp.MustCompile(`(?s)^\s*(?:query|mutation|subscription)\s+(\w+)`)

// operationName extracts the named operation from a GraphQL document. The
// fixture dispatches on it instead of parsing the query language.
func operationName(query string) string {
	m := operationRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}

func (s *Server) handleGraphQL(c *gin.Context) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "malformed request")
		return
	}

	caller := s.bearerUser(c)
	op := operationName(req.Query)

	switch op {
	case "register":
		s.resolveRegister(c, req.Variables)
	case "login":
		s.resolveLogin(c, req.Variables)
	case "verifyToken":
		s.resolveVerifyToken(c, req.Variables)
	case "me":
		s.resolveMe(c, caller)
	case "editUser":
		s.resolveEditUser(c, caller, req.Variables)
	case "confirmEmail":
		s.resolveConfirmEmail(c, req.Variables)
	case "resetPassword":
		s.resolveResetPassword(c, req.Variables)
	case "getUsers":
		s.resolveUsers(c, caller)
	case "getRooms":
		s.resolveRooms(c, caller)
	case "getRoom":
		s.resolveRoom(c, caller, req.Variables)
	case "createMessage":
		s.resolveCreateMessage(c, caller, req.Variables)
	case "updateMessage":
		s.resolveUpdateMessage(c, caller, req.Variables)
	case "deleteMessage":
		s.resolveDeleteMessage(c, caller, req.Variables)
	default:
		errorResponse(c, "unknown operation")
	}
}

// --- auth and profile ---

func (s *Server) resolveRegister(c *gin.Context, vars map[string]any) {
	email := varString(vars, "email")
	password1 := varString(vars, "password1")
	password2 := varString(vars, "password2")
	fullName := varString(vars, "fullName")

	fields := map[string][]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = append(fields["email"], "Enter a valid email address.")
	}
	if len(password1) < 8 {
		fields["password1"] = append(fields["password1"], "Password must be at least 8 characters.")
	}
	if password1 != password2 {
		fields["password2"] = append(fields["password2"], "Passwords do not match.")
	}
	if fullName == "" {
		fields["fullName"] = append(fields["fullName"], "This field is required.")
	}

	s.mu.Lock()
	if _, taken := s.accountsEmail[email]; taken && email != "" {
		fields["email"] = append(fields["email"], "A user with this email already exists.")
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		dataResponse(c, gin.H{"register": gin.H{
			"success": false, "token": "", "user": nil,
			"error": validationErrorsPayload(fields),
		}})
		return
	}
	user := s.createUserLocked(fullName, email, password1)
	acc := s.accounts[user.ID]
	acc.confirmed = false
	acc.confirmToken = uuid.NewString()
	s.mu.Unlock()

	token, err := s.issueToken(user.ID)
	if err != nil {
		errorResponse(c, "failed to issue token")
		return
	}
	dataResponse(c, gin.H{"register": gin.H{
		"success": true, "token": token, "user": user, "error": nil,
	}})
}

func (s *Server) resolveLogin(c *gin.Context, vars map[string]any) {
	username := varString(vars, "username")
	password := varString(vars, "password")

	s.mu.Lock()
	id, ok := s.accountsEmail[username]
	var acc *account
	if ok {
		acc = s.accounts[id]
	}
	s.mu.Unlock()

	if acc == nil || acc.password != password {
		dataResponse(c, gin.H{"login": gin.H{
			"token": "", "user": nil,
			"error": validationErrorsPayload(map[string][]string{
				"password": {"Please enter valid credentials."},
			}),
		}})
		return
	}

	token, err := s.issueToken(acc.user.ID)
	if err != nil {
		errorResponse(c, "failed to issue token")
		return
	}
	dataResponse(c, gin.H{"login": gin.H{
		"token": token, "user": acc.user, "error": nil,
	}})
}

func (s *Server) resolveVerifyToken(c *gin.Context, vars map[string]any) {
	id, ok := s.userIDFromToken(varString(vars, "token"))
	if !ok {
		errorResponse(c, "invalid or expired token")
		return
	}
	dataResponse(c, gin.H{"verifyToken": gin.H{
		"payload": gin.H{"user_id": id, "iss": "chatgogo-devserver"},
	}})
}

func (s *Server) resolveMe(c *gin.Context, caller int64) {
	s.mu.Lock()
	acc := s.accounts[caller]
	s.mu.Unlock()
	if acc == nil {
		errorResponse(c, "authentication required")
		return
	}
	dataResponse(c, gin.H{"me": acc.user})
}

func (s *Server) resolveEditUser(c *gin.Context, caller int64, vars map[string]any) {
	email := varString(vars, "email")
	if email == "" || !strings.Contains(email, "@") {
		dataResponse(c, gin.H{"editUser": gin.H{
			"user": nil,
			"error": validationErrorsPayload(map[string][]string{
				"email": {"Enter a valid email address."},
			}),
		}})
		return
	}

	s.mu.Lock()
	acc := s.accounts[caller]
	if acc == nil {
		s.mu.Unlock()
		errorResponse(c, "authentication required")
		return
	}
	delete(s.accountsEmail, acc.user.Email)
	acc.user.Email = email
	s.accountsEmail[email] = caller
	if v := varString(vars, "fullName"); v != "" {
		acc.user.FullName = v
	}
	if v := varString(vars, "avatar"); v != "" {
		acc.user.Avatar = v
	}
	user := acc.user
	s.mu.Unlock()

	dataResponse(c, gin.H{"editUser": gin.H{"user": user, "error": nil}})
}

func (s *Server) resolveConfirmEmail(c *gin.Context, vars map[string]any) {
	email := varString(vars, "email")

	s.mu.Lock()
	id, ok := s.accountsEmail[email]
	if !ok {
		s.mu.Unlock()
		dataResponse(c, gin.H{"confirmEmail": gin.H{
			"success": false,
			"error": validationErrorsPayload(map[string][]string{
				"email": {"Unknown email address."},
			}),
		}})
		return
	}
	acc := s.accounts[id]
	if acc.confirmToken == "" {
		acc.confirmToken = uuid.NewString()
	}
	s.log.Info().Str("email", email).Str("confirm_token", acc.confirmToken).Msg("confirmation mail requested")
	s.mu.Unlock()

	dataResponse(c, gin.H{"confirmEmail": gin.H{"success": true, "error": nil}})
}

func (s *Server) resolveResetPassword(c *gin.Context, vars map[string]any) {
	p1 := varString(vars, "newPassword1")
	p2 := varString(vars, "newPassword2")
	confirmToken := varString(vars, "confirmToken")
	userID := varInt(vars, "userId")

	fields := map[string][]string{}
	if len(p1) < 8 {
		fields["newPassword1"] = append(fields["newPassword1"], "Password must be at least 8 characters.")
	}
	if p1 != p2 {
		fields["newPassword2"] = append(fields["newPassword2"], "Passwords do not match.")
	}

	s.mu.Lock()
	acc := s.accounts[userID]
	if acc == nil || acc.confirmToken == "" || acc.confirmToken != confirmToken {
		fields["confirmToken"] = append(fields["confirmToken"], "Invalid confirmation token.")
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		dataResponse(c, gin.H{"resetPassword": gin.H{
			"success": false, "error": validationErrorsPayload(fields),
		}})
		return
	}
	acc.password = p1
	acc.confirmed = true
	acc.confirmToken = ""
	s.mu.Unlock()

	dataResponse(c, gin.H{"resetPassword": gin.H{"success": true, "error": nil}})
}

// --- listings ---

func (s *Server) resolveUsers(c *gin.Context, caller int64) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	s.mu.Lock()
	users := make([]models.User, 0, len(s.accounts))
	for id := int64(1); id <= s.nextUserID; id++ {
		if acc, ok := s.accounts[id]; ok {
			users = append(users, acc.user)
		}
	}
	s.mu.Unlock()
	dataResponse(c, gin.H{"users": users})
}

func (s *Server) resolveRooms(c *gin.Context, caller int64) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	s.mu.Lock()
	rooms := make([]models.Room, 0)
	for id := int64(1); id <= s.nextRoomID; id++ {
		r, ok := s.rooms[id]
		if !ok || !r.hasUser(caller) {
			continue
		}
		view := s.roomViewLocked(r, caller)
		view.Messages = nil
		rooms = append(rooms, view)
	}
	s.mu.Unlock()
	dataResponse(c, gin.H{"rooms": rooms})
}

func (s *Server) resolveRoom(c *gin.Context, caller int64, vars map[string]any) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	roomID := varInt(vars, "id")

	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || !r.hasUser(caller) {
		s.mu.Unlock()
		errorResponse(c, "room not found")
		return
	}
	view := s.roomViewLocked(r, caller)
	s.mu.Unlock()

	dataResponse(c, gin.H{"room": view})
}

// --- messages ---

func (s *Server) resolveCreateMessage(c *gin.Context, caller int64, vars map[string]any) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	text := strings.TrimSpace(varString(vars, "text"))
	roomID := varInt(vars, "room")

	if text == "" {
		dataResponse(c, gin.H{"createMessage": gin.H{
			"message": nil,
			"error": validationErrorsPayload(map[string][]string{
				"text": {"This field is required."},
			}),
		}})
		return
	}

	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || !r.hasUser(caller) {
		s.mu.Unlock()
		errorResponse(c, "room not found")
		return
	}
	msg := s.appendMessageLocked(r, caller, text)
	s.mu.Unlock()

	s.broadcast(msg)
	dataResponse(c, gin.H{"createMessage": gin.H{"message": msg, "error": nil}})
}

func (s *Server) resolveUpdateMessage(c *gin.Context, caller int64, vars map[string]any) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	id := varInt(vars, "messageId")
	text := strings.TrimSpace(varString(vars, "text"))

	if text == "" {
		dataResponse(c, gin.H{"updateMessage": gin.H{
			"message": nil,
			"error": validationErrorsPayload(map[string][]string{
				"text": {"This field is required."},
			}),
		}})
		return
	}

	s.mu.Lock()
	for _, r := range s.rooms {
		if !r.hasUser(caller) {
			continue
		}
		for i := range r.messages {
			if r.messages[i].ID != id {
				continue
			}
			if r.messages[i].Sender.ID != caller {
				s.mu.Unlock()
				errorResponse(c, "message not found")
				return
			}
			r.messages[i].Text = text
			msg := r.messages[i]
			s.mu.Unlock()
			dataResponse(c, gin.H{"updateMessage": gin.H{"message": msg, "error": nil}})
			return
		}
	}
	s.mu.Unlock()
	errorResponse(c, "message not found")
}

func (s *Server) resolveDeleteMessage(c *gin.Context, caller int64, vars map[string]any) {
	if caller == 0 {
		errorResponse(c, "authentication required")
		return
	}
	id := varInt(vars, "messageId")

	s.mu.Lock()
	for _, r := range s.rooms {
		if !r.hasUser(caller) {
			continue
		}
		for i := range r.messages {
			if r.messages[i].ID == id {
				r.messages = append(r.messages[:i], r.messages[i+1:]...)
				s.mu.Unlock()
				dataResponse(c, gin.H{"deleteMessage": gin.H{"success": true}})
				return
			}
		}
	}
	s.mu.Unlock()
	dataResponse(c, gin.H{"deleteMessage": gin.H{"success": false}})
}

// --- helpers ---

func (r *room) hasUser(id int64) bool {
	return r.userIDs[0] == id || r.userIDs[1] == id
}

// roomViewLocked renders a room with the caller first in the participant
// list. Caller holds s.mu.
func (s *Server) roomViewLocked(r *room, caller int64) models.Room {
	ids := r.userIDs
	if ids[1] == caller {
		ids[0], ids[1] = ids[1], ids[0]
	}
	users := make([]models.User, 0, 2)
	for _, id := range ids {
		if acc, ok := s.accounts[id]; ok {
			users = append(users, acc.user)
		}
	}
	return models.Room{
		ID:       r.id,
		Users:    users,
		Messages: append([]models.Message(nil), r.messages...),
	}
}

func dataResponse(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func errorResponse(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{
		"data":   nil,
		"errors": []gin.H{{"message": msg}},
	})
}

func validationErrorsPayload(fields map[string][]string) gin.H {
	out := make([]gin.H, 0, len(fields))
	for field, messages := range fields {
		out = append(out, gin.H{"field": field, "messages": messages})
	}
	return gin.H{"__typename": "ValidationErrors", "validationErrors": out}
}

// varString reads a string variable, tolerating absence.
func varString(vars map[string]any, key string) string {
	v, _ := vars[key].(string)
	return v
}

// varInt reads an id-ish variable: JSON numbers arrive as float64, GraphQL
// IDs as strings.
func varInt(vars map[string]any, key string) int64 {
	switch v := vars[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case int64:
		return v
	default:
		return 0
	}
}
