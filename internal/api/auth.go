package api

import (
	"context"
	"encoding/json"

	"chatgogo/client/internal/models"
)

// AuthResult is the outcome of register and login: a bearer token plus the
// authenticated user.
type AuthResult struct {
	Token string
	User  models.User
}

type authPayload struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Error   *opError     `json:"error"`
}

func (p *authPayload) result(op string) (*AuthResult, error) {
	if err := p.Error.toError(op); err != nil {
		return nil, err
	}
	res := &AuthResult{Token: p.Token}
	if p.User != nil {
		res.User = *p.User
	}
	return res, nil
}

// Register creates an account. Field-level rejections come back as
// *models.ValidationError.
func (c *Client) Register(ctx context.Context, email, password1, password2, fullName string) (*AuthResult, error) {
	var resp struct {
		Register authPayload `json:"register"`
	}
	vars := map[string]any{
		"email":     email,
		"password1": password1,
		"password2": password2,
		"fullName":  fullName,
	}
	if err := c.do(ctx, "register", mutationRegister, vars, &resp); err != nil {
		return nil, err
	}
	return resp.Register.result("register")
}

// Login authenticates with email (username) and password.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var resp struct {
		Login authPayload `json:"login"`
	}
	vars := map[string]any{
		"username": username,
		"password": password,
	}
	if err := c.do(ctx, "login", mutationLogin, vars, &resp); err != nil {
		return nil, err
	}
	return resp.Login.result("login")
}

// VerifyToken asks the server whether a persisted token is still valid and
// returns its claims payload.
func (c *Client) VerifyToken(ctx context.Context, token string) (map[string]any, error) {
	var resp struct {
		VerifyToken struct {
			Payload json.RawMessage `json:"payload"`
		} `json:"verifyToken"`
	}
	vars := map[string]any{"token": token}
	if err := c.do(ctx, "verify token", mutationVerifyToken, vars, &resp); err != nil {
		return nil, err
	}
	payload := make(map[string]any)
	if len(resp.VerifyToken.Payload) > 0 {
		if err := json.Unmarshal(resp.VerifyToken.Payload, &payload); err != nil {
			return nil, &models.TransportError{Op: "verify token", Err: err}
		}
	}
	return payload, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var resp struct {
		Me *models.User `json:"me"`
	}
	if err := c.do(ctx, "me", queryMe, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Me == nil {
		return nil, models.ErrNotFound
	}
	return resp.Me, nil
}

// EditUser updates the authenticated user's profile.
func (c *Client) EditUser(ctx context.Context, fullName, email, avatar string) (*models.User, error) {
	var resp struct {
		EditUser struct {
			User  *models.User `json:"user"`
			Error *opError     `json:"error"`
		} `json:"editUser"`
	}
	vars := map[string]any{
		"fullName": fullName,
		"email":    email,
		"avatar":   avatar,
	}
	if err := c.do(ctx, "edit user", mutationEditUser, vars, &resp); err != nil {
		return nil, err
	}
	if err := resp.EditUser.Error.toError("edit user"); err != nil {
		return nil, err
	}
	if resp.EditUser.User == nil {
		return nil, models.ErrNotFound
	}
	return resp.EditUser.User, nil
}

// ConfirmEmail triggers the confirmation mail for a registered address.
func (c *Client) ConfirmEmail(ctx context.Context, email string) error {
	var resp struct {
		ConfirmEmail struct {
			Success bool     `json:"success"`
			Error   *opError `json:"error"`
		} `json:"confirmEmail"`
	}
	vars := map[string]any{"email": email}
	if err := c.do(ctx, "confirm email", mutationConfirmEmail, vars, &resp); err != nil {
		return err
	}
	return resp.ConfirmEmail.Error.toError("confirm email")
}

// ResetPassword sets a new password using a confirmation token.
func (c *Client) ResetPassword(ctx context.Context, newPassword1, newPassword2, confirmToken string, userID int64) error {
	var resp struct {
		ResetPassword struct {
			Success bool     `json:"success"`
			Error   *opError `json:"error"`
		} `json:"resetPassword"`
	}
	vars := map[string]any{
		"newPassword1": newPassword1,
		"newPassword2": newPassword2,
		"confirmToken": confirmToken,
		"userId":       userID,
	}
	if err := c.do(ctx, "reset password", mutationResetPassword, vars, &resp); err != nil {
		return err
	}
	return resp.ResetPassword.Error.toError("reset password")
}
