package api

import (
	"context"
	"strconv"

	"chatgogo/client/internal/models"
)

// FetchRoom loads a room's participants and message history in one shot.
func (c *Client) FetchRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	var resp struct {
		Room *models.Room `json:"room"`
	}
	err := c.do(ctx, "fetch room", queryGetRoom, map[string]any{"id": roomID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Room == nil {
		return nil, models.ErrNotFound
	}
	return resp.Room, nil
}

// Rooms lists the caller's rooms.
func (c *Client) Rooms(ctx context.Context) ([]models.Room, error) {
	var resp struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := c.do(ctx, "list rooms", queryGetRooms, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// Users lists all registered users.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var resp struct {
		Users []models.User `json:"users"`
	}
	if err := c.do(ctx, "list users", queryGetUsers, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

type messagePayload struct {
	Message *models.Message `json:"message"`
	Error   *opError        `json:"error"`
}

// CreateMessage posts a new message to a room.
func (c *Client) CreateMessage(ctx context.Context, text string, senderID, roomID int64) (*models.Message, error) {
	var resp struct {
		CreateMessage messagePayload `json:"createMessage"`
	}
	vars := map[string]any{
		"text":   text,
		"sender": strconv.FormatInt(senderID, 10),
		"room":   strconv.FormatInt(roomID, 10),
	}
	if err := c.do(ctx, "create message", mutationCreateMessage, vars, &resp); err != nil {
		return nil, err
	}
	if err := resp.CreateMessage.Error.toError("create message"); err != nil {
		return nil, err
	}
	if resp.CreateMessage.Message == nil {
		return nil, models.ErrNotFound
	}
	return resp.CreateMessage.Message, nil
}

// UpdateMessage edits an existing message's text.
func (c *Client) UpdateMessage(ctx context.Context, id int64, text string, senderID, roomID int64) (*models.Message, error) {
	var resp struct {
		UpdateMessage messagePayload `json:"updateMessage"`
	}
	vars := map[string]any{
		"messageId": id,
		"text":      text,
		"sender":    strconv.FormatInt(senderID, 10),
		"room":      strconv.FormatInt(roomID, 10),
	}
	if err := c.do(ctx, "update message", mutationUpdateMessage, vars, &resp); err != nil {
		return nil, err
	}
	if err := resp.UpdateMessage.Error.toError("update message"); err != nil {
		return nil, err
	}
	if resp.UpdateMessage.Message == nil {
		return nil, models.ErrNotFound
	}
	return resp.UpdateMessage.Message, nil
}

// DeleteMessage removes a message by id.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	var resp struct {
		DeleteMessage struct {
			Success bool `json:"success"`
		} `json:"deleteMessage"`
	}
	vars := map[string]any{"messageId": id}
	if err := c.do(ctx, "delete message", mutationDeleteMessage, vars, &resp); err != nil {
		return err
	}
	if !resp.DeleteMessage.Success {
		return models.ErrNotFound
	}
	return nil
}
