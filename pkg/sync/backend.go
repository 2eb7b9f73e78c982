// Package sync keeps a client's view of conversation rooms and messages
// converged with the shared backend store under periodic polling. It owns
// the room directory cache, the active room's message cache, the optimistic
// send pipeline and room provisioning.
//
// Consistency model: caches are replaced wholesale by poll results
// (last-writer-wins) except for targeted identity-based splices performed by
// the send pipeline and the read-state override. No reader ever observes a
// partially built collection.
package sync

import (
	"context"

	"opschat/pkg/backend"
	"opschat/pkg/models"
)

// Backend is the request/response boundary to the shared store. The
// concrete implementation is backend.Client; tests substitute fakes.
type Backend interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	SendMessage(ctx context.Context, roomID, content string, attachments []models.Attachment) (models.Message, error)
	CreateRoom(ctx context.Context, req backend.CreateRoomRequest) (models.Room, error)
	ListStaff(ctx context.Context) ([]models.Actor, error)
	ListCustomers(ctx context.Context) ([]models.Actor, error)
}

var _ Backend = (*backend.Client)(nil)
