package v1

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/lanes/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface, and so does the change-publishing
// store the server wires in front of it.
type DataStore interface {
	Users() domain.UserRepository
	Boards() domain.BoardRepository
	Members() domain.MembershipRepository
	Columns() domain.ColumnRepository
	Tasks() domain.TaskRepository
	Notifications() domain.NotificationRepository
}

// RegisterRoutes mounts every v1 operation.
func RegisterRoutes(api huma.API, store DataStore) {
	RegisterBoardRoutes(api, store)
	RegisterColumnRoutes(api, store)
	RegisterTaskRoutes(api, store)
	RegisterMemberRoutes(api, store)
	RegisterNotificationRoutes(api, store)
}
