package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

type ListNotificationsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"200" doc:"Maximum number of notifications (default 50)"`
}

type ListNotificationsOutput struct {
	Body []*domain.Notification
}

type NotificationIDInput struct {
	ID uuid.UUID `path:"id" doc:"Notification ID"`
}

type MarkAllReadOutput struct {
	Body struct {
		Updated int64 `json:"updated" doc:"Number of notifications marked read"`
	}
}

type MeOutput struct {
	Body *domain.User
}

func RegisterNotificationRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications, newest first",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		notes, err := store.Notifications().ListByUser(ctx, userID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}
		if notes == nil {
			notes = []*domain.Notification{}
		}

		return &ListNotificationsOutput{Body: notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark one notification read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *NotificationIDInput) (*struct{}, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Notifications().MarkRead(ctx, userID, input.ID); err != nil {
			return nil, storeError(err, "notification not found", "failed to mark notification read")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *struct{}) (*MarkAllReadOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		n, err := store.Notifications().MarkAllRead(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to mark notifications read", err)
		}

		out := &MarkAllReadOutput{}
		out.Body.Updated = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the authenticated user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		u, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, storeError(err, "user not found", "failed to get user")
		}

		return &MeOutput{Body: u}, nil
	})
}
