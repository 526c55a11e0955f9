package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

type ListMembersOutput struct {
	Body []*domain.Membership
}

type InviteMemberInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Email string      `json:"email" minLength:"3" maxLength:"320" doc:"Email of the user to invite"`
		Role  domain.Role `json:"role" enum:"editor,viewer" doc:"Role granted once the invitation is accepted"`
	}
}

type MemberOutput struct {
	Body *domain.Membership
}

type MemberIDInput struct {
	ID uuid.UUID `path:"id" doc:"Membership ID"`
}

type UpdateMemberInput struct {
	ID   uuid.UUID `path:"id" doc:"Membership ID"`
	Body struct {
		Role domain.Role `json:"role" enum:"editor,viewer" doc:"New role"`
	}
}

type RespondInvitationInput struct {
	ID   uuid.UUID `path:"id" doc:"Membership ID"`
	Body struct {
		Accept bool `json:"accept" doc:"true accepts the invitation, false declines it"`
	}
}

func RegisterMemberRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/members",
		Summary:     "List a board's memberships",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *BoardIDInput) (*ListMembersOutput, error) {
		if _, err := boardAccess(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		members, err := store.Members().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list members", err)
		}
		if members == nil {
			members = []*domain.Membership{}
		}

		return &ListMembersOutput{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invite-member",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/members",
		Summary:     "Invite a user to a board by email",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *InviteMemberInput) (*MemberOutput, error) {
		a, err := requireOwner(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}

		role := input.Body.Role
		if role != domain.RoleEditor && role != domain.RoleViewer {
			return nil, huma.Error400BadRequest("role must be editor or viewer")
		}

		invitee, err := store.Users().GetByEmail(ctx, strings.TrimSpace(input.Body.Email))
		if err != nil {
			return nil, storeError(err, "no user with that email", "failed to look up user")
		}
		if invitee.ID == a.Board.OwnerID {
			return nil, huma.Error409Conflict("the owner is already on this board")
		}

		_, err = store.Members().GetByBoardAndUser(ctx, a.Board.ID, invitee.ID)
		switch {
		case err == nil:
			return nil, huma.Error409Conflict("user is already a member or invited")
		case !errors.Is(err, domain.ErrNotFound):
			return nil, huma.Error500InternalServerError("failed to check membership", err)
		}

		m := &domain.Membership{
			ID:        uuid.New(),
			BoardID:   a.Board.ID,
			UserID:    invitee.ID,
			Role:      role,
			Status:    domain.MemberStatusPending,
			CreatedAt: time.Now(),
		}
		if err := store.Members().Create(ctx, m); err != nil {
			return nil, storeError(err, "board not found", "failed to create invitation")
		}

		return &MemberOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-member",
		Method:      http.MethodPatch,
		Path:        "/members/{id}",
		Summary:     "Change a member's role",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *UpdateMemberInput) (*MemberOutput, error) {
		m, err := store.Members().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "membership not found", "failed to get membership")
		}
		if _, err := requireOwner(ctx, store, m.BoardID); err != nil {
			return nil, err
		}

		role := input.Body.Role
		if role != domain.RoleEditor && role != domain.RoleViewer {
			return nil, huma.Error400BadRequest("role must be editor or viewer")
		}

		if err := store.Members().UpdateRole(ctx, m.ID, role); err != nil {
			return nil, storeError(err, "membership not found", "failed to update role")
		}

		m.Role = role
		return &MemberOutput{Body: m}, nil
	})

	// The owner removes anyone; a member may remove themself (leave).
	huma.Register(api, huma.Operation{
		OperationID: "delete-member",
		Method:      http.MethodDelete,
		Path:        "/members/{id}",
		Summary:     "Remove a member from a board",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *MemberIDInput) (*struct{}, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		m, err := store.Members().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "membership not found", "failed to get membership")
		}
		if m.UserID != userID {
			if _, err := requireOwner(ctx, store, m.BoardID); err != nil {
				return nil, err
			}
		}

		if err := store.Members().Delete(ctx, m.ID); err != nil {
			return nil, storeError(err, "membership not found", "failed to remove member")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-invitation",
		Method:      http.MethodPost,
		Path:        "/members/{id}/respond",
		Summary:     "Accept or decline an invitation",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *RespondInvitationInput) (*MemberOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		m, err := store.Members().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "invitation not found", "failed to get invitation")
		}
		// Someone else's invitation is reported as missing.
		if m.UserID != userID {
			return nil, huma.Error404NotFound("invitation not found")
		}
		if m.Status != domain.MemberStatusPending {
			return nil, huma.Error409Conflict("invitation was already answered")
		}

		if !input.Body.Accept {
			if err := store.Members().Delete(ctx, m.ID); err != nil {
				return nil, storeError(err, "invitation not found", "failed to decline invitation")
			}
			return &MemberOutput{Body: m}, nil
		}

		if err := store.Members().UpdateStatus(ctx, m.ID, domain.MemberStatusAccepted); err != nil {
			return nil, storeError(err, "invitation not found", "failed to accept invitation")
		}

		m.Status = domain.MemberStatusAccepted
		return &MemberOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invitations",
		Method:      http.MethodGet,
		Path:        "/invitations",
		Summary:     "List the caller's pending invitations",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, _ *struct{}) (*ListMembersOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		pending, err := store.Members().ListPendingByUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list invitations", err)
		}
		if pending == nil {
			pending = []*domain.Membership{}
		}

		return &ListMembersOutput{Body: pending}, nil
	})
}
