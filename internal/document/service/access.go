package service

import (
	"context"
	"database/sql"
	"fmt"

	"coedit/internal/document/model"
	"coedit/internal/document/repository"
	"coedit/pkg/logger"
)

// AccessArbiter decides whether an identity may join a document session.
//
// Decision order: document owner, then explicit collaborator grant, then
// share-token redemption. Redeeming a valid token promotes the guest to
// collaborator with the grant's permission; a second redemption by the same
// user is a no-op. Authorization may observe a grant that is being disabled
// concurrently; a redemption that read enabled=true stays valid for that
// connection's lifetime.
type AccessArbiter struct {
	Repo *repository.DocumentRepository
}

func NewAccessArbiter(repo *repository.DocumentRepository) *AccessArbiter {
	return &AccessArbiter{Repo: repo}
}

func (a *AccessArbiter) Authorize(ctx context.Context, userID, docID, shareToken string) (model.Permission, error) {
	ownerID, err := a.Repo.GetOwnerID(ctx, docID)
	if err == sql.ErrNoRows {
		return "", ErrDocumentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("authorize: %w", err)
	}
	if ownerID == userID {
		return model.PermissionOwner, nil
	}

	perm, err := a.Repo.GetCollaboratorPermission(ctx, docID, userID)
	if err == nil {
		return perm, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("authorize: %w", err)
	}

	if shareToken == "" {
		return "", ErrAccessDenied
	}

	grant, err := a.Repo.GetShareGrant(ctx, docID)
	if err == sql.ErrNoRows {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", fmt.Errorf("authorize: %w", err)
	}
	if grant.Token != shareToken || !grant.Enabled {
		return "", ErrAccessDenied
	}

	// Promote the guest. The append statement revalidates the grant itself,
	// so a disable that lands first simply appends nothing.
	if err := a.Repo.AppendCollaboratorViaGrant(ctx, docID, userID, shareToken); err != nil {
		return "", fmt.Errorf("authorize: redeem share grant: %w", err)
	}
	logger.Sugar.Infof("User %s redeemed share grant on doc %s as %s", userID, docID, grant.Permission)
	return grant.Permission, nil
}
