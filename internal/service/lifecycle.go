package service

import (
	"fmt"

	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
)

// lifecycleAction named transition of the publication state machine
type lifecycleAction string

const (
	actionPublish   lifecycleAction = "publish"
	actionUnpublish lifecycleAction = "unpublish"
	actionArchive   lifecycleAction = "archive"
)

// allowedFrom source states accepted by each named transition.
// Re-activating archived content goes through an explicit update instead.
var allowedFrom = map[lifecycleAction][]domain.ContentStatus{
	actionPublish:   {domain.StatusDraft},
	actionUnpublish: {domain.StatusPublished},
	actionArchive:   {domain.StatusDraft, domain.StatusPublished},
}

func checkTransition(action lifecycleAction, from domain.ContentStatus) error {
	for _, s := range allowedFrom[action] {
		if s == from {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s %s content", common.ErrInvalidTransition, action, from)
}

// transitionTag history tag for a move between two states
func transitionTag(from, to domain.ContentStatus) domain.ChangeType {
	if from == to {
		return domain.ChangeUpdated
	}
	switch to {
	case domain.StatusPublished:
		return domain.ChangePublished
	case domain.StatusArchived:
		return domain.ChangeArchived
	default:
		return domain.ChangeStatusChanged
	}
}

// applyNamedTransition mutates entry for publish/unpublish/archive
func applyNamedTransition(action lifecycleAction, entry *domain.ContentEntry) (domain.ChangeType, error) {
	if err := checkTransition(action, entry.Status); err != nil {
		return "", err
	}

	switch action {
	case actionPublish:
		entry.Status = domain.StatusPublished
		entry.IsActive = true
		return domain.ChangePublished, nil
	case actionUnpublish:
		entry.Status = domain.StatusDraft
		return domain.ChangeStatusChanged, nil
	case actionArchive:
		entry.Status = domain.StatusArchived
		entry.IsActive = false
		return domain.ChangeArchived, nil
	}
	return "", fmt.Errorf("unknown lifecycle action %q", action)
}

// applyEdit mutates entry for an explicit update request.
// The request has already passed payload validation.
func applyEdit(req *domain.UpdateContentRequest, entry *domain.ContentEntry) (domain.ChangeType, error) {
	if req.ExpectedVersion != nil && *req.ExpectedVersion != entry.Version {
		return "", fmt.Errorf("%w: expected version %d, current is %d",
			common.ErrVersionConflict, *req.ExpectedVersion, entry.Version)
	}

	from := entry.Status
	to := from
	if req.Status != nil {
		to = *req.Status
	}

	active := entry.IsActive
	switch {
	case to == domain.StatusPublished:
		// published content is always active
		active = true
	case req.IsActive != nil:
		active = *req.IsActive
	case to != from && to == domain.StatusArchived:
		active = false
	}

	entry.Value = req.Value
	if req.Description != nil {
		entry.Description = *req.Description
	}
	if req.Page != nil {
		entry.Page = *req.Page
	}
	if req.Section != nil {
		entry.Section = *req.Section
	}
	entry.Status = to
	entry.IsActive = active

	return transitionTag(from, to), nil
}
