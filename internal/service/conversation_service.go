package service

import (
	"context"
	"sort"

	"liaison/internal/middleware"
	"liaison/internal/models"
	"liaison/internal/observability"
	"liaison/internal/repository"
)

// ConversationService derives conversation summaries from the message log.
// Nothing here is persisted: every listing recomputes from the log and the
// presence tracker, so summaries can be stale but never drift.
type ConversationService struct {
	messageRepo       repository.MessageRepository
	userRepo          repository.UserRepository
	permittedContacts func(ctx context.Context, userID uint) ([]*models.User, error)
	isOnline          func(ctx context.Context, userID uint) bool
}

// NewConversationService returns a new ConversationService.
func NewConversationService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	permittedContacts func(ctx context.Context, userID uint) ([]*models.User, error),
	isOnline func(ctx context.Context, userID uint) bool,
) *ConversationService {
	return &ConversationService{
		messageRepo:       messageRepo,
		userRepo:          userRepo,
		permittedContacts: permittedContacts,
		isOnline:          isOnline,
	}
}

// ConversationList is the result of a listing: the summaries plus a degraded
// marker set when any sub-step failed and the list is partial or empty.
type ConversationList struct {
	Conversations []models.Conversation `json:"conversations"`
	Degraded      bool                  `json:"degraded"`
}

type threadGroup struct {
	counterpartID uint
	latest        *models.Message
	unread        int64
}

// List derives the user's conversation list.
//
// The listing never fails: this is a read-mostly view, and a briefly stale or
// partial list is better than an error page. Any sub-step failure degrades
// the result instead of propagating.
func (s *ConversationService) List(ctx context.Context, userID uint) ConversationList {
	degraded := false

	messages, err := s.messageRepo.ListForUser(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "conversation listing degraded: message scan failed",
			"user_id", userID, "error", err)
		observability.DegradedConversationLists.Inc()
		return ConversationList{Conversations: []models.Conversation{}, Degraded: true}
	}

	// Group by counterpart. Messages arrive newest-first with id as the
	// tie-break, so the first message seen per counterpart is the summary.
	groups := make(map[uint]*threadGroup)
	order := make([]uint, 0)
	for _, msg := range messages {
		cid := msg.CounterpartID(userID)
		g, ok := groups[cid]
		if !ok {
			g = &threadGroup{counterpartID: cid, latest: msg}
			groups[cid] = g
			order = append(order, cid)
		}
		if msg.RecipientID == userID && !msg.IsRead {
			g.unread++
		}
	}

	// Union in permitted contacts with no history so new eligible contacts
	// are visible before the first message is sent.
	contactOrder := make([]uint, 0)
	if s.permittedContacts != nil {
		contacts, err := s.permittedContacts(ctx, userID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "conversation listing degraded: contact resolution failed",
				"user_id", userID, "error", err)
			degraded = true
		} else {
			for _, contact := range contacts {
				if _, seen := groups[contact.ID]; seen {
					continue
				}
				groups[contact.ID] = &threadGroup{counterpartID: contact.ID}
				contactOrder = append(contactOrder, contact.ID)
			}
		}
	}

	allIDs := append(append([]uint{}, order...), contactOrder...)
	profiles, resolveDegraded := s.resolveProfiles(ctx, allIDs)
	if resolveDegraded {
		degraded = true
	}

	withHistory := make([]models.Conversation, 0, len(order))
	for _, cid := range order {
		profile, ok := profiles[cid]
		if !ok {
			// Counterpart no longer resolvable (deleted account); drop the group
			continue
		}
		g := groups[cid]
		t := g.latest.CreatedAt
		withHistory = append(withHistory, models.Conversation{
			Counterpart:     profile,
			ProjectID:       g.latest.ProjectID,
			LastMessage:     g.latest.Content,
			LastMessageID:   g.latest.ID,
			LastMessageTime: &t,
			UnreadCount:     g.unread,
			Online:          s.online(ctx, cid),
		})
	}

	// Newest thread first; equal timestamps break by message id so the
	// ordering is deterministic across calls.
	sort.SliceStable(withHistory, func(i, j int) bool {
		ti, tj := *withHistory[i].LastMessageTime, *withHistory[j].LastMessageTime
		if ti.Equal(tj) {
			return withHistory[i].LastMessageID > withHistory[j].LastMessageID
		}
		return ti.After(tj)
	})

	for _, cid := range contactOrder {
		profile, ok := profiles[cid]
		if !ok {
			continue
		}
		withHistory = append(withHistory, models.Conversation{
			Counterpart: profile,
			LastMessage: "",
			UnreadCount: 0,
			Online:      s.online(ctx, cid),
		})
	}

	if degraded {
		observability.DegradedConversationLists.Inc()
	}
	return ConversationList{Conversations: withHistory, Degraded: degraded}
}

func (s *ConversationService) resolveProfiles(ctx context.Context, ids []uint) (map[uint]models.Profile, bool) {
	profiles := make(map[uint]models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, false
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "conversation listing degraded: directory lookup failed",
			"error", err)
		return profiles, true
	}
	for _, user := range users {
		if !user.Active {
			continue
		}
		profiles[user.ID] = user.Profile()
	}
	return profiles, false
}

func (s *ConversationService) online(ctx context.Context, userID uint) bool {
	if s.isOnline == nil {
		return false
	}
	return s.isOnline(ctx, userID)
}
