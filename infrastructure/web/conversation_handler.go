package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ahmedmirza994/whatsapp-sub001/auth"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/services"
)

type ConversationHandler struct {
	conversations services.IConversationService
}

func NewConversationHandler(conversations services.IConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type participantResponse struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

type conversationResponse struct {
	ID           uuid.UUID             `json:"id"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	Participants []participantResponse `json:"participants"`
}

func toConversationResponse(conversation domain.Conversation) conversationResponse {
	active := lo.Filter(conversation.Participants, func(p domain.Participant, _ int) bool {
		return p.LeftAt == nil
	})
	return conversationResponse{
		ID:        conversation.ID,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
		Participants: lo.Map(active, func(p domain.Participant, _ int) participantResponse {
			return participantResponse{UserID: p.UserID, Name: p.Name, Email: p.Email}
		}),
	}
}

type createConversationRequest struct {
	ParticipantIDs []uuid.UUID `json:"participantIds"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, errors.ErrMissingCredential)
		return
	}

	var request createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.ErrUserNotFound)
		return
	}

	conversation, err := h.conversations.CreateConversation(identity, request.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationResponse(conversation))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	conversations, err := h.conversations.GetConversationsForUser(identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(conversations, func(c domain.Conversation, _ int) conversationResponse {
		return toConversationResponse(c)
	}))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, errors.ErrConversationNotFound)
		return
	}

	conversation, err := h.conversations.GetConversation(conversationID, identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

type addParticipantRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (h *ConversationHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, errors.ErrConversationNotFound)
		return
	}

	var request addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.ErrUserNotFound)
		return
	}

	conversation, err := h.conversations.AddParticipant(conversationID, identity.UserID, request.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, errors.ErrConversationNotFound)
		return
	}

	conversation, err := h.conversations.LeaveConversation(conversationID, identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}
