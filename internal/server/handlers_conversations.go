package server

import (
	"net/http"

	"agenda/internal/store"
)

type createConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type postMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Content        string `json:"content" validate:"required,min=1,max=10000"`
}

type messagesQuery struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.deps.Conversations.ListConversations(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalidRequest(w, validationMessage(err))
		return
	}

	conv, err := s.deps.Conversations.CreateConversation(r.Context(), actorFrom(r.Context()), req.Title)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conv, err := s.deps.Conversations.GetConversation(ctx, actorFrom(ctx), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}

	msgs, err := s.deps.Conversations.History(ctx, conv.ID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": msgs})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.deps.Conversations.DeleteConversation(ctx, actorFrom(ctx), r.PathValue("id")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := messagesQuery{ConversationID: r.URL.Query().Get("conversation_id")}
	if err := validate.Struct(q); err != nil {
		writeInvalidRequest(w, validationMessage(err))
		return
	}

	if _, err := s.deps.Conversations.GetConversation(ctx, actorFrom(ctx), q.ConversationID); err != nil {
		writeMappedError(w, err)
		return
	}
	msgs, err := s.deps.Conversations.History(ctx, q.ConversationID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalidRequest(w, validationMessage(err))
		return
	}

	ctx := r.Context()
	msg, err := s.deps.Chat.Post(ctx, actorFrom(ctx), req.ConversationID, req.Content)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
