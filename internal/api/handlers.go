package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/webhook"
)

// Verification query parameters.
const (
	paramMode      = "hub.mode"
	paramToken     = "hub.verify_token"
	paramChallenge = "hub.challenge"
)

// LivenessText is the body served at the root path.
const LivenessText = "Servicio activo"

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.deliveryHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		requestLogger(r).Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler answers the subscription handshake (GET /webhook).
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	q := r.URL.Query()

	challenge, err := webhook.Verify(q.Get(paramMode), q.Get(paramToken), q.Get(paramChallenge), s.verifyToken)
	switch {
	case err == nil:
		log.Info("Server.verifyHandler: webhook verified")
		writeTextResponse(w, http.StatusOK, challenge)
	case errors.Is(err, models.ErrMissingVerifyParams):
		log.Warn("Server.verifyHandler: missing parameters")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing parameters"))
	default:
		log.Warn("Server.verifyHandler: verification failed", "mode", q.Get(paramMode))
		writeJSONResponse(w, http.StatusForbidden, models.Error("Verification failed"))
	}
}

// deliveryHandler validates an event delivery (POST /webhook) and runs the conversation turn.
func (s *Server) deliveryHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warn("Server.deliveryHandler: failed to read body", "error", err)
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON provided"))
		return
	}

	event, err := webhook.Validate(body)
	if err != nil {
		if errors.Is(err, models.ErrMalformedPayload) {
			log.Warn("Server.deliveryHandler: failed to decode JSON", "error", err)
			metrics.WebhookEvents.WithLabelValues("malformed").Inc()
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON provided"))
			return
		}
		log.Warn("Server.deliveryHandler: not a WhatsApp API event", "error", err)
		metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not a WhatsApp API event"))
		return
	}

	switch event.Kind {
	case webhook.EventStatus:
		metrics.WebhookEvents.WithLabelValues("status").Inc()
		log.Info("Server.deliveryHandler: received a WhatsApp status update", "count", len(event.Statuses))
		s.recordStatuses(r, event.Statuses)
	case webhook.EventMessage:
		metrics.WebhookEvents.WithLabelValues("message").Inc()
		msg := event.Message
		log.Info("Server.deliveryHandler: message received", "userID", msg.UserID, "type", msg.Type, "messageID", msg.MessageID)
		if s.handler != nil {
			// Outbound calls run to completion even if the provider drops the connection.
			ctx := context.WithoutCancel(r.Context())
			results := s.handler.Handle(ctx, msg)
			failed := 0
			for _, res := range results {
				if !res.OK() {
					failed++
				}
			}
			log.Info("Server.deliveryHandler: turn complete", "userID", msg.UserID, "sends", len(results), "failed", failed)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.OK())
}

func (s *Server) recordStatuses(r *http.Request, statuses []models.StatusUpdate) {
	log := requestLogger(r)
	for _, st := range statuses {
		if !models.IsValidMessageStatus(st.Status) {
			log.Debug("Server.recordStatuses: ignoring unknown status", "status", st.Status, "messageID", st.MessageID)
			continue
		}
		receipt := models.Receipt{
			To:        st.RecipientID,
			Status:    st.Status,
			Time:      st.Timestamp,
			MessageID: st.MessageID,
			Kind:      "status",
		}
		if err := s.st.AddReceipt(receipt); err != nil {
			log.Error("Server.recordStatuses: failed to add receipt", "messageID", st.MessageID, "error", err)
		}
	}
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	writeTextResponse(w, http.StatusOK, LivenessText)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	count, err := s.greetings.Count(r.Context())
	if err != nil {
		requestLogger(r).Error("Server.healthHandler: greeting store unavailable", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Greeting store unavailable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"greeted_users": count}))
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	requestLogger(r).Debug("Server.receiptsHandler: processing receipts request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	receipts, err := s.st.GetReceipts()
	if err != nil {
		requestLogger(r).Error("Server.receiptsHandler: error fetching receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch receipts"))
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}
