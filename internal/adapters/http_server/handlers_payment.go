package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, raw body)).
const SignatureHeader = "X-Signature"

const maxWebhookBytes = 64 << 10

type paymentStatusRequest struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
}

// Sign computes the signature a webhook caller must send for body.
func Sign(secret, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func validSignature(secret, body []byte, header string) bool {
	if len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil || len(got) == 0 {
		return false
	}
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return hmac.Equal(got, m.Sum(nil))
}

func (h *Handlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, domain.BadRequest("Could not read request body."))
		return
	}
	// signature is checked on the raw bytes, before anything is parsed
	if !validSignature(h.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		observability.ObserveWebhook("bad_signature")
		writeError(w, r, domain.Unauthorized("Invalid signature."))
		return
	}

	var req paymentStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, domain.BadRequest("Malformed JSON body."))
		return
	}
	if _, err := h.Payments.UpdateStatus(r.Context(), req.InvoiceID, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment status updated"})
}

func (h *Handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Payments.ListPayments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Payments.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
