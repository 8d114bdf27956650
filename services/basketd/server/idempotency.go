package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"basketvault/crypto"
	"basketvault/services/basketd/storage"
)

const headerIdempotencyKey = "Idempotency-Key"

// withIdempotency replays the stored response of a keyed request instead of
// executing it twice. Keys are scoped to the authenticated caller and bound
// to the method and path of the first request that used them. The key is
// reserved before the handler runs so concurrent duplicates cannot both
// execute.
func (s *Server) withIdempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerIdempotencyKey)
		id, ok := IdentityFrom(r.Context())
		if key == "" || !ok || s.store == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		caller := crypto.FormatAddress(id.Caller)
		record, err := s.store.LookupIdempotency(ctx, key, caller)
		switch {
		case err == nil:
			s.replayIdempotent(w, r, record)
			return
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("idempotency lookup failed", "error", err)
			writeProblem(w, http.StatusServiceUnavailable, "idempotency store unavailable", "internal")
			return
		}

		reserved, err := s.store.ReserveIdempotency(ctx, &storage.IdempotencyKey{
			Key:    key,
			Caller: caller,
			Method: r.Method,
			Path:   r.URL.Path,
		})
		if err != nil {
			s.logger.Warn("idempotency reserve failed", "error", err)
			writeProblem(w, http.StatusServiceUnavailable, "idempotency store unavailable", "internal")
			return
		}
		if !reserved {
			record, err := s.store.LookupIdempotency(ctx, key, caller)
			if err != nil {
				writeProblem(w, http.StatusConflict, "request with this idempotency key is in progress", "request")
				return
			}
			s.replayIdempotent(w, r, record)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}
		if recorder.status >= http.StatusInternalServerError {
			if err := s.store.ReleaseIdempotency(context.WithoutCancel(ctx), key, caller); err != nil {
				s.logger.Warn("idempotency release failed", "error", err)
			}
			return
		}
		if err := s.store.CompleteIdempotency(context.WithoutCancel(ctx), key, caller, recorder.status, recorder.buf.String()); err != nil {
			s.logger.Warn("idempotency save failed", "error", err)
		}
	})
}

// replayIdempotent answers a request whose key is already on record.
func (s *Server) replayIdempotent(w http.ResponseWriter, r *http.Request, record *storage.IdempotencyKey) {
	if record.Method != r.Method || record.Path != r.URL.Path {
		writeProblem(w, http.StatusUnprocessableEntity, "idempotency key reused for a different request", "request")
		return
	}
	if record.Pending() {
		writeProblem(w, http.StatusConflict, "request with this idempotency key is in progress", "request")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write([]byte(record.Response))
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
