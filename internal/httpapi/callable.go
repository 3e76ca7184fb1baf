package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxCallableBodyBytes = 64 * 1024

// callableRequest is the envelope Firebase callable clients send.
type callableRequest struct {
	Data json.RawMessage `json:"data"`
}

type callableResponse struct {
	Result any `json:"result"`
}

// callableError is the canonical error envelope of the callable protocol.
type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type callableErrorResponse struct {
	Error callableError `json:"error"`
}

var errBadEnvelope = status.Error(codes.InvalidArgument, "request body must be a JSON object with a data field")

// decodeCallable reads the envelope and unmarshals its data field into dst.
// A missing or null data field leaves dst untouched.
func decodeCallable(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return errBadEnvelope
	}

	var envelope callableRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCallableBodyBytes))
	if err := dec.Decode(&envelope); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errBadEnvelope
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" || dst == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return status.Error(codes.InvalidArgument, "data has an unexpected shape")
	}
	return nil
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, callableResponse{Result: result})
}

// writeCallableError renders a status error; anything else becomes INTERNAL.
func writeCallableError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		st = status.New(codes.Internal, "internal error")
	}
	writeJSON(w, toStatusCode(st.Code()), callableErrorResponse{
		Error: callableError{Status: callableStatus(st.Code()), Message: st.Message()},
	})
}

// toStatusCode maps a status code to the HTTP status the callable protocol uses.
func toStatusCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Canceled:
		return 499
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// callableStatus renders codes the way callable clients expect, e.g. PERMISSION_DENIED.
func callableStatus(code codes.Code) string {
	switch code {
	case codes.InvalidArgument:
		return "INVALID_ARGUMENT"
	case codes.Unauthenticated:
		return "UNAUTHENTICATED"
	case codes.PermissionDenied:
		return "PERMISSION_DENIED"
	case codes.NotFound:
		return "NOT_FOUND"
	case codes.AlreadyExists:
		return "ALREADY_EXISTS"
	case codes.FailedPrecondition:
		return "FAILED_PRECONDITION"
	case codes.Unavailable:
		return "UNAVAILABLE"
	case codes.DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	default:
		return "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
