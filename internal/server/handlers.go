package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/logger"
	"github.com/KaramelBytes/tabloom-cli/internal/service"
)

func newID() string { return uuid.NewString() }

type fileRequest struct {
	Filename string `json:"filename" validate:"required"`
}

type columnRequest struct {
	Filename string `json:"filename" validate:"required"`
	Column   string `json:"column" validate:"required"`
}

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind, a client-safe message and the request ID.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) files(w http.ResponseWriter, r *http.Request) {
	names, err := s.analyzer.Files()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	render.JSON(w, r, map[string][]string{"files": names})
}

// multipartMemory is how much of a form is held in memory before spilling to disk.
const multipartMemory = 32 << 20

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if s.opt.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, string(errors.KindValidation),
				fmt.Sprintf("upload exceeds %d bytes", s.opt.MaxUploadBytes))
			return
		}
		s.fail(w, r, errors.Validationf("expected a multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errors.Validationf("form field \"file\" is required"))
		return
	}
	defer file.Close()

	sum, err := s.analyzer.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, sum)
}

func (s *Server) pareto(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.analyzer.Pareto(r.Context(), req.Filename, req.Column)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, it := range res.Items {
		s.metrics.paretoItems.WithLabelValues(string(it.Tier)).Inc()
	}
	render.JSON(w, r, res)
}

func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.analyzer.Normalize(r.Context(), req.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.columnsNormalized.Add(float64(service.Normalized(res.Reports)))
	render.JSON(w, r, res)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !s.decode(w, r, &req) {
		return
	}
	rep, err := s.analyzer.Profile(r.Context(), req.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, rep)
}

func (s *Server) frequencies(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.analyzer.Frequencies(r.Context(), req.Filename, req.Column)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, f)
}

// decode reads a JSON body into v and validates it, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.fail(w, r, errors.Validationf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
			}
			err = errors.Validationf("%s", strings.Join(msgs, "; "))
		}
		s.fail(w, r, err)
		return false
	}
	return true
}

// fail maps an error kind to a status: validation 400, not found 404, anything else 500.
// Internal error details are logged, not returned.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	switch kind {
	case errors.KindValidation:
		s.writeError(w, r, http.StatusBadRequest, string(kind), err.Error())
	case errors.KindNotFound:
		s.writeError(w, r, http.StatusNotFound, string(kind), err.Error())
	default:
		s.logger.Error("request failed",
			zap.String(logger.FieldRequestID, RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, string(errors.KindInternal), "internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: ErrorDetail{Kind: kind, Message: msg, RequestID: RequestID(r.Context())}})
}
