package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campus-ledger/student-service/internal/application/command"
	"github.com/campus-ledger/student-service/internal/application/query"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
	"github.com/campus-ledger/student-service/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  s.Uptime().Round(time.Second).String(),
		"version": s.config.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentResponse struct {
	StudentID        int64                    `json:"studentId"`
	CourseID         int64                    `json:"courseId"`
	CourseName       string                   `json:"courseName"`
	InvoiceReference string                   `json:"invoiceReference"`
	EnrolledAt       time.Time                `json:"enrolledAt"`
	Student          *query.StudentProfileDTO `json:"student,omitempty"`
}

type unenrollmentResponse struct {
	Message          string `json:"message"`
	StudentID        int64  `json:"studentId"`
	CourseID         int64  `json:"courseId"`
	InvoiceReference string `json:"invoiceReference,omitempty"`
	InvoiceCancelled bool   `json:"invoiceCancelled"`
}

// handleEnroll handles POST /student/enrol?studentId&courseId.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	studentID, courseID, ok := s.studentCourseParams(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Enrollment.Enroll(r.Context(), student.ID(studentID), student.CourseID(courseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := enrollmentResponse{
		StudentID:        int64(result.StudentID),
		CourseID:         int64(result.CourseID),
		CourseName:       result.CourseName,
		InvoiceReference: result.InvoiceReference,
		EnrolledAt:       result.EnrolledAt,
	}
	if profile, err := s.deps.Students.GetProfile(r.Context(), result.StudentID); err == nil {
		resp.Student = profile
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleUnenroll handles DELETE /student/unenrol?studentId&courseId.
func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	studentID, courseID, ok := s.studentCourseParams(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Enrollment.Unenroll(r.Context(), student.ID(studentID), student.CourseID(courseID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, unenrollmentResponse{
		Message:          "Unenrolled successfully",
		StudentID:        int64(result.StudentID),
		CourseID:         int64(result.CourseID),
		InvoiceReference: result.InvoiceReference,
		InvoiceCancelled: result.InvoiceCancelled,
	})
}

// handleGetEnrollments handles GET /student/enrolments?studentId.
func (s *Server) handleGetEnrollments(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "studentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labels, err := s.deps.Students.GetEnrollments(r.Context(), student.ID(studentID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, labels)
}

// ══════════════════════════════════════════════════════════════════════════════
// INVOICES, GRADUATION AND FINES
// ══════════════════════════════════════════════════════════════════════════════

// handleStudentSubresource serves GET /student/{studentId}/invoices and
// GET /student/graduate/{id}.
func (s *Server) handleStudentSubresource(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")

	switch {
	case first == "graduate":
		s.handleGraduation(w, r, second)
	case second == "invoices":
		s.handleInvoices(w, r, first)
	default:
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Resource not found")
	}
}

// handleInvoices handles GET /student/{studentId}/invoices?status&type.
func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request, rawID string) {
	studentID, err := parseID("studentId", rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	invoices, err := s.deps.Invoices.Handle(r.Context(), query.FindInvoicesQuery{
		StudentID: student.ID(studentID),
		Status:    r.URL.Query().Get("status"),
		Type:      r.URL.Query().Get("type"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	dtos := make([]query.InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, query.ToInvoiceDTO(inv))
	}
	writeJSON(w, r, http.StatusOK, dtos)
}

// handleGraduation handles GET /student/graduate/{id}.
func (s *Server) handleGraduation(w http.ResponseWriter, r *http.Request, rawID string) {
	studentID, err := parseID("id", rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	eligible, err := s.deps.Graduation.Handle(r.Context(), command.EvaluateGraduationCommand{StudentID: student.ID(studentID)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"studentId": studentID,
		"eligible":  eligible,
	})
}

// handleProcessFine handles POST /student/fines?studentId&amount&description.
func (s *Server) handleProcessFine(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "studentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		s.writeError(w, r, invalidParam("amount", "must be a number"))
		return
	}

	invoice, err := s.deps.Fines.Handle(r.Context(), command.ProcessLibraryFineCommand{
		StudentID:   student.ID(studentID),
		Amount:      amount,
		Description: r.URL.Query().Get("description"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "Library fine processed successfully",
		"invoice": query.ToInvoiceDTO(*invoice),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

// handleRegister handles POST /student/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var cmd command.RegisterStudentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Register.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.ToStudentProfileDTO(st))
}

// handleLogin handles POST /student/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var cmd command.LoginCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Login.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, query.ToStudentProfileDTO(st))
}

// handleVerify handles GET /student/verify?studentId. Unknown students get 401.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "studentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	exists, err := s.deps.Manager.Verify(r.Context(), student.ID(studentID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !exists {
		writeJSONError(w, r, http.StatusUnauthorized, "student_not_found", "Student not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"studentId": studentID, "exists": true})
}

// handleListCourses handles GET /student/courses.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.Students.ListCourses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, courses)
}

// handleGetProfile handles GET /student/{id}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseID("id", r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.deps.Students.GetProfile(r.Context(), student.ID(studentID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUpdateProfile handles PUT /student/{id}?name&surname.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseID("id", r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Manager.UpdateProfile(r.Context(), command.UpdateProfileCommand{
		StudentID: student.ID(studentID),
		Name:      r.URL.Query().Get("name"),
		Surname:   r.URL.Query().Get("surname"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, query.ToStudentProfileDTO(st))
}

// handleDeleteStudent handles DELETE /student/delete/{studentId}.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseID("studentId", r.PathValue("studentId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.deps.Manager.Delete(r.Context(), command.DeleteStudentCommand{StudentID: student.ID(studentID)}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps a domain error to an HTTP status and error code. Wrapping
// kinds are checked before the remote causes they carry.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrLockUnavailable):
		return http.StatusConflict, "student_busy"
	case errors.Is(err, shared.ErrAlreadyEnrolled):
		return http.StatusConflict, "already_enrolled"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, shared.ErrNotEnrolled):
		return http.StatusBadRequest, "not_enrolled"
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, shared.ErrInvoiceCreationFailed):
		return http.StatusBadGateway, "invoice_creation_failed"
	case errors.Is(err, shared.ErrEligibilityCheckFailed):
		return http.StatusInternalServerError, "eligibility_check_failed"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsRemote(err):
		return http.StatusBadGateway, "remote_call_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		if code == "internal_server_error" {
			message = "An unexpected error occurred"
		}
	}

	writeJSONError(w, r, status, code, message)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PARSING
// ══════════════════════════════════════════════════════════════════════════════

func invalidParam(name, reason string) error {
	return shared.NewDomainError("http", "Parse", shared.ErrInvalidInput, name+" "+reason)
}

func parseID(name, raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, invalidParam(name, "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name, "must be a positive integer")
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.URL.Query().Get(name))
}

func (s *Server) studentCourseParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	studentID, err := queryID(r, "studentId")
	if err != nil {
		s.writeError(w, r, err)
		return 0, 0, false
	}
	courseID, err := queryID(r, "courseId")
	if err != nil {
		s.writeError(w, r, err)
		return 0, 0, false
	}
	return studentID, courseID, true
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput, "malformed JSON body", err)
	}
	return nil
}
