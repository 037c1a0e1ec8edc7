package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/siakad/core/internal/application/services"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
)

// CourseHandler handles attendance tracking and the weekly schedule
type CourseHandler struct {
	state  *services.AppState
	logger *logger.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(state *services.AppState, logger *logger.Logger) *CourseHandler {
	return &CourseHandler{
		state:  state,
		logger: logger,
	}
}

// ListCourses returns the tracked courses with today's attendance
func (h *CourseHandler) ListCourses(c echo.Context) error {
	courses := h.state.Snapshot().Courses
	now := h.state.Now()

	out := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		out = append(out, CourseResponse{
			Course:          course,
			AttendanceCount: course.AttendanceCount(),
			AttendedToday:   h.state.AttendedToday(course.ID, now),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// AddCourse starts tracking a course and schedules its reminder
func (h *CourseHandler) AddCourse(c echo.Context) error {
	var req CourseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	course, err := h.state.AddCourse(c.Request().Context(), req.Name, req.Code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, course)
}

// MarkAttendance records today's attendance
func (h *CourseHandler) MarkAttendance(c echo.Context) error {
	course, err := h.state.MarkAttendance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CourseResponse{
		Course:          course,
		AttendanceCount: course.AttendanceCount(),
		AttendedToday:   true,
	})
}

// RemoveCourse stops tracking a course
func (h *CourseHandler) RemoveCourse(c echo.Context) error {
	if err := h.state.RemoveCourse(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSchedule returns the whole week
func (h *CourseHandler) GetSchedule(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.Schedule(c.Request().Context()))
}

// GetDay returns the items of one day with their time status
func (h *CourseHandler) GetDay(c echo.Context) error {
	day, err := parseDay(c)
	if err != nil {
		return err
	}

	items, err := h.state.ScheduleStatus(c.Request().Context(), day)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, items)
}

// AddScheduleItem prepends a class to a day
func (h *CourseHandler) AddScheduleItem(c echo.Context) error {
	day, err := parseDay(c)
	if err != nil {
		return err
	}

	var item entities.ScheduleItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	sched, err := h.state.AddScheduleItem(c.Request().Context(), day, item)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, sched.Day(day))
}

// RemoveScheduleItem deletes a class from a day
func (h *CourseHandler) RemoveScheduleItem(c echo.Context) error {
	day, err := parseDay(c)
	if err != nil {
		return err
	}

	if _, err := h.state.RemoveScheduleItem(c.Request().Context(), day, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

type CourseRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code"`
}

type CourseResponse struct {
	entities.Course
	AttendanceCount int  `json:"attendance_count"`
	AttendedToday   bool `json:"attended_today"`
}
