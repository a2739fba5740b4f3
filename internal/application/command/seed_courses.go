package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED COURSES COMMAND
// Runs at startup: collapse duplicate courses, then add missing catalog entries.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogEntry is one course of the default catalog.
type CatalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DefaultCatalog is used when no catalog file is configured.
var DefaultCatalog = []CatalogEntry{
	{Name: "Introduction to Java", Description: "Learn Java programming basics"},
	{Name: "Web Development", Description: "Build web applications"},
	{Name: "Database Systems", Description: "Understand databases and SQL"},
}

// LoadCatalog reads catalog entries from a YAML file of the form
//
//	courses:
//	  - name: Web Development
//	    description: Build web applications
//
// An empty path returns DefaultCatalog.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	if path == "" {
		return DefaultCatalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read course catalog: %w", err)
	}

	var file struct {
		Courses []CatalogEntry `yaml:"courses"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse course catalog: %w", err)
	}
	if len(file.Courses) == 0 {
		return nil, fmt.Errorf("course catalog %s has no courses", path)
	}
	return file.Courses, nil
}

// SeedResult reports what seeding changed.
type SeedResult struct {
	DuplicatesRemoved int
	CoursesCreated    int
}

// SeedCoursesHandler seeds the course catalog.
type SeedCoursesHandler struct {
	courses student.CourseRepository
	catalog []CatalogEntry
	logger  *slog.Logger
}

// NewSeedCoursesHandler creates a new SeedCoursesHandler.
func NewSeedCoursesHandler(courses student.CourseRepository, catalog []CatalogEntry, logger *slog.Logger) *SeedCoursesHandler {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SeedCoursesHandler{
		courses: courses,
		catalog: catalog,
		logger:  logger.With("component", "seed_courses"),
	}
}

// Handle removes duplicate courses (same name and description), keeping the
// lowest id and moving enrollments onto it, then creates catalog courses that
// are missing by name. Running it twice changes nothing the second time.
func (h *SeedCoursesHandler) Handle(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}

	all, err := h.courses.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed_courses: list courses: %w", err)
	}

	// GetAll is ordered by id, so the first course per key survives.
	survivors := make(map[string]student.CourseID)
	for _, c := range all {
		key := c.DedupKey()
		keep, seen := survivors[key]
		if !seen {
			survivors[key] = c.ID
			continue
		}

		if err := h.courses.ReassignEnrollments(ctx, c.ID, keep); err != nil {
			return nil, fmt.Errorf("seed_courses: reassign course %d: %w", c.ID, err)
		}
		if err := h.courses.Delete(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("seed_courses: delete duplicate %d: %w", c.ID, err)
		}
		h.logger.Info("removed duplicate course", "course_id", int64(c.ID), "kept", int64(keep), "name", c.Name)
		result.DuplicatesRemoved++
	}

	for _, entry := range h.catalog {
		_, err := h.courses.GetByName(ctx, entry.Name)
		if err == nil {
			continue
		}
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("seed_courses: lookup %q: %w", entry.Name, err)
		}

		course, err := student.NewCourse(entry.Name, entry.Description)
		if err != nil {
			return nil, fmt.Errorf("seed_courses: %q: %w", entry.Name, err)
		}
		if err := h.courses.Create(ctx, course); err != nil {
			return nil, fmt.Errorf("seed_courses: create %q: %w", entry.Name, err)
		}
		h.logger.Info("seeded course", "course_id", int64(course.ID), "name", course.Name)
		result.CoursesCreated++
	}

	return result, nil
}
