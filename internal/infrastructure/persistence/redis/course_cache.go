package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campus-ledger/student-service/internal/domain/student"
)

// KeyCourseCatalog holds the cached course list.
const KeyCourseCatalog = "courses:all"

// CachedCourseRepository serves GetAll from Redis and drops the cached list
// on every write. Cache failures fall through to the wrapped repository.
type CachedCourseRepository struct {
	student.CourseRepository

	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCourseRepository wraps repo with a catalog cache.
func NewCachedCourseRepository(repo student.CourseRepository, cache *Cache, ttl time.Duration, logger *slog.Logger) *CachedCourseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedCourseRepository{
		CourseRepository: repo,
		cache:            cache,
		ttl:              ttl,
		logger:           logger.With("component", "course_cache"),
	}
}

// GetAll returns the catalog, reading through the cache.
func (r *CachedCourseRepository) GetAll(ctx context.Context) ([]*student.Course, error) {
	var cached []*student.Course
	err := r.cache.Get(ctx, KeyCourseCatalog, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("course cache read failed", "error", err)
	}

	courses, err := r.CourseRepository.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, KeyCourseCatalog, courses, r.ttl); err != nil {
		r.logger.Warn("course cache write failed", "error", err)
	}
	return courses, nil
}

func (r *CachedCourseRepository) Create(ctx context.Context, course *student.Course) error {
	if err := r.CourseRepository.Create(ctx, course); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedCourseRepository) Update(ctx context.Context, course *student.Course) error {
	if err := r.CourseRepository.Update(ctx, course); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedCourseRepository) Delete(ctx context.Context, id student.CourseID) error {
	if err := r.CourseRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedCourseRepository) invalidate(ctx context.Context) {
	if err := r.cache.Delete(ctx, KeyCourseCatalog); err != nil {
		r.logger.Warn("course cache invalidation failed", "error", err)
	}
}
