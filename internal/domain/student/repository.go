package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// Каждая операция атомарна в пределах одной сущности; транзакций между
// разными сущностями ядро не предполагает.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции CRUD для студентов.
type Repository interface {
	// Create сохраняет нового студента и присваивает ему ID.
	// Возвращает ErrStudentAlreadyExists, если email уже занят.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента вместе с курсами.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id ID) (*Student, error)

	// GetByEmail возвращает студента по email.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByEmail(ctx context.Context, email string) (*Student, error)

	// Update сохраняет профиль, кэш Graduated и набор записей на курсы целиком.
	// Возвращает ErrStudentNotFound, если студент не найден.
	Update(ctx context.Context, student *Student) error

	// UpdateProfile сохраняет только имя и фамилию; записи на курсы не трогает.
	// Возвращает ErrStudentNotFound, если студент не найден.
	UpdateProfile(ctx context.Context, student *Student) error

	// SetGraduated сохраняет только кэш Graduated.
	// Возвращает ErrStudentNotFound, если студент не найден.
	SetGraduated(ctx context.Context, id ID, graduated bool) error

	// Delete удаляет студента.
	// Возвращает ErrStudentNotFound, если студент не найден.
	Delete(ctx context.Context, id ID) error

	// GetAll возвращает всех студентов в порядке возрастания ID.
	GetAll(ctx context.Context) ([]*Student, error)

	// Exists проверяет существование студента по ID.
	Exists(ctx context.Context, id ID) (bool, error)
}

// CourseRepository определяет операции над курсами.
type CourseRepository interface {
	// Create сохраняет курс и присваивает ему ID.
	Create(ctx context.Context, course *Course) error

	// GetByID возвращает ErrCourseNotFound, если курс не найден.
	GetByID(ctx context.Context, id CourseID) (*Course, error)

	// GetByName возвращает курс с наименьшим ID среди курсов с таким названием.
	GetByName(ctx context.Context, name string) (*Course, error)

	// GetAll возвращает все курсы в порядке возрастания ID.
	GetAll(ctx context.Context) ([]*Course, error)

	// Update сохраняет название, описание и InvoiceReference.
	Update(ctx context.Context, course *Course) error

	// Delete удаляет курс вместе с его записями.
	Delete(ctx context.Context, id CourseID) error

	// ReassignEnrollments переносит записи студентов с курса from на курс to.
	// Записи, которые уже есть на to, не дублируются.
	ReassignEnrollments(ctx context.Context, from, to CourseID) error
}

// InvoiceLedger хранит ссылку на счёт за обучение для каждой пары (студент, курс).
type InvoiceLedger interface {
	// Record запоминает (или перезаписывает) ссылку на счёт.
	Record(ctx context.Context, studentID ID, courseID CourseID, reference string) error

	// Get возвращает ссылку или shared.ErrNotFound.
	Get(ctx context.Context, studentID ID, courseID CourseID) (string, error)

	// Remove удаляет ссылку. Отсутствие записи ошибкой не считается.
	Remove(ctx context.Context, studentID ID, courseID CourseID) error
}
