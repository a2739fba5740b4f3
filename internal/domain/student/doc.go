// Package student содержит доменную модель студента и его записей на курсы.
//
// Пакет определяет:
//
//   - Сущности (Entities): Student, Course
//   - Value Objects: ID, CourseID
//   - Интерфейсы репозиториев: Repository, CourseRepository, InvoiceLedger
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - интерфейсы определены здесь, реализации в infrastructure
//  3. Rich Domain Model - правила записи на курс инкапсулированы в сущности
//
// # Записи на курсы
//
// Набор записей меняется только через доменные методы:
//
//	if err := st.Enroll(course); err != nil {
//	    // shared.ErrAlreadyEnrolled
//	}
//	if err := st.Unenroll(course.ID); err != nil {
//	    // shared.ErrNotEnrolled
//	}
//
// # Кэш выпуска
//
// Поле Student.Graduated - это кэш, а не источник истины. Право на выпуск
// всегда вычисляется заново из записей на курсы и неоплаченных счетов во
// внешней системе биллинга; сохранённое значение предназначено только для
// внешних читателей.
//
// # Идентификаторы
//
// ID студента выдаёт хранилище (последовательность PostgreSQL или атомарный
// счётчик в памяти), поэтому коллизии случайных идентификаторов исключены.
package student
