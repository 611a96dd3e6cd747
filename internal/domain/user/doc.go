// Package user содержит доменную модель пользователя Daily Code Challenge.
//
// Пакет определяет:
//
//   - Сущности: User, Snapshot
//   - Value Objects: Difficulty, Scores, Activity, ActivityLog
//   - Правила начисления очков: FinalScore, AddScore
//   - Интерфейсы: Repository, Cache
//
// # Правила начисления
//
// Итоговый балл нормируется на максимальный множитель и ограничен десятью:
//
//	final, err := FinalScore(8, DifficultyHard) // 6.4
//
// Все четыре счётчика увеличиваются на итоговый балл, после чего сумма
// округляется до двух знаков. Засчитывается не более одной попытки в день
// (день определяется в опорном часовом поясе).
//
// # Журнал активности
//
// RecentActivity хранит не более двух записей, новая запись добавляется в хвост,
// самая старая вытесняется:
//
//	log = log.Push(activity)
//
// # Кеш
//
// Кеш работает по схеме cache-aside: хранилище - источник истины,
// снапшот в кеше перезаписывается только после успешной записи в хранилище.
package user
