// Package student содержит доменную модель студента агентства.
//
// Это ядро Application Pipeline Engine. Пакет определяет:
//
//   - Сущности (Entities): Student, Roster
//   - Value Objects: Country, ApplicationStatus, NocStatus, DocumentStatus, StoredFile
//   - Каталог документов: Catalog, Requirement
//   - Граф зависимостей между студентами: Graph
//   - Машину состояний заявки: StateMachine
//   - Доменные события: StatusChanged, DependencyChanged, DocumentUpdated и др.
//   - Интерфейс репозитория: Repository
//
// # Архитектурные принципы
//
//  1. Пакет не знает о хранилище - только интерфейсы, реализуемые в infrastructure
//  2. Все операции синхронные и чистые: сохранение и публикация событий делает слой application
//  3. Старые значения документов (true/false) нормализуются на границе хранилища
//
// # Основные операции
//
// Процент готовности документов:
//
//	pct, err := Progress(s, DefaultCatalog(), ProgressPolicy{})
//
// Блокировка одного студента другим:
//
//	graph := NewGraph(roster.Students)
//	added, err := graph.Block(target.ID, blocker.ID) // ErrCyclicDependency при цикле
//
// Смена статуса:
//
//	tr, err := NewStateMachine().RequestTransition(s, StatusApplied, roster.Resolver(), now)
//	var blocked *BlockedTransitionError
//	if errors.As(err, &blocked) {
//	    // blocked.BlockerName
//	}
package student
