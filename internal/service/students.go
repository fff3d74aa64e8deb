package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/messhall-system/internal/model"
	"github.com/mmeshcher/messhall-system/internal/repository"
	"github.com/mmeshcher/messhall-system/internal/validation"
)

// GetStudent возвращает студента холла по номеру зачётной книжки.
func (s *Service) GetStudent(ctx context.Context, hall, rollNumber string) (*model.Student, error) {
	student, err := s.repo.GetStudentByRoll(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	if student.Hall != hall {
		return nil, repository.ErrForeignHall
	}
	return student, nil
}

// ListStudents возвращает активных студентов холла с необязательным поиском.
func (s *Service) ListStudents(ctx context.Context, hall, query string) ([]model.Student, error) {
	return s.repo.ListStudents(ctx, hall, query)
}

// DeactivateStudent помечает студента неактивным. Записи и заказы сохраняются.
func (s *Service) DeactivateStudent(ctx context.Context, hall, rollNumber string) error {
	return s.repo.DeactivateStudent(ctx, rollNumber, hall)
}

// ListAvailableItems возвращает доступные позиции каталога холла.
func (s *Service) ListAvailableItems(ctx context.Context, hall string) ([]model.Item, error) {
	return s.repo.ListAvailableItems(ctx, hall)
}

// StartRosterSync запускает фоновую синхронизацию студентов с реестром института.
func (s *Service) StartRosterSync(ctx context.Context, interval time.Duration) {
	if s.rosterClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runRosterSync(ctx)
			}
		}
	}()
}

// runRosterSync выполняет один проход синхронизации и журналирует его итог,
// чтобы постоянно падающий реестр не оставался незамеченным.
func (s *Service) runRosterSync(ctx context.Context) {
	res, err := s.syncRoster(ctx)
	if err != nil {
		s.logger.Error("roster sync failed", zap.Error(err))
		return
	}

	s.logger.Info("roster sync completed",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
}

// SyncResult содержит итоги одного прохода синхронизации реестра.
type SyncResult struct {
	Created int
	Updated int
	Skipped int
}

// syncRoster выгружает реестр и обновляет справочник студентов. Записи с
// некорректным форматом пропускаются и учитываются в Skipped вместе со
// строками, отброшенными при разборе CSV. Баланс существующих студентов
// синхронизация не трогает: его меняет только лицевой счёт.
func (s *Service) syncRoster(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	records, skipped, err := s.rosterClient.FetchRoster(ctx)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped

	for _, rec := range records {
		if !validation.IsValidRollNumber(rec.RollNumber) || !validation.IsValidPhoneNumber(rec.PhoneNumber) {
			res.Skipped++
			continue
		}
		if rec.Name == "" || rec.Hall == "" {
			res.Skipped++
			continue
		}

		created, err := s.repo.UpsertRosterStudent(ctx, model.Student{
			RollNumber:   rec.RollNumber,
			Name:         rec.Name,
			RoomNumber:   rec.RoomNumber,
			PhoneNumber:  rec.PhoneNumber,
			Hall:         rec.Hall,
			Year:         rec.Year,
			BalanceCents: ToCents(rec.Balance),
		})
		if err != nil {
			res.Skipped++
			continue
		}

		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	return res, nil
}
