package storage

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"stw/internal/cloud"
	"stw/internal/notify"
	"stw/internal/providers"
	"stw/internal/services"
	"stw/internal/storage/interfaces"
	"stw/internal/structures"
)

type Scheduler struct {
	config   *structures.Config
	logger   providers.Logger
	service  services.WalletServiceInterface
	gas      cloud.GasClientInterface
	notifier notify.NotifierInterface
	metrics  providers.MetricsProviderInterface
	cron     *gron.Cron
	opsMu    sync.Mutex
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.WalletServiceInterface, gas cloud.GasClientInterface, notifier notify.NotifierInterface, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:   config,
		logger:   logger,
		service:  service,
		gas:      gas,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Storage.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		start := time.Now()
		if err := s.service.PersistAll(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting aggregates: %s", err)
			return
		}
		s.metrics.ObservePersistenceDuration(time.Since(start))
		s.logger.Debugf(providers.TypeApp, "Persisted aggregates to %s", s.config.Storage.Dir)
	})

	if s.config.Backup.Interval > 0 {
		s.cron.AddFunc(gron.Every(s.config.Backup.Interval), func() {
			settings := s.service.GetSettings()
			if !settings.CloudBackup.Auto || !s.gas.Configured() {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), s.config.Backup.Timeout)
			defer cancel()
			if _, err := s.gas.Backup(ctx); err != nil {
				s.metrics.IncBackupsTotal("error")
				s.logger.Errorf(providers.TypeApp, "Scheduled backup failed: %s", err)
				return
			}
			s.metrics.IncBackupsTotal("ok")
		})
	}

	s.cron.AddFunc(gron.Every(24*time.Hour), func() {
		s.notifier.ExpiringSoon(s.service.ExpiringSoon(time.Now()))
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	return s.service.LoadFromStore()
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting wallet aggregates...")
	start := time.Now()
	if err := s.service.PersistAll(); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting aggregates: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	return nil
}
