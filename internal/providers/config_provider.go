package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stw/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "STW_LOG_LEVEL")
	viper.BindEnv("storage.dir", "STW_STORAGE_DIR")
	viper.BindEnv("storage.saveInterval", "STW_SAVE_INTERVAL")
	viper.BindEnv("backup.interval", "STW_BACKUP_INTERVAL")
	viper.BindEnv("cache.enabled", "STW_CACHE_ENABLED")
	viper.BindEnv("cache.size", "STW_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	applyDefaults(&conf)

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "SimpleTicketWallet"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

func applyDefaults(conf *structures.Config) {
	if conf.Wallet.DefaultNotifyDays <= 0 {
		conf.Wallet.DefaultNotifyDays = 3
	}
	if conf.Wallet.UsageWarnPercent <= 0 {
		conf.Wallet.UsageWarnPercent = 80
	}
	if conf.Wallet.BackupMaxAge <= 0 {
		conf.Wallet.BackupMaxAge = 7 * 24 * time.Hour
	}
	if conf.Storage.QuotaMB <= 0 {
		conf.Storage.QuotaMB = 512
	}
	if conf.Cache.TTLSeconds <= 0 {
		conf.Cache.TTLSeconds = 30
	}
	if conf.Backup.Timeout <= 0 {
		conf.Backup.Timeout = 30 * time.Second
	}
}
