package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/tasktracker-backend/internal/platform/envutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type Config struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ConfigFromEnv fills unset fields of base from the environment.
func ConfigFromEnv(base Config) Config {
	return Config{
		Driver:     envutil.String("DB_DRIVER", orDefault(base.Driver, "postgres")),
		Host:       envutil.String("POSTGRES_HOST", orDefault(base.Host, "localhost")),
		Port:       envutil.String("POSTGRES_PORT", orDefault(base.Port, "5432")),
		User:       envutil.String("POSTGRES_USER", orDefault(base.User, "postgres")),
		Password:   envutil.String("POSTGRES_PASSWORD", base.Password),
		Name:       envutil.String("POSTGRES_NAME", orDefault(base.Name, "tasktracker")),
		SSLMode:    envutil.String("POSTGRES_SSLMODE", orDefault(base.SSLMode, "disable")),
		SQLitePath: envutil.String("SQLITE_PATH", orDefault(base.SQLitePath, "tasktracker.db")),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgres", "postgresql":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
			orDefault(cfg.SSLMode, "disable"),
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		// Foreign keys are off by default in sqlite.
		dialector = sqlite.Open(cfg.SQLitePath + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", orDefault(cfg.Driver, "postgres"), err)
	}

	serviceLog.Info("Database connected", "driver", orDefault(cfg.Driver, "postgres"))
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
