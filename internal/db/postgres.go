package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/types"
	"github.com/yungbote/visionvault-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "visionvault", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.ImageAnalysis{},
		&types.ObjectDetectionResult{},
		&types.DetectedObject{},
		&types.ImageDescriptionResult{},
		&types.FaceRecognitionResult{},
		&types.RecognizedFace{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		ddl  string
	}{
		{"fk_user_token_user_id", `ALTER TABLE "user_token" ADD CONSTRAINT "fk_user_token_user_id" FOREIGN KEY ("user_id") REFERENCES "user"("id") ON DELETE CASCADE`},
		{"fk_image_analysis_user_id", `ALTER TABLE "image_analysis" ADD CONSTRAINT "fk_image_analysis_user_id" FOREIGN KEY ("user_id") REFERENCES "user"("id") ON DELETE CASCADE`},
		{"fk_object_detection_result_analysis_id", `ALTER TABLE "object_detection_result" ADD CONSTRAINT "fk_object_detection_result_analysis_id" FOREIGN KEY ("analysis_id") REFERENCES "image_analysis"("id") ON DELETE CASCADE`},
		{"fk_detected_object_result_id", `ALTER TABLE "detected_object" ADD CONSTRAINT "fk_detected_object_result_id" FOREIGN KEY ("result_id") REFERENCES "object_detection_result"("id") ON DELETE CASCADE`},
		{"fk_image_description_result_analysis_id", `ALTER TABLE "image_description_result" ADD CONSTRAINT "fk_image_description_result_analysis_id" FOREIGN KEY ("analysis_id") REFERENCES "image_analysis"("id") ON DELETE CASCADE`},
		{"fk_face_recognition_result_analysis_id", `ALTER TABLE "face_recognition_result" ADD CONSTRAINT "fk_face_recognition_result_analysis_id" FOREIGN KEY ("analysis_id") REFERENCES "image_analysis"("id") ON DELETE CASCADE`},
		{"fk_recognized_face_result_id", `ALTER TABLE "recognized_face" ADD CONSTRAINT "fk_recognized_face_result_id" FOREIGN KEY ("result_id") REFERENCES "face_recognition_result"("id") ON DELETE CASCADE`},
	}
	for _, c := range constraints {
		var count int64
		s.db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, c.name).Scan(&count)
		if count > 0 {
			continue
		}
		if err := s.db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
