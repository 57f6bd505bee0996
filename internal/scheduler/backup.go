package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/database"
)

// BackupJob uploads the sqlite database file to S3. Registered only when
// a backup bucket is configured. A passive WAL checkpoint runs first so
// the main file contains recent writes.
type BackupJob struct {
	db     *database.DB
	bucket string
	prefix string
	region string
	log    zerolog.Logger
}

// NewBackupJob creates an S3 backup job
func NewBackupJob(db *database.DB, bucket, prefix, region string, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		db:     db,
		bucket: bucket,
		prefix: prefix,
		region: region,
		log:    log.With().Str("job", "s3_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "s3_backup"
}

// Run uploads the database file
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Flush WAL content into the main database file before reading it.
	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, walFrames, checkpointed int
	if err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").
		Scan(&busy, &walFrames, &checkpointed); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint before backup failed")
	}

	file, err := os.Open(j.db.Path())
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer file.Close()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(j.region))
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}

	key := fmt.Sprintf("%s/optimizer-%s.db", j.prefix, time.Now().UTC().Format("2006-01-02T15-04-05"))
	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	j.log.Info().
		Str("bucket", j.bucket).
		Str("key", key).
		Msg("Database backup uploaded")
	return nil
}
