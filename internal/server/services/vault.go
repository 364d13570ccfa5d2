package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/cryptox"
	"github.com/dkurganov/passvault/internal/logging"
	sc "github.com/dkurganov/passvault/internal/server/config"
	"github.com/dkurganov/passvault/internal/server/models"
	"github.com/dkurganov/passvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// test seams for the S3 client, same trick the repositories use with DBTX
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// exportRecord is the portable form of one item inside a bundle. The secret
// travels in plaintext here; the bundle as a whole is encrypted.
type exportRecord struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	URL      string `json:"url"`
	Notes    string `json:"notes"`
}

// ImportResult reports per-record outcomes of a bundle import.
type ImportResult struct {
	Imported int
	Failed   int
}

// VaultService implements owner-scoped item CRUD and encrypted bundle
// export/import. Every operation takes the authenticated owner; the owner
// is never taken from request payloads.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	crypto      *cryptox.Engine
	config      *sc.Config
	logger      logging.Logger
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, crypto *cryptox.Engine, cfg *sc.Config, logger logging.Logger) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		crypto:      crypto,
		config:      cfg,
		logger:      logger.With("module", "vault_service"),
	}
}

// List returns the owner's items. Secrets stay ciphertext; decryption
// happens at the edge.
func (s *VaultService) List(ctx context.Context, ownerID string) ([]*models.VaultItem, error) {
	repo := s.repomanager.VaultItems(s.db)
	items, err := repo.SelectByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return items, nil
}

// Create stores an item for the owner. The id and the owner are assigned
// here; whatever the client put in those fields is discarded.
func (s *VaultService) Create(ctx context.Context, ownerID string, item *models.VaultItem) (*models.VaultItem, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}

	item.ID = uuid.NewString()
	item.OwnerID = ownerID

	repo := s.repomanager.VaultItems(s.db)
	created, err := repo.Create(ctx, item)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return created, nil
}

// Get fetches one item by id within the owner's scope. A foreign item and a
// missing item are the same ErrorNotFound.
func (s *VaultService) Get(ctx context.Context, ownerID, id string) (*models.VaultItem, error) {
	repo := s.repomanager.VaultItems(s.db)
	item, err := repo.Get(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return item, nil
}

// Update overwrites the whitelisted fields of the owner's item. Ownership
// is part of the same statement as the write, so there is no window between
// an ownership check and the mutation.
func (s *VaultService) Update(ctx context.Context, ownerID, id string, upd *models.VaultItemUpdate) (*models.VaultItem, error) {
	if upd.Title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}

	repo := s.repomanager.VaultItems(s.db)
	item, err := repo.Update(ctx, id, ownerID, upd)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return item, nil
}

// Delete removes the owner's item, same single-statement scoping as Update.
func (s *VaultService) Delete(ctx context.Context, ownerID, id string) error {
	repo := s.repomanager.VaultItems(s.db)
	if err := repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

// Export gathers the owner's items into one encrypted bundle. A record
// whose stored secret no longer decrypts is skipped and logged; one rotten
// row must not take the rest of the vault with it.
func (s *VaultService) Export(ctx context.Context, ownerID string) ([]byte, error) {
	items, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	records := make([]exportRecord, 0, len(items))
	for _, it := range items {
		secret, err := s.crypto.DecryptField(ownerID, it.Secret)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecryptable item in export", "item_id", it.ID)
			continue
		}
		records = append(records, exportRecord{
			Title:    it.Title,
			Username: it.Username,
			Secret:   string(secret),
			URL:      it.URL,
			Notes:    it.Notes,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, common.ErrorInternal
	}

	bundle, err := s.crypto.EncryptBundle(ownerID, data)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return bundle, nil
}

// Import decrypts a bundle and creates its records under the owner. Each
// record stands alone: a malformed one increments Failed and the loop moves
// on, so one bad entry never aborts the rest.
func (s *VaultService) Import(ctx context.Context, ownerID string, bundle []byte) (*ImportResult, error) {
	data, err := s.crypto.DecryptBundle(ownerID, bundle)
	if err != nil {
		return nil, common.ErrorDecryptFailed
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: bundle is not a record sequence", common.ErrorValidation)
	}

	result := &ImportResult{}
	for _, raw := range raws {
		var rec exportRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Title == "" {
			result.Failed++
			continue
		}

		ciphertext, err := s.crypto.EncryptField(ownerID, []byte(rec.Secret))
		if err != nil {
			result.Failed++
			continue
		}

		item := &models.VaultItem{
			Title:    rec.Title,
			Username: rec.Username,
			Secret:   ciphertext,
			URL:      rec.URL,
			Notes:    rec.Notes,
		}
		if _, err := s.Create(ctx, ownerID, item); err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result, nil
}

// --- S3 export archive ---

func (s *VaultService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func (s *VaultService) archiveKey(ownerID string) string {
	return fmt.Sprintf("bundles/%s/%s", ownerID, uuid.New())
}

// ExportToArchive builds the owner's bundle and stores it in the configured
// bucket. The object key is returned so the owner can restore from it later.
func (s *VaultService) ExportToArchive(ctx context.Context, ownerID string) (string, error) {
	bundle, err := s.Export(ctx, ownerID)
	if err != nil {
		return "", err
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return "", common.ErrorInternal
	}

	key := s.archiveKey(ownerID)
	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(bundle),
	}); err != nil {
		s.logger.Error(ctx, "archive upload failed", "error", err.Error())
		return "", common.ErrorInternal
	}

	return key, nil
}

// ImportFromArchive fetches a previously archived bundle and imports it.
// The bundle is keyed to the owner, so a foreign object fails decryption
// rather than leaking into the wrong vault.
func (s *VaultService) ImportFromArchive(ctx context.Context, ownerID, key string) (*ImportResult, error) {
	client, err := s.getS3Client(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error(ctx, "archive download failed", "error", err.Error())
		return nil, common.ErrorInternal
	}
	defer out.Body.Close()

	bundle, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return s.Import(ctx, ownerID, bundle)
}
