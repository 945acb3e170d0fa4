package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/glacier"
	"github.com/pkg/errors"
)

// GlacierStore implements the cold tier against an AWS Glacier vault.
// Retrieval completion notifications are wired to the thaw channel via
// the vault's SNS topic, outside this client.
type GlacierStore struct {
	client *glacier.Glacier
	vault  string
}

var _ ColdStore = (*GlacierStore)(nil)

func NewGlacierStore(region, vault string) (*GlacierStore, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "create Glacier client")
	}
	return &GlacierStore{client: glacier.New(sess), vault: vault}, nil
}

func (s *GlacierStore) Archive(ctx context.Context, body []byte) (string, error) {
	out, err := s.client.UploadArchiveWithContext(ctx, &glacier.UploadArchiveInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		Body:      bytes.NewReader(body),
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading archive")
	}
	return aws.StringValue(out.ArchiveId), nil
}

func (s *GlacierStore) InitiateRetrieval(ctx context.Context, archiveID string, tier RetrievalTier) (string, error) {
	out, err := s.client.InitiateJobWithContext(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		JobParameters: &glacier.JobParameters{
			Type:      aws.String("archive-retrieval"),
			ArchiveId: aws.String(archiveID),
			Tier:      aws.String(string(tier)),
		},
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == glacier.ErrCodeInsufficientCapacityException {
			return "", ErrInsufficientCapacity
		}
		return "", errors.Wrapf(err, "initiating retrieval of %s", archiveID)
	}
	return aws.StringValue(out.JobId), nil
}

func (s *GlacierStore) FetchRetrieval(ctx context.Context, retrievalJobID string) ([]byte, error) {
	out, err := s.client.GetJobOutputWithContext(ctx, &glacier.GetJobOutputInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		JobId:     aws.String(retrievalJobID),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching retrieval job %s", retrievalJobID)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading retrieval job %s", retrievalJobID)
	}
	return data, nil
}

func (s *GlacierStore) Delete(ctx context.Context, archiveID string) error {
	_, err := s.client.DeleteArchiveWithContext(ctx, &glacier.DeleteArchiveInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(s.vault),
		ArchiveId: aws.String(archiveID),
	})
	return errors.Wrapf(err, "deleting archive %s", archiveID)
}
