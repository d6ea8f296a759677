package ecr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/inventory/types"
	zlog "zotregistry.dev/zarc/pkg/log"
)

const (
	DefaultPageSize   = 100
	DefaultMaxRetries = 5

	defaultRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 10 * time.Second
)

var errUnableToLoadAWSConfig = errors.New("unable to load AWS config for region")

// API is the part of the ECR client used to list repositories and images.
type API interface {
	awsecr.DescribeRepositoriesAPIClient
	awsecr.DescribeImagesAPIClient
}

type Config struct {
	Region string
	// RegistryID selects another account's registry, empty for the caller's default registry.
	RegistryID string
	PageSize   int
	MaxRetries int
}

// Inventory lists repositories and images from an ECR registry.
type Inventory struct {
	client        API
	config        Config
	retryInterval time.Duration
	log           zlog.Logger
}

// New builds an ECR client from the default AWS credential chain.
func New(ctx context.Context, config Config, log zlog.Logger) (*Inventory, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", errUnableToLoadAWSConfig, config.Region, err)
	}

	return NewWithClient(awsecr.NewFromConfig(awsCfg), config, log), nil
}

func NewWithClient(client API, config Config, log zlog.Logger) *Inventory {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &Inventory{
		client:        client,
		config:        config,
		retryInterval: defaultRetryInterval,
		log:           log,
	}
}

func (inv *Inventory) registryID() *string {
	if inv.config.RegistryID == "" {
		return nil
	}

	return aws.String(inv.config.RegistryID)
}

func (inv *Inventory) ListRepositories(ctx context.Context, filter string) ([]string, error) {
	input := &awsecr.DescribeRepositoriesInput{
		RegistryId: inv.registryID(),
	}

	if filter != "" {
		input.RepositoryNames = []string{filter}

		var output *awsecr.DescribeRepositoriesOutput

		err := inv.withRetry(ctx, func() error {
			var err error

			output, err = inv.client.DescribeRepositories(ctx, input)

			return err
		})
		if err != nil {
			return nil, mapNotFound(err, filter)
		}

		return repositoryNames(output.Repositories), nil
	}

	input.MaxResults = aws.Int32(int32(inv.config.PageSize)) //nolint:gosec

	paginator := awsecr.NewDescribeRepositoriesPaginator(inv.client, input)
	repos := []string{}

	for paginator.HasMorePages() {
		var page *awsecr.DescribeRepositoriesOutput

		err := inv.withRetry(ctx, func() error {
			var err error

			page, err = paginator.NextPage(ctx)

			return err
		})
		if err != nil {
			return nil, err
		}

		repos = append(repos, repositoryNames(page.Repositories)...)
	}

	inv.log.Debug().Int("repositories", len(repos)).Msg("listed repositories")

	return repos, nil
}

func (inv *Inventory) ListImages(ctx context.Context, repository string) ([]types.ImageRecord, error) {
	paginator := awsecr.NewDescribeImagesPaginator(inv.client, &awsecr.DescribeImagesInput{
		RepositoryName: aws.String(repository),
		RegistryId:     inv.registryID(),
		MaxResults:     aws.Int32(int32(inv.config.PageSize)), //nolint:gosec
	})

	images := []types.ImageRecord{}

	for paginator.HasMorePages() {
		var page *awsecr.DescribeImagesOutput

		err := inv.withRetry(ctx, func() error {
			var err error

			page, err = paginator.NextPage(ctx)

			return err
		})
		if err != nil {
			return nil, mapNotFound(err, repository)
		}

		for _, detail := range page.ImageDetails {
			if detail.ImagePushedAt == nil {
				inv.log.Warn().Str("repository", repository).Str("digest", aws.ToString(detail.ImageDigest)).
					Msg("image has no push timestamp")
			}

			images = append(images, toRecord(repository, detail))
		}
	}

	return images, nil
}

func (inv *Inventory) withRetry(ctx context.Context, operation func() error) error {
	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = inv.retryInterval
	expBackOff.MaxInterval = maxRetryInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackOff, uint64(inv.config.MaxRetries)), ctx) //nolint:gosec

	notify := func(err error, wait time.Duration) {
		inv.log.Warn().Err(err).Dur("wait", wait).Msg("ECR request throttled, retrying")
	}

	return backoff.RetryNotify(func() error {
		err := operation()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}, policy, notify)
}

// isRetryable reports throttling and server side faults.
func isRetryable(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded",
		"ServerException", "ServiceUnavailable", "InternalFailure":
		return true
	}

	return apiErr.ErrorFault() == smithy.FaultServer
}

func mapNotFound(err error, repository string) error {
	var notFound *ecrtypes.RepositoryNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", zerr.ErrRepoNotFound, repository)
	}

	return err
}

func repositoryNames(repos []ecrtypes.Repository) []string {
	names := make([]string, 0, len(repos))

	for _, repo := range repos {
		names = append(names, aws.ToString(repo.RepositoryName))
	}

	return names
}

func toRecord(repository string, detail ecrtypes.ImageDetail) types.ImageRecord {
	record := types.ImageRecord{
		Repository: repository,
		Tag:        types.TagOrUntagged(detail.ImageTags),
		Tags:       detail.ImageTags,
		Digest:     aws.ToString(detail.ImageDigest),
		SizeBytes:  aws.ToInt64(detail.ImageSizeInBytes),
	}

	if detail.ImagePushedAt != nil {
		record.PushedAt = detail.ImagePushedAt.UTC()
	}

	if detail.LastRecordedPullTime != nil {
		pulled := detail.LastRecordedPullTime.UTC()
		record.LastPulledAt = &pulled
	}

	return record
}
