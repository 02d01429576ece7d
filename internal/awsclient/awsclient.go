// Package awsclient loads the shared AWS configuration and builds service clients.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// Clients holds the AWS service clients used by the skill
type Clients struct {
	Config     aws.Config
	DynamoDB   *dynamodb.Client
	SES        *ses.Client
	CloudWatch *cloudwatch.Client
}

// Load resolves credentials and region from the default chain. An empty region
// leaves the SDK to pick it up from AWS_REGION or the shared config file.
func Load(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		Config:     cfg,
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SES:        ses.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}
