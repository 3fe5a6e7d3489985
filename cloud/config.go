package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Settings select the account, region and endpoint the clients talk to.
// Empty fields fall through to the SDK's default credential chain.
type Settings struct {
	Region   string `yaml:"region" env:"REGION"`
	Profile  string `yaml:"profile" env:"PROFILE"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// LoadConfig resolves an aws.Config from s.
func LoadConfig(ctx context.Context, s Settings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("volshift/cloud: load aws config: %w", err)
	}
	if s.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(s.Endpoint)
	}
	return cfg, nil
}
