package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParametersByPathAPI is the part of the SSM client ImportSSM needs.
type ParametersByPathAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// NewSSMClient builds an SSM client from the default AWS configuration.
func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// ImportSSM copies every parameter under path into the environment, named
// after the last path segment (/propostas/prod/JWT_SECRET → JWT_SECRET).
// Variables already present in the environment are not overridden.
// It returns the number of variables set.
func ImportSSM(ctx context.Context, api ParametersByPathAPI, path string) (int, error) {
	prefix := strings.TrimRight(path, "/") + "/"
	set := 0

	p := ssm.NewGetParametersByPathPaginator(api, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return set, fmt.Errorf("get parameters by path %s: %w", prefix, err)
		}
		for _, param := range out.Parameters {
			name := aws.ToString(param.Name)
			key := name[strings.LastIndex(name, "/")+1:]
			if key == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			if err := os.Setenv(key, aws.ToString(param.Value)); err != nil {
				return set, fmt.Errorf("set %s: %w", key, err)
			}
			set++
		}
	}
	return set, nil
}
