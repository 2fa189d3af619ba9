package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"queryrunner/internal/domain"
)

var _ ExecutionService = (*AthenaService)(nil)

// AthenaAPI is the subset of the Athena client the service uses. Tests supply
// a scripted implementation instead of a live client.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// AthenaConfig holds connection settings for the Athena-backed service.
// Credentials are optional; when unset the default AWS credential chain applies.
type AthenaConfig struct {
	Region          string
	WorkGroup       string
	Database        string
	OutputLocation  string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// AthenaService implements ExecutionService against AWS Athena. Athena's
// GetQueryResults returns the column-name header as the first row of the
// first page, which is exactly the contract the runner expects.
type AthenaService struct {
	client AthenaAPI
	cfg    AthenaConfig
}

// NewAthenaService builds an AthenaService with a real AWS client.
func NewAthenaService(ctx context.Context, cfg AthenaConfig) (*AthenaService, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAthenaServiceFromAPI(athena.NewFromConfig(awsCfg), cfg), nil
}

// NewAthenaServiceFromAPI builds an AthenaService over an existing API client.
func NewAthenaServiceFromAPI(client AthenaAPI, cfg AthenaConfig) *AthenaService {
	return &AthenaService{client: client, cfg: cfg}
}

// StartExecution submits the query and returns the QueryExecutionId.
func (s *AthenaService) StartExecution(ctx context.Context, queryText string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(queryText),
	}
	if s.cfg.WorkGroup != "" {
		input.WorkGroup = aws.String(s.cfg.WorkGroup)
	}
	if s.cfg.Database != "" {
		input.QueryExecutionContext = &types.QueryExecutionContext{
			Database: aws.String(s.cfg.Database),
		}
	}
	if s.cfg.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(s.cfg.OutputLocation),
		}
	}

	out, err := s.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	return aws.ToString(out.QueryExecutionId), nil
}

// GetExecutionStatus maps Athena's query execution state onto the domain enum.
// Athena state names (QUEUED, RUNNING, SUCCEEDED, FAILED, CANCELLED) already
// match, so unknown values pass through and count as terminal.
func (s *AthenaService) GetExecutionStatus(ctx context.Context, handle string) (domain.ExecutionState, error) {
	out, err := s.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(handle),
	})
	if err != nil {
		return "", fmt.Errorf("get query execution: %w", err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return "", fmt.Errorf("get query execution: response carried no status")
	}
	return domain.ExecutionState(out.QueryExecution.Status.State), nil
}

// GetResultsPage fetches one page of results via GetQueryResults.
func (s *AthenaService) GetResultsPage(ctx context.Context, handle, pageToken string) (ResultsPage, error) {
	input := &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(handle),
	}
	if pageToken != "" {
		input.NextToken = aws.String(pageToken)
	}

	out, err := s.client.GetQueryResults(ctx, input)
	if err != nil {
		return ResultsPage{}, fmt.Errorf("get query results: %w", err)
	}

	page := ResultsPage{
		StatusCode:    http.StatusOK,
		NextPageToken: aws.ToString(out.NextToken),
	}
	if out.ResultSet != nil {
		page.Rows = make([][]*string, 0, len(out.ResultSet.Rows))
		for _, row := range out.ResultSet.Rows {
			cells := make([]*string, len(row.Data))
			for i, datum := range row.Data {
				cells[i] = datum.VarCharValue
			}
			page.Rows = append(page.Rows, cells)
		}
	}
	return page, nil
}
