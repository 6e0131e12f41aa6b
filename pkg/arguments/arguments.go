package arguments

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/m-mizutani/iocfeed/pkg/metrics"
	"github.com/m-mizutani/iocfeed/pkg/service"
)

const (
	defaultRegion      = "ap-south-1"
	defaultEventInfo   = "Daily S3 Threat Feed - %s"
	defaultThreatLevel = 2
	dateFormat         = "2006-01-02"
)

// Arguments are passed to Handler. It includes environment variables and factories, etc.
// All values are string to distinguish unset from zero.
type Arguments struct {
	AwsRegion      string `env:"AWS_REGION"`
	SourceBuckets  string `env:"SOURCE_BUCKETS"`
	DatePrefix     string `env:"DATE_PREFIX"`
	ObjectSuffixes string `env:"OBJECT_SUFFIXES"`
	FeedHeader     string `env:"FEED_HEADER"`

	MISPURL        string `env:"MISP_URL"`
	MISPKey        string `env:"MISP_KEY"`
	SecretsARN     string `env:"SECRETS_ARN"`
	MISPVerifyCert string `env:"MISP_VERIFY_CERT"`
	MISPRateLimit  string `env:"MISP_RATE_LIMIT"`

	EventInfo         string `env:"EVENT_INFO"`
	EventDistribution string `env:"EVENT_DISTRIBUTION"`
	EventThreatLevel  string `env:"EVENT_THREAT_LEVEL"`
	EventAnalysis     string `env:"EVENT_ANALYSIS"`
	EventTags         string `env:"EVENT_TAGS"`
	AttributeType     string `env:"ATTRIBUTE_TYPE"`
	AttributeCategory string `env:"ATTRIBUTE_CATEGORY"`

	EventTableName  string `env:"EVENT_TABLE_NAME"`
	IOCTopicARN     string `env:"IOC_TOPIC_ARN"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	PushgatewayURL  string `env:"PUSHGATEWAY_URL"`

	// Do not change them in each lambda Function. They must be set only in New() or tests
	Repository adaptor.Repository                  `env:"-"`
	NewS3      adaptor.S3ClientFactory             `env:"-"`
	NewSNS     adaptor.SNSClientFactory            `env:"-"`
	NewSM      adaptor.SecretsManagerClientFactory `env:"-"`
	HTTP       adaptor.HTTPClient                  `env:"-"`
	MISP       adaptor.MISPClient                  `env:"-"`
	Metrics    *metrics.Recorder                   `env:"-"`
}

// -----------------------
// Data binding

// New is constructor of Arguments bound with environment variables
func New() (*Arguments, error) {
	args := &Arguments{}

	if _, err := env.UnmarshalFromEnviron(args); err != nil {
		return nil, errors.Wrap(err, "Failed env.UnmarshalFromEnviron")
	}

	if args.EventTableName != "" {
		repo, err := adaptor.NewDynamoRepository(args.region(), args.EventTableName)
		if err != nil {
			return nil, errors.Wrap(err, "Failed NewDynamoRepository").With("table", args.EventTableName)
		}
		args.Repository = repo
	}

	args.NewS3 = adaptor.NewS3Client
	args.NewSNS = adaptor.NewSNSClient
	args.NewSM = adaptor.NewSecretsManagerClient
	args.Metrics = metrics.NewRecorder()

	return args, nil
}

func (x *Arguments) region() string {
	if x.AwsRegion == "" {
		return defaultRegion
	}
	return x.AwsRegion
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt(name, value string, defaultValue int) (int, error) {
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrap(err, "Invalid integer in environment variable").With(name, value)
	}
	return n, nil
}

func parseBool(name, value string, defaultValue bool) (bool, error) {
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrap(err, "Invalid boolean in environment variable").With(name, value)
	}
	return b, nil
}

// BatchConfig builds configuration of the run on now
func (x *Arguments) BatchConfig(now time.Time) (*service.BatchConfig, error) {
	buckets := splitList(x.SourceBuckets)
	if len(buckets) == 0 {
		return nil, errors.New("SOURCE_BUCKETS is required")
	}

	date := now.UTC().Format(dateFormat)
	cfg := &service.BatchConfig{
		Date:       date,
		DatePrefix: x.DatePrefix,
		Tags:       splitList(x.EventTags),
	}
	if cfg.DatePrefix == "" {
		cfg.DatePrefix = date + "/"
	}
	for _, bucket := range buckets {
		cfg.Locations = append(cfg.Locations, iocfeed.ParseSourceLocation(bucket))
	}

	info := x.EventInfo
	if info == "" {
		info = defaultEventInfo
	}
	if strings.Contains(info, "%s") {
		info = fmt.Sprintf(info, date)
	}
	cfg.Event.Info = info

	var err error
	if cfg.Event.Distribution, err = parseInt("EVENT_DISTRIBUTION", x.EventDistribution, 0); err != nil {
		return nil, err
	}
	if cfg.Event.ThreatLevel, err = parseInt("EVENT_THREAT_LEVEL", x.EventThreatLevel, defaultThreatLevel); err != nil {
		return nil, err
	}
	if cfg.Event.Analysis, err = parseInt("EVENT_ANALYSIS", x.EventAnalysis, 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Secrets is stored in AWS Secrets Manager as JSON
type Secrets struct {
	MISPKey string `json:"misp_key"`
}

// GetSecrets retrieves Secrets from SECRETS_ARN
func (x *Arguments) GetSecrets() (*Secrets, error) {
	// secretARN sample: arn:aws:secretsmanager:ap-northeast-1:111122223333:secret:iocfeed-AbCdEf
	arnParts := strings.Split(x.SecretsARN, ":")
	if len(arnParts) < 7 {
		return nil, errors.New("Invalid SECRETS_ARN").With("ARN", x.SecretsARN)
	}

	newSM := x.NewSM
	if newSM == nil {
		newSM = adaptor.NewSecretsManagerClient
	}
	client, err := newSM(arnParts[3])
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create SecretsManager client").With("region", arnParts[3])
	}

	output, err := client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(x.SecretsARN),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get secret value").With("ARN", x.SecretsARN)
	}

	var secrets Secrets
	if err := json.Unmarshal([]byte(aws.StringValue(output.SecretString)), &secrets); err != nil {
		return nil, errors.Wrap(err, "Failed to parse secret value as JSON").With("ARN", x.SecretsARN)
	}
	return &secrets, nil
}

func (x *Arguments) mispKey() (string, error) {
	if x.MISPKey != "" || x.SecretsARN == "" {
		return x.MISPKey, nil
	}

	secrets, err := x.GetSecrets()
	if err != nil {
		return "", err
	}
	if secrets.MISPKey == "" {
		return "", errors.New("misp_key is not set in secrets").With("ARN", x.SecretsARN)
	}
	return secrets.MISPKey, nil
}

// -----------------------
// Services

// MISPClient returns Arguments.MISP if set, or a new client of MISP_URL. API key is MISP_KEY or
// misp_key in secrets of SECRETS_ARN.
func (x *Arguments) MISPClient() (adaptor.MISPClient, error) {
	if x.MISP != nil {
		return x.MISP, nil
	}

	key, err := x.mispKey()
	if err != nil {
		return nil, err
	}
	if x.MISPURL == "" || key == "" {
		return nil, errors.New("MISP_URL and MISP_KEY (or SECRETS_ARN) are required")
	}

	verify, err := parseBool("MISP_VERIFY_CERT", x.MISPVerifyCert, true)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseInt("MISP_RATE_LIMIT", x.MISPRateLimit, 0)
	if err != nil {
		return nil, err
	}

	x.MISP = adaptor.NewMISPClient(&adaptor.MISPClientArguments{
		URL:       x.MISPURL,
		Key:       key,
		HTTP:      adaptor.NewHTTPClient(verify),
		RateLimit: rateLimit,
	})
	return x.MISP, nil
}

func (x *Arguments) HTTPClient() adaptor.HTTPClient {
	client := x.HTTP
	if client == nil {
		client = &http.Client{}
	}
	return client
}

// SourceService returns *service.SourceService with Arguments.NewS3
func (x *Arguments) SourceService() *service.SourceService {
	newS3 := x.NewS3
	if newS3 == nil {
		newS3 = adaptor.NewS3Client
	}
	return service.NewSourceService(newS3, x.region(), splitList(x.ObjectSuffixes))
}

func (x *Arguments) Extractor() (*service.Extractor, error) {
	header, err := service.ParseHeaderPolicy(x.FeedHeader)
	if err != nil {
		return nil, err
	}
	return service.NewExtractor(header), nil
}

func (x *Arguments) EventService() (*service.EventService, error) {
	client, err := x.MISPClient()
	if err != nil {
		return nil, err
	}
	return service.NewEventService(&service.EventServiceArguments{
		Client:     client,
		Repository: x.Repository,
	}), nil
}

func (x *Arguments) CommitService() (*service.CommitService, error) {
	client, err := x.MISPClient()
	if err != nil {
		return nil, err
	}
	return service.NewCommitService(&service.CommitServiceArguments{
		Client:        client,
		AttributeType: x.AttributeType,
		Category:      x.AttributeCategory,
	}), nil
}

// BatchService returns *service.BatchService for the run on now
func (x *Arguments) BatchService(now time.Time) (*service.BatchService, error) {
	cfg, err := x.BatchConfig(now)
	if err != nil {
		return nil, err
	}
	extractor, err := x.Extractor()
	if err != nil {
		return nil, err
	}
	events, err := x.EventService()
	if err != nil {
		return nil, err
	}
	committer, err := x.CommitService()
	if err != nil {
		return nil, err
	}

	return service.NewBatchService(&service.BatchServiceArguments{
		Config:    *cfg,
		Source:    x.SourceService(),
		Extractor: extractor,
		Events:    events,
		Committer: committer,
	}), nil
}

// SNSService returns a new *service.SNSService based on Arguments.NewSNS
func (x *Arguments) SNSService() *service.SNSService {
	factory := x.NewSNS
	if factory == nil {
		factory = adaptor.NewSNSClient
	}
	return service.NewSNSService(factory)
}

// ReportService returns *service.ReportService with destinations configured by environment variables
func (x *Arguments) ReportService() *service.ReportService {
	args := &service.ReportServiceArguments{
		Repository:     x.Repository,
		Metrics:        x.Metrics,
		PushgatewayURL: x.PushgatewayURL,
	}
	if x.IOCTopicARN != "" {
		args.SNS = x.SNSService()
		args.TopicARN = x.IOCTopicARN
	}
	if x.SlackWebhookURL != "" {
		args.Notify = service.NewNotifyService(&service.NotifyServiceArguments{
			SlackIncomingWebhookURL: x.SlackWebhookURL,
			HTTPClient:              x.HTTPClient(),
		})
	}
	return service.NewReportService(args)
}
